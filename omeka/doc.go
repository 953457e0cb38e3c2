// Package omeka is a small client for the Omeka S REST API.
//
// Items are kept as opaque JSON-LD documents ([Resource]) so that a fetch
// followed by a full-replace PUT preserves every property the client does
// not understand. Only the handful of keys the sync tools read are parsed,
// and those reads are permissive: a malformed value reads as absent.
package omeka
