// Package mediaref copies media onto items that only point at an image item.
//
// Catalogue items reference a separate image item through a property
// (rcl:image by default). Dereferencing fetches that image item, rebuilds an
// ingest request for each of its media and creates the media on the
// referencing item with POST /api/media, so the item itself is never
// replaced.
package mediaref
