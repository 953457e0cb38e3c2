// Package link discovers items referenced through relationship properties
// and adds them to destination item sets.
//
// A run streams items one page at a time:
//
//	PageSource -> Extractor -> MembershipWriter
//
// The Coordinator pulls a page, extracts the ids referenced through each
// requested property, drops ids already seen earlier in the run, and writes
// each new id to the item set mapped to that property before asking for the
// next page. Only the per-property seen-sets outlive a page, so memory is
// bounded by one page plus the ids discovered so far.
package link
