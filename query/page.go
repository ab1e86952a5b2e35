package query

import (
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/sha3"

	"rubin.dev/cix/chainindex"
)

// ErrCursorMismatch is returned when a PageQuery's Cursor does not match
// the integrity token for its AfterKey: the cursor was hand-edited, or
// paired with an AfterKey it was never issued for.
var ErrCursorMismatch = errors.New("query: cursor does not match after-key")

// PageQuery is a pagination cursor: a page size and an optional exclusive
// lower bound. Cursor is an opaque integrity token for AfterKey: it plays
// no part in ordering, but a non-empty Cursor paired with the wrong
// AfterKey is rejected.
type PageQuery struct {
	PageSize int
	AfterKey *chainindex.TxOutRef
	Cursor   string
}

// Page is the response: the query that produced it, the query for the
// next page (nil if none), and the items themselves.
type Page[T any] struct {
	CurrentPageQuery PageQuery
	NextPageQuery    *PageQuery
	Items            []T
}

// cursorToken derives an opaque, fixed-width integrity token for a
// TxOutRef using SHA3-256, so a cursor handed back to a client carries a
// value that is cheap to validate without leaking the raw out_ref encoding
// as the only proof of origin.
func cursorToken(ref chainindex.TxOutRef) string {
	h := sha3.Sum256(append(append([]byte{}, ref.TxID[:]...), byte(ref.Index), byte(ref.Index>>8), byte(ref.Index>>16), byte(ref.Index>>24)))
	return hex.EncodeToString(h[:8])
}

// validateCursor rejects a PageQuery whose Cursor doesn't match the
// integrity token for its AfterKey. A Cursor is optional on the caller's
// first request (AfterKey nil); once AfterKey is set from a page this
// package handed back, Cursor, if present, must match it.
func validateCursor(query PageQuery) error {
	if query.AfterKey == nil {
		if query.Cursor != "" {
			return ErrCursorMismatch
		}
		return nil
	}
	if query.Cursor == "" {
		return nil
	}
	if query.Cursor != cursorToken(*query.AfterKey) {
		return ErrCursorMismatch
	}
	return nil
}

func newPage[T any](items []T, refs []chainindex.TxOutRef, query PageQuery, hasMore bool) Page[T] {
	page := Page[T]{CurrentPageQuery: query, Items: items}
	if hasMore && len(refs) > 0 {
		last := refs[len(refs)-1]
		page.NextPageQuery = &PageQuery{PageSize: query.PageSize, AfterKey: &last, Cursor: cursorToken(last)}
	}
	return page
}
