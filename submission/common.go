// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package submission

import (
	"context"
	"time"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
)

var (
	mon = monkit.Package()

	// Error is the default submission error class.
	Error = errs.Class("submission")
	// ErrListingUnavailable is returned when the listing source cannot be read.
	ErrListingUnavailable = errs.Class("listing unavailable")
	// ErrConfiguration is returned for invalid aggregation options, before any listing happens.
	ErrConfiguration = errs.Class("configuration")
)

// Object is a single entry of a namespace listing.
type Object struct {
	Key          string
	LastModified time.Time
	// Deleted is set when the listing reports the object as deleted,
	// e.g. a delete marker that is still visible in the listing.
	Deleted bool
}

// Record is a submission selected for a batch.
type Record struct {
	ID           string
	LastModified time.Time
}

// Less returns whether record should be ordered before b.
// More recently modified records come first, ties are broken by id.
func (record Record) Less(b Record) bool {
	if !record.LastModified.Equal(b.LastModified) {
		return record.LastModified.After(b.LastModified)
	}
	return record.ID < b.ID
}

// IterateOptions contains options for iterating a listing.
type IterateOptions struct {
	Namespace string
}

// Iterator iterates over a sequence of listing entries.
type Iterator interface {
	// Next prepares the next object, returns false when there are no more.
	Next(ctx context.Context, item *Object) bool
}

// IteratorFunc implements Iterator with a function.
type IteratorFunc func(ctx context.Context, item *Object) bool

// Next prepares the next object, returns false when there are no more.
func (next IteratorFunc) Next(ctx context.Context, item *Object) bool { return next(ctx, item) }

// Source lists all submission objects of a namespace.
//
// An error returned by Iterate, other than one returned by fn, means the
// listing could not be completed. A key may be listed more than once; when
// any of its entries is reported as deleted the key is treated as deleted.
type Source interface {
	Iterate(ctx context.Context, opts IterateOptions, fn func(context.Context, Iterator) error) error
}

// TombstoneSet is a read-only set of submission ids known to be deleted.
type TombstoneSet map[string]struct{}

// NewTombstoneSet creates a set containing ids.
func NewTombstoneSet(ids ...string) TombstoneSet {
	set := make(TombstoneSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// Contains returns whether id is tombstoned.
func (set TombstoneSet) Contains(id string) bool {
	_, ok := set[id]
	return ok
}

// Add marks id as tombstoned.
func (set TombstoneSet) Add(id string) { set[id] = struct{}{} }

// Merge adds all ids from other.
func (set TombstoneSet) Merge(other TombstoneSet) {
	for id := range other {
		set[id] = struct{}{}
	}
}
