// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package tombstone loads the sets of submissions known to be deleted.
package tombstone

import (
	"context"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"

	"github.com/Tubbz-alt/covid19-app-system-public/submission"
)

var (
	// Error is the default tombstone error class.
	Error = errs.Class("tombstone")

	mon = monkit.Package()
)

// Loader loads a snapshot of deleted submission ids.
type Loader interface {
	Load(ctx context.Context) (submission.TombstoneSet, error)
}

// Static is a fixed list of deleted ids.
type Static []string

// Load implements Loader.
func (static Static) Load(ctx context.Context) (submission.TombstoneSet, error) {
	return submission.NewTombstoneSet(static...), nil
}

// Union loads from every loader and merges the results.
type Union []Loader

// Load implements Loader.
func (union Union) Load(ctx context.Context) (_ submission.TombstoneSet, err error) {
	defer mon.Task()(&ctx)(&err)

	set := submission.NewTombstoneSet()
	for _, loader := range union {
		loaded, err := loader.Load(ctx)
		if err != nil {
			return nil, Error.Wrap(err)
		}
		set.Merge(loaded)
	}
	return set, nil
}
