// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package submission

import (
	"strings"
	"time"
)

// Predicate decides whether a record is eligible for a batch.
type Predicate interface {
	Match(record Record) bool
}

// PredicateFunc implements Predicate with a function.
type PredicateFunc func(record Record) bool

// Match implements Predicate.
func (fn PredicateFunc) Match(record Record) bool { return fn(record) }

// All matches when every predicate matches. Nil predicates are skipped.
type All []Predicate

// Match implements Predicate.
func (all All) Match(record Record) bool {
	for _, predicate := range all {
		if predicate != nil && !predicate.Match(record) {
			return false
		}
	}
	return true
}

// PrefixFilter matches ids starting with at least one of the prefixes.
// An empty filter matches everything.
type PrefixFilter []string

// NewPrefixFilter parses a comma separated prefix list, skipping empty entries.
// Prefixes are not trimmed.
func NewPrefixFilter(list string) PrefixFilter {
	var filter PrefixFilter
	for _, prefix := range strings.Split(list, ",") {
		if prefix != "" {
			filter = append(filter, prefix)
		}
	}
	return filter
}

// Eligible returns whether id is in one of the allowed prefixes.
func (filter PrefixFilter) Eligible(id string) bool {
	if len(filter) == 0 {
		return true
	}
	for _, prefix := range filter {
		if strings.HasPrefix(id, prefix) {
			return true
		}
	}
	return false
}

// Match implements Predicate.
func (filter PrefixFilter) Match(record Record) bool { return filter.Eligible(record.ID) }

// TombstoneFilter matches ids that are not tombstoned.
type TombstoneFilter struct {
	Tombstones TombstoneSet
}

// NotDeleted returns whether id is absent from the tombstones.
func (filter TombstoneFilter) NotDeleted(id string) bool {
	return !filter.Tombstones.Contains(id)
}

// Match implements Predicate.
func (filter TombstoneFilter) Match(record Record) bool { return filter.NotDeleted(record.ID) }

// Window bounds the last modification time of eligible records to
// [ReferenceTime-Length, ReferenceTime], both ends inclusive.
type Window struct {
	ReferenceTime time.Time
	Length        time.Duration
}

// Start returns the lower bound of the window.
func (window Window) Start() time.Time { return window.ReferenceTime.Add(-window.Length) }

// Contains returns whether t lies within the window.
func (window Window) Contains(t time.Time) bool {
	return !t.Before(window.Start()) && !t.After(window.ReferenceTime)
}

// Match implements Predicate.
func (window Window) Match(record Record) bool { return window.Contains(record.LastModified) }
