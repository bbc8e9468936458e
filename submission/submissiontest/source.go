// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package submissiontest implements an in-memory listing source for tests.
package submissiontest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/zeebo/errs"

	"github.com/Tubbz-alt/covid19-app-system-public/submission"
)

// ErrUnreachable is returned by Iterate when the source has been set to fail.
var ErrUnreachable = errs.Class("unreachable")

var _ submission.Source = (*Source)(nil)

// Source implements an in-memory listing.
type Source struct {
	mu sync.Mutex

	objects []submission.Object
	deleted map[string]bool
	fail    error

	CallCount struct {
		Iterate int
	}
}

// New creates a source listing objects, where deletedKeys are reported as deleted.
func New(objects []submission.Object, deletedKeys ...string) *Source {
	source := &Source{deleted: map[string]bool{}}
	source.objects = append(source.objects, objects...)
	for _, key := range deletedKeys {
		source.deleted[key] = true
	}
	return source
}

// Put appends an object to the listing.
func (source *Source) Put(key string, lastModified time.Time) {
	source.mu.Lock()
	defer source.mu.Unlock()
	source.objects = append(source.objects, submission.Object{Key: key, LastModified: lastModified})
}

// MarkDeleted reports key as deleted in subsequent listings.
func (source *Source) MarkDeleted(key string) {
	source.mu.Lock()
	defer source.mu.Unlock()
	source.deleted[key] = true
}

// Fail makes every following Iterate return err after listing half the objects.
// A nil err restores normal behavior.
func (source *Source) Fail(err error) {
	source.mu.Lock()
	defer source.mu.Unlock()
	source.fail = err
}

// Iterate implements submission.Source.
func (source *Source) Iterate(ctx context.Context, opts submission.IterateOptions, fn func(context.Context, submission.Iterator) error) error {
	source.mu.Lock()
	source.CallCount.Iterate++
	objects := append([]submission.Object(nil), source.objects...)
	deleted := make(map[string]bool, len(source.deleted))
	for key := range source.deleted {
		deleted[key] = true
	}
	fail := source.fail
	source.mu.Unlock()

	if fail != nil {
		objects = objects[:len(objects)/2]
	}

	index := 0
	err := fn(ctx, submission.IteratorFunc(func(ctx context.Context, item *submission.Object) bool {
		for index < len(objects) {
			next := objects[index]
			index++
			if !strings.HasPrefix(next.Key, opts.Namespace) {
				continue
			}
			*item = next
			item.Deleted = next.Deleted || deleted[next.Key]
			return true
		}
		return false
	}))
	if err != nil {
		return err
	}
	if fail != nil {
		return ErrUnreachable.Wrap(fail)
	}
	return nil
}
