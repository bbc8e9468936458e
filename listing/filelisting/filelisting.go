// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package filelisting implements a submission listing over a local directory.
package filelisting

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"

	"github.com/Tubbz-alt/covid19-app-system-public/submission"
)

var (
	// Error is the default filelisting error class.
	Error = errs.Class("file listing")

	mon = monkit.Package()
)

// DeleteMarkerSuffix marks the submission with the same name as deleted.
const DeleteMarkerSuffix = ".deleted"

var _ submission.Source = (*Dir)(nil)

// Dir lists submissions stored as files under a directory.
//
// Keys are slash separated paths relative to the directory. An empty file
// named key+DeleteMarkerSuffix reports the submission as deleted.
type Dir struct {
	path string
}

// Open opens the directory at path.
func Open(path string) (*Dir, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	if !info.IsDir() {
		return nil, Error.New("%q is not a directory", path)
	}
	return &Dir{path: path}, nil
}

// Iterate lists every file whose key starts with opts.Namespace, in lexical order.
func (dir *Dir) Iterate(ctx context.Context, opts submission.IterateOptions, fn func(context.Context, submission.Iterator) error) (err error) {
	defer mon.Task()(&ctx)(&err)

	objects, err := dir.list(ctx, opts.Namespace)
	if err != nil {
		return Error.Wrap(err)
	}

	return fn(ctx, submission.IteratorFunc(func(ctx context.Context, item *submission.Object) bool {
		if len(objects) == 0 {
			return false
		}
		*item = objects[0]
		objects = objects[1:]
		return true
	}))
}

func (dir *Dir) list(ctx context.Context, namespace string) (objects []submission.Object, err error) {
	markers := map[string]bool{}

	err = filepath.WalkDir(dir.path, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(dir.path, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)

		if strings.HasSuffix(key, DeleteMarkerSuffix) {
			markers[strings.TrimSuffix(key, DeleteMarkerSuffix)] = true
			return nil
		}
		if !strings.HasPrefix(key, namespace) {
			return nil
		}

		info, err := entry.Info()
		if err != nil {
			return err
		}

		objects = append(objects, submission.Object{
			Key:          key,
			LastModified: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i := range objects {
		objects[i].Deleted = markers[objects[i].Key]
	}
	return objects, nil
}
