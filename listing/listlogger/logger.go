// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package listlogger

import (
	"context"
	"strconv"
	"sync/atomic"

	"github.com/spacemonkeygo/monkit/v3"
	"go.uber.org/zap"

	"github.com/Tubbz-alt/covid19-app-system-public/submission"
)

var mon = monkit.Package()

var id int64

var _ submission.Source = (*Logger)(nil)

// Logger implements a zap.Logger for submission.Source.
type Logger struct {
	log    *zap.Logger
	source submission.Source
}

// New creates a new Logger with log and source.
func New(log *zap.Logger, source submission.Source) *Logger {
	loggerid := atomic.AddInt64(&id, 1)
	name := strconv.Itoa(int(loggerid))
	return &Logger{log.Named(name), source}
}

// Iterate iterates over the listing of opts.Namespace.
func (source *Logger) Iterate(ctx context.Context, opts submission.IterateOptions, fn func(context.Context, submission.Iterator) error) (err error) {
	defer mon.Task()(&ctx)(&err)
	source.log.Debug("Iterate", zap.String("namespace", opts.Namespace))

	var count int
	err = source.source.Iterate(ctx, opts, func(ctx context.Context, it submission.Iterator) error {
		return fn(ctx, submission.IteratorFunc(func(ctx context.Context, item *submission.Object) bool {
			ok := it.Next(ctx, item)
			if ok {
				count++
				source.log.Debug("  ",
					zap.String("key", item.Key),
					zap.Time("last modified", item.LastModified),
					zap.Bool("deleted", item.Deleted),
				)
			}
			return ok
		}))
	})
	if err != nil {
		source.log.Warn("Iterate failed", zap.String("namespace", opts.Namespace), zap.Int("listed", count), zap.Error(err))
		return err
	}
	source.log.Debug("Iterate done", zap.String("namespace", opts.Namespace), zap.Int("listed", count))
	return nil
}
