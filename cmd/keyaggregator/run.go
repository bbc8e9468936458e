// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"storj.io/private/process"

	"github.com/Tubbz-alt/covid19-app-system-public/distribution"
)

// logBuilder reports batches instead of building them.
type logBuilder struct {
	log *zap.Logger
}

// Build implements distribution.Builder.
func (builder logBuilder) Build(ctx context.Context, batch distribution.Batch) error {
	fields := []zap.Field{
		zap.Stringer("batch", batch.ID),
		zap.Int("submissions", len(batch.Submissions)),
	}
	if batch.Window != nil {
		fields = append(fields,
			zap.Time("window start", batch.Window.Start()),
			zap.Time("window end", batch.Window.ReferenceTime))
	}
	builder.log.Info("batch ready", fields...)
	return nil
}

func cmdRun(cmd *cobra.Command, args []string) (err error) {
	ctx, cancel := process.Ctx(cmd)
	defer cancel()
	log := zap.L()

	p, err := openPipeline(ctx, log, runCfg.Aggregator)
	if err != nil {
		return err
	}
	defer func() { err = errs.Combine(err, p.Close()) }()

	chore := distribution.NewChore(log.Named("distribution"), runCfg.Distribution,
		p.aggregator, p.tombstones, logBuilder{log: log.Named("builder")})

	runErr := chore.Run(ctx)
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}
	return errs.Combine(runErr, chore.Close())
}
