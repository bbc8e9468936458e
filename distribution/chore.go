// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package distribution

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/Tubbz-alt/covid19-app-system-public/internal/sync2"
	"github.com/Tubbz-alt/covid19-app-system-public/submission"
	"github.com/Tubbz-alt/covid19-app-system-public/tombstone"
)

var (
	// Error defines the distribution chore errors class.
	Error = errs.Class("distribution chore")
	mon   = monkit.Package()
)

// Config contains configurable values for the distribution chore.
type Config struct {
	Enabled       bool          `help:"set if batch distribution is enabled or not" default:"true"`
	Interval      time.Duration `help:"the time between each batch" releaseDefault:"15m" devDefault:"10s"`
	Window        time.Duration `help:"how far back submissions are selected, zero selects all" default:"0"`
	MaxResults    int           `help:"maximum number of submissions in a batch, zero means no limit" default:"0"`
	RetryInterval time.Duration `help:"initial delay before retrying an unavailable listing" default:"1s"`
	RetryTimeout  time.Duration `help:"how long an unavailable listing is retried before the batch is skipped, zero retries until stopped" default:"1m"`
}

// Validate checks whether the configuration can be run.
func (config Config) Validate() error {
	switch {
	case config.Interval <= 0:
		return submission.ErrConfiguration.New("non-positive interval %s", config.Interval)
	case config.Window < 0:
		return submission.ErrConfiguration.New("negative window %s", config.Window)
	case config.MaxResults < 0:
		return submission.ErrConfiguration.New("negative max results %d", config.MaxResults)
	}
	return nil
}

// Batch is a set of submissions handed to a batch builder.
type Batch struct {
	ID          uuid.UUID
	Window      *submission.Window
	Submissions []submission.Record
}

// Builder packages, signs and uploads batches.
type Builder interface {
	Build(ctx context.Context, batch Batch) error
}

// Loader selects submissions.
type Loader interface {
	LoadAllSubmissions(ctx context.Context, opts submission.Options) ([]submission.Record, error)
}

// Chore periodically selects submissions and hands them to the builder.
//
// architecture: Chore
type Chore struct {
	log        *zap.Logger
	config     Config
	loader     Loader
	tombstones tombstone.Loader
	builder    Builder

	nowFn func() time.Time
	Loop  *sync2.Cycle
}

// NewChore creates a new instance of the distribution chore.
// tombstones may be nil when no submissions are known to be deleted.
func NewChore(log *zap.Logger, config Config, loader Loader, tombstones tombstone.Loader, builder Builder) *Chore {
	return &Chore{
		log:        log,
		config:     config,
		loader:     loader,
		tombstones: tombstones,
		builder:    builder,

		nowFn: time.Now,
		Loop:  sync2.NewCycle(config.Interval),
	}
}

// Run starts the distribution loop.
func (chore *Chore) Run(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)

	if !chore.config.Enabled {
		return nil
	}
	if err := chore.config.Validate(); err != nil {
		return err
	}

	return chore.Loop.Run(ctx, func(ctx context.Context) error {
		if _, err := chore.RunOnce(ctx); err != nil {
			if submission.ErrConfiguration.Has(err) {
				return err
			}
			chore.log.Error("distribution failed", zap.Error(err))
		}
		return nil
	})
}

// Close stops the distribution chore.
func (chore *Chore) Close() error {
	chore.Loop.Close()
	return nil
}

// TestingSetNow allows tests to have the chore act as if the current time is whatever they want.
func (chore *Chore) TestingSetNow(nowFn func() time.Time) {
	chore.nowFn = nowFn
}

// RunOnce selects the submissions for a single batch and builds it.
// The batch is not built when no submission is selected.
func (chore *Chore) RunOnce(ctx context.Context) (_ Batch, err error) {
	defer mon.Task()(&ctx)(&err)

	batch := Batch{ID: uuid.New()}
	log := chore.log.With(zap.Stringer("batch", batch.ID))

	opts := submission.Options{MaxResults: chore.config.MaxResults}
	if chore.config.Window != 0 {
		batch.Window = &submission.Window{ReferenceTime: chore.nowFn(), Length: chore.config.Window}
		opts.Window = batch.Window
	}
	if err := opts.Validate(); err != nil {
		return Batch{}, err
	}

	if chore.tombstones != nil {
		opts.Tombstones, err = chore.tombstones.Load(ctx)
		if err != nil {
			return Batch{}, Error.Wrap(err)
		}
	}

	batch.Submissions, err = chore.load(ctx, log, opts)
	if err != nil {
		return Batch{}, err
	}

	if len(batch.Submissions) == 0 {
		log.Debug("no submissions to distribute")
		return batch, nil
	}

	if err := chore.builder.Build(ctx, batch); err != nil {
		return Batch{}, Error.Wrap(err)
	}

	mon.Counter("batches_built").Inc(1)
	log.Info("batch built", zap.Int("submissions", len(batch.Submissions)))
	return batch, nil
}

// load selects submissions, retrying while the listing is unavailable.
func (chore *Chore) load(ctx context.Context, log *zap.Logger, opts submission.Options) (records []submission.Record, err error) {
	policy := backoff.NewExponentialBackOff()
	if chore.config.RetryInterval > 0 {
		policy.InitialInterval = chore.config.RetryInterval
	}
	policy.MaxElapsedTime = chore.config.RetryTimeout

	err = backoff.RetryNotify(func() error {
		records, err = chore.loader.LoadAllSubmissions(ctx, opts)
		if err != nil && !submission.ErrListingUnavailable.Has(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(policy, ctx), func(err error, next time.Duration) {
		mon.Counter("listing_retries").Inc(1)
		log.Warn("listing unavailable, retrying", zap.Duration("after", next), zap.Error(err))
	})
	return records, err
}
