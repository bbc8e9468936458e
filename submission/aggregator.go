// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package submission

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Config contains the namespace and prefixes an aggregator selects from.
// AllowedPrefixes are matched exactly as given.
type Config struct {
	Namespace       string   `help:"object storage namespace (key prefix) holding submissions" default:""`
	AllowedPrefixes []string `help:"submission id prefixes eligible for distribution, empty accepts all" default:""`
}

// Options restrict a single aggregation run.
//
// The zero value selects every submission that is neither deleted nor
// outside the allowed prefixes.
type Options struct {
	// Window restricts submissions by last modification time, when set.
	// A zero ReferenceTime means the time of the call.
	Window *Window
	// MaxResults limits the number of returned submissions, zero means no limit.
	MaxResults int
	// Tombstones contains ids that must not be selected.
	Tombstones TombstoneSet
	// Filter is an additional predicate the submissions must match.
	Filter Predicate
}

// Validate checks whether the options are usable.
func (opts Options) Validate() error {
	if opts.MaxResults < 0 {
		return ErrConfiguration.New("negative max results %d", opts.MaxResults)
	}
	if opts.Window != nil && opts.Window.Length < 0 {
		return ErrConfiguration.New("negative window %s", opts.Window.Length)
	}
	return nil
}

// Aggregator selects the submissions that enter a batch.
//
// architecture: Service
type Aggregator struct {
	log    *zap.Logger
	source Source
	config Config

	prefixes PrefixFilter
	nowFn    func() time.Time
}

// NewAggregator creates a new aggregator over source.
func NewAggregator(log *zap.Logger, source Source, config Config) *Aggregator {
	return &Aggregator{
		log:    log,
		source: source,
		config: config,

		prefixes: PrefixFilter(config.AllowedPrefixes),
		nowFn:    time.Now,
	}
}

// TestingSetNow allows tests to have the aggregator act as if the current time is whatever they want.
func (aggregator *Aggregator) TestingSetNow(nowFn func() time.Time) {
	aggregator.nowFn = nowFn
}

// LoadAllSubmissions lists the namespace and returns the eligible submissions,
// most recently modified first.
//
// Either the whole listing is processed or an error is returned, partial
// results are never returned.
func (aggregator *Aggregator) LoadAllSubmissions(ctx context.Context, opts Options) (_ []Record, err error) {
	defer mon.Task()(&ctx)(&err)

	if err := opts.Validate(); err != nil {
		return nil, err
	}

	var window *Window
	if opts.Window != nil {
		w := *opts.Window
		if w.ReferenceTime.IsZero() {
			w.ReferenceTime = aggregator.nowFn()
		}
		window = &w
	}

	tombstones := TombstoneFilter{Tombstones: opts.Tombstones}

	var listed, deleted, ineligible, outside int
	// candidates are keyed by id, which removes duplicate listing entries.
	candidates := map[string]Record{}
	// a deletion reported for any entry of a key drops every entry of that key.
	deletedKeys := map[string]struct{}{}

	err = aggregator.source.Iterate(ctx, IterateOptions{Namespace: aggregator.config.Namespace},
		func(ctx context.Context, it Iterator) error {
			var item Object
			for it.Next(ctx, &item) {
				listed++
				record := Record{ID: item.Key, LastModified: item.LastModified}

				if item.Deleted {
					deletedKeys[record.ID] = struct{}{}
					deleted++
					continue
				}
				if !tombstones.Match(record) {
					deleted++
					continue
				}
				if !aggregator.prefixes.Match(record) || (opts.Filter != nil && !opts.Filter.Match(record)) {
					ineligible++
					continue
				}
				if window != nil && !window.Match(record) {
					outside++
					continue
				}

				if existing, ok := candidates[record.ID]; ok && !record.LastModified.After(existing.LastModified) {
					continue
				}
				candidates[record.ID] = record
			}
			return nil
		})
	if err != nil {
		return nil, ErrListingUnavailable.Wrap(err)
	}

	for key := range deletedKeys {
		if _, ok := candidates[key]; ok {
			delete(candidates, key)
			deleted++
		}
	}

	records := make([]Record, 0, len(candidates))
	for _, record := range candidates {
		records = append(records, record)
	}
	records = Limit(records, opts.MaxResults)

	mon.IntVal("submissions_listed").Observe(int64(listed))
	mon.IntVal("submissions_selected").Observe(int64(len(records)))

	aggregator.log.Debug("loaded submissions",
		zap.String("namespace", aggregator.config.Namespace),
		zap.Int("listed", listed),
		zap.Int("deleted", deleted),
		zap.Int("ineligible", ineligible),
		zap.Int("outside window", outside),
		zap.Int("truncated", len(candidates)-len(records)),
		zap.Int("selected", len(records)),
	)

	return records, nil
}
