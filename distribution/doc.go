// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

/*
Package distribution runs the recurring selection of submissions into batches.

The chore loads the tombstones, selects the submissions of the configured window
with the aggregator and hands every non-empty selection to a Builder. Listing
failures are retried with an exponential backoff, configuration errors stop the
chore.
*/
package distribution
