// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package submission_test

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Tubbz-alt/covid19-app-system-public/internal/testcontext"
	"github.com/Tubbz-alt/covid19-app-system-public/submission"
	"github.com/Tubbz-alt/covid19-app-system-public/submission/submissiontest"
)

func objects(now time.Time, keys ...string) []submission.Object {
	var result []submission.Object
	for _, key := range keys {
		result = append(result, submission.Object{Key: key, LastModified: now})
	}
	return result
}

func TestLoadAllSubmissions_AcceptAll(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	source := submissiontest.New(objects(time.Now(), "my-prefix-abc", "my-prefix-def", "abcdef"))
	aggregator := submission.NewAggregator(zaptest.NewLogger(t), source, submission.Config{})

	submissions, err := aggregator.LoadAllSubmissions(ctx, submission.Options{})
	require.NoError(t, err)
	require.Len(t, submissions, 3)
	require.Equal(t, 1, source.CallCount.Iterate)
}

func TestLoadAllSubmissions_SubmissionTimeWindow(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	now := time.Now()
	source := submissiontest.New([]submission.Object{
		{Key: "veryold", LastModified: now.Add(-2 * time.Minute)},
		{Key: "old", LastModified: now.Add(-time.Minute)},
		{Key: "now", LastModified: now},
		{Key: "young", LastModified: now.Add(time.Minute)},
	})
	aggregator := submission.NewAggregator(zaptest.NewLogger(t), source, submission.Config{})

	submissions, err := aggregator.LoadAllSubmissions(ctx, submission.Options{
		Window:     &submission.Window{ReferenceTime: now, Length: 100 * time.Millisecond},
		MaxResults: 100,
	})
	require.NoError(t, err)
	require.Len(t, submissions, 1)
	require.Equal(t, "now", submissions[0].ID)
}

func TestLoadAllSubmissions_WindowBoundaries(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	now := time.Date(2020, 10, 1, 12, 0, 0, 0, time.UTC)
	length := 5 * time.Second
	source := submissiontest.New([]submission.Object{
		{Key: "upper", LastModified: now},
		{Key: "lower", LastModified: now.Add(-length)},
		{Key: "before", LastModified: now.Add(-length - time.Millisecond)},
		{Key: "after", LastModified: now.Add(time.Millisecond)},
	})
	aggregator := submission.NewAggregator(zaptest.NewLogger(t), source, submission.Config{})

	submissions, err := aggregator.LoadAllSubmissions(ctx, submission.Options{
		Window: &submission.Window{ReferenceTime: now, Length: length},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"upper", "lower"}, ids(submissions))
}

func TestLoadAllSubmissions_WindowDefaultsToNow(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	now := time.Date(2020, 10, 1, 12, 0, 0, 0, time.UTC)
	source := submissiontest.New([]submission.Object{
		{Key: "recent", LastModified: now.Add(-time.Minute)},
		{Key: "stale", LastModified: now.Add(-time.Hour)},
		{Key: "future", LastModified: now.Add(time.Minute)},
	})
	aggregator := submission.NewAggregator(zaptest.NewLogger(t), source, submission.Config{})
	aggregator.TestingSetNow(func() time.Time { return now })

	submissions, err := aggregator.LoadAllSubmissions(ctx, submission.Options{
		Window: &submission.Window{Length: 10 * time.Minute},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"recent"}, ids(submissions))
}

func TestLoadAllSubmissions_MaxResults(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	now := time.Now()
	source := submissiontest.New([]submission.Object{
		{Key: "A", LastModified: now.Add(4 * time.Minute)},
		{Key: "B", LastModified: now.Add(3 * time.Minute)},
		{Key: "C", LastModified: now.Add(2 * time.Minute)},
		{Key: "D", LastModified: now.Add(time.Minute)},
		{Key: "E", LastModified: now.Add(-time.Minute)},
	})
	aggregator := submission.NewAggregator(zaptest.NewLogger(t), source, submission.Config{})

	submissions, err := aggregator.LoadAllSubmissions(ctx, submission.Options{
		Window:     &submission.Window{ReferenceTime: now.Add(4 * time.Minute), Length: 5 * time.Minute},
		MaxResults: 3,
	})
	require.NoError(t, err)
	require.Equal(t, []string{"A", "B", "C"}, ids(submissions))

	again, err := aggregator.LoadAllSubmissions(ctx, submission.Options{
		Window:     &submission.Window{ReferenceTime: now.Add(4 * time.Minute), Length: 5 * time.Minute},
		MaxResults: 3,
	})
	require.NoError(t, err)
	require.Equal(t, submissions, again)
}

func TestLoadAllSubmissions_Filter(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	source := submissiontest.New(objects(time.Now(), "my-prefix-abc", "my-prefix-def", "abcdef"))
	aggregator := submission.NewAggregator(zaptest.NewLogger(t), source, submission.Config{})

	submissions, err := aggregator.LoadAllSubmissions(ctx, submission.Options{
		Filter: submission.PredicateFunc(func(record submission.Record) bool {
			return !strings.HasPrefix(record.ID, "my-prefix")
		}),
	})
	require.NoError(t, err)
	require.Equal(t, []string{"abcdef"}, ids(submissions))
}

func TestLoadAllSubmissions_AllowedPrefixes(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	source := submissiontest.New(objects(time.Now(), "my-prefix-abc", "/bla/my-prefix-def", "/mobile/abc"))
	aggregator := submission.NewAggregator(zaptest.NewLogger(t), source, submission.Config{
		AllowedPrefixes: submission.NewPrefixFilter("/nearform/IE,/nearform/NIR,/mobile"),
	})

	submissions, err := aggregator.LoadAllSubmissions(ctx, submission.Options{})
	require.NoError(t, err)
	require.Equal(t, []string{"/mobile/abc"}, ids(submissions))
}

func TestLoadAllSubmissions_PrefixesMatchExactly(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	source := submissiontest.New(objects(time.Now(), "/mobile/a", " /mobile/b", "a,b-1", "a-1", "b-1"))

	for _, tc := range []struct {
		prefixes []string
		expected []string
	}{
		{prefixes: []string{" /mobile"}, expected: []string{" /mobile/b"}},
		{prefixes: []string{"a,b"}, expected: []string{"a,b-1"}},
		{prefixes: []string{"/mobile", "b"}, expected: []string{"/mobile/a", "b-1"}},
	} {
		aggregator := submission.NewAggregator(zaptest.NewLogger(t), source, submission.Config{
			AllowedPrefixes: tc.prefixes,
		})

		submissions, err := aggregator.LoadAllSubmissions(ctx, submission.Options{})
		require.NoError(t, err)
		require.ElementsMatch(t, tc.expected, ids(submissions), tc.prefixes)
		for _, record := range submissions {
			require.True(t, submission.PrefixFilter(tc.prefixes).Eligible(record.ID))
		}
	}
}

func TestLoadAllSubmissions_SkipDeleted(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	now := time.Now()
	keys := []string{"my-prefix-abc", "/bla/my-prefix-def", "/mobile/abc"}

	t.Run("deleted in listing", func(t *testing.T) {
		source := submissiontest.New(objects(now, keys...), "my-prefix-abc")
		aggregator := submission.NewAggregator(zaptest.NewLogger(t), source, submission.Config{})

		submissions, err := aggregator.LoadAllSubmissions(ctx, submission.Options{})
		require.NoError(t, err)
		require.Len(t, submissions, 2)
		require.NotContains(t, ids(submissions), "my-prefix-abc")
	})

	t.Run("deleted entry hides older live entry", func(t *testing.T) {
		for _, order := range [][]submission.Object{
			{
				{Key: "/mobile/abc", LastModified: now.Add(-time.Minute)},
				{Key: "/mobile/abc", LastModified: now, Deleted: true},
				{Key: "/mobile/def", LastModified: now},
			},
			{
				{Key: "/mobile/abc", LastModified: now, Deleted: true},
				{Key: "/mobile/def", LastModified: now},
				{Key: "/mobile/abc", LastModified: now.Add(-time.Minute)},
			},
		} {
			source := submissiontest.New(order)
			aggregator := submission.NewAggregator(zaptest.NewLogger(t), source, submission.Config{})

			submissions, err := aggregator.LoadAllSubmissions(ctx, submission.Options{})
			require.NoError(t, err)
			require.Equal(t, []string{"/mobile/def"}, ids(submissions))
		}
	})

	t.Run("tombstoned", func(t *testing.T) {
		source := submissiontest.New(objects(now, keys...))
		aggregator := submission.NewAggregator(zaptest.NewLogger(t), source, submission.Config{})

		submissions, err := aggregator.LoadAllSubmissions(ctx, submission.Options{
			Tombstones: submission.NewTombstoneSet("/mobile/abc"),
			Window:     &submission.Window{ReferenceTime: now, Length: time.Hour},
		})
		require.NoError(t, err)
		require.Len(t, submissions, 2)
		require.NotContains(t, ids(submissions), "/mobile/abc")
	})
}

func TestLoadAllSubmissions_Duplicates(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	now := time.Date(2020, 10, 1, 12, 0, 0, 0, time.UTC)
	source := submissiontest.New([]submission.Object{
		{Key: "D", LastModified: now.Add(-time.Minute)},
		{Key: "D", LastModified: now.Add(-2 * time.Minute)},
		{Key: "D", LastModified: now.Add(time.Minute)},
		{Key: "E", LastModified: now.Add(-3 * time.Minute)},
	})
	aggregator := submission.NewAggregator(zaptest.NewLogger(t), source, submission.Config{})

	submissions, err := aggregator.LoadAllSubmissions(ctx, submission.Options{
		Window: &submission.Window{ReferenceTime: now, Length: time.Hour},
	})
	require.NoError(t, err)
	require.Equal(t, []submission.Record{
		{ID: "D", LastModified: now.Add(-time.Minute)},
		{ID: "E", LastModified: now.Add(-3 * time.Minute)},
	}, submissions)
}

func TestLoadAllSubmissions_Namespace(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	source := submissiontest.New(objects(time.Now(), "ns1/a", "ns1/b", "ns2/a"))
	aggregator := submission.NewAggregator(zaptest.NewLogger(t), source, submission.Config{Namespace: "ns1/"})

	submissions, err := aggregator.LoadAllSubmissions(ctx, submission.Options{})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"ns1/a", "ns1/b"}, ids(submissions))
}

func TestLoadAllSubmissions_Errors(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	source := submissiontest.New(objects(time.Now(), "a", "b", "c", "d"))
	aggregator := submission.NewAggregator(zaptest.NewLogger(t), source, submission.Config{})

	t.Run("negative max results", func(t *testing.T) {
		_, err := aggregator.LoadAllSubmissions(ctx, submission.Options{MaxResults: -1})
		require.True(t, submission.ErrConfiguration.Has(err))
	})

	t.Run("negative window", func(t *testing.T) {
		_, err := aggregator.LoadAllSubmissions(ctx, submission.Options{
			Window: &submission.Window{Length: -time.Second},
		})
		require.True(t, submission.ErrConfiguration.Has(err))
	})

	require.Equal(t, 0, source.CallCount.Iterate, "configuration errors must not list")

	t.Run("listing unavailable", func(t *testing.T) {
		failure := errors.New("connection refused")
		source.Fail(failure)
		defer source.Fail(nil)

		submissions, err := aggregator.LoadAllSubmissions(ctx, submission.Options{})
		require.Error(t, err)
		require.True(t, submission.ErrListingUnavailable.Has(err))
		require.ErrorIs(t, err, failure)
		require.Nil(t, submissions)
	})
}

func TestLoadAllSubmissions_Properties(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	rng := rand.New(rand.NewSource(1))
	now := time.Date(2020, 10, 1, 12, 0, 0, 0, time.UTC)
	namespaces := []string{"/mobile/", "/nearform/IE/", "/nearform/NIR/", "/other/"}

	var listing []submission.Object
	tombstones := submission.NewTombstoneSet()
	for i := 0; i < 500; i++ {
		key := fmt.Sprintf("%s%04d", namespaces[rng.Intn(len(namespaces))], i)
		listing = append(listing, submission.Object{
			Key:          key,
			LastModified: now.Add(time.Duration(rng.Intn(120)-100) * time.Second),
		})
		if rng.Intn(5) == 0 {
			tombstones.Add(key)
		}
	}

	prefixes := submission.NewPrefixFilter("/nearform/IE,/nearform/NIR,/mobile")
	window := submission.Window{ReferenceTime: now, Length: 60 * time.Second}
	aggregator := submission.NewAggregator(zaptest.NewLogger(t), submissiontest.New(listing), submission.Config{
		AllowedPrefixes: prefixes,
	})

	opts := submission.Options{Window: &window, MaxResults: 50, Tombstones: tombstones}
	submissions, err := aggregator.LoadAllSubmissions(ctx, opts)
	require.NoError(t, err)
	require.LessOrEqual(t, len(submissions), 50)

	for _, record := range submissions {
		require.False(t, tombstones.Contains(record.ID))
		require.True(t, prefixes.Eligible(record.ID))
		require.True(t, window.Contains(record.LastModified))
	}

	// the same set is selected regardless of the order filters are applied in,
	// and truncation keeps the most recent.
	var expected []submission.Record
	for _, object := range listing {
		record := submission.Record{ID: object.Key, LastModified: object.LastModified}
		if window.Match(record) && prefixes.Match(record) && !tombstones.Contains(record.ID) {
			expected = append(expected, record)
		}
	}
	require.Greater(t, len(expected), 50)
	require.Equal(t, submission.Limit(expected, 50), submissions)

	// listing order does not change the result.
	shuffled := append([]submission.Object(nil), listing...)
	rng.Shuffle(len(shuffled), func(i, k int) { shuffled[i], shuffled[k] = shuffled[k], shuffled[i] })
	other := submission.NewAggregator(zaptest.NewLogger(t), submissiontest.New(shuffled), submission.Config{
		AllowedPrefixes: prefixes,
	})
	again, err := other.LoadAllSubmissions(ctx, opts)
	require.NoError(t, err)
	require.Equal(t, submissions, again)
}

func TestLoadAllSubmissions_Concurrent(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	now := time.Now()
	source := submissiontest.New(nil)
	for i := 0; i < 100; i++ {
		source.Put(fmt.Sprintf("/mobile/%03d", i), now.Add(-time.Duration(i)*time.Second))
	}
	aggregator := submission.NewAggregator(zaptest.NewLogger(t), source, submission.Config{})

	for i := 0; i < 8; i++ {
		ctx.Go(func() error {
			submissions, err := aggregator.LoadAllSubmissions(ctx, submission.Options{MaxResults: 10})
			if err != nil {
				return err
			}
			if len(submissions) != 10 || submissions[0].ID != "/mobile/000" {
				return fmt.Errorf("unexpected submissions %v", submissions)
			}
			return nil
		})
	}
	ctx.Wait()
}
