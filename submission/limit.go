// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package submission

import "sort"

// Sort orders records from the most recently modified to the oldest,
// breaking ties by id.
func Sort(records []Record) {
	sort.Slice(records, func(i, k int) bool { return records[i].Less(records[k]) })
}

// Limit sorts records and keeps at most maxResults of the most recently modified.
// Zero keeps everything.
func Limit(records []Record, maxResults int) []Record {
	Sort(records)
	if maxResults > 0 && len(records) > maxResults {
		records = records[:maxResults]
	}
	return records
}
