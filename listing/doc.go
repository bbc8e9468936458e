// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

/*
Package listing contains the listing sources the submission aggregator reads from.

Every source implements submission.Source:

  - s3listing lists an S3 compatible bucket, reporting delete markers as deleted objects.
  - filelisting lists a local directory, using the file modification time.
  - listlogger wraps any source and logs the listed objects.
*/
package listing
