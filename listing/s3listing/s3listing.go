// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package s3listing implements a submission listing over an S3 compatible bucket.
package s3listing

import (
	"context"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/Tubbz-alt/covid19-app-system-public/submission"
)

var (
	// Error is the default s3listing error class.
	Error = errs.Class("s3 listing")

	mon = monkit.Package()
)

// Config contains the bucket submissions are listed from.
type Config struct {
	Endpoint  string `help:"S3 endpoint address" default:"s3.amazonaws.com"`
	Region    string `help:"S3 region of the bucket" default:""`
	Bucket    string `help:"bucket holding the submissions" default:""`
	AccessKey string `help:"S3 access key" default:""`
	SecretKey string `help:"S3 secret key" default:""`
	Insecure  bool   `help:"disable TLS for the S3 endpoint" default:"false"`
	Versions  bool   `help:"list object versions, so delete markers are reported as deleted submissions" default:"true"`
}

var _ submission.Source = (*Source)(nil)

// Source lists submissions stored in a bucket.
type Source struct {
	log    *zap.Logger
	client *minio.Client
	config Config
}

// Open creates a source for the configured bucket.
func Open(log *zap.Logger, config Config) (*Source, error) {
	if config.Bucket == "" {
		return nil, Error.New("bucket is not configured")
	}

	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKey, config.SecretKey, ""),
		Secure: !config.Insecure,
		Region: config.Region,
	})
	if err != nil {
		return nil, Error.Wrap(err)
	}

	return &Source{
		log:    log,
		client: client,
		config: config,
	}, nil
}

// Iterate lists every object under opts.Namespace.
func (source *Source) Iterate(ctx context.Context, opts submission.IterateOptions, fn func(context.Context, submission.Iterator) error) (err error) {
	defer mon.Task()(&ctx)(&err)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	source.log.Debug("listing bucket",
		zap.String("bucket", source.config.Bucket),
		zap.String("namespace", opts.Namespace),
		zap.Bool("versions", source.config.Versions),
	)

	objects := source.client.ListObjects(ctx, source.config.Bucket, minio.ListObjectsOptions{
		Prefix:       opts.Namespace,
		Recursive:    true,
		WithVersions: source.config.Versions,
	})

	return iterate(ctx, objects, fn)
}

// iterate converts a minio listing into a submission listing.
//
// When versions are listed, only the latest version of each key is reported.
func iterate(ctx context.Context, objects <-chan minio.ObjectInfo, fn func(context.Context, submission.Iterator) error) error {
	var listErr error

	err := fn(ctx, submission.IteratorFunc(func(ctx context.Context, item *submission.Object) bool {
		for {
			info, ok := <-objects
			if !ok {
				return false
			}
			if info.Err != nil {
				listErr = info.Err
				return false
			}
			if info.VersionID != "" && !info.IsLatest {
				continue
			}

			*item = submission.Object{
				Key:          info.Key,
				LastModified: info.LastModified,
				Deleted:      info.IsDeleteMarker,
			}
			return true
		}
	}))
	if err != nil {
		return err
	}
	return Error.Wrap(listErr)
}
