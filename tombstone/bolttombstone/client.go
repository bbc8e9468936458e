// Copyright (C) 2018 Storj Labs, Inc.
// See LICENSE for copying information.

// Package bolttombstone keeps deleted submission ids in a local bolt database.
package bolttombstone

import (
	"context"
	"time"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/Tubbz-alt/covid19-app-system-public/submission"
	"github.com/Tubbz-alt/covid19-app-system-public/tombstone"
)

var (
	// Error is the default bolttombstone error class.
	Error = errs.Class("bolt tombstone")

	mon = monkit.Package()
)

var (
	defaultTimeout = 1 * time.Second
	bucketName     = []byte("tombstones")
)

const (
	// fileMode sets permissions so owner can read and write
	fileMode = 0600
)

var _ tombstone.Loader = (*Client)(nil)

// Client is the tombstone store backed by a Bolt database.
//
// Values hold the time the id was marked deleted, in RFC3339 format.
type Client struct {
	log  *zap.Logger
	db   *bolt.DB
	Path string

	nowFn func() time.Time
}

// New instantiates a new Bolt tombstone store at path.
func New(log *zap.Logger, path string) (*Client, error) {
	db, err := bolt.Open(path, fileMode, &bolt.Options{Timeout: defaultTimeout})
	if err != nil {
		return nil, Error.Wrap(err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		return nil, errs.Combine(Error.Wrap(err), db.Close())
	}

	return &Client{
		log:   log,
		db:    db,
		Path:  path,
		nowFn: time.Now,
	}, nil
}

// Add marks ids as deleted.
func (client *Client) Add(ctx context.Context, ids ...string) (err error) {
	defer mon.Task()(&ctx)(&err)

	deletedAt := []byte(client.nowFn().UTC().Format(time.RFC3339))
	err = client.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		for _, id := range ids {
			if id == "" {
				return Error.New("empty id")
			}
			if err := bucket.Put([]byte(id), deletedAt); err != nil {
				return err
			}
		}
		return nil
	})
	client.log.Debug("added tombstones", zap.Int("count", len(ids)), zap.Error(err))
	return Error.Wrap(err)
}

// Remove unmarks ids.
func (client *Client) Remove(ctx context.Context, ids ...string) (err error) {
	defer mon.Task()(&ctx)(&err)

	return Error.Wrap(client.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		for _, id := range ids {
			if err := bucket.Delete([]byte(id)); err != nil {
				return err
			}
		}
		return nil
	}))
}

// Load returns every deleted id.
func (client *Client) Load(ctx context.Context) (_ submission.TombstoneSet, err error) {
	defer mon.Task()(&ctx)(&err)

	set := submission.NewTombstoneSet()
	err = client.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).ForEach(func(key, _ []byte) error {
			set.Add(string(key))
			return nil
		})
	})
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return set, nil
}

// Prune removes ids marked deleted before the cutoff and returns how many were removed.
func (client *Client) Prune(ctx context.Context, before time.Time) (_ int, err error) {
	defer mon.Task()(&ctx)(&err)

	var pruned int
	err = client.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName)

		var expired [][]byte
		err := bucket.ForEach(func(key, value []byte) error {
			deletedAt, err := time.Parse(time.RFC3339, string(value))
			if err != nil {
				return err
			}
			if deletedAt.Before(before) {
				expired = append(expired, append([]byte(nil), key...))
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, key := range expired {
			if err := bucket.Delete(key); err != nil {
				return err
			}
		}
		pruned = len(expired)
		return nil
	})
	return pruned, Error.Wrap(err)
}

// TestingSetNow allows tests to set the time recorded for new tombstones.
func (client *Client) TestingSetNow(nowFn func() time.Time) {
	client.nowFn = nowFn
}

// Close closes a Bolt tombstone store.
func (client *Client) Close() error {
	return Error.Wrap(client.db.Close())
}
