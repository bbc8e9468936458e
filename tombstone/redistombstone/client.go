// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

// Package redistombstone keeps deleted submission ids in a redis set.
package redistombstone

import (
	"context"
	"net/url"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"

	"github.com/Tubbz-alt/covid19-app-system-public/submission"
	"github.com/Tubbz-alt/covid19-app-system-public/tombstone"
)

var (
	// Error is a redis tombstone error.
	Error = errs.Class("redis tombstone")

	mon = monkit.Package()
)

// DefaultKey is the redis set holding the deleted ids.
const DefaultKey = "submissions:tombstones"

// scanCount is the number of set members requested per SSCAN call.
const scanCount = 1000

var _ tombstone.Loader = (*Client)(nil)

// Client is the entrypoint into Redis.
type Client struct {
	db  *redis.Client
	key string
}

// OpenClient returns a configured Client instance, verifying a successful connection to redis.
func OpenClient(ctx context.Context, address, password string, db int, key string) (*Client, error) {
	if key == "" {
		key = DefaultKey
	}
	client := &Client{
		db: redis.NewClient(&redis.Options{
			Addr:     address,
			Password: password,
			DB:       db,
		}),
		key: key,
	}

	// ping here to verify we are able to connect to redis with the initialized client.
	if err := client.db.Ping(ctx).Err(); err != nil {
		return nil, errs.Combine(Error.New("ping failed: %v", err), client.db.Close())
	}

	return client, nil
}

// OpenClientFrom returns a configured Client instance from a redis address,
// e.g. redis://localhost:6379?db=0&key=tombstones.
func OpenClientFrom(ctx context.Context, address string) (*Client, error) {
	redisurl, err := url.Parse(address)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	if redisurl.Scheme != "redis" {
		return nil, Error.New("not a redis:// formatted address")
	}

	q := redisurl.Query()

	db := 0
	if value := q.Get("db"); value != "" {
		db, err = strconv.Atoi(value)
		if err != nil {
			return nil, Error.Wrap(err)
		}
	}

	return OpenClient(ctx, redisurl.Host, q.Get("password"), db, q.Get("key"))
}

// Add marks ids as deleted.
func (client *Client) Add(ctx context.Context, ids ...string) (err error) {
	defer mon.Task()(&ctx)(&err)
	if len(ids) == 0 {
		return nil
	}

	members := make([]interface{}, len(ids))
	for i, id := range ids {
		members[i] = id
	}
	return Error.Wrap(client.db.SAdd(ctx, client.key, members...).Err())
}

// Remove unmarks ids.
func (client *Client) Remove(ctx context.Context, ids ...string) (err error) {
	defer mon.Task()(&ctx)(&err)
	if len(ids) == 0 {
		return nil
	}

	members := make([]interface{}, len(ids))
	for i, id := range ids {
		members[i] = id
	}
	return Error.Wrap(client.db.SRem(ctx, client.key, members...).Err())
}

// Load returns every deleted id.
func (client *Client) Load(ctx context.Context) (_ submission.TombstoneSet, err error) {
	defer mon.Task()(&ctx)(&err)

	set := submission.NewTombstoneSet()
	it := client.db.SScan(ctx, client.key, 0, "", scanCount).Iterator()
	for it.Next(ctx) {
		// redis may return duplicates, the set absorbs them.
		set.Add(it.Val())
	}
	if err := it.Err(); err != nil {
		return nil, Error.Wrap(err)
	}
	return set, nil
}

// Close closes a redis client.
func (client *Client) Close() error {
	return Error.Wrap(client.db.Close())
}
