// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"storj.io/private/process"

	"github.com/Tubbz-alt/covid19-app-system-public/tombstone/bolttombstone"
	"github.com/Tubbz-alt/covid19-app-system-public/tombstone/redistombstone"
)

var (
	tombstonesCmd = &cobra.Command{
		Use:   "tombstones",
		Short: "Manage deleted submission ids",
	}
	tombstonesAddCmd = &cobra.Command{
		Use:   "add [id...]",
		Short: "Mark submissions as deleted",
		Args:  cobra.MinimumNArgs(1),
		RunE:  cmdTombstonesAdd,
	}
	tombstonesRemoveCmd = &cobra.Command{
		Use:   "remove [id...]",
		Short: "Unmark deleted submissions",
		Args:  cobra.MinimumNArgs(1),
		RunE:  cmdTombstonesRemove,
	}
	tombstonesPruneCmd = &cobra.Command{
		Use:   "prune",
		Short: "Forget ids deleted longer ago than the retention from the bolt database",
		RunE:  cmdTombstonesPrune,
	}

	tombstonesCfg struct {
		Tombstones TombstonesConfig
		Retention  time.Duration `help:"how long deleted ids are kept by prune" default:"336h"`
	}
)

// store is a writable tombstone store.
type store interface {
	Add(ctx context.Context, ids ...string) error
	Remove(ctx context.Context, ids ...string) error
	Close() error
}

// openStores opens every configured writable tombstone store.
func openStores(ctx context.Context, log *zap.Logger, config TombstonesConfig) (stores []store, err error) {
	defer func() {
		if err != nil {
			err = errs.Combine(err, closeStores(stores))
		}
	}()

	if config.Redis != "" {
		client, err := redistombstone.OpenClientFrom(ctx, config.Redis)
		if err != nil {
			return stores, err
		}
		stores = append(stores, client)
	}
	if config.Bolt != "" {
		client, err := bolttombstone.New(log.Named("tombstones"), config.Bolt)
		if err != nil {
			return stores, err
		}
		stores = append(stores, client)
	}
	if len(stores) == 0 {
		return nil, errs.New("no tombstone store configured, set tombstones.redis or tombstones.bolt")
	}
	return stores, nil
}

func closeStores(stores []store) error {
	var group errs.Group
	for _, s := range stores {
		group.Add(s.Close())
	}
	return group.Err()
}

func updateTombstones(cmd *cobra.Command, update func(ctx context.Context, s store) error) (err error) {
	ctx, cancel := process.Ctx(cmd)
	defer cancel()

	stores, err := openStores(ctx, zap.L(), tombstonesCfg.Tombstones)
	if err != nil {
		return err
	}
	defer func() { err = errs.Combine(err, closeStores(stores)) }()

	for _, s := range stores {
		if err := update(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func cmdTombstonesAdd(cmd *cobra.Command, args []string) error {
	return updateTombstones(cmd, func(ctx context.Context, s store) error {
		return s.Add(ctx, args...)
	})
}

func cmdTombstonesRemove(cmd *cobra.Command, args []string) error {
	return updateTombstones(cmd, func(ctx context.Context, s store) error {
		return s.Remove(ctx, args...)
	})
}

func cmdTombstonesPrune(cmd *cobra.Command, args []string) (err error) {
	ctx, cancel := process.Ctx(cmd)
	defer cancel()

	if tombstonesCfg.Tombstones.Bolt == "" {
		return errs.New("prune requires tombstones.bolt")
	}

	client, err := bolttombstone.New(zap.L().Named("tombstones"), tombstonesCfg.Tombstones.Bolt)
	if err != nil {
		return err
	}
	defer func() { err = errs.Combine(err, client.Close()) }()

	pruned, err := client.Prune(ctx, time.Now().Add(-tombstonesCfg.Retention))
	if err != nil {
		return err
	}
	fmt.Printf("pruned %d deleted ids\n", pruned)
	return nil
}
