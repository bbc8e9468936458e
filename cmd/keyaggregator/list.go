// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"storj.io/private/process"

	"github.com/Tubbz-alt/covid19-app-system-public/submission"
)

// Lister defines the configuration of the list command.
type Lister struct {
	Aggregator
	Window     time.Duration `help:"only list submissions modified within this duration, zero lists all" default:"0"`
	MaxResults int           `help:"maximum number of submissions to list, zero means no limit" default:"0"`
}

var (
	listCmd = &cobra.Command{
		Use:   "list",
		Short: "List the submissions the next batch would contain",
		RunE:  cmdList,
	}

	listCfg Lister
)

func cmdList(cmd *cobra.Command, args []string) (err error) {
	ctx, cancel := process.Ctx(cmd)
	defer cancel()

	records, err := list(ctx, zap.L(), listCfg)
	if err != nil {
		return err
	}
	return printRecords(os.Stdout, records)
}

// list runs a single aggregation with the tombstones known at the time of the call.
func list(ctx context.Context, log *zap.Logger, config Lister) (_ []submission.Record, err error) {
	p, err := openPipeline(ctx, log, config.Aggregator)
	if err != nil {
		return nil, err
	}
	defer func() { err = errs.Combine(err, p.Close()) }()

	tombstones, err := p.tombstones.Load(ctx)
	if err != nil {
		return nil, err
	}

	opts := submission.Options{
		MaxResults: config.MaxResults,
		Tombstones: tombstones,
	}
	if config.Window != 0 {
		opts.Window = &submission.Window{Length: config.Window}
	}
	return p.aggregator.LoadAllSubmissions(ctx, opts)
}

func printRecords(w io.Writer, records []submission.Record) error {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tLast Modified")
	for _, record := range records {
		_, _ = fmt.Fprintf(tw, "%s\t%s\n", record.ID, record.LastModified.UTC().Format(time.RFC3339))
	}
	return tw.Flush()
}
