// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package main

import (
	"context"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"storj.io/common/fpath"
	"storj.io/private/cfgstruct"
	"storj.io/private/process"

	"github.com/Tubbz-alt/covid19-app-system-public/distribution"
	"github.com/Tubbz-alt/covid19-app-system-public/listing/filelisting"
	"github.com/Tubbz-alt/covid19-app-system-public/listing/listlogger"
	"github.com/Tubbz-alt/covid19-app-system-public/listing/s3listing"
	"github.com/Tubbz-alt/covid19-app-system-public/submission"
	"github.com/Tubbz-alt/covid19-app-system-public/tombstone"
	"github.com/Tubbz-alt/covid19-app-system-public/tombstone/bolttombstone"
	"github.com/Tubbz-alt/covid19-app-system-public/tombstone/redistombstone"
)

// Aggregator defines where submissions and deleted ids are read from.
type Aggregator struct {
	Source string `help:"submission listing source, either s3 or dir" default:"s3"`
	Dir    string `help:"directory holding submissions when source is dir" default:""`

	S3         s3listing.Config
	Submission submission.Config
	Tombstones TombstonesConfig
}

// TombstonesConfig defines where deleted submission ids are kept.
type TombstonesConfig struct {
	Static []string `help:"submission ids that are always treated as deleted" default:""`
	Redis  string   `help:"redis set of deleted ids, e.g. redis://localhost:6379?db=0&key=submissions:tombstones" default:""`
	Bolt   string   `help:"path of a bolt database of deleted ids" default:""`
}

// Distributor defines the configuration of the run command.
type Distributor struct {
	Aggregator
	Distribution distribution.Config
}

var (
	rootCmd = &cobra.Command{
		Use:   "keyaggregator",
		Short: "Diagnosis key submission aggregator",
	}
	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Periodically select submissions and build batches",
		RunE:  cmdRun,
	}
	setupCmd = &cobra.Command{
		Use:         "setup",
		Short:       "Create config files",
		RunE:        cmdSetup,
		Annotations: map[string]string{"type": "setup"},
	}

	runCfg   Distributor
	setupCfg Distributor

	confDir string
)

// envPrefix is the prefix of environment variables overriding flags.
const envPrefix = "submissions"

func init() {
	defaultConfDir := fpath.ApplicationDir("covid19", "keyaggregator")
	cfgstruct.SetupFlag(zap.L(), rootCmd, &confDir, "config-dir", defaultConfDir, "main directory for keyaggregator configuration")
	defaults := cfgstruct.DefaultsFlag(rootCmd)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(tombstonesCmd)
	tombstonesCmd.AddCommand(tombstonesAddCmd)
	tombstonesCmd.AddCommand(tombstonesRemoveCmd)
	tombstonesCmd.AddCommand(tombstonesPruneCmd)

	process.Bind(runCmd, &runCfg, defaults, cfgstruct.ConfDir(confDir))
	process.Bind(setupCmd, &setupCfg, defaults, cfgstruct.ConfDir(confDir), cfgstruct.SetupMode())
	process.Bind(listCmd, &listCfg, defaults, cfgstruct.ConfDir(confDir))
	process.Bind(tombstonesAddCmd, &tombstonesCfg, defaults, cfgstruct.ConfDir(confDir))
	process.Bind(tombstonesRemoveCmd, &tombstonesCfg, defaults, cfgstruct.ConfDir(confDir))
	process.Bind(tombstonesPruneCmd, &tombstonesCfg, defaults, cfgstruct.ConfDir(confDir))
}

func main() {
	process.ExecWithCustomConfig(rootCmd, true, loadConfig)
}

// loadConfig loads the config file, with SUBMISSIONS_ environment variables
// taking precedence over it.
func loadConfig(cmd *cobra.Command, vip *viper.Viper) error {
	vip.SetEnvPrefix(envPrefix)
	vip.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	vip.AutomaticEnv()
	return process.LoadConfig(cmd, vip)
}

// pipeline is an aggregator together with the tombstone loader and the
// resources it was opened with.
type pipeline struct {
	aggregator *submission.Aggregator
	tombstones tombstone.Loader
	closers    []io.Closer
}

// openPipeline opens the listing source and the tombstone stores of config.
func openPipeline(ctx context.Context, log *zap.Logger, config Aggregator) (_ *pipeline, err error) {
	p := &pipeline{}
	defer func() {
		if err != nil {
			err = errs.Combine(err, p.Close())
		}
	}()

	var source submission.Source
	switch config.Source {
	case "s3":
		source, err = s3listing.Open(log.Named("s3"), config.S3)
	case "dir":
		source, err = filelisting.Open(config.Dir)
	default:
		err = errs.New("unknown listing source %q", config.Source)
	}
	if err != nil {
		return nil, err
	}
	source = listlogger.New(log.Named("listing"), source)

	loaders := tombstone.Union{tombstone.Static(config.Tombstones.Static)}
	if config.Tombstones.Redis != "" {
		client, err := redistombstone.OpenClientFrom(ctx, config.Tombstones.Redis)
		if err != nil {
			return nil, err
		}
		p.closers = append(p.closers, client)
		loaders = append(loaders, client)
	}
	if config.Tombstones.Bolt != "" {
		client, err := bolttombstone.New(log.Named("tombstones"), config.Tombstones.Bolt)
		if err != nil {
			return nil, err
		}
		p.closers = append(p.closers, client)
		loaders = append(loaders, client)
	}

	p.aggregator = submission.NewAggregator(log.Named("aggregator"), source, config.Submission)
	p.tombstones = loaders
	return p, nil
}

// Close closes the tombstone stores.
func (p *pipeline) Close() error {
	var group errs.Group
	for i := len(p.closers) - 1; i >= 0; i-- {
		group.Add(p.closers[i].Close())
	}
	p.closers = nil
	return group.Err()
}
