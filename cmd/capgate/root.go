// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/holomush/capgate/internal/config"
	"github.com/holomush/capgate/internal/logging"
	"github.com/holomush/capgate/internal/xdg"
)

const serviceName = "capgate"

// rootOptions holds state shared by all subcommands.
type rootOptions struct {
	configFile string
	cfg        config.Config
}

// NewRootCmd creates the root command for the capgate CLI.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "capgate",
		Short: "capgate - group status and capability gate",
		Long: `capgate resolves group statuses into capabilities and decides
whether an actor may join, see, post in or invite others to a group.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file path")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(newStatusesCmd(opts))
	cmd.AddCommand(newDescribeCmd(opts))
	cmd.AddCommand(newCheckCmd(opts))
	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newSchemaCmd())
	cmd.AddCommand(newInviteCmd(opts))
	cmd.AddCommand(newDecideCmd(opts))

	return cmd
}

// load resolves configuration and installs the logger.
func (o *rootOptions) load(cmd *cobra.Command) error {
	path, explicit := o.configFile, o.configFile != ""
	if !explicit {
		if p, err := xdg.ConfigFile(); err == nil {
			path = p
		}
	}

	cfg, err := config.Load(path, explicit, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := logging.Setup(serviceName, cmd.Root().Version, cfg.LogOptions(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	o.cfg = cfg
	return nil
}
