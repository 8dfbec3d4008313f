// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/holomush/capgate/internal/gate"
)

func addSourceFlags(cmd *cobra.Command, src *sourceOptions) {
	cmd.Flags().StringVar(&src.fixtures, "fixtures", "", "YAML file of groups, members and invitations")
	cmd.Flags().StringToStringVar(&src.siteRoles, "site-role", nil, "site role for an actor (actor=role), repeatable")
}

func newCheckCmd(opts *rootOptions) *cobra.Command {
	var (
		src sourceOptions
		def bool
	)
	cmd := &cobra.Command{
		Use:   "check <actor> <capability> <group>",
		Short: "Decide whether an actor may exercise a capability on a group",
		Long: `Run a single permission decision and print the outcome.

Use "" as the actor for an anonymous visitor. Group relationships come from
--fixtures or, without it, from the database at database_url.

Exits non-zero only on errors; a denial is a normal outcome.`,
		Example: `  capgate check --fixtures groups.yaml carol groups_post_in_forum chess`,
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newEnvironment(cmd.Context(), opts.cfg, src)
			if err != nil {
				return err
			}
			defer env.Close()

			d := env.gate.Decide(cmd.Context(), gate.Request{
				ActorID:    args[0],
				Capability: args[1],
				ResourceID: args[2],
				Default:    def,
			})

			outcome := "deny"
			if d.Allowed {
				outcome = "allow"
			}
			strategy := d.Strategy
			if strategy == "" {
				strategy = "default"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s (strategy: %s)\n", outcome, d.Reason, strategy)
			return nil
		},
	}
	addSourceFlags(cmd, &src)
	cmd.Flags().BoolVar(&def, "default", false, "result for capabilities the gate does not recognize")
	return cmd
}
