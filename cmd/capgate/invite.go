// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/holomush/capgate/internal/invite"
	"github.com/holomush/capgate/internal/membership"
)

func newInviteCmd(opts *rootOptions) *cobra.Command {
	var (
		src     sourceOptions
		message string
		accept  bool
	)
	cmd := &cobra.Command{
		Use:   "invite <inviter> <invitee> <group>",
		Short: "Send a group invitation",
		Long: `Send an invitation after checking that the inviter may invite and
the invitee may be invited. With --accept the invitee accepts at once.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			env, err := newEnvironment(ctx, opts.cfg, src)
			if err != nil {
				return err
			}
			defer env.Close()

			inviter, invitee, group := args[0], args[1], args[2]
			svc := invite.NewService(env.store, env.gate)

			inv, err := svc.Invite(ctx, inviter, invitee, group, message)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "invited %s to %s (invitation %s)\n", invitee, group, inv.ID)

			if !accept {
				return nil
			}
			if err := svc.Accept(ctx, invitee, group, membership.TypeInvite); err != nil {
				return err
			}
			fmt.Fprintf(out, "%s joined %s\n", invitee, group)
			return nil
		},
	}
	addSourceFlags(cmd, &src)
	cmd.Flags().StringVar(&message, "message", "", "invitation message")
	cmd.Flags().BoolVar(&accept, "accept", false, "accept the invitation immediately")
	return cmd
}
