// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/capgate/internal/status"
)

func newStatusesCmd(opts *rootOptions) *cobra.Command {
	var (
		namesOnly  bool
		descending bool
	)
	cmd := &cobra.Command{
		Use:   "statuses",
		Short: "List registered group statuses",
		Long: `List the base statuses and any declared in the status manifest,
ordered by priority.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			registry, err := loadRegistry(opts.cfg)
			if err != nil {
				return err
			}
			f := status.Filter{}
			if descending {
				f.Order = status.Descending
			}

			out := cmd.OutOrStdout()
			if namesOnly {
				for _, name := range registry.Names(f) {
					fmt.Fprintln(out, name)
				}
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tDISPLAY NAME\tPRIORITY\tFALLBACK\tCAPABILITIES")
			for _, s := range registry.List(f) {
				fallback := s.Fallback
				if fallback == "" {
					fallback = "-"
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%d\n", s.Name, s.DisplayName, s.Priority, fallback, len(s.Capabilities))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&namesOnly, "names", false, "print status names only")
	cmd.Flags().BoolVar(&descending, "desc", false, "order by descending priority")
	return cmd
}

func newDescribeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "describe <status>",
		Short: "Describe what a status allows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := loadRegistry(opts.cfg)
			if err != nil {
				return err
			}
			s, ok := registry.Get(args[0])
			if !ok {
				return oops.In("cli").Code(status.CodeNotFound).
					With("status", args[0]).
					Errorf("unknown status %q", args[0])
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s)\n", s.DisplayName, s.Name)

			keys := make([]string, 0, len(s.Capabilities))
			for c := range s.Capabilities {
				keys = append(keys, string(c))
			}
			slices.Sort(keys)
			for _, k := range keys {
				c := status.Capability(k)
				v := s.Capabilities[c]
				line := fmt.Sprintf("  %s: %s", k, v)
				if d := registry.Describe(c, v); d != "" {
					line += "\n    " + strings.TrimSpace(d)
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
}
