// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"fmt"
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/capgate/internal/config"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <manifest>",
		Short: "Validate a status manifest without applying it",
		Long: `Checks a status manifest against the JSON Schema, verifies its
version and registers its statuses into a scratch registry.

Useful in CI pipelines to catch manifest errors early:
  capgate validate statuses.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return oops.In("cli").Code(config.CodeManifestRead).
					With("path", args[0]).
					Wrapf(err, "read manifest")
			}
			m, err := config.ParseManifest(data)
			if err != nil {
				return err
			}
			r, err := config.NewRegistry(m)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d statuses declared, %d registered)\n",
				args[0], len(m.Statuses), r.Len())
			return nil
		},
	}
}

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the status manifest JSON Schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := config.GenerateSchema()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	}
}
