package main

import (
	"encoding/json"
	"fmt"

	"github.com/autom8ter/docrepo/errors"
	"github.com/autom8ter/docrepo/migrate"
	"github.com/autom8ter/docrepo/util"
	"github.com/spf13/cobra"
)

func ledgerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "inspect and repair the migration ledger",
	}
	cmd.AddCommand(ledgerListCmd())
	cmd.AddCommand(ledgerResolveCmd())
	return cmd
}

func ledgerListCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "list ledger records ordered by start date",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			m, runner, err := openRunner(ctx)
			if err != nil {
				return err
			}
			defer m.Close(ctx)
			records, err := runner.Ledger(ctx)
			if err != nil {
				return err
			}
			bits, err := formatRecords(records, output)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(bits))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "yaml", "output format (yaml, json)")
	return cmd
}

func ledgerResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <migration id>",
		Short: "delete the record of a migration that did not succeed so the next run retries it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, runner, err := openRunner(ctx)
			if err != nil {
				return err
			}
			defer m.Close(ctx)
			if err := runner.Resolve(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "resolved %s\n", args[0])
			return nil
		},
	}
}

func formatRecords(records []migrate.Record, output string) ([]byte, error) {
	if records == nil {
		records = []migrate.Record{}
	}
	bits, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, err
	}
	switch output {
	case "json":
		return bits, nil
	case "yaml":
		return util.JSONToYAML(bits)
	default:
		return nil, errors.New(errors.Validation, "unsupported output format: %s", output)
	}
}
