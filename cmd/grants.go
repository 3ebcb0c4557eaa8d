package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var grantsCmd = &cobra.Command{
	Use:   "grants",
	Short: "Inspect PII access grants",
}

var grantsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all grants, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		all, err := e.Grants.List(ctx)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(all)
	},
}

func init() {
	grantsCmd.AddCommand(grantsListCmd)
	rootCmd.AddCommand(grantsCmd)
}
