package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/refinery-cli/internal/model"
)

var (
	maskTable string
	maskUser  string
	maskAt    string
)

var maskCmd = &cobra.Command{
	Use:   "mask",
	Short: "Show the current table redacted for a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		at, err := parseAt(maskAt)
		if err != nil {
			return err
		}

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		versions, err := e.Store.Current(ctx, maskTable)
		if err != nil {
			return err
		}

		recs := make([]model.Record, 0, len(versions))
		for _, v := range versions {
			recs = append(recs, v.Fields)
		}

		projected, err := e.Evaluator.ProjectBatch(ctx, recs, maskUser, at)
		if err != nil {
			return err
		}
		e.Collector.RecordMaskEvaluations(len(projected))

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(projected)
	},
}

func init() {
	maskCmd.Flags().StringVar(&maskTable, "table", "customers", "table name")
	maskCmd.Flags().StringVar(&maskUser, "user", "", "user email the view is rendered for (required)")
	maskCmd.Flags().StringVar(&maskAt, "at", "", "grant evaluation instant (RFC3339, default now)")
	_ = maskCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(maskCmd)
}
