package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/refinery-cli/internal/model"
)

var (
	queryTable string
	queryAt    string
	queryKey   string
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query version history",
}

var queryCurrentCmd = &cobra.Command{
	Use:   "current",
	Short: "Show the open version of every key",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		versions, err := e.Store.Current(ctx, queryTable)
		if err != nil {
			return err
		}
		return printVersions(versions)
	},
}

var queryAsOfCmd = &cobra.Command{
	Use:   "asof",
	Short: "Show the table as of an instant",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		at, err := parseAt(queryAt)
		if err != nil {
			return err
		}

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		versions, err := e.Store.AsOf(ctx, queryTable, at)
		if err != nil {
			return err
		}
		return printVersions(versions)
	},
}

var queryHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show every version of one key",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		versions, err := e.Store.History(ctx, queryTable, queryKey)
		if err != nil {
			return err
		}
		return printVersions(versions)
	},
}

func parseAt(s string) (time.Time, error) {
	if s == "" {
		return time.Now().UTC(), nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, eris.Errorf("unparseable timestamp %q", s)
}

func printVersions(versions []model.Version) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(versions)
}

func init() {
	queryCmd.PersistentFlags().StringVar(&queryTable, "table", "customers", "table name")
	queryAsOfCmd.Flags().StringVar(&queryAt, "at", "", "instant to view (RFC3339, default now)")
	queryHistoryCmd.Flags().StringVar(&queryKey, "key", "", "business key (required)")
	_ = queryHistoryCmd.MarkFlagRequired("key")

	queryCmd.AddCommand(queryCurrentCmd, queryAsOfCmd, queryHistoryCmd)
	rootCmd.AddCommand(queryCmd)
}
