package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/refinery-cli/internal/ingest"
)

var (
	runTable string
	runFile  string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Cleanse a source file and merge it into table history",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		if err := e.Store.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		def, err := e.Defs.Get(runTable)
		if err != nil {
			return err
		}

		raw, err := ingest.ReadFile(runFile)
		if err != nil {
			return err
		}
		zap.L().Info("batch ingested",
			zap.String("table", runTable),
			zap.String("file", runFile),
			zap.Int("records", len(raw)),
		)

		result, err := e.Runner.Run(ctx, def, raw)
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	runCmd.Flags().StringVar(&runTable, "table", "customers", "table definition to run")
	runCmd.Flags().StringVar(&runFile, "file", "", "source file, CSV or XLSX (required)")
	_ = runCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(runCmd)
}
