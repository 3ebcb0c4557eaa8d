package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List registered table definitions",
	RunE: func(cmd *cobra.Command, args []string) error {
		defs, err := initDefs()
		if err != nil {
			return err
		}
		for _, name := range defs.Names() {
			fmt.Println(name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tablesCmd)
}
