package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var changesCmd = &cobra.Command{
	Use:     "changes <environment-id>",
	Short:   "Show journaled changes for an environment",
	GroupID: "capture",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		runID, _ := cmd.Flags().GetString("run")

		resp, err := warrenClient.ListChanges(context.Background(), args[0], runID)
		if err != nil {
			return fmt.Errorf("listing changes: %w", err)
		}

		if jsonOutput {
			printJSON(resp.Changes)
		} else {
			printChangeTable(resp.Changes, resp.Total)
		}
		return nil
	},
}

func init() {
	changesCmd.Flags().String("run", "", "filter by run id")
}
