package main

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/warren/internal/client"
	"github.com/spf13/cobra"
)

var streamsCmd = &cobra.Command{
	Use:     "streams",
	Short:   "Manage change-capture streams",
	GroupID: "capture",
}

var streamsStartCmd = &cobra.Command{
	Use:   "start <environment-id>",
	Short: "Start capturing changes for an environment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		runID, _ := cmd.Flags().GetString("run")
		tables, _ := cmd.Flags().GetStringSlice("table")

		resp, err := warrenClient.StartStream(context.Background(), &client.StartStreamRequest{
			EnvironmentID: args[0],
			RunID:         runID,
			Tables:        tables,
		})
		if err != nil {
			return fmt.Errorf("starting stream: %w", err)
		}

		if jsonOutput {
			printJSON(resp)
		} else {
			fmt.Printf("Environment: %s\n", resp.EnvironmentID)
			fmt.Printf("Run:         %s\n", resp.RunID)
			fmt.Printf("Slot:        %s\n", resp.SlotName)
		}
		return nil
	},
}

var streamsStopCmd = &cobra.Command{
	Use:   "stop <environment-id> <run-id>",
	Short: "Stop a capture stream",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		drop, _ := cmd.Flags().GetBool("drop")

		if err := warrenClient.StopStream(context.Background(), args[0], args[1], drop); err != nil {
			return fmt.Errorf("stopping stream: %w", err)
		}
		if !jsonOutput {
			fmt.Printf("Stream %s/%s stopped\n", args[0], args[1])
		}
		return nil
	},
}

var streamsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active capture streams",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := warrenClient.ListStreams(context.Background())
		if err != nil {
			return fmt.Errorf("listing streams: %w", err)
		}

		if jsonOutput {
			printJSON(resp.Streams)
		} else {
			for _, slot := range resp.Streams {
				fmt.Println(slot)
			}
			fmt.Printf("\n%d streams\n", resp.Total)
		}
		return nil
	},
}

func init() {
	streamsStartCmd.Flags().String("run", "", "run id (generated when empty)")
	streamsStartCmd.Flags().StringSliceP("table", "t", nil, "capture only these tables (repeatable)")
	streamsStopCmd.Flags().Bool("drop", false, "also drop the replication slot")

	streamsCmd.AddCommand(streamsStartCmd)
	streamsCmd.AddCommand(streamsStopCmd)
	streamsCmd.AddCommand(streamsListCmd)
}
