package main

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/warren/internal/client"
	"github.com/spf13/cobra"
)

var envsCmd = &cobra.Command{
	Use:     "envs",
	Short:   "Manage ephemeral environments",
	GroupID: "environments",
}

var envsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Provision a new environment",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := warrenClient.CreateEnvironment(context.Background())
		if err != nil {
			return fmt.Errorf("creating environment: %w", err)
		}

		if jsonOutput {
			printJSON(env)
		} else {
			printEnvironment(env)
		}
		return nil
	},
}

var envsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List environments",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetStringSlice("status")
		limit, _ := cmd.Flags().GetInt("limit")

		resp, err := warrenClient.ListEnvironments(context.Background(), &client.ListEnvironmentsRequest{
			Status: status,
			Limit:  limit,
		})
		if err != nil {
			return fmt.Errorf("listing environments: %w", err)
		}

		if jsonOutput {
			printJSON(resp.Environments)
		} else {
			printEnvironmentTable(resp.Environments, resp.Total)
		}
		return nil
	},
}

var envsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one environment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := warrenClient.GetEnvironment(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("getting environment: %w", err)
		}

		if jsonOutput {
			printJSON(env)
		} else {
			printEnvironment(env)
		}
		return nil
	},
}

var envsExpireCmd = &cobra.Command{
	Use:   "expire <id>",
	Short: "Mark an environment expired so the reaper removes it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := warrenClient.ExpireEnvironment(context.Background(), args[0]); err != nil {
			return fmt.Errorf("expiring environment: %w", err)
		}
		if !jsonOutput {
			fmt.Printf("Environment %s expired\n", args[0])
		}
		return nil
	},
}

func init() {
	envsListCmd.Flags().StringSliceP("status", "s", nil, "filter by status (repeatable)")
	envsListCmd.Flags().Int("limit", 0, "maximum number of environments to return")

	envsCmd.AddCommand(envsCreateCmd)
	envsCmd.AddCommand(envsListCmd)
	envsCmd.AddCommand(envsShowCmd)
	envsCmd.AddCommand(envsExpireCmd)
}
