package main

import (
	"os"

	"github.com/alfredjeanlab/warren/internal/client"
	"github.com/alfredjeanlab/warren/internal/ui"
	"github.com/spf13/cobra"
)

var (
	httpURL    string
	authToken  string
	jsonOutput bool

	warrenClient client.WarrenClient
)

func defaultHTTPURL() string {
	if s := os.Getenv("WARREN_HTTP_URL"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

func defaultAuthToken() string {
	return os.Getenv("WARREN_AUTH_TOKEN")
}

var rootCmd = &cobra.Command{
	Use:   "warrend <command>",
	Short: "Ephemeral database environments with change capture",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Piped output defaults to JSON unless the flag was set explicitly.
		if !cmd.Flags().Changed("json") && !ui.StdoutIsTerminal() {
			jsonOutput = true
		}
		warrenClient = client.NewHTTPClient(httpURL, authToken)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if warrenClient != nil {
			warrenClient.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&httpURL, "http-url", defaultHTTPURL(), "warren server URL")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", defaultAuthToken(), "bearer token for the admin API")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	rootCmd.AddGroup(
		&cobra.Group{ID: "environments", Title: "Environments:"},
		&cobra.Group{ID: "capture", Title: "Change capture:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false

	// Environments
	rootCmd.AddCommand(envsCmd)

	// Change capture
	rootCmd.AddCommand(streamsCmd)
	rootCmd.AddCommand(changesCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
