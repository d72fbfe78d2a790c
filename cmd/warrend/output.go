package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/alfredjeanlab/warren/internal/model"
)

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

func printEnvironment(env *model.Environment) {
	fmt.Printf("ID:         %s\n", env.ID)
	fmt.Printf("Schema:     %s\n", env.Schema)
	fmt.Printf("Status:     %s\n", env.Status)
	fmt.Printf("Expires At: %s\n", env.ExpiresAt.Format("2006-01-02 15:04:05"))
	if !env.CreatedAt.IsZero() {
		fmt.Printf("Created At: %s\n", env.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	if !env.UpdatedAt.IsZero() {
		fmt.Printf("Updated At: %s\n", env.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
}

func printEnvironmentTable(envs []*model.Environment, total int) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSCHEMA\tSTATUS\tEXPIRES")
	for _, env := range envs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			env.ID,
			env.Schema,
			env.Status,
			env.ExpiresAt.Format("2006-01-02 15:04:05"),
		)
	}
	w.Flush()
	fmt.Printf("\n%d environments (%d total)\n", len(envs), total)
}

func printChangeTable(changes []*model.ChangeRecord, total int) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LSN\tRUN\tTABLE\tOP\tKEY")
	for _, c := range changes {
		key, err := json.Marshal(c.PrimaryKey)
		if err != nil {
			key = []byte("{}")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			c.LSN,
			c.RunID,
			c.Table,
			c.Operation,
			string(key),
		)
	}
	w.Flush()
	fmt.Printf("\n%d changes (%d total)\n", len(changes), total)
}
