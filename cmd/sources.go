package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List configured sources and their availability",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		registry, err := initRegistry()
		if err != nil {
			return err
		}

		available := make(map[string]bool)
		for _, name := range registry.Available(ctx) {
			available[name] = true
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "SOURCE\tSTATUS")
		for _, name := range registry.Names() {
			status := "unavailable"
			if available[name] {
				status = "ok"
			}
			fmt.Fprintf(tw, "%s\t%s\n", name, status)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}
