package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect the semantic cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache entry and hit counts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := initCache()
		if err != nil {
			return err
		}
		defer c.Close() //nolint:errcheck

		stats, err := c.Stats(cmd.Context())
		if err != nil {
			return eris.Wrap(err, "cache stats")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	rootCmd.AddCommand(cacheCmd)
}
