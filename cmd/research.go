package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/deep-research/internal/agent"
)

var (
	researchSources []string
	researchNoCache bool
	researchJSON    bool
)

var researchCmd = &cobra.Command{
	Use:   "research <query>",
	Short: "Research a query across developer sources",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		req := agent.Request{
			Query:     strings.Join(args, " "),
			Sources:   researchSources,
			SkipCache: researchNoCache,
		}

		result, err := e.agent.Research(ctx, req)
		if err != nil {
			return eris.Wrap(err, "research")
		}

		zap.L().Info("research complete",
			zap.String("terminal", string(result.Terminal)),
			zap.Float64("score", result.Verdict.Score),
			zap.Int64("elapsed_ms", result.ElapsedMS),
		)

		if researchJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}

		printResult(result)
		return nil
	},
}

func printResult(result *agent.Result) {
	if result.Synthesis == nil {
		fmt.Println("No result.")
		return
	}
	fmt.Println(result.Synthesis.Narrative)
	if result.Synthesis.LowConfidence {
		fmt.Println("\n[low confidence]")
	}
	if len(result.Synthesis.Citations) > 0 {
		fmt.Println("\nSources:")
		for i, c := range result.Synthesis.Citations {
			fmt.Printf("  %d. %s (%s)\n     %s\n", i+1, c.Title, c.Source, c.URL)
		}
	}
	fmt.Printf("\nconfidence=%.2f terminal=%s cache_hit=%v elapsed=%dms\n",
		result.Verdict.Score, result.Terminal, result.Synthesis.CacheHit, result.ElapsedMS)
}

func init() {
	researchCmd.Flags().StringSliceVar(&researchSources, "sources", nil, "override planner source selection (comma-separated)")
	researchCmd.Flags().BoolVar(&researchNoCache, "no-cache", false, "bypass the semantic cache")
	researchCmd.Flags().BoolVar(&researchJSON, "json", false, "print full result JSON")
	rootCmd.AddCommand(researchCmd)
}
