package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/deep-research/internal/model"
	"github.com/sells-group/deep-research/internal/store"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect research session history",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent research sessions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		terminal, _ := cmd.Flags().GetString("terminal")
		limit, _ := cmd.Flags().GetInt("limit")

		sessions, err := st.ListSessions(ctx, store.SessionFilter{
			Terminal: terminal,
			Limit:    limit,
		})
		if err != nil {
			return eris.Wrap(err, "sessions list")
		}

		if len(sessions) == 0 {
			fmt.Fprintln(os.Stderr, "No sessions found.")
			return nil
		}

		formatSessionsList(os.Stdout, sessions)
		return nil
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show full details of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		rec, err := st.GetSession(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "sessions show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	},
}

func formatSessionsList(w *os.File, sessions []model.SessionRecord) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tQUERY\tTERMINAL\tCONFIDENCE\tCACHE\tELAPSED\tCREATED")
	for _, s := range sessions {
		query := s.Query
		if len(query) > 40 {
			query = query[:37] + "..."
		}
		cacheFlag := ""
		if s.CacheHit {
			cacheFlag = "hit"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%s\t%dms\t%s\n",
			s.ID, query, s.Terminal, s.Confidence, cacheFlag, s.DurationMS,
			s.CreatedAt.Local().Format(time.RFC3339))
	}
	_ = tw.Flush()
}

func init() {
	sessionsListCmd.Flags().String("terminal", "", "filter by terminal state (done, done_low_confidence, failed)")
	sessionsListCmd.Flags().Int("limit", 20, "maximum sessions to list")
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	rootCmd.AddCommand(sessionsCmd)
}
