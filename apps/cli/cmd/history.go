package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/apicase/packages/history"
)

var (
	historyLimit  int
	historyDBFlag string
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show recorded runs",
	Long: `Show runs recorded with "apicase run --history". With a run ID, show
the test cases of that run.

Examples:
  apicase history
  apicase history --limit 5
  apicase history 3f1c2a9e-...`,
	Args: cobra.MaximumNArgs(1),
	RunE: historyCommand,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Number of runs to show")
	historyCmd.Flags().StringVar(&historyDBFlag, "db", getEnvString("APICASE_HISTORY", ""), "History database path (default ~/.apicase/history.db) (env: APICASE_HISTORY)")
}

func historyCommand(cmd *cobra.Command, args []string) error {
	path := historyDBFlag
	if path == "" || path == defaultHistoryFlag {
		path = history.DefaultPath()
	}

	store, err := history.Open(path)
	if err != nil {
		return exitf(ExitConfigError, "opening history: %w", err)
	}
	defer store.Close()

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	defer w.Flush()

	if len(args) == 1 {
		cases, err := store.Cases(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(cases) == 0 {
			return fmt.Errorf("no run with id %s", args[0])
		}
		fmt.Fprintln(w, "RESULT\tNAME\tREQUEST\tEXPECTED\tRECEIVED\tDURATION\tREMARKS")
		for _, c := range cases {
			result := "pass"
			if !c.Passed {
				result = "FAIL"
			}
			received := "-"
			if c.Received > 0 {
				received = fmt.Sprintf("%d", c.Received)
			}
			fmt.Fprintf(w, "%s\t%s\t%s %s\t%d\t%s\t%s\t%s\n",
				result, c.Name, c.Method, c.URL, c.Expected, received, c.Duration, c.Remarks)
		}
		return nil
	}

	runs, err := store.Recent(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No runs recorded in %s\n", path)
		return nil
	}

	fmt.Fprintln(w, "ID\tSTARTED\tDURATION\tTOTAL\tPASSED\tFAILED\tSKIPPED")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
			r.ID, r.StartedAt.Local().Format(time.DateTime), r.Duration, r.Total, r.Passed, r.Failed, r.Skipped)
	}
	return nil
}
