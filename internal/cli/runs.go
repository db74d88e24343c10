package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/RMahshie/nanosynth/internal/repository"
	"github.com/RMahshie/nanosynth/internal/repository/postgres"
	"github.com/RMahshie/nanosynth/pkg/models"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded runs",
	Long: `List runs recorded in the run ledger, newest first.

Requires DATABASE_URL; without it runs are only kept in memory for the
session that measured them.

Examples:
  nanosynth runs                  # Last 20 runs
  nanosynth runs --last 50        # Last 50 runs
  nanosynth runs --session <id>   # Runs of one session`,
	RunE: runRuns,
}

var (
	runsLast    int
	runsSession string
)

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.Flags().IntVarP(&runsLast, "last", "n", 20, "Number of runs to show")
	runsCmd.Flags().StringVarP(&runsSession, "session", "s", "", "Filter by session ID")
}

func runRuns(cmd *cobra.Command, args []string) error {
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL is not set")
	}
	ctx := cmd.Context()

	db, err := openDatabase(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer db.Close()

	return listRuns(ctx, cmd.OutOrStdout(), postgres.NewPostgresRunRepository(db), runsSession, runsLast)
}

func listRuns(ctx context.Context, out io.Writer, repo repository.RunRepository, sessionID string, last int) error {
	var runs []*models.Run
	var err error
	if sessionID != "" {
		runs, err = repo.ListBySession(ctx, sessionID)
		if last > 0 && len(runs) > last {
			runs = runs[:last]
		}
	} else {
		runs, err = repo.ListRecent(ctx, last)
	}
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tVARIANT\tSTATUS\tTARGET (mM)\tSOLUTE\tDILUENT\tCSV")
	fmt.Fprintln(w, "--\t----\t-------\t------\t-----------\t------\t-------\t---")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			shortID(r.ID),
			r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			r.Variant,
			r.Status,
			optionalFloat(r.TargetConcentration, ""),
			optionalFloat(r.SoluteFlowRate, r.FlowUnit),
			optionalFloat(r.DiluentFlowRate, r.FlowUnit),
			optionalString(r.CSVPath),
		)
	}
	return w.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func optionalFloat(v *float64, unit string) string {
	if v == nil {
		return "-"
	}
	if unit == "" {
		return fmt.Sprintf("%g", *v)
	}
	return fmt.Sprintf("%g %s", *v, unit)
}

func optionalString(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}
