package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/wonny/tickersync/internal/domain/ticker"
	"github.com/wonny/tickersync/internal/infra/database/postgres"
	tickerrepo "github.com/wonny/tickersync/internal/infra/database/postgres/ticker"
)

var runsLimit int

// runsCmd 최근 실행 이력
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show recent sync runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pool, err := postgres.NewPool(ctx, cfg)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer pool.Close()

		runs, err := tickerrepo.NewSyncRunRepository(pool).GetRecent(ctx, runsLimit)
		if err != nil {
			return err
		}

		printRuns(cmd.OutOrStdout(), runs)
		return nil
	},
}

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "number of runs to show")
}

func printRuns(w io.Writer, runs []*ticker.SyncRun) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "no runs recorded")
		return
	}

	fmt.Fprintf(w, "%-36s  %-10s  %-19s  %6s  %6s  %6s  %6s  %8s\n",
		"RUN ID", "STATE", "STARTED", "ADDS", "UPD", "DEL", "REJ", "MS")
	for _, r := range runs {
		state := string(r.State)
		if r.DryRun {
			state += "*"
		}
		var ms int64
		if r.DurationMs != nil {
			ms = *r.DurationMs
		}
		fmt.Fprintf(w, "%-36s  %-10s  %-19s  %6d  %6d  %6d  %6d  %8d\n",
			r.ID, state, r.StartedAt.Format("2006-01-02 15:04:05"),
			r.Adds, r.Updates, r.Deletes, r.Rejected, ms)
		if r.AbortReason != nil {
			fmt.Fprintf(w, "    aborted: %s\n", *r.AbortReason)
		}
		if r.ErrorMessage != nil {
			fmt.Fprintf(w, "    error:   %s\n", *r.ErrorMessage)
		}
	}
}
