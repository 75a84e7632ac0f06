package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/wonny/tickersync/internal/domain/ticker"
	"github.com/wonny/tickersync/internal/infra/listing"
	"github.com/wonny/tickersync/internal/service/tickersync"
)

var (
	syncFiles   []string
	syncURL     string
	syncDryRun  bool
	syncPlanOut string
)

// syncCmd 동기화 실행
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile listings against the stocks table",
	Long: `Loads the listings, diffs them against the stocks table, validates candidates
with the quote provider and applies the resulting plan in one transaction.

Examples:
  go run ./cmd/tickersync sync --file data/nyse.txt --file data/nasdaq.txt
  go run ./cmd/tickersync sync --url https://example.com/all_tickers.json --dry-run --plan-out plan.json`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().StringArrayVarP(&syncFiles, "file", "f", nil, "listing file (repeatable, processed in order)")
	syncCmd.Flags().StringVar(&syncURL, "url", "", "listing URL (text or JSON array)")
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "build the plan without applying it")
	syncCmd.Flags().StringVar(&syncPlanOut, "plan-out", "", "write the plan as JSON to this file (- for stdout)")
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cmd.Flags().Changed("dry-run") {
		cfg.Sync.DryRun = syncDryRun
	}

	inputs, err := collectInputs(ctx, syncFiles, syncURL)
	if err != nil {
		return err
	}

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	svc, err := a.newService(cfg)
	if err != nil {
		return err
	}

	result, runErr := svc.Run(ctx, inputs)
	if result != nil {
		printSummary(cmd.OutOrStdout(), result)
		if err := writePlan(cmd.OutOrStdout(), syncPlanOut, result.Plan); err != nil {
			log.Warn().Err(err).Msg("Failed to write plan")
		}
	}
	return runErr
}

// collectInputs gathers listing inputs in order: files first, then the URL.
// Flags override the configured defaults.
func collectInputs(ctx context.Context, files []string, url string) ([]ticker.ListingInput, error) {
	if len(files) == 0 && url == "" {
		files = cfg.Sync.ListingFiles
		url = cfg.Sync.ListingURL
	}
	if len(files) == 0 && url == "" {
		return nil, errors.New("no listing input: use --file or --url (or SYNC_LISTING_FILES / SYNC_LISTING_URL)")
	}

	inputs := listing.ParseFiles(files)

	if url != "" {
		in, err := listing.NewFetcher(nil).FetchURL(ctx, url)
		if err != nil {
			// carried into the run, which aborts with SourceUnreadable
			log.Error().Err(err).Str("url", url).Msg("Listing URL unreachable")
			in = ticker.ListingInput{Origin: url, Exchange: listing.InferExchange(url), Err: err}
		}
		inputs = append(inputs, in)
	}
	return inputs, nil
}

func printSummary(w io.Writer, r *tickersync.RunResult) {
	fmt.Fprintf(w, "Run %s: %s\n", r.RunID, r.State)
	if r.AbortReason != "" {
		fmt.Fprintf(w, "  aborted:   %s\n", r.AbortReason)
	}
	fmt.Fprintf(w, "  source:    %d (conflicts %d, invalid %d)\n", r.SourceCount, len(r.Conflicts), len(r.Invalid))
	fmt.Fprintf(w, "  snapshot:  %d\n", r.SnapshotCount)
	fmt.Fprintf(w, "  diff:      +%d ~%d -%d =%d\n", r.Summary.Adds, r.Summary.Updates, r.Summary.Deletes, r.Summary.Unchanged)

	if r.Plan != nil {
		fmt.Fprintf(w, "  plan:      %d upserts, %d deletes, %d rejected, %d warnings\n",
			len(r.Plan.Upserts()), len(r.Plan.Deletes()), len(r.Plan.Rejections), r.Plan.Warnings)
		for _, rej := range r.Plan.Rejections {
			fmt.Fprintf(w, "    rejected %-10s %-7s %s\n", rej.Symbol, rej.Kind, rej.Reason)
		}
	}
	if r.Applied != nil {
		fmt.Fprintf(w, "  applied:   %d upserted, %d deleted\n", r.Applied.Upserted, r.Applied.Deleted)
	}
	if r.FinalCount != nil {
		fmt.Fprintf(w, "  stocks:    %d rows\n", *r.FinalCount)
	}
}

func writePlan(stdout io.Writer, path string, plan *ticker.PersistencePlan) error {
	if path == "" || plan == nil {
		return nil
	}
	data, err := plan.Encode()
	if err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}
	if path == "-" {
		_, err = stdout.Write(append(data, '\n'))
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write plan: %w", err)
	}
	log.Info().Str("path", path).Msg("Plan written")
	return nil
}
