package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/aluiziolira/go-torrent-relay/metrics"
	"github.com/aluiziolira/go-torrent-relay/models"
	"github.com/aluiziolira/go-torrent-relay/poller"
	"github.com/aluiziolira/go-torrent-relay/scraper"
)

// NewOnceCmd creates the once command.
func NewOnceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "once",
		Short: "Run a single crawl cycle and print a summary",
		Long: `Once runs one crawl and delivery cycle and exits.

With --dry-run the homepage and topic pages are fetched and parsed, the
listings are printed, and nothing is sent or recorded.`,
		Args: cobra.NoArgs,
		RunE: runOnceCmd,
	}

	addCycleFlags(cmd)
	cmd.Flags().Bool("dry-run", false, "Print parsed listings without delivering")

	return cmd
}

func runOnceCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	setupLogger(cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	out := cmd.OutOrStdout()

	if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
		fetcher, err := scraper.NewFetcher(cfg, m)
		if err != nil {
			return fmt.Errorf("initialising fetcher: %w", err)
		}
		p, err := poller.New(cfg, fetcher, nil, nil, m)
		if err != nil {
			return err
		}
		result := models.CycleResult{ErrorsByType: map[string]int{}}
		listings := p.Crawl(ctx, &result)
		printListings(out, listings)
		if result.HomepageErr != nil {
			return result.HomepageErr
		}
		return nil
	}

	r, err := newRelay(ctx, cfg, m)
	if err != nil {
		return err
	}
	defer r.close()

	result := r.poller.RunCycle(ctx)
	printSummary(out, result)
	if result.HomepageErr != nil {
		return result.HomepageErr
	}
	return nil
}

func printListings(w io.Writer, listings []models.Listing) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Topic", "Title", "Size", "Link"})
	for _, l := range listings {
		if len(l.Files) == 0 {
			t.AppendRow(table.Row{l.TopicURL, "(no files)", "", ""})
			continue
		}
		for _, f := range l.Files {
			t.AppendRow(table.Row{l.TopicURL, f.Title, f.Size, f.Link})
		}
	}
	t.Render()
}

func printSummary(w io.Writer, result models.CycleResult) {
	separator := "--------------------------------------------------"
	fmt.Fprintln(w, "\n"+separator)
	fmt.Fprintln(w, "Cycle complete")
	fmt.Fprintf(w, "  Topics:        %d\n", result.TopicCount)
	fmt.Fprintf(w, "  Listings:      %d\n", result.ListingCount)
	fmt.Fprintf(w, "  Delivered:     %d\n", result.Delivered)
	fmt.Fprintf(w, "  Failed:        %d\n", result.Failed)
	fmt.Fprintf(w, "  Skipped:       %d\n", result.Skipped)
	fmt.Fprintf(w, "  Failed topics: %d\n", len(result.FailedTopics))
	if len(result.ErrorsByType) > 0 {
		fmt.Fprintf(w, "  Error types:   %v\n", result.ErrorsByType)
	}
	if result.RecoveredPanic != nil {
		fmt.Fprintf(w, "  Panic:         %v\n", result.RecoveredPanic)
	}
	fmt.Fprintf(w, "  Duration:      %v\n", result.Duration())
	fmt.Fprintln(w, separator)
}
