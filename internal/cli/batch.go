package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/stancedb/internal/model"
	"github.com/ppiankov/stancedb/internal/resolve"
	"github.com/ppiankov/stancedb/internal/worker"
)

var (
	concurrency  int
	batchTimeout time.Duration
	batchOutput  string
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Resolve a file of names in parallel",
	Long: `Batch resolves many names concurrently:
- Read names from input file (one per line, # comments allowed)
- Names already stored are returned from the store
- Unknown names are researched, subject to the oracle rate limit
- Optionally write all results to a JSON file

Example:
  stancedb batch names.txt
  stancedb batch names.txt --concurrency 4 --output results.json`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", min(runtime.NumCPU(), 4), "number of concurrent workers")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().StringVar(&batchOutput, "output", "", "write results as JSON to this path")
}

type batchEntry struct {
	Name    string              `json:"name"`
	Outcome string              `json:"outcome,omitempty"`
	Code    string              `json:"code,omitempty"`
	Error   string              `json:"error,omitempty"`
	Record  *model.StanceRecord `json:"record,omitempty"`
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	a, err := newApp(ctx, cfg, slog.Default())
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	stderr := cmd.ErrOrStderr()
	fmt.Fprintf(stderr, "\n")
	fmt.Fprintf(stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(stderr, "  stancedb Batch Resolve\n")
	fmt.Fprintf(stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(stderr, "\n")
	fmt.Fprintf(stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(stderr, "  Workers:      %d\n", concurrency)
	fmt.Fprintf(stderr, "  Oracle rate:  %.2f req/s (burst %d)\n", cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	fmt.Fprintf(stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(stderr, "\n")

	processor := worker.NewBatchProcessor(coordinatorFunc(a.coordinator), concurrency)
	results, err := processor.ProcessFile(ctx, file)
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}

	entries, counts := summarize(results)
	for _, e := range entries {
		if e.Error != "" {
			fmt.Fprintf(stderr, "✗ %s: [%s] %s\n", e.Name, e.Code, e.Error)
			continue
		}
		fmt.Fprintf(stderr, "✓ %s: %s (%d/100, %s)\n", e.Record.Name, e.Record.Stance, e.Record.Confidence, e.Outcome)
	}

	fmt.Fprintf(stderr, "\n")
	fmt.Fprintf(stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(stderr, "  Batch Complete\n")
	fmt.Fprintf(stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(stderr, "\n")
	fmt.Fprintf(stderr, "  Total:       %d names\n", len(entries))
	fmt.Fprintf(stderr, "  Found:       %d\n", counts[string(resolve.OutcomeHit)])
	fmt.Fprintf(stderr, "  Researched:  %d\n", counts[string(resolve.OutcomeResearched)])
	fmt.Fprintf(stderr, "  Not found:   %d\n", counts[resolve.CodeNotFound])
	fmt.Fprintf(stderr, "  Failures:    %d\n", counts["failed"])
	fmt.Fprintf(stderr, "\n")

	if batchOutput != "" {
		f, err := os.Create(batchOutput)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer func() { _ = f.Close() }()
		if err := printJSON(f, entries); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		fmt.Fprintf(stderr, "  Output:      %s\n\n", batchOutput)
	}

	return nil
}

// coordinatorFunc adapts a coordinator to the batch processor
func coordinatorFunc(c *resolve.Coordinator) worker.ResolveFunc {
	return func(ctx context.Context, name string) (*model.StanceRecord, string, error) {
		res, err := c.Resolve(ctx, name)
		if err != nil {
			return nil, "", err
		}
		return res.Record, string(res.Outcome), nil
	}
}

// summarize converts results to output entries and tallies outcomes.
// Errors other than NOT_FOUND count as "failed".
func summarize(results []*worker.ResolveResult) ([]batchEntry, map[string]int) {
	entries := make([]batchEntry, 0, len(results))
	counts := make(map[string]int)

	for _, r := range results {
		e := batchEntry{Name: r.Name}
		if r.Error != nil {
			e.Code = resolve.Code(r.Error)
			e.Error = r.Error.Error()
			if e.Code == resolve.CodeNotFound {
				counts[resolve.CodeNotFound]++
			} else {
				counts["failed"]++
			}
		} else {
			e.Outcome = r.Outcome
			e.Record = r.Record
			counts[r.Outcome]++
		}
		entries = append(entries, e)
	}

	return entries, counts
}
