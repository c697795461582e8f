package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/stancedb/internal/model"
	"github.com/ppiankov/stancedb/internal/resolve"
)

var (
	outputJSON    bool
	lookupTimeout time.Duration
)

// lookupCmd represents the lookup command
var lookupCmd = &cobra.Command{
	Use:   "lookup <name>",
	Short: "Resolve one entity, researching it when unknown",
	Long: `Lookup returns the stored stance for a person or organization. When the
name is unknown it is researched, validated and saved.

Example:
  stancedb lookup "Bella Hadid"
  stancedb lookup acme corp --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLookup,
}

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search stored records by name or category",
	Example: `  stancedb search hadid
  stancedb search musician --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(lookupCmd)
	rootCmd.AddCommand(searchCmd)

	lookupCmd.Flags().BoolVar(&outputJSON, "json", false, "print JSON")
	lookupCmd.Flags().DurationVar(&lookupTimeout, "timeout", 2*time.Minute, "overall timeout")
	searchCmd.Flags().BoolVar(&outputJSON, "json", false, "print JSON")
}

func runLookup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), lookupTimeout)
	defer cancel()

	a, err := newApp(ctx, cfg, slog.Default())
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	res, err := a.coordinator.Resolve(ctx, strings.Join(args, " "))
	if err != nil {
		return fmt.Errorf("%s: %w", resolve.Code(err), err)
	}

	out := cmd.OutOrStdout()
	if outputJSON {
		return printJSON(out, map[string]any{
			"record":  res.Record,
			"outcome": res.Outcome,
			"message": res.Outcome.Message(),
		})
	}

	fmt.Fprintf(out, "%s\n\n", res.Outcome.Message())
	printRecord(out, res.Record)
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, slog.Default())
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	results, err := a.lookup.Search(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if outputJSON {
		return printJSON(out, map[string]any{"results": results})
	}
	if len(results) == 0 {
		fmt.Fprintln(out, "No matching records")
		return nil
	}
	printTable(out, results)
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printRecord(w io.Writer, rec *model.StanceRecord) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Name:\t%s\n", rec.Name)
	fmt.Fprintf(tw, "Type:\t%s\n", rec.Variant)
	fmt.Fprintf(tw, "Category:\t%s\n", rec.Category)
	fmt.Fprintf(tw, "Stance:\t%s\n", rec.Stance)
	fmt.Fprintf(tw, "Confidence:\t%d/100\n", rec.Confidence)
	if rec.ParentCompany != "" {
		fmt.Fprintf(tw, "Parent company:\t%s\n", rec.ParentCompany)
	}
	if rec.Featured {
		fmt.Fprintf(tw, "Featured:\tyes\n")
	}
	if rec.Summary != "" {
		fmt.Fprintf(tw, "Summary:\t%s\n", rec.Summary)
	}
	for i, src := range rec.Sources {
		label := ""
		if i == 0 {
			label = "Sources:"
		}
		fmt.Fprintf(tw, "%s\t%s\n", label, src)
	}
	_ = tw.Flush()
}

func printTable(w io.Writer, recs []model.StanceRecord) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTYPE\tCATEGORY\tSTANCE\tCONFIDENCE")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", r.Name, r.Variant, r.Category, r.Stance, r.Confidence)
	}
	_ = tw.Flush()
}
