package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/stancedb/internal/model"
)

// ResolveFunc resolves one entity name. outcome is a short label such as
// "hit" or "researched".
type ResolveFunc func(ctx context.Context, name string) (rec *model.StanceRecord, outcome string, err error)

// ResolveJob resolves a single name from a batch
type ResolveJob struct {
	Index   int
	Name    string
	Resolve ResolveFunc
}

// Execute runs the resolve function
func (j *ResolveJob) Execute(ctx context.Context) Result {
	rec, outcome, err := j.Resolve(ctx, j.Name)
	return &ResolveResult{
		Index:   j.Index,
		Name:    j.Name,
		Record:  rec,
		Outcome: outcome,
		Error:   err,
	}
}

// ResolveResult is the outcome of a ResolveJob
type ResolveResult struct {
	Index   int
	Name    string
	Record  *model.StanceRecord
	Outcome string
	Error   error
}

// GetError returns the error from the resolve result
func (r *ResolveResult) GetError() error {
	return r.Error
}

// BatchProcessor resolves many names concurrently
type BatchProcessor struct {
	resolve     ResolveFunc
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(resolve ResolveFunc, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		resolve:     resolve,
		concurrency: concurrency,
	}
}

// ProcessNames resolves names concurrently. Results are returned in input order.
func (b *BatchProcessor) ProcessNames(ctx context.Context, names []string) []*ResolveResult {
	if len(names) == 0 {
		return []*ResolveResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	for i, name := range names {
		if !pool.Submit(&ResolveJob{Index: i, Name: name, Resolve: b.resolve}) {
			break
		}
	}

	results := pool.Wait()

	out := make([]*ResolveResult, len(names))
	for _, result := range results {
		r := result.(*ResolveResult)
		out[r.Index] = r
	}

	// Names never run because ctx ended still get a result
	for i, r := range out {
		if r == nil {
			err := ctx.Err()
			if err == nil {
				err = context.Canceled
			}
			out[i] = &ResolveResult{Index: i, Name: names[i], Error: err}
		}
	}

	return out
}

// ProcessFile reads names from a file and resolves them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*ResolveResult, error) {
	names, err := ReadNamesFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read names: %w", err)
	}

	return b.ProcessNames(ctx, names), nil
}

// ReadNamesFromFile reads entity names from a file (one per line). Blank
// lines and lines starting with # are skipped; names differing only in case
// or spacing are kept once.
func ReadNamesFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var names []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key := strings.ToLower(strings.Join(strings.Fields(line), " "))
		if !seen[key] {
			seen[key] = true
			names = append(names, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return names, nil
}
