// Package walker drives the discovery → filter → visit pipeline described in spec §4.4:
// load a provider's metadata, enumerate its documents, drop the ones filters reject, and run
// each survivor through a visitor chain.
package walker

import (
	"context"
	"fmt"
	"sync"

	"github.com/distwalker/walker/internal/model"
	"github.com/distwalker/walker/internal/source"
	"github.com/distwalker/walker/internal/visitor"
)

// Walker drives one provider's pipeline run.
type Walker[S source.Source] struct {
	Source S
	// Visitor is the chain's outermost RetrievedVisitor — typically a ValidationVisitor
	// wrapping a StoreValidatedVisitor, or a StoreRetrievedVisitor or SendVisitor directly.
	Visitor visitor.RetrievedVisitor[S]
	Filters Filters
	// Concurrency bounds how many documents are processed at once. <= 1 (the default) walks
	// strictly sequentially, matching spec §5's default; > 1 dispatches to a bounded worker
	// pool, grounded in the greenbone downloader's advisoryCh/errorCh/wg shape (spec §5).
	Concurrency int
	// Progress reports discovery counts per distribution; nil disables reporting.
	Progress Progress
}

// Run executes one full pipeline pass: load metadata, enumerate and filter documents, then
// visit each surviving document. It returns the first error encountered — from metadata
// loading, index loading, or any document's visitor chain.
func (w *Walker[S]) Run(ctx context.Context) error {
	metadata, err := w.Source.LoadMetadata(ctx)
	if err != nil {
		return fmt.Errorf("walker: load metadata: %w", err)
	}

	if err := w.Visitor.VisitContext(ctx, w.Source, metadata); err != nil {
		return fmt.Errorf("walker: visit context: %w", err)
	}

	discovered, err := w.Source.LoadIndex(ctx, metadata)
	if err != nil {
		return fmt.Errorf("walker: load index: %w", err)
	}

	kept := w.filterAndReport(discovered)

	retriever := visitor.RetrievingVisitor[S]{Source: w.Source, Inner: w.Visitor}

	if w.Concurrency > 1 {
		return runConcurrent(ctx, kept, w.Concurrency, retriever.Run)
	}
	return runSequential(ctx, kept, retriever.Run)
}

func (w *Walker[S]) filterAndReport(discovered []model.DiscoveredDocument) []model.DiscoveredDocument {
	kept := make([]model.DiscoveredDocument, 0, len(discovered))
	counts := make(map[string]int)
	order := make([]string, 0)

	for _, d := range discovered {
		label := d.Context.URL()
		if !w.Filters.keep(d, label) {
			continue
		}
		kept = append(kept, d)
		if _, seen := counts[label]; !seen {
			order = append(order, label)
		}
		counts[label]++
	}

	if w.Progress != nil {
		for _, label := range order {
			w.Progress.Report(counts[label], label)
		}
	}
	return kept
}

func runSequential(ctx context.Context, docs []model.DiscoveredDocument, run func(context.Context, model.DiscoveredDocument) error) error {
	for _, d := range docs {
		if err := run(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

// runConcurrent dispatches docs across a bounded pool of workers sized by concurrency, per
// spec §5's worker-pool knob. The first error observed is returned after all in-flight work
// drains; remaining queued documents are skipped once an error is recorded.
func runConcurrent(ctx context.Context, docs []model.DiscoveredDocument, concurrency int, run func(context.Context, model.DiscoveredDocument) error) error {
	jobs := make(chan model.DiscoveredDocument)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for d := range jobs {
				if err := run(ctx, d); err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
				}
			}
		}()
	}

	for _, d := range docs {
		mu.Lock()
		stop := firstErr != nil
		mu.Unlock()
		if stop {
			break
		}
		jobs <- d
	}
	close(jobs)
	wg.Wait()

	return firstErr
}
