package progress

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/pterm/pterm"

	"govsort/stats"
)

// Bar manages a progress bar for tracking email file processing.
type Bar struct {
	pb      *pterm.ProgressbarPrinter
	total   int
	matched int
	copied  int
	mu      sync.Mutex
	enabled bool
}

// New creates a new progress bar if logLevel is "info".
func New(total int, logLevel string) *Bar {
	enabled := logLevel == "info"

	bar := &Bar{
		total:   total,
		enabled: enabled,
	}

	if enabled {
		pb, _ := pterm.DefaultProgressbar.
			WithTotal(total).
			WithTitle("Processing emails").
			Start()

		bar.pb = pb

		pterm.Info.Printf("Email files found: %d\n", total)
		pterm.Println()
	}

	return bar
}

// Update advances the progress bar based on the event type. Only scanned
// events increment the bar; copies and attachments must not double-count
// progress toward the file total.
func (b *Bar) Update(evt stats.Event) {
	if !b.enabled || b.pb == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch evt.Type {
	case stats.EventTypeScanned:
		b.pb.Increment()
		if evt.File != "" {
			name := filepath.Base(evt.File)
			if len(name) > 40 {
				name = name[:37] + "..."
			}
			b.pb.UpdateTitle("Processing: " + name)
		}
	case stats.EventTypeMatched:
		b.matched++
	case stats.EventTypeCopied, stats.EventTypeDryRunCopied:
		b.copied++
	case stats.EventTypeAttachment:
		// Keep the bar quiet; totals land in the final summary.
	case stats.EventTypeError:
		if evt.Err != nil {
			pterm.Error.Printf("Error: %v\n", evt.Err)
		}
	}
}

// Stop finalizes the progress bar.
func (b *Bar) Stop() {
	if !b.enabled || b.pb == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pb.Current < b.total {
		b.pb.Current = b.total
	}

	b.pb.Stop()
	pterm.Success.Println("Processing complete!")
}

// Subscriber creates a stats subscriber function that updates the progress bar.
func (b *Bar) Subscriber(ctx context.Context, events <-chan stats.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			b.Update(evt)
		}
	}
}

// ProgressReporter wraps the stats collector with progress bar functionality.
type ProgressReporter struct {
	bar       *Bar
	collector *stats.Collector
	logger    *slog.Logger
	started   time.Time
}

// NewProgressReporter creates a new progress reporter with optional progress bar.
func NewProgressReporter(stream stats.EventStream, bar *Bar, logger *slog.Logger) *ProgressReporter {
	reporter := &ProgressReporter{
		bar:       bar,
		collector: stats.NewCollector(),
		logger:    logger,
		started:   time.Now(),
	}

	if bar != nil && bar.enabled {
		stream.SubscribeStats("progress-bar", bar.Subscriber)
		stream.SubscribeStats("progress-stats", reporter.collectStats)
	}

	return reporter
}

// collectStats collects statistics and prints the final summary.
func (pr *ProgressReporter) collectStats(ctx context.Context, events <-chan stats.Event) error {
	pr.collector.Run(ctx, events)

	summary := pr.collector.Snapshot()
	duration := time.Since(pr.started)

	if pr.logger != nil {
		pterm.Println()
		pterm.DefaultSection.Println("Summary Statistics")
		pterm.Info.Printf("Duration: %v\n", duration)
		pterm.Info.Printf("Scanned: %d\n", summary.Scanned)
		pterm.Info.Printf("Matched: %d\n", summary.Matched)
		pterm.Info.Printf("Copies written: %d\n", summary.Copies)
		pterm.Info.Printf("Dry-run copies: %d\n", summary.DryRunCopies)
		pterm.Info.Printf("Attachments extracted: %d\n", summary.Attachments)
		pterm.Info.Printf("Skipped: %d\n", summary.Skipped)
		pterm.Info.Printf("Errors: %d\n", summary.Errors)
		if summary.LastError != nil {
			pterm.Error.Printf("Last error: %v\n", summary.LastError)
		}
	}

	return nil
}
