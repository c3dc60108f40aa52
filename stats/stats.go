package stats

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

type Stage string

const (
	StageScan     Stage = "scan"
	StageOrganize Stage = "organize"
	StageAttach   Stage = "attach"
)

type EventType string

const (
	// EventTypeScanned marks a new source file entering processing. Only
	// this type advances overall progress; copy and attachment events for
	// the same file must not double-count it.
	EventTypeScanned EventType = "scanned"
	// EventTypeMatched marks a file whose domains qualified it.
	EventTypeMatched EventType = "matched"
	// EventTypeCopied marks one physical message copy, primary or fan-out.
	EventTypeCopied       EventType = "copied"
	EventTypeDryRunCopied EventType = "dry_run_copied"
	EventTypeAttachment   EventType = "attachment"
	EventTypeSkipped      EventType = "skipped"
	EventTypeError        EventType = "error"
)

type Event struct {
	Stage  Stage
	Type   EventType
	File   string
	Detail string
	Err    error
}

type Summary struct {
	Scanned        int
	Matched        int
	Copies         int
	DryRunCopies   int
	Attachments    int
	Skipped        int
	Errors         int
	LastError      error
	LastAttachment string
}

func (s Summary) LogAttrs() []any {
	attrs := []any{
		"scanned", s.Scanned,
		"matched", s.Matched,
		"copies", s.Copies,
		"dryRunCopies", s.DryRunCopies,
		"attachments", s.Attachments,
		"skipped", s.Skipped,
		"errors", s.Errors,
	}
	if s.LastError != nil {
		attrs = append(attrs, "lastError", s.LastError.Error())
	}
	return attrs
}

type Collector struct {
	mu      sync.Mutex
	summary Summary
}

func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) Run(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			c.apply(evt)
		}
	}
}

func (c *Collector) Snapshot() Summary {
	c.mu.Lock()
	summary := c.summary
	c.mu.Unlock()
	return summary
}

func (c *Collector) apply(evt Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch evt.Type {
	case EventTypeScanned:
		c.summary.Scanned++
	case EventTypeMatched:
		c.summary.Matched++
	case EventTypeCopied:
		c.summary.Copies++
	case EventTypeDryRunCopied:
		c.summary.DryRunCopies++
	case EventTypeAttachment:
		c.summary.Attachments++
		if evt.Detail != "" {
			c.summary.LastAttachment = evt.Detail
		}
	case EventTypeSkipped:
		c.summary.Skipped++
	case EventTypeError:
		c.summary.Errors++
		if evt.Err != nil {
			c.summary.LastError = evt.Err
		}
	}
}

type EventStream interface {
	SubscribeStats(name string, fn func(context.Context, <-chan Event) error)
}

type Reporter struct {
	collector *Collector
	logger    *slog.Logger
	started   time.Time
}

func NewReporter(stream EventStream, logger *slog.Logger) *Reporter {
	reporter := &Reporter{
		collector: NewCollector(),
		logger:    logger,
		started:   time.Now(),
	}
	stream.SubscribeStats("stats-reporter", reporter.consume)
	return reporter
}

func (r *Reporter) consume(ctx context.Context, events <-chan Event) error {
	r.collector.Run(ctx, events)
	summary := r.collector.Snapshot()
	attrs := append(summary.LogAttrs(), "duration", time.Since(r.started))
	if ctx.Err() != nil {
		if r.logger != nil {
			r.logger.Debug("stats collection stopped", append(attrs, "err", ctx.Err())...)
		}
		return ctx.Err()
	}
	if r.logger != nil {
		r.logger.Info("stats summary", attrs...)
	}
	return nil
}

func (r *Reporter) Summary() Summary {
	return r.collector.Snapshot()
}

// PrettyPrintTop prints the top N most frequent items in a map.
func PrettyPrintTop(m map[string]int, limit int) {
	type pair struct {
		Key   string
		Value int
	}

	var pairs []pair
	for k, v := range m {
		pairs = append(pairs, pair{k, v})
	}

	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].Value > pairs[j].Value
	})

	for i := 0; i < limit && i < len(pairs); i++ {
		fmt.Printf("%d. %s (%d)\n", i+1, pairs[i].Key, pairs[i].Value)
	}
}
