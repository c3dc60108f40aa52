package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"govsort/config"
	"govsort/model"
	"govsort/runlog"
	"govsort/stats"
)

type StageFunc func(context.Context) error

// Runner is the run-scoped context object: it owns the candidate channel,
// the event bus and the attachment log, so concurrent or test-isolated runs
// never share state.
type Runner struct {
	cfg    config.Config
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	candidates chan model.Envelope

	subsMu sync.Mutex
	subs   []chan stats.Event

	attachLog runlog.Log

	workWG  sync.WaitGroup
	statsWG sync.WaitGroup

	errMu sync.Mutex
	err   error

	closeCandidatesOnce sync.Once
	closeEventsOnce     sync.Once
	since               time.Time
}

func New(cfg config.Config, attachLog runlog.Log, logger *slog.Logger) *Runner {
	ctx, cancel := context.WithCancel(context.Background())

	if attachLog == nil {
		attachLog = runlog.NewMemoryLog()
	}

	return &Runner{
		cfg:        cfg,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
		candidates: make(chan model.Envelope, 32),
		attachLog:  attachLog,
	}
}

func (r *Runner) Config() config.Config {
	return r.cfg
}

func (r *Runner) Logger() *slog.Logger {
	return r.logger
}

func (r *Runner) Context() context.Context {
	return r.ctx
}

func (r *Runner) AttachmentLog() runlog.Log {
	return r.attachLog
}

func (r *Runner) CandidateWriter() chan<- model.Envelope {
	return r.candidates
}

func (r *Runner) Candidates() <-chan model.Envelope {
	return r.candidates
}

func (r *Runner) CloseCandidates() {
	r.closeCandidatesOnce.Do(func() {
		close(r.candidates)
	})
}

// EmitEvent delivers the event to every subscriber. Each subscriber has its
// own channel so the progress bar and the stats collector both see the full
// stream.
func (r *Runner) EmitEvent(evt stats.Event) {
	r.subsMu.Lock()
	subs := r.subs
	r.subsMu.Unlock()

	for _, ch := range subs {
		select {
		case <-r.ctx.Done():
			return
		case ch <- evt:
		}
	}
}

// SubscribeStats registers an event consumer. Subscribers must be added
// before the stages start emitting.
func (r *Runner) SubscribeStats(name string, fn func(context.Context, <-chan stats.Event) error) {
	ch := make(chan stats.Event, 128)
	r.subsMu.Lock()
	r.subs = append(r.subs, ch)
	r.subsMu.Unlock()

	r.statsWG.Add(1)
	go func() {
		defer r.statsWG.Done()
		if err := fn(r.ctx, ch); err != nil && !errors.Is(err, context.Canceled) {
			r.fail(fmt.Errorf("%s stats: %w", name, err))
		}
	}()
}

func (r *Runner) AddStage(name string, fn StageFunc) {
	r.workWG.Add(1)
	go func() {
		defer r.workWG.Done()
		if err := fn(r.ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.fail(fmt.Errorf("%s stage: %w", name, err))
		}
	}()
}

func (r *Runner) Start() error {
	r.since = time.Now()

	r.workWG.Wait()
	r.closeEvents()
	r.statsWG.Wait()

	r.cancel()

	err := r.err
	duration := time.Since(r.since)
	if err != nil {
		r.logger.Error("pipeline failed", "duration", duration, "err", err)
		return err
	}

	r.logger.Info("pipeline completed", "duration", duration)
	return nil
}

func (r *Runner) closeEvents() {
	r.closeEventsOnce.Do(func() {
		r.subsMu.Lock()
		for _, ch := range r.subs {
			close(ch)
		}
		r.subsMu.Unlock()
	})
}

func (r *Runner) fail(err error) {
	if err == nil {
		return
	}
	r.errMu.Lock()
	if r.err == nil {
		r.err = err
		r.cancel()
	}
	r.errMu.Unlock()
}
