// Package scanner discovers candidate email files under a scan root and
// streams them into the pipeline.
package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"govsort/model"
	"govsort/runner"
)

type Options struct {
	Root string
}

type Scanner interface {
	Stream(ctx context.Context, out chan<- model.Envelope) error
}

func New(opts Options, logger *slog.Logger) (Scanner, error) {
	root := strings.TrimSpace(opts.Root)
	if root == "" {
		return nil, fmt.Errorf("scan root is empty")
	}
	return &dirScanner{root: root, logger: logger}, nil
}

type dirScanner struct {
	root   string
	logger *slog.Logger
}

func (s *dirScanner) Stream(ctx context.Context, out chan<- model.Envelope) error {
	return filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == s.root {
				return fmt.Errorf("scan root: %w", err)
			}
			return s.emitError(ctx, out, fmt.Errorf("walk %s: %w", path, err))
		}
		if d.IsDir() || !IsCandidate(d.Name()) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return s.emitError(ctx, out, fmt.Errorf("stat %s: %w", path, err))
		}

		return s.emitEnvelope(ctx, out, model.Envelope{Candidate: model.Candidate{
			Path: path,
			Name: d.Name(),
			Size: info.Size(),
		}})
	})
}

// IsCandidate applies the discovery rule: .html files except index.html,
// .eml files, and files literally named ".eml".
func IsCandidate(name string) bool {
	if name == ".eml" {
		return true
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".html":
		return !strings.EqualFold(name, "index.html")
	case ".eml":
		return true
	}
	return false
}

// Count walks the root once to size the progress bar before processing
// starts.
func Count(root string) (int, error) {
	count := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return fmt.Errorf("scan root: %w", err)
			}
			return nil
		}
		if !d.IsDir() && IsCandidate(d.Name()) {
			count++
		}
		return nil
	})
	return count, err
}

func (s *dirScanner) emitError(ctx context.Context, out chan<- model.Envelope, err error) error {
	if s.logger != nil {
		s.logger.Error("scan error", "root", s.root, "err", err)
	}
	return s.emitEnvelope(ctx, out, model.Envelope{Err: err})
}

func (s *dirScanner) emitEnvelope(ctx context.Context, out chan<- model.Envelope, env model.Envelope) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case out <- env:
		return nil
	}
}

// Producer couples a scanner to the pipeline as its producing stage.
type Producer struct {
	scanner Scanner
	runner  *runner.Runner
}

func NewProducer(opts Options, r *runner.Runner, logger *slog.Logger) (*Producer, error) {
	s, err := New(opts, logger)
	if err != nil {
		return nil, err
	}
	producer := &Producer{scanner: s, runner: r}
	r.AddStage("scan", producer.run)
	return producer, nil
}

func (p *Producer) run(ctx context.Context) error {
	defer p.runner.CloseCandidates()
	return p.scanner.Stream(ctx, p.runner.CandidateWriter())
}
