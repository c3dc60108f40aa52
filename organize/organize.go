// Package organize is the consuming stage of the pipeline: it takes candidate
// email files off the channel, classifies them and fans copies out into the
// domain/year/subject layout.
package organize

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"govsort/attach"
	"govsort/dateparse"
	"govsort/domain"
	"govsort/filter"
	"govsort/headers"
	"govsort/model"
	"govsort/runner"
	"govsort/stats"
)

const (
	defaultSubject   = "No Subject"
	maxSubjectLength = 100
)

var unsafeSubjectChars = regexp.MustCompile(`[<>:"/\\|?*]`)

type Worker struct {
	runner     *runner.Runner
	headers    *headers.Extractor
	classifier *domain.Classifier
	attach     *attach.Extractor
	filter     *filter.Filter
	logger     *slog.Logger
	outputDir  string
	dryRun     bool
}

func NewWorker(r *runner.Runner, logger *slog.Logger) (*Worker, error) {
	cfg := r.Config()

	f, err := filter.New(filter.Options{
		IncludeHeader: cfg.IncludeHeader,
		IncludeBody:   cfg.IncludeBody,
		ExcludeHeader: cfg.ExcludeHeader,
		ExcludeBody:   cfg.ExcludeBody,
	})
	if err != nil {
		return nil, fmt.Errorf("message filter: %w", err)
	}

	w := &Worker{
		runner:     r,
		headers:    headers.NewExtractor(logger),
		classifier: domain.NewClassifier(cfg.GovSuffix),
		attach:     attach.NewExtractor(attach.Options{MaxDepth: cfg.MaxDepth}, logger),
		filter:     f,
		logger:     logger,
		outputDir:  cfg.OutputDir,
		dryRun:     cfg.DryRun,
	}
	r.AddStage("organize", w.run)
	return w, nil
}

func (w *Worker) run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env, ok := <-w.runner.Candidates():
			if !ok {
				return nil
			}
			if env.Err != nil {
				w.runner.EmitEvent(stats.Event{Stage: stats.StageScan, Type: stats.EventTypeError, Err: env.Err})
				continue
			}
			w.process(env.Candidate)
		}
	}
}

// process handles one candidate file end to end. Errors never propagate past
// this method so one bad file cannot stop the run.
func (w *Worker) process(cand model.Candidate) {
	w.runner.EmitEvent(stats.Event{Stage: stats.StageOrganize, Type: stats.EventTypeScanned, File: cand.Path})

	if headers.IsPlaceholder(cand.Path) && cand.Size == 0 {
		w.logger.Debug("skipping empty attachment placeholder", "file", cand.Path)
		w.emitSkip(cand.Path, "empty placeholder")
		return
	}

	rec, err := w.headers.Extract(cand.Path)
	if err != nil {
		w.emitError(cand.Path, fmt.Errorf("extract headers: %w", err))
		return
	}
	if !rec.Any() {
		w.logger.Warn("no headers extracted", "file", cand.Path)
		w.emitSkip(cand.Path, "no headers")
		return
	}

	if w.filter.Active() {
		raw, err := os.ReadFile(cand.Path)
		if err != nil {
			w.emitError(cand.Path, fmt.Errorf("read for filter: %w", err))
			return
		}
		if !w.filter.Allows(rec, raw) {
			w.emitSkip(cand.Path, "filtered")
			return
		}
	}

	domains := w.classifier.Classify(rec)
	if len(domains.GovDomains) == 0 {
		w.logger.Debug("no government domains", "file", cand.Path)
		w.emitSkip(cand.Path, "no government domains")
		return
	}

	date, ok := dateparse.Resolve(rec.Date, cand.Name)
	if !ok {
		w.logger.Warn("no parsable date, using current time", "file", cand.Path, "raw", rec.Date)
	}

	w.runner.EmitEvent(stats.Event{Stage: stats.StageOrganize, Type: stats.EventTypeMatched, File: cand.Path})

	subject := SubjectDir(rec.Subject)
	for _, dom := range destinationDomains(domains) {
		destDir := filepath.Join(w.outputDir, dom, date.Year, subject)
		if err := w.copyInto(cand, destDir, date); err != nil {
			w.emitError(cand.Path, err)
			return
		}
	}
}

// copyInto places one copy of the message under destDir and extracts its
// attachments alongside it.
func (w *Worker) copyInto(cand model.Candidate, destDir string, date model.ResolvedDate) error {
	dst := filepath.Join(destDir, date.Compact+"_"+cand.Name)

	if w.dryRun {
		w.logger.Info("dry run, would copy", "src", cand.Path, "dst", dst)
		w.runner.EmitEvent(stats.Event{Stage: stats.StageOrganize, Type: stats.EventTypeDryRunCopied, File: cand.Path, Detail: dst})
		return nil
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", destDir, err)
	}
	if err := attach.CopyWithModTime(cand.Path, dst, date.Timestamp); err != nil {
		return fmt.Errorf("copy to %s: %w", dst, err)
	}
	w.runner.EmitEvent(stats.Event{Stage: stats.StageOrganize, Type: stats.EventTypeCopied, File: cand.Path, Detail: dst})

	for _, rec := range w.attach.Extract(cand.Path, destDir) {
		if err := w.runner.AttachmentLog().Append(rec); err != nil {
			w.logger.Error("attachment log append failed", "file", rec.DestinationFile, "err", err)
		}
		w.runner.EmitEvent(stats.Event{Stage: stats.StageAttach, Type: stats.EventTypeAttachment, File: cand.Path, Detail: rec.DestinationFile})
	}
	return nil
}

// destinationDomains returns the sender's domain first, then every other
// government domain in sorted order. The sender gets the primary copy even
// when its own domain is not a government one.
func destinationDomains(ds model.DomainSet) []string {
	rest := make([]string, 0, len(ds.GovDomains))
	for dom := range ds.GovDomains {
		if dom != ds.FromDomain {
			rest = append(rest, dom)
		}
	}
	sort.Strings(rest)
	return append([]string{ds.FromDomain}, rest...)
}

// SubjectDir turns a raw subject line into a directory name.
func SubjectDir(subject string) string {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		subject = defaultSubject
	}
	subject = unsafeSubjectChars.ReplaceAllString(subject, "_")
	if len(subject) > maxSubjectLength {
		subject = subject[:maxSubjectLength]
	}
	return subject
}

func (w *Worker) emitSkip(file, reason string) {
	w.runner.EmitEvent(stats.Event{Stage: stats.StageOrganize, Type: stats.EventTypeSkipped, File: file, Detail: reason})
}

func (w *Worker) emitError(file string, err error) {
	w.logger.Error("processing failed", "file", file, "err", err)
	w.runner.EmitEvent(stats.Event{Stage: stats.StageOrganize, Type: stats.EventTypeError, File: file, Err: err})
}
