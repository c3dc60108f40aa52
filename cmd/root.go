package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"govsort/config"
	"govsort/organize"
	"govsort/progress"
	"govsort/runlog"
	"govsort/runner"
	"govsort/scanner"
	"govsort/stats"
)

var rootCmd = &cobra.Command{
	Use:   "govsort",
	Short: "Sort exported email files into government-domain folders",
	Long: `govsort scans a tree of exported email files (HTML archives and EML
files), classifies each message by the government domains it involves and
copies matching messages, with their attachments, into a
domain/year/subject layout stamped with the original message date.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(cmd)
		if err != nil {
			return err
		}

		logger, cleanup, err := setupLogger(cfg)
		if err != nil {
			return err
		}
		defer func() {
			_ = cleanup()
		}()

		slog.SetDefault(logger)
		logger.Info("starting govsort", "input", cfg.InputDir, "output", cfg.OutputDir, "dryRun", cfg.DryRun)

		return run(cfg, logger)
	},
}

func init() {
	config.RegisterFlags(rootCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func run(cfg config.Config, logger *slog.Logger) error {
	// The output root is the one path whose failure aborts the whole run.
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output root: %w", err)
	}

	total, err := scanner.Count(cfg.InputDir)
	if err != nil {
		return fmt.Errorf("count candidates: %w", err)
	}
	logger.Info("candidates found", "count", total)

	var attachLog runlog.Log
	var fileLog *runlog.FileLog
	if cfg.DryRun {
		attachLog = runlog.NewMemoryLog()
	} else {
		fileLog, err = runlog.NewFileLog(cfg.OutputDir)
		if err != nil {
			return fmt.Errorf("open attachment log: %w", err)
		}
		attachLog = fileLog
	}

	r := runner.New(cfg, attachLog, logger)
	stats.NewReporter(r, logger)

	bar := progress.New(total, cfg.LogLevel)
	progress.NewProgressReporter(r, bar, logger)

	if _, err := scanner.NewProducer(scanner.Options{Root: cfg.InputDir}, r, logger); err != nil {
		return fmt.Errorf("scanner.NewProducer: %w", err)
	}
	if _, err := organize.NewWorker(r, logger); err != nil {
		return fmt.Errorf("organize.NewWorker: %w", err)
	}

	runErr := r.Start()
	bar.Stop()

	if fileLog != nil {
		if err := fileLog.Close(); err != nil {
			logger.Error("closing attachment log", "err", err)
			if runErr == nil {
				runErr = err
			}
		}
	}
	return runErr
}

func setupLogger(cfg config.Config) (*slog.Logger, func() error, error) {
	level := new(slog.LevelVar)
	level.Set(slog.LevelInfo)

	switch cfg.LogLevel {
	case "debug":
		level.Set(slog.LevelDebug)
	case "info":
		level.Set(slog.LevelInfo)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	}

	opts := &slog.HandlerOptions{Level: level}
	cleanup := func() error { return nil }

	if cfg.LogDir != "" {
		if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
			return nil, cleanup, err
		}

		logFilePath := filepath.Join(cfg.LogDir, fmt.Sprintf("govsort-%s.log", time.Now().Format("20060102T150405")))
		file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, cleanup, err
		}

		handler := slog.NewTextHandler(io.MultiWriter(os.Stdout, file), opts)
		cleanup = func() error {
			return file.Close()
		}
		return slog.New(handler), cleanup, nil
	}

	handler := slog.NewTextHandler(os.Stdout, opts)
	return slog.New(handler), cleanup, nil
}
