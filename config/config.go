package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Config captures all options required to run the organizer.
type Config struct {
	InputDir      string
	OutputDir     string
	GovSuffix     string
	MaxDepth      int
	DryRun        bool
	LogDir        string
	LogLevel      string
	IncludeHeader []string
	IncludeBody   []string
	ExcludeHeader []string
	ExcludeBody   []string
}

// fileConfig mirrors the YAML config file. File values act as defaults;
// explicit flags win.
type fileConfig struct {
	Input     string `yaml:"input"`
	Output    string `yaml:"output"`
	GovSuffix string `yaml:"gov_suffix"`
	MaxDepth  int    `yaml:"max_depth"`
	LogDir    string `yaml:"log_dir"`
	LogLevel  string `yaml:"log_level"`
}

// RegisterFlags attaches all CLI flags to the provided command.
func RegisterFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("input", "", "Root directory to scan for exported email files")
	flags.String("output", "", "Root directory for the reorganized tree")
	flags.String("gov-suffix", ".gov.uk", "Domain suffix a message must touch to qualify")
	flags.Int("max-depth", 8, "Recursion bound for nested email attachments")
	flags.Bool("dry-run", false, "Report what would be copied without writing anything")
	flags.String("log-dir", "", "Directory for the run log file (stdout only when empty)")
	flags.String("log-level", "info", "Logging level: debug, info, warn, error")
	flags.String("config", "", "Optional YAML config file; explicit flags take precedence")
	flags.StringArray("include-header", nil, "Regex allow-list applied to extracted headers (mutually exclusive with exclude flags)")
	flags.StringArray("include-body", nil, "Regex allow-list applied to raw file content (mutually exclusive with exclude flags)")
	flags.StringArray("exclude-header", nil, "Regex block-list applied to extracted headers (mutually exclusive with include flags)")
	flags.StringArray("exclude-body", nil, "Regex block-list applied to raw file content (mutually exclusive with include flags)")
}

// LoadConfig converts the parsed Cobra flags, layered over an optional YAML
// file, into a Config struct with validation.
func LoadConfig(cmd *cobra.Command) (Config, error) {
	flags := cmd.Flags()

	inputDir, err := flags.GetString("input")
	if err != nil {
		return Config{}, err
	}
	outputDir, err := flags.GetString("output")
	if err != nil {
		return Config{}, err
	}
	govSuffix, err := flags.GetString("gov-suffix")
	if err != nil {
		return Config{}, err
	}
	maxDepth, err := flags.GetInt("max-depth")
	if err != nil {
		return Config{}, err
	}
	dryRun, err := flags.GetBool("dry-run")
	if err != nil {
		return Config{}, err
	}
	logDir, err := flags.GetString("log-dir")
	if err != nil {
		return Config{}, err
	}
	logLevel, err := flags.GetString("log-level")
	if err != nil {
		return Config{}, err
	}
	configFile, err := flags.GetString("config")
	if err != nil {
		return Config{}, err
	}
	includeHeader, err := flags.GetStringArray("include-header")
	if err != nil {
		return Config{}, err
	}
	includeBody, err := flags.GetStringArray("include-body")
	if err != nil {
		return Config{}, err
	}
	excludeHeader, err := flags.GetStringArray("exclude-header")
	if err != nil {
		return Config{}, err
	}
	excludeBody, err := flags.GetStringArray("exclude-body")
	if err != nil {
		return Config{}, err
	}

	if configFile != "" {
		fc, err := loadFile(configFile)
		if err != nil {
			return Config{}, err
		}
		if !flags.Changed("input") && fc.Input != "" {
			inputDir = fc.Input
		}
		if !flags.Changed("output") && fc.Output != "" {
			outputDir = fc.Output
		}
		if !flags.Changed("gov-suffix") && fc.GovSuffix != "" {
			govSuffix = fc.GovSuffix
		}
		if !flags.Changed("max-depth") && fc.MaxDepth > 0 {
			maxDepth = fc.MaxDepth
		}
		if !flags.Changed("log-dir") && fc.LogDir != "" {
			logDir = fc.LogDir
		}
		if !flags.Changed("log-level") && fc.LogLevel != "" {
			logLevel = fc.LogLevel
		}
	}

	logLevel = strings.ToLower(logLevel)
	if logLevel == "warning" {
		logLevel = "warn"
	}

	if inputDir == "" {
		return Config{}, fmt.Errorf("--input is required")
	}
	if outputDir == "" {
		return Config{}, fmt.Errorf("--output is required")
	}

	cfg := Config{
		InputDir:      filepath.Clean(inputDir),
		OutputDir:     filepath.Clean(outputDir),
		GovSuffix:     strings.ToLower(govSuffix),
		MaxDepth:      maxDepth,
		DryRun:        dryRun,
		LogDir:        logDir,
		LogLevel:      logLevel,
		IncludeHeader: includeHeader,
		IncludeBody:   includeBody,
		ExcludeHeader: excludeHeader,
		ExcludeBody:   excludeBody,
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func loadFile(path string) (fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return fileConfig{}, fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fileConfig{}, fmt.Errorf("parse config file: %w", err)
	}
	return fc, nil
}

func validateConfig(cfg Config) error {
	if !strings.HasPrefix(cfg.GovSuffix, ".") {
		return fmt.Errorf("--gov-suffix must start with a dot")
	}
	if cfg.MaxDepth <= 0 {
		return fmt.Errorf("--max-depth must be positive")
	}

	includeActive := len(cfg.IncludeHeader) > 0 || len(cfg.IncludeBody) > 0
	excludeActive := len(cfg.ExcludeHeader) > 0 || len(cfg.ExcludeBody) > 0
	if includeActive && excludeActive {
		return fmt.Errorf("include and exclude flags are mutually exclusive")
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid --log-level: %s", cfg.LogLevel)
	}

	return nil
}
