package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nocsi/drip-api-sub008/internal/ai"
	"github.com/nocsi/drip-api-sub008/internal/config"
	"github.com/nocsi/drip-api-sub008/internal/filesystem"
	"github.com/nocsi/drip-api-sub008/internal/patterns"
	"github.com/nocsi/drip-api-sub008/internal/pipeline"
	"github.com/nocsi/drip-api-sub008/internal/report"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ANSI colors
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorRed    = "\033[31m"
	colorOrange = "\033[38;5;208m"
	colorYellow = "\033[38;5;220m"
	colorGray   = "\033[38;5;245m"
	colorCyan   = "\033[36m"
	colorGreen  = "\033[32m"
)

var (
	version = report.ScannerVersion
	logger  *zap.Logger
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "mdguard",
		Short: "mdguard - Security scanner for untrusted markdown",
		Long: `Content-inspection pipeline for markdown written by people and AI agents.
Detects prompt injection, agent takeover, destructive commands and web attack payloads.`,
		Version: version,
		Run: func(cmd *cobra.Command, args []string) {
			printMainBanner()
			cmd.Help()
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	// Disable built-in help command
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	rootCmd.AddCommand(scanCmd())
	rootCmd.AddCommand(streamCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(patternsCmd())
	rootCmd.AddCommand(helpCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// initLogger builds the development logger in verbose mode, otherwise a
// JSON logger that only reports errors
func initLogger() error {
	var err error
	if verbose {
		logger, err = zap.NewDevelopment()
	} else {
		cfg := zap.Config{
			Level:            zap.NewAtomicLevelAt(zapcore.ErrorLevel),
			Encoding:         "json",
			OutputPaths:      []string{"stderr"},
			ErrorOutputPaths: []string{"stderr"},
			EncoderConfig:    zap.NewProductionEncoderConfig(),
		}
		logger, err = cfg.Build()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
	}
	return err
}

// newOrchestrator builds the pipeline from config: custom patterns, sanitize
// policy, size limit and the optional AI reviewer
func newOrchestrator(cfg *config.Config) (*pipeline.Orchestrator, error) {
	lib := patterns.Default()
	if cfg.PatternsPath != "" {
		extended, err := patterns.NewLoader(cfg.PatternsPath).LoadInto(lib)
		if err != nil {
			return nil, fmt.Errorf("failed to load patterns: %w", err)
		}
		lib = extended
		logger.Debug("Custom patterns loaded",
			zap.String("path", cfg.PatternsPath),
			zap.Int("signatures", lib.Len()))
	}

	opts := []pipeline.Option{
		pipeline.WithMaxContentSize(int(filesystem.ParseSize(cfg.MaxSize))),
	}

	if cfg.PolicyPath != "" {
		policy, err := pipeline.LoadPolicy(cfg.PolicyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load sanitize policy: %w", err)
		}
		opts = append(opts, pipeline.WithPolicy(policy))
	}

	if cfg.AI.Enabled {
		analyzer, err := ai.NewAnalyzer(&cfg.AI, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize AI triage: %w", err)
		}
		opts = append(opts, pipeline.WithReviewer(analyzer))
	}

	return pipeline.NewDefault(logger, lib, opts...)
}

// readInput reads a document from a path, or stdin when path is "-"
func readInput(path string, maxSize int64) (string, error) {
	if path == "-" {
		data, err := readLimited(os.Stdin, maxSize)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}
	file, err := filesystem.ReadDocument(path, maxSize)
	if err != nil {
		return "", err
	}
	return string(file.Content), nil
}

// readLimited reads r fully, failing once more than maxSize bytes arrive
func readLimited(r io.Reader, maxSize int64) ([]byte, error) {
	if maxSize <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, maxSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxSize {
		return nil, fmt.Errorf("input exceeds %d bytes", maxSize)
	}
	return data, nil
}

// contains checks if a slice contains a string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// progressBar renders a fixed width bar for current out of total
func progressBar(current, total, width int) string {
	if total <= 0 {
		return strings.Repeat("░", width)
	}
	filled := width * current / total
	if filled > width {
		filled = width
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// printMainBanner prints the main banner
func printMainBanner() {
	fmt.Println()
	fmt.Printf("%s%smdguard%s %sv%s%s\n", colorBold, colorOrange, colorReset, colorGray, version, colorReset)
	fmt.Printf("%sMarkdown security scanner%s\n", colorGray, colorReset)
	fmt.Println()
}
