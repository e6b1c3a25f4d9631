package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/nocsi/drip-api-sub008/internal/config"
	"github.com/nocsi/drip-api-sub008/internal/core"
	"github.com/nocsi/drip-api-sub008/internal/filesystem"
	"github.com/nocsi/drip-api-sub008/internal/report"
	"github.com/nocsi/drip-api-sub008/pkg/models"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// errUnsafe is returned with --fail when any scanned document is unsafe
var errUnsafe = errors.New("unsafe content found")

// scanFlags are the CLI overrides shared by scan and report
type scanFlags struct {
	mode         string
	strict       bool
	polyglot     bool
	threatLevel  string
	maxSize      string
	patternsPath string
	policyPath   string

	reportFormat string
	outputFile   string
	minSeverity  string

	workers    int
	extensions []string
	exclude    []string
	hidden     bool

	aiEnabled bool
	aiModel   string
	aiToken   string
	aiLang    string
}

func (f *scanFlags) registerPipeline(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.mode, "mode", "", "Pipeline mode: sanitize, detect, analyze (default: detect)")
	cmd.Flags().BoolVar(&f.strict, "strict", false, "Enable strict signatures")
	cmd.Flags().BoolVar(&f.polyglot, "polyglot", false, "Enable polyglot file detection")
	cmd.Flags().StringVar(&f.threatLevel, "threat-level", "", "Drop threats below this severity: low, medium, high, critical")
	cmd.Flags().StringVar(&f.maxSize, "max-size", "", "Maximum document size (default: 10M)")
	cmd.Flags().StringVar(&f.patternsPath, "patterns", "", "YAML file with custom signatures")
	cmd.Flags().StringVar(&f.policyPath, "policy", "", "TOML sanitize policy")

	cmd.Flags().BoolVar(&f.aiEnabled, "ai", false, "Enable AI triage of findings (implies --mode analyze)")
	cmd.Flags().StringVar(&f.aiModel, "ai-model", "", "AI model: haiku, sonnet, opus (default: sonnet)")
	cmd.Flags().StringVar(&f.aiToken, "ai-token", "", "Anthropic API token (or set ANTHROPIC_API_KEY)")
	cmd.Flags().StringVar(&f.aiLang, "ai-lang", "", "AI explanation language: en, ru, es, de, zh (default: en)")
}

func (f *scanFlags) registerReport(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.reportFormat, "report", "r", "", "Report format: json, html, sarif, md, txt (default: console output)")
	cmd.Flags().StringVarP(&f.outputFile, "output", "o", "", "Output file path")
	cmd.Flags().StringVar(&f.minSeverity, "min-severity", "", "Hide reported threats below this severity")
}

func (f *scanFlags) registerWalk(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.workers, "workers", 0, "Number of worker goroutines (default: CPU cores * 2)")
	cmd.Flags().StringSliceVar(&f.extensions, "extensions", nil, "File extensions to scan (comma-separated)")
	cmd.Flags().StringSliceVar(&f.exclude, "exclude", nil, "Directories to exclude (comma-separated)")
	cmd.Flags().BoolVar(&f.hidden, "hidden", false, "Scan hidden files")
}

// apply overrides the loaded configuration with the flags that were set
func (f *scanFlags) apply(cfg *config.Config) {
	if f.mode != "" {
		cfg.Mode = f.mode
	}
	if f.strict {
		cfg.Options.StrictMode = true
	}
	if f.polyglot {
		cfg.Options.IncludePolyglot = true
	}
	if f.threatLevel != "" {
		cfg.Options.ThreatLevel = models.Severity(f.threatLevel)
	}
	if f.maxSize != "" {
		cfg.MaxSize = f.maxSize
		cfg.Walk.MaxFileSize = f.maxSize
	}
	if f.patternsPath != "" {
		cfg.PatternsPath = f.patternsPath
	}
	if f.policyPath != "" {
		cfg.PolicyPath = f.policyPath
	}
	if f.reportFormat != "" {
		cfg.Report.Format = f.reportFormat
	}
	if f.outputFile != "" {
		cfg.Report.OutputFile = f.outputFile
	}
	if f.minSeverity != "" {
		cfg.Report.MinSeverity = f.minSeverity
	}
	if f.workers > 0 {
		cfg.Walk.Workers = f.workers
	}
	if len(f.extensions) > 0 {
		cfg.Walk.Extensions = f.extensions
	}
	if len(f.exclude) > 0 {
		cfg.Walk.Exclude = f.exclude
	}
	if f.hidden {
		cfg.Walk.ScanHidden = true
	}

	if f.aiEnabled {
		cfg.AI.Enabled = true
	}
	if f.aiModel != "" {
		cfg.AI.Model = f.aiModel
	}
	if f.aiToken != "" {
		cfg.AI.APIToken = f.aiToken
	}
	if f.aiLang != "" {
		cfg.AI.Language = f.aiLang
	}
	// Triage only runs in analyze mode
	if cfg.AI.Enabled {
		cfg.Mode = string(models.ModeAnalyze)
	}
}

// validate checks flag values before anything is loaded
func (f *scanFlags) validate() error {
	return validateFlags(f.mode, f.threatLevel, f.reportFormat, f.minSeverity, f.aiModel, f.aiLang)
}

// loadConfig loads the configuration, applies the flags and validates the result
func (f *scanFlags) loadConfig() (*config.Config, error) {
	if err := f.validate(); err != nil {
		fmt.Printf("\n  %s✗ Invalid parameter:%s %s\n\n", colorRed, colorReset, err.Error())
		return nil, err
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("Failed to load config", zap.Error(err))
		return nil, err
	}
	f.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// scanCmd creates the scan command
func scanCmd() *cobra.Command {
	var (
		flags scanFlags
		fail  bool
	)

	cmd := &cobra.Command{
		Use:   "scan <path>",
		Short: "Scan a markdown file or directory",
		Long: `Scan a single markdown document, stdin ("-") or every markdown file under a directory.
Prints a console summary unless a report format is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]

			if err := initLogger(); err != nil {
				return err
			}
			defer logger.Sync()

			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}

			orch, err := newOrchestrator(cfg)
			if err != nil {
				logger.Error("Failed to build pipeline", zap.Error(err))
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var unsafe bool
			if info, statErr := os.Stat(path); statErr == nil && info.IsDir() {
				if cfg.Report.Format != "" && cfg.Report.Format != "json" {
					return fmt.Errorf("directory scans support console or json output (got: %s)", cfg.Report.Format)
				}
				printBanner(path, cfg.Mode)
				unsafe, err = scanDirectory(ctx, cfg, orch, path)
			} else {
				unsafe, err = scanDocument(ctx, cfg, orch, path)
			}
			if err != nil {
				return err
			}
			if fail && unsafe {
				return errUnsafe
			}
			return nil
		},
	}

	flags.registerPipeline(cmd)
	flags.registerReport(cmd)
	flags.registerWalk(cmd)
	cmd.Flags().BoolVar(&fail, "fail", false, "Exit with an error when unsafe content is found")

	return cmd
}

// scanDocument runs one document through the pipeline and prints or writes
// its report. In sanitize mode without a report format the sanitized content
// is printed instead.
func scanDocument(ctx context.Context, cfg *config.Config, orch core.Processor, path string) (bool, error) {
	content, err := readInput(path, filesystem.ParseSize(cfg.MaxSize))
	if err != nil {
		return false, err
	}

	mode, err := cfg.PipelineMode()
	if err != nil {
		return false, err
	}

	result, err := orch.Process(ctx, content, mode, cfg.Options)
	if err != nil {
		logger.Error("Scan failed", zap.String("path", path), zap.Error(err))
		return false, err
	}

	if mode == models.ModeSanitize && cfg.Report.Format == "" {
		if cfg.Report.OutputFile != "" {
			if err := os.WriteFile(cfg.Report.OutputFile, []byte(result.Content), 0644); err != nil {
				return false, fmt.Errorf("failed to write sanitized content: %w", err)
			}
		} else {
			fmt.Print(result.Content)
		}
		for _, tr := range result.Transformations {
			fmt.Fprintf(os.Stderr, "%s• %s%s\n", colorGray, tr.Description, colorReset)
		}
		return !result.Safe, nil
	}

	source := path
	if path == "-" {
		source = "stdin"
	}
	if err := writeReport(cfg, result, source); err != nil {
		return false, err
	}
	return !result.Safe, nil
}

// writeReport builds the report and prints it or writes it to disk
func writeReport(cfg *config.Config, result *models.Result, source string) error {
	rep := report.Build(result, report.Options{
		MinSeverity: models.Severity(cfg.Report.MinSeverity),
		Source:      source,
	})

	gen := report.NewGenerator(logger)
	reportPath, err := gen.Generate(rep, cfg.Report.Format, cfg.Report.OutputFile)
	if err != nil {
		logger.Error("Failed to generate report", zap.Error(err))
		return err
	}
	if reportPath != "" {
		fmt.Printf("  %sReport:%s    %s%s%s\n\n", colorGray, colorReset, colorOrange, reportPath, colorReset)
	}
	return nil
}

// scanDirectory scans every markdown file under root with a progress display
func scanDirectory(ctx context.Context, cfg *config.Config, orch core.Processor, root string) (bool, error) {
	scanner := core.NewScanner(cfg, orch, logger)

	lastPhase := ""
	scanner.SetProgressCallback(func(phase string, current, total int, message string) {
		if lastPhase == phase && phase == "scanning" {
			fmt.Print("\033[1A\033[K")
		}
		lastPhase = phase

		switch phase {
		case "counting":
			if total > 0 {
				fmt.Printf("  %sFiles:%s      %s\n", colorGray, colorReset, message)
			}
		case "scanning":
			if total > 0 {
				pct := float64(current) / float64(total) * 100
				fmt.Printf("  %sScanning:%s  [%s%s%s] %s%.1f%%%s (%d/%d)\n",
					colorGray, colorReset, colorOrange, progressBar(current, total, 30), colorReset,
					colorOrange, pct, colorReset, current, total)
			}
		}
	})

	results, err := scanner.Scan(ctx, root)
	if err != nil {
		logger.Error("Scan failed", zap.Error(err))
		return false, err
	}

	if cfg.Report.Format == "json" {
		if err := writeBatchJSON(results, cfg.Report.OutputFile); err != nil {
			return false, err
		}
	} else {
		printBatchSummary(results)
	}
	return results.UnsafeFiles > 0, nil
}

// writeBatchJSON writes the batch results to file, or stdout when file is empty
func writeBatchJSON(results *models.BatchResults, file string) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return err
	}
	if file == "" {
		fmt.Println(string(data))
		return nil
	}
	if err := os.WriteFile(file, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	absPath, _ := filepath.Abs(file)
	fmt.Printf("  %sReport:%s    %s%s%s\n\n", colorGray, colorReset, colorOrange, absPath, colorReset)
	return nil
}

// printBatchSummary prints totals and every unsafe file
func printBatchSummary(results *models.BatchResults) {
	fmt.Println()
	fmt.Printf("%s%sSCAN COMPLETE%s\n\n", colorBold, colorOrange, colorReset)
	fmt.Printf("  %sFiles:%s     %d scanned, %d skipped, %d failed\n",
		colorGray, colorReset, results.ScannedFiles, results.SkippedFiles, results.ReadErrors)
	fmt.Printf("  %sDuration:%s  %s\n", colorGray, colorReset, report.FormatDuration(results.Duration))
	fmt.Printf("  %sThreats:%s   %d\n\n", colorGray, colorReset, results.ThreatsFound)

	if results.UnsafeFiles == 0 {
		fmt.Printf("  %s%s✓ No unsafe documents found%s\n\n", colorBold, colorGreen, colorReset)
		return
	}

	fmt.Printf("  %s%s⚠ %d unsafe document(s)%s\n\n", colorBold, colorRed, results.UnsafeFiles, colorReset)
	for _, fr := range results.Files {
		if fr.Error != "" {
			fmt.Printf("  %s✗%s %s %s(%s)%s\n", colorYellow, colorReset, fr.Path, colorGray, fr.Error, colorReset)
			continue
		}
		if fr.Result == nil || fr.Result.Safe {
			continue
		}
		fmt.Printf("  %s%-8s%s %s %s(%d threat(s))%s\n",
			severityColor(fr.Result.ThreatLevel), strings.ToUpper(string(fr.Result.ThreatLevel)), colorReset,
			fr.Path, colorGray, len(fr.Result.Threats), colorReset)
	}
	fmt.Println()
}

func severityColor(s models.Severity) string {
	switch s {
	case models.SeverityCritical:
		return colorRed + colorBold
	case models.SeverityHigh:
		return colorOrange
	case models.SeverityMedium:
		return colorYellow
	}
	return colorGray
}

// validateFlags validates CLI flag values
func validateFlags(mode, threatLevel, reportFormat, minSeverity, aiModel, aiLang string) error {
	if mode != "" {
		if _, err := models.ParseMode(mode); err != nil {
			return fmt.Errorf("--mode must be one of: sanitize, detect, analyze (got: %s)", mode)
		}
	}

	severities := []string{"low", "medium", "high", "critical"}
	if threatLevel != "" && !contains(severities, threatLevel) {
		return fmt.Errorf("--threat-level must be one of: %s (got: %s)", strings.Join(severities, ", "), threatLevel)
	}
	if minSeverity != "" && !contains(severities, minSeverity) {
		return fmt.Errorf("--min-severity must be one of: %s (got: %s)", strings.Join(severities, ", "), minSeverity)
	}

	if reportFormat != "" {
		if _, err := report.NormalizeFormat(reportFormat); err != nil {
			return fmt.Errorf("--report must be one of: json, html, sarif, md, txt (got: %s)", reportFormat)
		}
	}

	if aiModel != "" {
		validModels := []string{"haiku", "sonnet", "opus"}
		if !contains(validModels, aiModel) {
			return fmt.Errorf("--ai-model must be one of: %s (got: %s)", strings.Join(validModels, ", "), aiModel)
		}
	}

	if aiLang != "" {
		validLangs := []string{"en", "ru", "es", "de", "zh"}
		if !contains(validLangs, aiLang) {
			return fmt.Errorf("--ai-lang must be one of: %s (got: %s)", strings.Join(validLangs, ", "), aiLang)
		}
	}

	return nil
}

// printBanner prints the startup banner for directory scans
func printBanner(path string, mode string) {
	printMainBanner()
	fmt.Printf("  %sScanning:%s  %s\n", colorGray, colorReset, path)
	fmt.Printf("  %sMode:%s      %s\n", colorGray, colorReset, mode)
	fmt.Println()
}
