package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/nocsi/drip-api-sub008/internal/config"
	"github.com/nocsi/drip-api-sub008/internal/detectors"
	"github.com/nocsi/drip-api-sub008/internal/filesystem"
	"github.com/nocsi/drip-api-sub008/internal/markdown"
	"github.com/nocsi/drip-api-sub008/internal/patterns"
	"github.com/nocsi/drip-api-sub008/internal/pipeline"
	"github.com/nocsi/drip-api-sub008/internal/report"
	"github.com/nocsi/drip-api-sub008/pkg/models"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// reportCmd creates the report command
func reportCmd() *cobra.Command {
	var flags scanFlags

	cmd := &cobra.Command{
		Use:   "report <file>",
		Short: "Analyze a document and export a security report",
		Long: `Run a document through the pipeline in analyze mode and export the risk report.
The report is printed to stdout unless --output is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initLogger(); err != nil {
				return err
			}
			defer logger.Sync()

			if flags.mode == "" {
				flags.mode = string(models.ModeAnalyze)
			}
			if flags.reportFormat == "" {
				flags.reportFormat = report.FormatJSON
			}
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}

			orch, err := newOrchestrator(cfg)
			if err != nil {
				logger.Error("Failed to build pipeline", zap.Error(err))
				return err
			}

			content, err := readInput(args[0], filesystem.ParseSize(cfg.MaxSize))
			if err != nil {
				return err
			}
			mode, err := cfg.PipelineMode()
			if err != nil {
				return err
			}
			result, err := orch.Process(cmd.Context(), content, mode, cfg.Options)
			if err != nil {
				logger.Error("Scan failed", zap.Error(err))
				return err
			}

			if cfg.Report.OutputFile != "" {
				return writeReport(cfg, result, args[0])
			}

			rep := report.Build(result, report.Options{
				MinSeverity: models.Severity(cfg.Report.MinSeverity),
				Source:      args[0],
			})
			format, err := report.NormalizeFormat(cfg.Report.Format)
			if err != nil {
				return err
			}
			data, err := report.Render(rep, format)
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(data)
			return err
		},
	}

	flags.registerPipeline(cmd)
	flags.registerReport(cmd)

	return cmd
}

// documentStats is the stats command output
type documentStats struct {
	*markdown.Document
	LinkChecks []markdown.LinkCheck `json:"link_checks,omitempty"`
}

// statsCmd creates the stats command
func statsCmd() *cobra.Command {
	var checkLinks bool

	cmd := &cobra.Command{
		Use:   "stats <file>",
		Short: "Print document statistics as JSON",
		Long:  `Print word count, reading time, headings, links, code blocks, tasks and front matter.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			content, err := readInput(args[0], filesystem.ParseSize(cfg.MaxSize))
			if err != nil {
				return err
			}

			out := documentStats{Document: markdown.Analyze(content)}
			if checkLinks {
				out.LinkChecks = markdown.ValidateLinks(out.Links)
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	cmd.Flags().BoolVar(&checkLinks, "links", false, "Classify every link target")

	return cmd
}

// patternsCmd creates the patterns command
func patternsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "Inspect the pattern library",
	}

	var (
		strict       bool
		patternsPath string
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List signatures by taxonomy",
		Long:  `Display the detector chain, then every taxonomy with its default severity and signatures.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lib := patterns.Default()
			if patternsPath != "" {
				extended, err := patterns.NewLoader(patternsPath).LoadInto(lib)
				if err != nil {
					return err
				}
				lib = extended
			}
			orch, err := pipeline.NewDefault(zap.NewNop(), lib)
			if err != nil {
				return err
			}
			printDetectors(orch.Detectors())
			printLibrary(lib, strict)
			return nil
		},
	}
	list.Flags().BoolVar(&strict, "strict", false, "Include strict signatures")
	list.Flags().StringVar(&patternsPath, "patterns", "", "YAML file with custom signatures")

	cmd.AddCommand(list)
	return cmd
}

func printDetectors(ds []detectors.Detector) {
	fmt.Printf("%sDETECTORS%s %s(run in this order)%s\n", colorBold, colorReset, colorGray, colorReset)
	for _, d := range ds {
		fmt.Printf("  %s✓%s %-22s %s%-10s%s priority %d\n", colorOrange, colorReset, d.Name(),
			colorCyan, d.Category(), colorReset, d.Priority())
	}
	fmt.Println()
}

func printLibrary(lib *patterns.Library, strict bool) {
	for _, t := range patterns.All {
		if t == patterns.MultiStep {
			seqs := lib.Sequences(strict)
			fmt.Printf("%s%s%s %s(%d sequences, %s)%s\n", colorBold, strings.ToUpper(t.String()), colorReset,
				colorGray, len(seqs), t.DefaultSeverity(), colorReset)
			for _, seq := range seqs {
				fmt.Printf("  %s✓%s %-28s %s\n", colorOrange, colorReset, seq.ID, seq.Name)
			}
			fmt.Println()
			continue
		}

		sigs := lib.Signatures(t, strict)
		fmt.Printf("%s%s%s %s(%d signatures, %s)%s\n", colorBold, strings.ToUpper(t.String()), colorReset,
			colorGray, len(sigs), t.DefaultSeverity(), colorReset)
		for _, sig := range sigs {
			marker := "✓"
			if sig.Level == patterns.LevelStrict {
				marker = "○"
			}
			fmt.Printf("  %s%s%s %-28s %s%-8s%s %s\n", colorOrange, marker, colorReset, sig.ID,
				severityColor(sig.Severity), sig.Severity, colorReset, sig.Name)
		}
		fmt.Println()
	}
	fmt.Printf("%s✓ basic  ○ strict (--strict)%s\n", colorGray, colorReset)
}

// helpCmd creates a detailed help command
func helpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "help",
		Short: "Show detailed help and documentation",
		Long:  `Display complete documentation including all commands, flags, and examples.`,
		Run: func(cmd *cobra.Command, args []string) {
			printMainBanner()

			fmt.Printf("%s%sABOUT%s\n\n", colorBold, colorOrange, colorReset)
			fmt.Printf("  mdguard inspects untrusted markdown before it reaches people or AI agents.\n")
			fmt.Printf("  It finds agent takeover attempts, destructive commands, tool abuse, staged\n")
			fmt.Printf("  multi-step attacks, prompt injection and classic web injection payloads.\n\n")

			fmt.Printf("%s%sCOMMANDS%s\n\n", colorBold, colorOrange, colorReset)
			fmt.Printf("  %sscan <path>%s       Scan a file, stdin (-) or directory\n", colorBold, colorReset)
			fmt.Printf("  %sstream <file>%s     Scan in chunks and print stream messages as JSON lines\n", colorBold, colorReset)
			fmt.Printf("  %sreport <file>%s     Export a risk report (json, html, sarif, md, txt)\n", colorBold, colorReset)
			fmt.Printf("  %sstats <file>%s      Print document statistics\n", colorBold, colorReset)
			fmt.Printf("  %sserve%s             Run the MCP server\n", colorBold, colorReset)
			fmt.Printf("  %spatterns list%s     Show the pattern library\n", colorBold, colorReset)

			fmt.Printf("\n%s%sPIPELINE FLAGS%s\n\n", colorBold, colorOrange, colorReset)
			fmt.Printf("  %s--mode%s <mode>      %ssanitize%s, %sdetect%s, %sanalyze%s (default: detect)\n",
				colorBold, colorReset, colorCyan, colorReset, colorCyan, colorReset, colorCyan, colorReset)
			fmt.Printf("                      sanitize - Redact threats and print cleaned content\n")
			fmt.Printf("                      detect   - Report threats, content unchanged\n")
			fmt.Printf("                      analyze  - Threats, capabilities and optional AI triage\n")
			fmt.Println()
			fmt.Printf("  %s--strict%s           Enable strict signatures\n", colorBold, colorReset)
			fmt.Printf("  %s--polyglot%s         Detect embedded binaries\n", colorBold, colorReset)
			fmt.Printf("  %s--threat-level%s     Drop threats below: low, medium, high, critical\n", colorBold, colorReset)
			fmt.Printf("  %s--max-size%s <size>  Maximum document size (default: 10M)\n", colorBold, colorReset)
			fmt.Printf("  %s--patterns%s <file>  YAML file with custom signatures\n", colorBold, colorReset)
			fmt.Printf("  %s--policy%s <file>    TOML sanitize policy\n", colorBold, colorReset)

			fmt.Printf("\n%s%sSCAN FLAGS%s\n\n", colorBold, colorOrange, colorReset)
			fmt.Printf("  %s--workers%s <n>      Number of parallel workers (default: CPU cores × 2)\n", colorBold, colorReset)
			fmt.Printf("  %s--extensions%s       File extensions to scan (comma-separated)\n", colorBold, colorReset)
			fmt.Printf("  %s--exclude%s          Directories to exclude (comma-separated)\n", colorBold, colorReset)
			fmt.Printf("  %s--hidden%s           Scan hidden files\n", colorBold, colorReset)
			fmt.Printf("  %s--fail%s             Exit non-zero when unsafe content is found\n", colorBold, colorReset)

			fmt.Printf("\n%s%sREPORT FLAGS%s\n\n", colorBold, colorOrange, colorReset)
			fmt.Printf("  %s-r, --report%s <fmt> Report format: %sjson%s, %shtml%s, %ssarif%s, %smd%s, %stxt%s\n",
				colorBold, colorReset, colorCyan, colorReset, colorCyan, colorReset, colorCyan, colorReset, colorCyan, colorReset, colorCyan, colorReset)
			fmt.Printf("  %s-o, --output%s <file> Output file path\n", colorBold, colorReset)
			fmt.Printf("  %s--min-severity%s     Hide reported threats below this severity\n", colorBold, colorReset)

			fmt.Printf("\n%s%sAI TRIAGE FLAGS%s\n\n", colorBold, colorOrange, colorReset)
			fmt.Printf("  %s--ai%s               Ask a model to confirm or dismiss findings\n", colorBold, colorReset)
			fmt.Printf("  %s--ai-model%s <model> %shaiku%s, %ssonnet%s (default), %sopus%s\n",
				colorBold, colorReset, colorCyan, colorReset, colorCyan, colorReset, colorCyan, colorReset)
			fmt.Printf("  %s--ai-token%s <token> Anthropic API token (or set ANTHROPIC_API_KEY env)\n", colorBold, colorReset)
			fmt.Printf("  %s--ai-lang%s <lang>   Explanation language: en, ru, es, de, zh (default: en)\n", colorBold, colorReset)

			fmt.Printf("\n%s%sGLOBAL FLAGS%s\n\n", colorBold, colorOrange, colorReset)
			fmt.Printf("  %s-v, --verbose%s      Enable verbose logging\n", colorBold, colorReset)
			fmt.Printf("  %s--version%s          Print version\n", colorBold, colorReset)

			fmt.Printf("\n%s%sENVIRONMENT%s\n\n", colorBold, colorOrange, colorReset)
			fmt.Printf("  Every setting can be given as MDGUARD_<SECTION>_<KEY>, e.g.\n")
			fmt.Printf("  MDGUARD_MODE=sanitize, MDGUARD_STREAM_IDLE_TIMEOUT=60, MDGUARD_SERVER_TRANSPORT=http\n")

			fmt.Printf("\n%s%sEXAMPLES%s\n\n", colorBold, colorOrange, colorReset)
			fmt.Printf("  %s# Scan a document%s\n", colorGray, colorReset)
			fmt.Printf("  mdguard scan README.md\n\n")
			fmt.Printf("  %s# Sanitize agent output from stdin%s\n", colorGray, colorReset)
			fmt.Printf("  cat plan.md | mdguard scan --mode sanitize -\n\n")
			fmt.Printf("  %s# Scan a docs tree and fail CI on unsafe files%s\n", colorGray, colorReset)
			fmt.Printf("  mdguard scan --fail ./docs\n\n")
			fmt.Printf("  %s# SARIF report for code scanning%s\n", colorGray, colorReset)
			fmt.Printf("  mdguard report -r sarif -o mdguard.sarif notes.md\n\n")
			fmt.Printf("  %s# MCP server over HTTP%s\n", colorGray, colorReset)
			fmt.Printf("  mdguard serve --transport http --addr :8080\n\n")
		},
	}
}
