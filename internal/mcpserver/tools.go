package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nocsi/drip-api-sub008/internal/markdown"
	"github.com/nocsi/drip-api-sub008/internal/report"
	"github.com/nocsi/drip-api-sub008/pkg/models"
	"go.uber.org/zap"
)

// scanArgs are the arguments shared by scan_markdown and security_report
type scanArgs struct {
	Content         string  `json:"content"`
	Mode            string  `json:"mode"`
	StrictMode      *bool   `json:"strict_mode"`
	IncludePolyglot *bool   `json:"include_polyglot"`
	ThreatLevel     string  `json:"threat_level"`
	AIOptimization  *bool   `json:"ai_optimization"`
	Format          string  `json:"format"`
	MinSeverity     string  `json:"min_severity"`
	Source          *string `json:"source"`
}

var contentSchema = map[string]any{
	"type":        "string",
	"description": "Markdown document to scan",
}

var optionProperties = map[string]any{
	"content": contentSchema,
	"mode": map[string]any{
		"type": "string",
		"enum": []string{"sanitize", "detect", "analyze"},
	},
	"strict_mode":      map[string]any{"type": "boolean"},
	"include_polyglot": map[string]any{"type": "boolean"},
	"ai_optimization":  map[string]any{"type": "boolean"},
	"threat_level": map[string]any{
		"type": "string",
		"enum": []string{"critical", "high", "medium", "low", "none"},
	},
}

func (s *Server) registerTools() {
	s.Server.AddTool(&mcp.Tool{
		Name:        "scan_markdown",
		Description: "Scan a markdown document for agent takeover, injection, homograph and polyglot threats",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": optionProperties,
			"required":   []string{"content"},
		},
	}, s.scanMarkdown)

	reportProps := map[string]any{
		"format": map[string]any{
			"type": "string",
			"enum": []string{"json", "md", "sarif", "html", "txt"},
		},
		"min_severity": map[string]any{"type": "string"},
		"source":       map[string]any{"type": "string"},
	}
	for k, v := range optionProperties {
		reportProps[k] = v
	}
	s.Server.AddTool(&mcp.Tool{
		Name:        "security_report",
		Description: "Scan a markdown document and return a risk report with OWASP and compliance mappings",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": reportProps,
			"required":   []string{"content"},
		},
	}, s.securityReport)

	s.Server.AddTool(&mcp.Tool{
		Name:        "document_stats",
		Description: "Count words, headings, links, code blocks and tasks in a markdown document",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"content": contentSchema},
			"required":   []string{"content"},
		},
	}, s.documentStats)
}

func (s *Server) scanMarkdown(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := decodeArgs(req)
	if err != nil {
		return toolError(err), nil
	}
	res, err := s.process(ctx, args)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(res.View())
}

func (s *Server) securityReport(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := decodeArgs(req)
	if err != nil {
		return toolError(err), nil
	}
	if args.Mode == "" {
		args.Mode = string(models.ModeAnalyze)
	}
	format := args.Format
	if format == "" {
		format = report.FormatJSON
	}
	if _, err := report.NormalizeFormat(format); err != nil {
		return toolError(err), nil
	}

	opts := report.Options{Source: "document.md"}
	if args.Source != nil {
		opts.Source = *args.Source
	}
	if args.MinSeverity != "" {
		sev, ok := models.ParseSeverity(args.MinSeverity)
		if !ok {
			return toolError(fmt.Errorf("invalid min_severity: %q", args.MinSeverity)), nil
		}
		opts.MinSeverity = sev
	}

	res, err := s.process(ctx, args)
	if err != nil {
		return toolError(err), nil
	}
	data, err := report.Render(report.Build(res, opts), format)
	if err != nil {
		return nil, err
	}
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: string(data)}}}, nil
}

func (s *Server) documentStats(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := decodeArgs(req)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(markdown.Analyze(args.Content))
}

func (s *Server) process(ctx context.Context, args *scanArgs) (*models.Result, error) {
	mode := models.ModeDetect
	if args.Mode != "" {
		m, err := models.ParseMode(args.Mode)
		if err != nil {
			return nil, err
		}
		mode = m
	}

	opts, err := s.options(args)
	if err != nil {
		return nil, err
	}

	res, err := s.orch.Process(ctx, args.Content, mode, opts)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("Tool scan complete",
		zap.String("mode", string(mode)),
		zap.Int("threats", len(res.Threats)))
	return res, nil
}

// options overlays the per-call flags on the server defaults
func (s *Server) options(args *scanArgs) (models.Options, error) {
	opts := s.defaults
	if args.StrictMode != nil {
		opts.StrictMode = *args.StrictMode
	}
	if args.IncludePolyglot != nil {
		opts.IncludePolyglot = *args.IncludePolyglot
	}
	if args.AIOptimization != nil {
		opts.AIOptimization = *args.AIOptimization
	}
	if args.ThreatLevel != "" {
		sev, ok := models.ParseSeverity(args.ThreatLevel)
		if !ok {
			return opts, fmt.Errorf("invalid threat_level: %q", args.ThreatLevel)
		}
		opts.ThreatLevel = sev
	}
	return opts, nil
}

func decodeArgs(req *mcp.CallToolRequest) (*scanArgs, error) {
	var args scanArgs
	if len(req.Params.Arguments) == 0 {
		return &args, nil
	}
	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	return &args, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: string(data)}}}, nil
}

func toolError(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
		IsError: true,
	}
}
