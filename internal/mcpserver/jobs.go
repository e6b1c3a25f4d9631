package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nocsi/drip-api-sub008/internal/jobs"
	"github.com/nocsi/drip-api-sub008/pkg/models"
)

type submitArgs struct {
	scanArgs
	WebhookURL string `json:"webhook_url"`
}

type jobArgs struct {
	JobID string `json:"job_id"`
	Wait  bool   `json:"wait"`
}

// EnableJobs registers submit_scan and get_scan_job backed by q. A non-empty
// defaultWebhook is used when the caller gives none.
func (s *Server) EnableJobs(q *jobs.Queue, defaultWebhook string) {
	submitProps := map[string]any{
		"webhook_url": map[string]any{"type": "string", "format": "uri"},
	}
	for k, v := range optionProperties {
		submitProps[k] = v
	}

	s.Server.AddTool(&mcp.Tool{
		Name:        "submit_scan",
		Description: "Queue a markdown scan and return its job id",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": submitProps,
			"required":   []string{"content"},
		},
	}, func(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args submitArgs
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
				return toolError(fmt.Errorf("invalid arguments: %w", err)), nil
			}
		}
		opts, err := s.options(&args.scanArgs)
		if err != nil {
			return toolError(err), nil
		}
		webhook := args.WebhookURL
		if webhook == "" {
			webhook = defaultWebhook
		}

		id, err := q.Submit(jobs.Request{
			Content:    args.Content,
			Mode:       models.Mode(args.Mode),
			Options:    opts,
			WebhookURL: webhook,
		})
		if err != nil {
			return toolError(err), nil
		}
		return jsonResult(map[string]string{"job_id": id, "status": string(jobs.StatusQueued)})
	})

	s.Server.AddTool(&mcp.Tool{
		Name:        "get_scan_job",
		Description: "Return the status and result of a queued scan",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"job_id": map[string]any{"type": "string"},
				"wait":   map[string]any{"type": "boolean"},
			},
			"required": []string{"job_id"},
		},
	}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args jobArgs
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
				return toolError(fmt.Errorf("invalid arguments: %w", err)), nil
			}
		}

		var job jobs.Job
		var err error
		if args.Wait {
			job, err = q.Wait(ctx, args.JobID)
		} else {
			job, err = q.Get(args.JobID)
		}
		if err != nil {
			return toolError(err), nil
		}
		return jsonResult(job)
	})
}
