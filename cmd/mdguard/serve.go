package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nocsi/drip-api-sub008/internal/jobs"
	"github.com/nocsi/drip-api-sub008/internal/mcpserver"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// serveCmd creates the serve command
func serveCmd() *cobra.Command {
	var (
		flags     scanFlags
		transport string
		addr      string
		path      string
		workers   int
		webhook   string
		noJobs    bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server",
		Long: `Expose scan_markdown, security_report and document_stats as MCP tools over stdio
or streamable HTTP. Unless --no-jobs is set, submit_scan and get_scan_job run
scans on a background job queue.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initLogger(); err != nil {
				return err
			}
			defer logger.Sync()

			if transport != "" && !contains([]string{"stdio", "http"}, transport) {
				return fmt.Errorf("--transport must be one of: stdio, http (got: %s)", transport)
			}

			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			if transport != "" {
				cfg.Server.Transport = transport
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if path != "" {
				cfg.Server.Path = path
			}
			if workers > 0 {
				cfg.Jobs.Workers = workers
			}
			if webhook != "" {
				cfg.Jobs.WebhookURL = webhook
			}

			orch, err := newOrchestrator(cfg)
			if err != nil {
				logger.Error("Failed to build pipeline", zap.Error(err))
				return err
			}

			srv := mcpserver.New(orch, cfg.Server, cfg.Options, logger)

			sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithCancel(sigCtx)
			defer cancel()

			g, gctx := errgroup.WithContext(ctx)

			if !noJobs {
				notifier := jobs.NewWebhookNotifier(logger, jobs.WebhookConfig{
					Timeout:    time.Duration(cfg.Jobs.WebhookTimeout) * time.Second,
					RetryCount: cfg.Jobs.WebhookRetries,
				})
				queue := jobs.NewQueue(orch, logger,
					jobs.WithWorkers(cfg.Jobs.Workers),
					jobs.WithCapacity(cfg.Jobs.QueueSize),
					jobs.WithJobTimeout(time.Duration(cfg.Jobs.Timeout)*time.Second),
					jobs.WithRetention(time.Duration(cfg.Jobs.Retention)*time.Second),
					jobs.WithNotifier(notifier),
				)
				queue.Start(gctx)
				srv.EnableJobs(queue, cfg.Jobs.WebhookURL)

				g.Go(func() error {
					<-gctx.Done()
					return queue.Shutdown()
				})
			}

			g.Go(func() error {
				// The stdio transport returns when the client disconnects
				defer cancel()
				return srv.Run(gctx)
			})

			logger.Info("MCP server running",
				zap.String("transport", cfg.Server.Transport),
				zap.Bool("jobs", !noJobs))

			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("MCP server failed", zap.Error(err))
				return err
			}
			return nil
		},
	}

	flags.registerPipeline(cmd)
	cmd.Flags().StringVar(&transport, "transport", "", "MCP transport: stdio, http (default: stdio)")
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address for the http transport (default: :8080)")
	cmd.Flags().StringVar(&path, "path", "", "Endpoint path for the http transport (default: /mcp)")
	cmd.Flags().IntVar(&workers, "workers", 0, "Job queue workers (default: CPU cores)")
	cmd.Flags().StringVar(&webhook, "webhook", "", "Default completion webhook for queued scans")
	cmd.Flags().BoolVar(&noJobs, "no-jobs", false, "Disable the background job queue tools")

	return cmd
}
