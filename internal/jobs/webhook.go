package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// WebhookNotifier POSTs finished jobs to the URL the submitter gave
type WebhookNotifier struct {
	client *resty.Client
}

// WebhookConfig tunes webhook delivery
type WebhookConfig struct {
	Timeout       time.Duration `mapstructure:"timeout"`
	RetryCount    int           `mapstructure:"retry_count"`
	RetryWaitTime time.Duration `mapstructure:"retry_wait_time"`
}

// NewWebhookNotifier creates a notifier backed by a resty client
func NewWebhookNotifier(logger *zap.Logger, cfg WebhookConfig) *WebhookNotifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RetryWaitTime <= 0 {
		cfg.RetryWaitTime = 500 * time.Millisecond
	}

	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(cfg.RetryWaitTime).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "mdguard-webhook")
	if logger != nil {
		client.SetLogger(newRestyLogger(logger))
	}
	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		return err != nil || r.StatusCode() >= 500
	})

	return &WebhookNotifier{client: client}
}

// Notify delivers the job snapshot
func (w *WebhookNotifier) Notify(ctx context.Context, job Job) error {
	resp, err := w.client.R().
		SetContext(ctx).
		SetBody(job).
		Post(job.WebhookURL)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("webhook returned %s", resp.Status())
	}
	return nil
}

// restyLogger forwards resty diagnostics to zap
type restyLogger struct {
	logger *zap.SugaredLogger
}

func newRestyLogger(logger *zap.Logger) resty.Logger {
	return &restyLogger{logger: logger.Named("webhook").Sugar()}
}

func (l *restyLogger) Errorf(format string, v ...interface{}) {
	l.logger.Errorf(format, v...)
}

func (l *restyLogger) Warnf(format string, v ...interface{}) {
	l.logger.Warnf(format, v...)
}

func (l *restyLogger) Debugf(format string, v ...interface{}) {
	l.logger.Debugf(format, v...)
}
