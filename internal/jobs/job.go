package jobs

import (
	"time"

	"github.com/nocsi/drip-api-sub008/pkg/models"
)

// Status of an asynchronous scan
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Done reports whether the job has finished
func (s Status) Done() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Request is the payload of an asynchronous scan
type Request struct {
	Content    string         `json:"content"`
	Mode       models.Mode    `json:"mode"`
	Options    models.Options `json:"options"`
	WebhookURL string         `json:"webhook_url,omitempty"`
}

// Job is a snapshot of an asynchronous scan
type Job struct {
	ID          string         `json:"id"`
	Status      Status         `json:"status"`
	Mode        models.Mode    `json:"mode"`
	Result      *models.Result `json:"-"`
	View        any            `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
	WebhookURL  string         `json:"webhook_url,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	StartedAt   time.Time      `json:"started_at,omitempty"`
	CompletedAt time.Time      `json:"completed_at,omitempty"`
}
