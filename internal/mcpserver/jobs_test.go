package mcpserver

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/nocsi/drip-api-sub008/internal/config"
	"github.com/nocsi/drip-api-sub008/internal/jobs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newJobServer(t *testing.T) *Server {
	t.Helper()
	s := newServer(t, config.ServerConfig{})
	q := jobs.NewQueue(s.orch, zap.NewNop(), jobs.WithWorkers(2), jobs.WithCapacity(8))
	ctx, cancel := context.WithCancel(context.Background())
	q.Start(ctx)
	t.Cleanup(func() {
		_ = q.Shutdown()
		cancel()
	})
	s.EnableJobs(q, "")
	return s
}

func TestJobToolsListed(t *testing.T) {
	session := connect(t, newJobServer(t))

	var names []string
	for tool, err := range session.Tools(context.Background(), nil) {
		require.NoError(t, err)
		names = append(names, tool.Name)
	}
	assert.Contains(t, names, "submit_scan")
	assert.Contains(t, names, "get_scan_job")
}

func TestSubmitAndWait(t *testing.T) {
	session := connect(t, newJobServer(t))

	text, isErr := callText(t, session, "submit_scan", map[string]any{"content": personalityDoc})
	require.False(t, isErr, text)

	var submitted map[string]string
	require.NoError(t, json.Unmarshal([]byte(text), &submitted))
	assert.Equal(t, "queued", submitted["status"])
	require.NotEmpty(t, submitted["job_id"])

	text, isErr = callText(t, session, "get_scan_job", map[string]any{"job_id": submitted["job_id"], "wait": true})
	require.False(t, isErr, text)

	var job struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Result struct {
			Safe    bool              `json:"safe"`
			Threats []json.RawMessage `json:"threats"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(text), &job))
	assert.Equal(t, submitted["job_id"], job.ID)
	assert.Equal(t, "completed", job.Status)
	assert.False(t, job.Result.Safe)
	assert.NotEmpty(t, job.Result.Threats)
}

func TestJobToolErrors(t *testing.T) {
	session := connect(t, newJobServer(t))

	tests := []struct {
		name string
		tool string
		args map[string]any
		want string
	}{
		{"unknown mode", "submit_scan", map[string]any{"content": "x", "mode": "shred"}, "mode"},
		{"bad threat level", "submit_scan", map[string]any{"content": "x", "threat_level": "extreme"}, "threat_level"},
		{"unknown job", "get_scan_job", map[string]any{"job_id": "missing"}, "job not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, isErr := callText(t, session, tt.tool, tt.args)
			assert.True(t, isErr)
			assert.Contains(t, text, tt.want)
		})
	}
}
