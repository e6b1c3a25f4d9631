package streaming

import (
	"time"

	"github.com/nocsi/drip-api-sub008/pkg/models"
)

// MessageType identifies a server or client message
type MessageType string

// Server messages
const (
	MsgChunkAck      MessageType = "chunk_ack"
	MsgChunkError    MessageType = "chunk_error"
	MsgChunkAnalysis MessageType = "chunk_analysis"
	MsgRealTimeAlert MessageType = "real_time_alert"
	MsgScanComplete  MessageType = "scan_complete"
	MsgScanError     MessageType = "scan_error"
	MsgScanCancelled MessageType = "scan_cancelled"
	MsgStreamTimeout MessageType = "stream_timeout"
)

// Client messages
const (
	MsgStreamChunk    MessageType = "stream_chunk"
	MsgStreamComplete MessageType = "stream_complete"
	MsgCancelScan     MessageType = "cancel_scan"
)

// Message is sent from a session to its client
type Message struct {
	Type          MessageType    `json:"type"`
	SessionID     string         `json:"session_id"`
	Sequence      int            `json:"sequence,omitempty"`
	Error         string         `json:"error,omitempty"`
	BufferedBytes int64          `json:"buffered_bytes,omitempty"`
	Analysis      *ChunkAnalysis `json:"analysis,omitempty"`
	Result        *models.Result `json:"result,omitempty"`
	Summary       *Summary       `json:"summary,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
}

// ChunkAnalysis is the detector output for a single chunk. Threat offsets are
// relative to the chunk; Offset is the chunk's position in the buffer.
type ChunkAnalysis struct {
	ChunkNumber     int              `json:"chunk_number"`
	Offset          int64            `json:"offset"`
	ThreatCount     int              `json:"threat_count"`
	CapabilityCount int              `json:"capability_count"`
	ThreatLevel     models.Severity  `json:"threat_level"`
	Threats         []*models.Threat `json:"threats,omitempty"`
}

// Summary accompanies the final result
type Summary struct {
	Safe           bool            `json:"safe"`
	ThreatLevel    models.Severity `json:"threat_level"`
	ThreatCount    int             `json:"threat_count"`
	ChunksReceived int             `json:"chunks_received"`
	BytesReceived  int64           `json:"bytes_received"`
	DurationMs     int64           `json:"duration_ms"`
}

// ClientMessage is sent from a client to a session
type ClientMessage struct {
	Type          MessageType `json:"type"`
	Chunk         string      `json:"chunk,omitempty"`
	Sequence      int         `json:"sequence,omitempty"`
	FinalSequence int         `json:"final_sequence,omitempty"`
}

// Emitter delivers server messages. It is called without the session lock
// held, in the order messages were produced by a single call.
type Emitter func(Message)
