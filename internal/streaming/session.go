package streaming

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/nocsi/drip-api-sub008/internal/pipeline"
	"github.com/nocsi/drip-api-sub008/pkg/models"
	"go.uber.org/zap"
)

// State of a streaming session
type State string

const (
	StateReady      State = "ready"
	StateStreaming  State = "streaming"
	StateFinalizing State = "finalizing"
	StateCompleted  State = "completed"
	StateCancelled  State = "cancelled"
	StateTimedOut   State = "timed_out"
)

// Terminal reports whether no further transitions are possible
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateTimedOut
}

// Limits bound a single session
type Limits struct {
	MaxChunkSize int           `mapstructure:"max_chunk_size"`
	MaxTotalSize int64         `mapstructure:"max_total_size"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// DefaultLimits returns 64 KiB chunks, 100 MiB streams and a 30s idle timeout
func DefaultLimits() Limits {
	return Limits{
		MaxChunkSize: 64 * 1024,
		MaxTotalSize: 100 * 1024 * 1024,
		IdleTimeout:  30 * time.Second,
	}
}

// Config describes how a session scans its stream
type Config struct {
	Mode    models.Mode
	Options models.Options
	Limits  Limits

	// Alerts enables real_time_alert for chunks at or above AlertMinSeverity
	Alerts           bool
	AlertMinSeverity models.Severity
}

func (c Config) withDefaults() Config {
	d := DefaultLimits()
	if c.Mode == "" {
		c.Mode = models.ModeDetect
	}
	if c.Limits.MaxChunkSize <= 0 {
		c.Limits.MaxChunkSize = d.MaxChunkSize
	}
	if c.Limits.MaxTotalSize <= 0 {
		c.Limits.MaxTotalSize = d.MaxTotalSize
	}
	if c.Limits.IdleTimeout <= 0 {
		c.Limits.IdleTimeout = d.IdleTimeout
	}
	if c.AlertMinSeverity == "" {
		c.AlertMinSeverity = models.SeverityHigh
	}
	return c
}

// Session buffers a chunked document and scans it incrementally
type Session struct {
	id     string
	orch   *pipeline.Orchestrator
	logger *zap.Logger
	cfg    Config
	emit   Emitter

	mu        sync.Mutex
	state     State
	buffer    *pipeline.Context
	chunk     *pipeline.Context
	lastSeq   int
	chunks    int
	timer     *time.Timer
	cancelRun context.CancelFunc
	result    *models.Result
	err       error
	started   time.Time
	touched   time.Time
	done      chan struct{}
}

func newSession(id string, orch *pipeline.Orchestrator, logger *zap.Logger, cfg Config, emit Emitter) *Session {
	cfg = cfg.withDefaults()
	if emit == nil {
		emit = func(Message) {}
	}
	s := &Session{
		id:      id,
		orch:    orch,
		logger:  logger.With(zap.String("session", id)),
		cfg:     cfg,
		emit:    emit,
		state:   StateReady,
		buffer:  pipeline.NewContext("", pipeline.Config{Mode: cfg.Mode, Options: cfg.Options}),
		started: time.Now(),
		done:    make(chan struct{}),
	}
	s.touched = s.started
	s.timer = time.AfterFunc(cfg.Limits.IdleTimeout, s.expire)
	return s
}

// ID returns the session identifier
func (s *Session) ID() string {
	return s.id
}

// State returns the current state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Result returns the final result once the session completed successfully
func (s *Session) Result() (*models.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, s.err
}

// BufferedBytes returns the size of the accumulated document
func (s *Session) BufferedBytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.buffer == nil {
		return 0
	}
	return int64(len(s.buffer.Content))
}

// Done is closed when the session reaches a terminal state
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Handle dispatches a client message
func (s *Session) Handle(ctx context.Context, msg ClientMessage) error {
	switch msg.Type {
	case MsgStreamChunk:
		return s.HandleChunk(ctx, msg.Chunk, msg.Sequence)
	case MsgStreamComplete:
		_, err := s.Complete(ctx, msg.FinalSequence)
		return err
	case MsgCancelScan:
		return s.Cancel()
	}
	return fmt.Errorf("%w: %q", ErrUnknownMessageType, msg.Type)
}

// HandleChunk validates and buffers one chunk, then scans the chunk on its
// own. Rejected chunks are reported with chunk_error and never buffered.
func (s *Session) HandleChunk(ctx context.Context, chunk string, seq int) error {
	s.mu.Lock()
	msgs, err := s.handleChunk(ctx, chunk, seq)
	s.mu.Unlock()

	s.send(msgs)
	return err
}

func (s *Session) handleChunk(ctx context.Context, chunk string, seq int) ([]Message, error) {
	reject := func(err error) ([]Message, error) {
		s.logger.Debug("Chunk rejected", zap.Int("sequence", seq), zap.Error(err))
		return []Message{s.message(MsgChunkError, func(m *Message) {
			m.Sequence = seq
			m.Error = err.Error()
		})}, err
	}

	if s.state != StateReady && s.state != StateStreaming {
		return reject(ErrSessionClosed)
	}
	if len(chunk) > s.cfg.Limits.MaxChunkSize {
		return reject(fmt.Errorf("%w: %d > %d bytes", ErrChunkTooLarge, len(chunk), s.cfg.Limits.MaxChunkSize))
	}
	offset := int64(len(s.buffer.Content))
	if offset+int64(len(chunk)) > s.cfg.Limits.MaxTotalSize {
		return reject(fmt.Errorf("%w: limit %d bytes", ErrStreamTooLarge, s.cfg.Limits.MaxTotalSize))
	}
	if !utf8.ValidString(chunk) {
		return reject(ErrInvalidEncoding)
	}
	if s.chunks > 0 && seq <= s.lastSeq {
		return reject(fmt.Errorf("%w: got %d after %d", ErrOutOfOrder, seq, s.lastSeq))
	}

	s.state = StateStreaming
	s.touched = time.Now()
	s.timer.Reset(s.cfg.Limits.IdleTimeout)
	s.buffer.AppendContent(chunk)
	s.lastSeq = seq
	s.chunks++

	msgs := []Message{s.message(MsgChunkAck, func(m *Message) {
		m.Sequence = seq
		m.BufferedBytes = int64(len(s.buffer.Content))
	})}

	// Per-chunk scan in detect mode; the buffer is only scanned on completion
	if s.chunk == nil {
		s.chunk = pipeline.NewContext("", pipeline.Config{Mode: models.ModeDetect, Options: s.cfg.Options})
	} else {
		s.chunk.ResetForNextChunk()
	}
	s.chunk.AppendContent(chunk)

	if err := s.orch.Run(ctx, s.chunk); err != nil {
		return append(msgs, s.message(MsgChunkError, func(m *Message) {
			m.Sequence = seq
			m.Error = err.Error()
		})), err
	}
	if err := s.orch.RunCapabilities(ctx, s.chunk); err != nil {
		return msgs, err
	}

	analysis := &ChunkAnalysis{
		ChunkNumber:     s.chunk.Metadata.ChunkNumber,
		Offset:          offset,
		ThreatCount:     len(s.chunk.Threats),
		CapabilityCount: len(s.chunk.Capabilities),
		ThreatLevel:     s.chunk.ThreatLevel(),
		Threats:         append([]*models.Threat{}, s.chunk.Threats...),
	}
	msgs = append(msgs, s.message(MsgChunkAnalysis, func(m *Message) {
		m.Sequence = seq
		m.Analysis = analysis
	}))

	if s.cfg.Alerts && analysis.ThreatCount > 0 &&
		models.SeverityRank(analysis.ThreatLevel) >= models.SeverityRank(s.cfg.AlertMinSeverity) {
		s.logger.Info("Real-time alert",
			zap.Int("sequence", seq),
			zap.String("threat_level", string(analysis.ThreatLevel)),
			zap.Int("threats", analysis.ThreatCount))
		msgs = append(msgs, s.message(MsgRealTimeAlert, func(m *Message) {
			m.Sequence = seq
			m.Analysis = analysis
		}))
	}

	return msgs, nil
}

// Complete scans the whole buffer and finishes the session. finalSeq must
// match the last accepted chunk.
func (s *Session) Complete(ctx context.Context, finalSeq int) (*models.Result, error) {
	s.mu.Lock()
	if s.state != StateReady && s.state != StateStreaming {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if s.chunks > 0 && finalSeq != s.lastSeq {
		err := fmt.Errorf("%w: final %d, last %d", ErrSequenceMismatch, finalSeq, s.lastSeq)
		msg := s.message(MsgScanError, func(m *Message) {
			m.Sequence = finalSeq
			m.Error = err.Error()
		})
		s.mu.Unlock()
		s.send([]Message{msg})
		return nil, err
	}

	s.state = StateFinalizing
	s.timer.Stop()
	content := s.buffer.Content
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRun = cancel
	s.mu.Unlock()

	result, err := s.orch.Process(runCtx, content, s.cfg.Mode, s.cfg.Options)
	cancel()

	s.mu.Lock()
	if s.state != StateFinalizing {
		// Cancelled while the final scan ran
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	s.cancelRun = nil
	s.state = StateCompleted
	s.buffer = nil
	s.chunk = nil

	var msg Message
	if err != nil {
		s.err = err
		s.logger.Debug("Stream scan failed", zap.Error(err))
		msg = s.message(MsgScanError, func(m *Message) {
			m.Sequence = finalSeq
			m.Error = err.Error()
		})
	} else {
		s.result = result
		summary := &Summary{
			Safe:           result.Safe,
			ThreatLevel:    result.ThreatLevel,
			ThreatCount:    len(result.Threats),
			ChunksReceived: s.chunks,
			BytesReceived:  int64(len(content)),
			DurationMs:     time.Since(s.started).Milliseconds(),
		}
		msg = s.message(MsgScanComplete, func(m *Message) {
			m.Sequence = finalSeq
			m.Result = result
			m.Summary = summary
		})
	}
	close(s.done)
	s.mu.Unlock()

	s.send([]Message{msg})
	return result, err
}

// Cancel aborts the session and discards everything buffered
func (s *Session) Cancel() error {
	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.terminate(StateCancelled)
	msg := s.message(MsgScanCancelled, nil)
	s.mu.Unlock()

	s.logger.Debug("Stream cancelled")
	s.send([]Message{msg})
	return nil
}

// expire fires when no chunk arrived within the idle timeout
func (s *Session) expire() {
	s.mu.Lock()
	if s.state.Terminal() || s.state == StateFinalizing {
		s.mu.Unlock()
		return
	}
	// A chunk may have arrived while this callback waited for the lock
	if time.Since(s.touched) < s.cfg.Limits.IdleTimeout {
		s.mu.Unlock()
		return
	}
	s.terminate(StateTimedOut)
	msg := s.message(MsgStreamTimeout, func(m *Message) {
		m.Error = fmt.Sprintf("no chunk received within %s", s.cfg.Limits.IdleTimeout)
	})
	s.mu.Unlock()

	s.logger.Debug("Stream timed out")
	s.send([]Message{msg})
}

// terminate must be called with the lock held
func (s *Session) terminate(state State) {
	s.state = state
	s.timer.Stop()
	if s.cancelRun != nil {
		s.cancelRun()
		s.cancelRun = nil
	}
	s.buffer = nil
	s.chunk = nil
	s.err = errors.New("session " + string(state))
	close(s.done)
}

func (s *Session) message(t MessageType, fill func(*Message)) Message {
	m := Message{Type: t, SessionID: s.id, Timestamp: time.Now()}
	if fill != nil {
		fill(&m)
	}
	return m
}

func (s *Session) send(msgs []Message) {
	for _, m := range msgs {
		s.emit(m)
	}
}
