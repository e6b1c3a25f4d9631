package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/nocsi/drip-api-sub008/internal/config"
	"github.com/nocsi/drip-api-sub008/internal/filesystem"
	"github.com/nocsi/drip-api-sub008/internal/streaming"
	"github.com/nocsi/drip-api-sub008/pkg/models"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// streamCmd creates the stream command
func streamCmd() *cobra.Command {
	var (
		flags     scanFlags
		chunkSize string
		protocol  bool
	)

	cmd := &cobra.Command{
		Use:   "stream <file>",
		Short: "Scan a document chunk by chunk and print stream messages",
		Long: `Feed a file (or stdin with "-") to a streaming session in chunks and print every
session message as a JSON line. With --protocol, stdin carries client messages
(stream_chunk, stream_complete, cancel_scan) as JSON lines instead.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initLogger(); err != nil {
				return err
			}
			defer logger.Sync()

			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			if chunkSize != "" {
				cfg.Stream.ChunkSize = chunkSize
			}

			orch, err := newOrchestrator(cfg)
			if err != nil {
				logger.Error("Failed to build pipeline", zap.Error(err))
				return err
			}

			streamCfg, err := streamConfig(cfg)
			if err != nil {
				return err
			}
			manager := streaming.NewManager(orch, logger, streamCfg)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := newMessageWriter(os.Stdout)
			session := manager.Open(out.Write)
			defer manager.Remove(session.ID())

			if protocol {
				return runProtocol(ctx, session, os.Stdin)
			}

			var in io.Reader = os.Stdin
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("failed to open file: %w", err)
				}
				defer f.Close()
				in = f
			}

			seq := 0
			err = splitChunks(in, int(filesystem.ParseSize(cfg.Stream.ChunkSize)), func(chunk string) error {
				seq++
				return session.HandleChunk(ctx, chunk, seq)
			})
			if err != nil {
				return err
			}
			_, err = session.Complete(ctx, seq)
			logger.Debug("Stream finished", zap.Int("swept", manager.Sweep()))
			return err
		},
	}

	flags.registerPipeline(cmd)
	cmd.Flags().StringVar(&chunkSize, "chunk-size", "", "Chunk size used to split the input (default: 4K)")
	cmd.Flags().BoolVar(&protocol, "protocol", false, "Read client messages as JSON lines from stdin")

	return cmd
}

// streamConfig converts the stream section of the configuration
func streamConfig(cfg *config.Config) (streaming.Config, error) {
	mode, err := cfg.PipelineMode()
	if err != nil {
		return streaming.Config{}, err
	}
	return streaming.Config{
		Mode:    mode,
		Options: cfg.Options,
		Limits: streaming.Limits{
			MaxChunkSize: int(filesystem.ParseSize(cfg.Stream.MaxChunkSize)),
			MaxTotalSize: filesystem.ParseSize(cfg.Stream.MaxTotalSize),
			IdleTimeout:  time.Duration(cfg.Stream.IdleTimeout) * time.Second,
		},
		Alerts:           cfg.Stream.Alerts,
		AlertMinSeverity: models.Severity(cfg.Stream.AlertSeverity),
	}, nil
}

// splitChunks reads r in pieces of at most size bytes. A piece never ends in
// the middle of a UTF-8 sequence; the partial rune moves to the next piece.
func splitChunks(r io.Reader, size int, fn func(string) error) error {
	if size < utf8.UTFMax {
		size = utf8.UTFMax
	}

	buf := make([]byte, size)
	pending := 0
	for {
		n, err := io.ReadFull(r, buf[pending:])
		n += pending
		eof := errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
		if err != nil && !eof {
			return fmt.Errorf("failed to read input: %w", err)
		}

		cut := n
		if !eof {
			cut = runeBoundary(buf[:n])
		}
		if cut > 0 {
			if ferr := fn(string(buf[:cut])); ferr != nil {
				return ferr
			}
		}
		if eof {
			return nil
		}
		pending = copy(buf, buf[cut:n])
	}
}

// runeBoundary returns the length of the longest prefix of b that does not end
// inside a multi-byte rune
func runeBoundary(b []byte) int {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if utf8.RuneStart(b[i]) {
			if utf8.FullRune(b[i:]) {
				return len(b)
			}
			return i
		}
	}
	return len(b)
}

// runProtocol feeds client messages from r to the session until it finishes
func runProtocol(ctx context.Context, session *streaming.Session, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 128*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var msg streaming.ClientMessage
		if err := json.Unmarshal(line, &msg); err != nil {
			logger.Warn("Invalid client message", zap.Error(err))
			continue
		}
		// Rejections are reported to the client as messages
		if err := session.Handle(ctx, msg); err != nil {
			logger.Debug("Client message rejected", zap.String("type", string(msg.Type)), zap.Error(err))
		}
		select {
		case <-session.Done():
			return nil
		default:
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read client messages: %w", err)
	}
	return nil
}

// messageWriter prints session messages as JSON lines
type messageWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func newMessageWriter(w io.Writer) *messageWriter {
	return &messageWriter{enc: json.NewEncoder(w)}
}

func (m *messageWriter) Write(msg streaming.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enc.Encode(msg); err != nil {
		logger.Error("Failed to write stream message", zap.Error(err))
	}
}
