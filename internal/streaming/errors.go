package streaming

import "errors"

// Protocol errors. Chunk errors leave the session open.
var (
	ErrChunkTooLarge      = errors.New("chunk exceeds maximum chunk size")
	ErrStreamTooLarge     = errors.New("stream exceeds maximum total size")
	ErrInvalidEncoding    = errors.New("chunk is not valid UTF-8")
	ErrOutOfOrder         = errors.New("chunk sequence is not increasing")
	ErrSequenceMismatch   = errors.New("final sequence does not match last chunk")
	ErrSessionClosed      = errors.New("session is closed")
	ErrSessionNotFound    = errors.New("session not found")
	ErrUnknownMessageType = errors.New("unknown message type")
)
