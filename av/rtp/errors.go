package rtp

import "errors"

// Sentinel errors for rtp package operations.
// These errors enable reliable error classification using errors.Is().

// Session lifecycle errors.
var (
	// ErrSessionClosed indicates the session has been closed.
	ErrSessionClosed = errors.New("rtp session closed")

	// ErrNoPortAvailable indicates the even-port search found no free port.
	ErrNoPortAvailable = errors.New("no free even rtp port")

	// ErrInvalidPortRange indicates the configured port range holds no even port.
	ErrInvalidPortRange = errors.New("invalid rtp port range")

	// ErrCallbackMode indicates Read was called on a session driven by a poller.
	ErrCallbackMode = errors.New("session is driven by a poller")
)

// Transmit errors.
var (
	// ErrNotVoice indicates a non-voice frame was given to Write.
	ErrNotVoice = errors.New("rtp can only send voice frames")

	// ErrUnsupportedFormat indicates the format has no payload-type mapping.
	ErrUnsupportedFormat = errors.New("format has no rtp payload type")

	// ErrInvalidDigit indicates a DTMF digit outside 0-9, *, #, A-D.
	ErrInvalidDigit = errors.New("invalid dtmf digit")
)
