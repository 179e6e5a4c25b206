package bridge

import "errors"

// Reasons a bridge attempt is declined. These are reported in
// Outcome.Reason, not returned as errors.
var (
	// ErrDTMFIntercepted indicates the caller asked for DTMF interception,
	// which a redirected media path cannot honor.
	ErrDTMFIntercepted = errors.New("dtmf interception requested")

	// ErrNoProtocol indicates a channel's technology has no registered protocol.
	ErrNoProtocol = errors.New("no rtp protocol for channel technology")

	// ErrNoSession indicates a channel exposes no rtp session.
	ErrNoSession = errors.New("channel has no rtp session")

	// ErrPrivateNotComparable indicates a channel's TechPrivate value cannot
	// be checked for identity, so a swap could not be detected.
	ErrPrivateNotComparable = errors.New("channel private state is not comparable")
)

// Registry errors.
var (
	// ErrDuplicateTechnology indicates a protocol is already registered for the technology.
	ErrDuplicateTechnology = errors.New("technology already registered")

	// ErrInvalidProtocol indicates a nil protocol or an empty technology name.
	ErrInvalidProtocol = errors.New("invalid protocol")
)
