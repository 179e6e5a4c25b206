package bridge

import (
	"fmt"

	"github.com/opd-ai/rtpbridge/av/rtp"
)

// Channel is the view of a call leg the bridge needs.
type Channel interface {
	// Name identifies the channel in logs.
	Name() string
	// Technology selects the Protocol used for this channel.
	Technology() string
	// TechPrivate returns the technology's private state, typically a
	// pointer. A change while bridged means the channel was swapped out.
	// Maps, slices, funcs and channels are compared by identity; other
	// values must be comparable or the bridge is declined.
	TechPrivate() any
	// Masquerading reports whether a channel swap is in progress.
	Masquerading() bool
	// SoftHangup reports whether the channel has been asked to hang up.
	SoftHangup() bool
	// Frames delivers frames read from the channel. It is closed on hangup.
	Frames() <-chan *rtp.Frame
	// WriteFrame sends a frame out of the channel.
	WriteFrame(f *rtp.Frame) error
}

// Protocol is the capability a channel technology registers to take part in
// native bridging.
type Protocol interface {
	// Technology is the name the protocol is registered under.
	Technology() string
	// RTPSession returns the channel's media session, or nil.
	RTPSession(c Channel) *rtp.Session
	// SetRTPPeer points the channel's media at peer. A nil peer reverts to
	// the channel's own routing.
	SetRTPPeer(c Channel, peer *rtp.Session) error
}

// Flags tune a bridge attempt.
type Flags uint8

const (
	// InterceptDTMF0 asks for DTMF from the first channel to end the bridge.
	InterceptDTMF0 Flags = 1 << iota
	// InterceptDTMF1 asks for DTMF from the second channel to end the bridge.
	InterceptDTMF1
)

// Result classifies how a bridge attempt finished.
type Result int

const (
	// ResultEnded means the bridge ran and stopped on a hangup or
	// intercepted frame.
	ResultEnded Result = iota
	// ResultDeclined means preconditions were not met; relay frames instead.
	ResultDeclined
	// ResultRetry means a channel changed underneath the bridge.
	ResultRetry
)

func (r Result) String() string {
	switch r {
	case ResultEnded:
		return "ended"
	case ResultDeclined:
		return "declined"
	case ResultRetry:
		return "retry"
	}
	return fmt.Sprintf("result(%d)", int(r))
}

// State is the bridge state reported to Bridger.OnStateChange.
type State int

const (
	// StateBridging is entered once both sides have been redirected.
	StateBridging State = iota
	// StateEnded is entered when the bridge unwinds for any reason.
	StateEnded
)

func (s State) String() string {
	if s == StateBridging {
		return "bridging"
	}
	return "ended"
}

// Outcome describes the end of a bridge attempt.
type Outcome struct {
	Result Result
	// Frame is the frame that ended the bridge, nil on hangup.
	Frame *rtp.Frame
	// Who is the channel that produced Frame or hung up.
	Who Channel
	// Reason explains a declined attempt.
	Reason error
}
