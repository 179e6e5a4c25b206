package rtp

import "fmt"

// FrameType classifies a Frame.
type FrameType int

const (
	// FrameNull carries nothing; the caller should ignore it.
	FrameNull FrameType = iota
	// FrameVoice carries encoded audio in Format.
	FrameVoice
	// FrameDTMF carries a single decoded digit in Digit.
	FrameDTMF
	// FrameControl carries a signaling indication from the channel core.
	FrameControl
)

func (t FrameType) String() string {
	switch t {
	case FrameNull:
		return "null"
	case FrameVoice:
		return "voice"
	case FrameDTMF:
		return "dtmf"
	case FrameControl:
		return "control"
	}
	return fmt.Sprintf("frametype(%d)", int(t))
}

// frameSource tags frames produced by this package.
const frameSource = "RTP"

// Frame is the unit exchanged between a Session and the channel core.
// Frames returned by Read own their Data; retaining them is safe.
type Frame struct {
	Type           FrameType
	Format         Format
	Data           []byte
	Samples        int
	Timestamp      uint32
	SequenceNumber uint16
	Marker         bool
	Digit          byte
	Source         string
}

// NullFrame returns a frame the caller should discard.
func NullFrame() *Frame {
	return &Frame{Type: FrameNull, Source: frameSource}
}

// IsNull reports whether f is nil or a null frame.
func (f *Frame) IsNull() bool {
	return f == nil || f.Type == FrameNull
}

// NewVoiceFrame builds an outgoing voice frame in format f.
func NewVoiceFrame(f Format, data []byte) *Frame {
	samples, _ := SampleCount(f, data)
	return &Frame{Type: FrameVoice, Format: f, Data: data, Samples: samples}
}

func dtmfFrame(digit byte) *Frame {
	return &Frame{Type: FrameDTMF, Digit: digit, Source: frameSource}
}
