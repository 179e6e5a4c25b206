package rtp

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComfortNoise(t *testing.T) {
	tests := []struct {
		name     string
		voicePT  uint8
		format   Format
		expected []byte
	}{
		{name: "ulaw", voicePT: 0, format: FormatULAW, expected: bytes.Repeat([]byte{0x7f}, 160)},
		{name: "alaw", voicePT: 8, format: FormatALAW, expected: bytes.Repeat([]byte{0x7e}, 160)},
		{name: "slin", voicePT: 11, format: FormatSLINEAR, expected: make([]byte, 320)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSession(t, Options{})
			s.handleDatagram(buildPacket(t, tt.voicePT, 1, 0, make([]byte, 40)), nil)

			f := s.handleDatagram(buildPacket(t, PayloadTypeComfortNoise, 2, 160, []byte{0x40}), nil)
			require.Equal(t, FrameVoice, f.Type)
			assert.Equal(t, tt.format, f.Format)
			assert.Equal(t, 160, f.Samples)
			assert.Equal(t, tt.expected, f.Data)
		})
	}
}

func TestComfortNoiseWithoutVoiceFormat(t *testing.T) {
	s := newTestSession(t, Options{})
	f := s.handleDatagram(buildPacket(t, PayloadTypeComfortNoise, 1, 0, []byte{0x40}), nil)
	assert.True(t, f.IsNull())
}

func TestComfortNoiseUnsupportedFormat(t *testing.T) {
	s := newTestSession(t, Options{})
	s.handleDatagram(buildPacket(t, 3, 1, 0, make([]byte, 33)), nil)

	f := s.handleDatagram(buildPacket(t, PayloadTypeComfortNoise, 2, 160, []byte{0x40}), nil)
	assert.True(t, f.IsNull())
}
