package rtp

import (
	"bytes"

	"github.com/sirupsen/logrus"
)

// Comfort noise is rendered as one 20ms frame of silence in the last
// received voice format.
const (
	comfortNoiseSamples = 160

	ulawSilence = 0x7f
	// alawSilence has not been checked against G.711 A-law idle patterns.
	alawSilence = 0x7e
)

func (s *Session) comfortNoise() *Frame {
	s.rxMu.Lock()
	format := s.lastRxFormat
	s.rxMu.Unlock()

	var data []byte
	switch format {
	case 0:
		return NullFrame()
	case FormatULAW:
		data = bytes.Repeat([]byte{ulawSilence}, comfortNoiseSamples)
	case FormatALAW:
		data = bytes.Repeat([]byte{alawSilence}, comfortNoiseSamples)
	case FormatSLINEAR:
		data = make([]byte, comfortNoiseSamples*2)
	default:
		logrus.WithFields(logrus.Fields{
			"function": "Session.comfortNoise",
			"session":  s.id,
			"format":   format.String(),
		}).Warn("Don't know how to handle comfort noise for format")
		return NullFrame()
	}

	return &Frame{
		Type:    FrameVoice,
		Format:  format,
		Data:    data,
		Samples: comfortNoiseSamples,
		Source:  frameSource,
	}
}
