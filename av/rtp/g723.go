package rtp

import "github.com/sirupsen/logrus"

// G.723.1 frame classes, selected by the two low bits of a sub-frame's first byte.
const (
	g723TypeHigh    = 0x0
	g723TypeLow     = 0x1
	g723TypeSilence = 0x2
	g723TypeMask    = 0x3

	// G723SamplesPerFrame is the duration of every G.723.1 sub-frame (30ms at 8kHz).
	G723SamplesPerFrame = 240
)

// G723FrameLength returns the byte length of the G.723.1 sub-frame whose
// first byte is b, or -1 when the class bits are not a valid frame class.
func G723FrameLength(b byte) int {
	switch b & g723TypeMask {
	case g723TypeHigh:
		return 24
	case g723TypeLow:
		return 20
	case g723TypeSilence:
		return 4
	}
	return -1
}

// G723Samples walks buf sub-frame by sub-frame and returns the total sample
// count. The walk stops at the first sub-frame with an invalid class.
func G723Samples(buf []byte) int {
	samples := 0
	for pos := 0; pos < len(buf); {
		n := G723FrameLength(buf[pos])
		if n < 0 {
			logrus.WithFields(logrus.Fields{
				"function": "G723Samples",
				"offset":   pos,
				"class":    buf[pos] & g723TypeMask,
			}).Warn("Badly encoded G.723.1 frame")
			break
		}
		samples += G723SamplesPerFrame
		pos += n
	}
	return samples
}

// g723Framer reports the length of the leading G.723.1 sub-frame of buf, for
// use with a frame-aligned smoother.
func g723Framer(buf []byte) int {
	if len(buf) == 0 {
		return 0
	}
	return G723FrameLength(buf[0])
}
