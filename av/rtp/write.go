package rtp

import (
	"fmt"
	"net"

	"github.com/opd-ai/rtpbridge/av/audio"
	"github.com/opd-ai/rtpbridge/limits"
	"github.com/pion/rtp"
	"github.com/sirupsen/logrus"
)

// Smoother chunk sizes in bytes, one 20ms packet each.
const (
	g711ChunkSize = 160
	g729ChunkSize = 20
	gsmChunkSize  = gsmBlockSize

	samplesPerMillisecond = 8
)

// Write queues a voice frame for transmission.
//
// Formats with a fixed packet geometry (G.711, GSM, G.729A, G.723.1) are
// re-chunked through the session smoother and every complete chunk is sent
// at once; other formats are sent frame for frame. A format change discards
// whatever the smoother still holds. The first packet of the session carries
// the marker bit, and timestamps follow the sample count unless the wall
// clock has drifted past the resync tolerance.
//
// Parameters:
//   - f: A voice frame whose Format has a static payload type
//
// Returns:
//   - error: ErrSessionClosed, ErrNotVoice, ErrUnsupportedFormat, or a
//     smoother or payload size failure; nil with no peer set
func (s *Session) Write(f *Frame) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	peer := s.Peer()
	if peer == nil {
		return nil
	}

	if f == nil || f.Type != FrameVoice {
		logrus.WithFields(logrus.Fields{
			"function": "Session.Write",
			"session":  s.id,
		}).Warn("RTP can only send voice")
		return ErrNotVoice
	}

	pt, ok := PayloadTypeForFormat(f.Format)
	if !ok {
		logrus.WithFields(logrus.Fields{
			"function": "Session.Write",
			"session":  s.id,
			"format":   f.Format.String(),
		}).Warn("Don't know how to send format packets with RTP")
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, f.Format)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	if s.lastTxFormat != f.Format {
		logrus.WithFields(logrus.Fields{
			"function": "Session.Write",
			"session":  s.id,
			"from":     s.lastTxFormat.String(),
			"to":       f.Format.String(),
		}).Debug("Changing smoother format")
		s.lastTxFormat = f.Format
		s.smoother = nil
	}

	if s.smoother == nil {
		s.smoother = newSmootherFor(f.Format)
	}
	if s.smoother == nil {
		logrus.WithFields(logrus.Fields{
			"function": "Session.Write",
			"session":  s.id,
			"format":   f.Format.String(),
		}).Warn("Not sure about sending format packets, bypassing smoother")
		return s.rawWriteLocked(f.Format, pt, f.Data, peer)
	}

	if err := s.smoother.Feed(f.Data); err != nil {
		return fmt.Errorf("smoother feed: %w", err)
	}
	for chunk := s.smoother.Read(); chunk != nil; chunk = s.smoother.Read() {
		if err := s.rawWriteLocked(f.Format, pt, chunk, peer); err != nil {
			return err
		}
	}
	return nil
}

// newSmootherFor returns the smoother for formats with a fixed packet
// geometry, or nil for formats that bypass smoothing.
func newSmootherFor(f Format) *audio.Smoother {
	var size int
	switch f {
	case FormatULAW, FormatALAW:
		size = g711ChunkSize
	case FormatG729A:
		size = g729ChunkSize
	case FormatGSM:
		size = gsmChunkSize
	case FormatG723:
		return audio.NewFramedSmoother(g723Framer)
	default:
		return nil
	}
	sm, err := audio.NewSmoother(size)
	if err != nil {
		return nil
	}
	return sm
}

// rawWriteLocked stamps and sends one packet. Transmission errors are logged
// and do not fail the enclosing Write.
func (s *Session) rawWriteLocked(format Format, pt uint8, payload []byte, peer *net.UDPAddr) error {
	if err := limits.ValidateRTPPayload(payload); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Session.rawWrite",
			"session":  s.id,
			"error":    err.Error(),
		}).Warn("Rejecting outgoing RTP payload")
		return err
	}

	s.lastTs = s.nextTimestampLocked(format, payload)

	pkt := rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			Marker:         !s.sentFirst,
			PayloadType:    pt,
			SequenceNumber: s.seq,
			Timestamp:      s.lastTs,
			SSRC:           s.ssrc,
		},
		Payload: payload,
	}
	s.seq++
	s.sentFirst = true

	buf, err := pkt.Marshal()
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Session.rawWrite",
			"session":  s.id,
			"error":    err.Error(),
		}).Error("Failed to marshal RTP packet")
		return err
	}
	s.send(buf, peer)
	return nil
}

// nextTimestampLocked predicts the timestamp of the next packet. The
// incremental value, last timestamp plus this payload's samples, is used
// while it stays within the resync tolerance of the wall-clock estimate.
func (s *Session) nextTimestampLocked(format Format, payload []byte) uint32 {
	now := s.timeProvider.Now()
	if s.txCore.IsZero() {
		s.txCore = now
	}
	ms := now.Sub(s.txCore).Milliseconds()
	s.txCore = now

	wall := s.lastTs + uint32(ms*samplesPerMillisecond)

	samples, known := SampleCount(format, payload)
	if !known {
		logrus.WithFields(logrus.Fields{
			"function": "Session.nextTimestamp",
			"session":  s.id,
			"format":   format.String(),
		}).Warn("Not sure about timestamping format")
		return wall
	}

	pred := s.lastTs + uint32(samples)
	diff := int32(wall - pred)
	if diff < 0 {
		diff = -diff
	}
	if int(diff) < s.resyncTolerance {
		return pred
	}

	s.stats.resyncs.Add(1)
	logrus.WithFields(logrus.Fields{
		"function":   "Session.nextTimestamp",
		"session":    s.id,
		"difference": diff,
		"elapsed_ms": ms,
	}).Debug("RTP timestamp resynced to wall clock")
	return wall
}
