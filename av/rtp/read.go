package rtp

import (
	"context"
	"errors"
	"net"
	"os"
	"time"

	"github.com/opd-ai/rtpbridge/limits"
	"github.com/pion/rtp"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Read performs exactly one datagram receive and decodes it.
//
// It returns a null frame for datagrams that carry nothing for the caller:
// truncated or unknown packets, coalesced DTMF repeats, packets forwarded
// to a bridged session and transient receive failures. A digit whose
// debounce window ran down on this packet is returned in place of the
// voice frame.
//
// Read blocks until a datagram arrives, ctx is done or the session is
// closed. It must not be used on a session created in callback mode.
//
// Parameters:
//   - ctx: Bounds the wait for a datagram
//
// Returns:
//   - *Frame: A voice, DTMF or null frame; voice frames own their payload
//   - error: ctx.Err() when ctx is done, ErrSessionClosed after Close,
//     ErrCallbackMode for callback-mode sessions
func (s *Session) Read(ctx context.Context) (*Frame, error) {
	if s.closed.Load() {
		return nil, ErrSessionClosed
	}
	if s.reg != nil {
		return nil, ErrCallbackMode
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fired := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		_ = s.conn.SetReadDeadline(time.Now())
		close(fired)
	})

	n, from, err := s.conn.ReadFromUDP(s.rxBuf)

	if !stop() {
		<-fired
		_ = s.conn.SetReadDeadline(time.Time{})
	}

	if err != nil {
		return s.readError(ctx, err)
	}
	return s.handleDatagram(s.rxBuf[:n], from), nil
}

// readError classifies a receive failure. A socket closed or invalidated
// underneath a live session is a programming fault and panics.
func (s *Session) readError(ctx context.Context, err error) (*Frame, error) {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return NullFrame(), nil
	}
	if errors.Is(err, net.ErrClosed) {
		if s.closed.Load() {
			return nil, ErrSessionClosed
		}
		logrus.WithFields(logrus.Fields{
			"function": "Session.Read",
			"session":  s.id,
			"error":    err.Error(),
		}).Panic("RTP socket closed underneath live session")
	}
	if errors.Is(err, unix.EBADF) {
		logrus.WithFields(logrus.Fields{
			"function": "Session.Read",
			"session":  s.id,
			"error":    err.Error(),
		}).Panic("RTP read on bad file descriptor")
	}
	if errors.Is(err, unix.EAGAIN) {
		return NullFrame(), nil
	}

	logrus.WithFields(logrus.Fields{
		"function": "Session.Read",
		"session":  s.id,
		"error":    err.Error(),
	}).Warn("RTP read error")
	return NullFrame(), nil
}

// onDatagram is the poller callback for sessions in callback mode.
func (s *Session) onDatagram(data []byte, from net.Addr) {
	if s.closed.Load() {
		return
	}
	f := s.handleDatagram(data, from)
	if !f.IsNull() {
		s.callback(s, f)
	}
}

// onIdle is the poller idle tick for sessions in callback mode.
func (s *Session) onIdle() {
	if s.closed.Load() {
		return
	}
	if f := s.ExpireDTMF(); !f.IsNull() {
		s.callback(s, f)
	}
}

// handleDatagram decodes one received datagram. data is only valid for the
// duration of the call; returned frames own their payload.
func (s *Session) handleDatagram(data []byte, from net.Addr) *Frame {
	s.stats.packetsReceived.Add(1)
	s.stats.bytesReceived.Add(uint64(len(data)))

	if other := s.Bridged(); other != nil {
		other.forwardRaw(data)
		return NullFrame()
	}

	if err := limits.ValidateDatagram(data); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Session.handleDatagram",
			"session":  s.id,
			"from":     addrOrNone(from),
			"error":    err.Error(),
		}).Warn("RTP read too short")
		s.stats.packetsDropped.Add(1)
		return NullFrame()
	}

	var pkt rtp.Packet
	if err := pkt.Unmarshal(data); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Session.handleDatagram",
			"session":  s.id,
			"from":     addrOrNone(from),
			"error":    err.Error(),
		}).Warn("Malformed RTP packet")
		s.stats.packetsDropped.Add(1)
		return NullFrame()
	}

	switch pkt.PayloadType {
	case PayloadTypeTelephoneEvent, PayloadTypeVendorEvent:
		return s.processRFC2833(pkt.Payload)
	case PayloadTypeVendorDTMF:
		return s.processVendorDTMF(pkt.Payload)
	case PayloadTypeComfortNoise:
		return s.comfortNoise()
	}

	format, ok := FormatForPayloadType(pkt.PayloadType)
	if !ok {
		logrus.WithFields(logrus.Fields{
			"function":     "Session.handleDatagram",
			"session":      s.id,
			"payload_type": pkt.PayloadType,
		}).Warn("Unknown RTP payload type")
		s.stats.packetsDropped.Add(1)
		return NullFrame()
	}

	s.rxMu.Lock()
	defer s.rxMu.Unlock()

	s.lastRxFormat = format
	s.decayDTMFLocked(pkt.Timestamp)

	if s.resp != 0 && s.dtmfCount == 0 {
		return s.flushDTMFLocked()
	}

	samples, known := SampleCount(format, pkt.Payload)
	if !known {
		logrus.WithFields(logrus.Fields{
			"function": "Session.handleDatagram",
			"session":  s.id,
			"format":   format.String(),
		}).Info("Unable to calculate samples for format")
	}

	payload := make([]byte, len(pkt.Payload))
	copy(payload, pkt.Payload)

	return &Frame{
		Type:           FrameVoice,
		Format:         format,
		Data:           payload,
		Samples:        samples,
		Timestamp:      pkt.Timestamp,
		SequenceNumber: pkt.SequenceNumber,
		Marker:         pkt.Marker,
		Source:         frameSource,
	}
}

// decayDTMFLocked lowers the debounce counter by the timestamp advance since
// the previous voice packet. Backwards steps are ignored.
func (s *Session) decayDTMFLocked(ts uint32) {
	if !s.haveRxTs {
		s.lastRxTs = ts
		s.haveRxTs = true
	}
	if s.dtmfCount > 0 {
		if delta := int32(ts - s.lastRxTs); delta > 0 {
			s.dtmfCount -= int(delta)
		}
		if s.dtmfCount < 0 {
			s.dtmfCount = 0
		}
	}
	s.lastRxTs = ts
}

func addrOrNone(addr net.Addr) string {
	if addr == nil {
		return "<none>"
	}
	return addr.String()
}
