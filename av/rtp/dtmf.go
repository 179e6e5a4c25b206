package rtp

import (
	"encoding/binary"

	"github.com/opd-ai/rtpbridge/limits"
	"github.com/pion/rtp"
	"github.com/sirupsen/logrus"
)

const (
	dtmfVolume        = 0x0a
	dtmfEndBit        = 0x80
	dtmfDuration      = 240
	dtmfRepetitions   = 4
	vendorDTMFMinSize = 8

	vendorToneStart    = 32
	vendorToneStop     = 3
	vendorToneStopIdle = 0
)

// dtmfDigits maps event codes 0-15 to their characters.
const dtmfDigits = "0123456789*#ABCD"

// EventToDigit maps an RFC 2833 event code to its DTMF character. It returns
// zero for codes outside 0-15.
func EventToDigit(event byte) byte {
	if int(event) >= len(dtmfDigits) {
		return 0
	}
	return dtmfDigits[event]
}

// DigitToEvent maps a DTMF character to its RFC 2833 event code. Lowercase
// a-d are accepted.
func DigitToEvent(digit byte) (byte, bool) {
	if digit >= 'a' && digit <= 'd' {
		digit -= 'a' - 'A'
	}
	for i := 0; i < len(dtmfDigits); i++ {
		if dtmfDigits[i] == digit {
			return byte(i), true
		}
	}
	return 0, false
}

// processRFC2833 latches the digit carried by a telephone-event packet. A
// pending digit that differs from the new one is emitted first; repeats of
// the same digit only refresh the debounce window.
func (s *Session) processRFC2833(payload []byte) *Frame {
	if len(payload) < 1 {
		s.stats.packetsDropped.Add(1)
		return NullFrame()
	}
	digit := EventToDigit(payload[0])

	s.rxMu.Lock()
	defer s.rxMu.Unlock()

	f := NullFrame()
	if s.resp != 0 && s.resp != digit {
		f = s.flushDTMFLocked()
	}
	s.resp = digit
	s.dtmfCount = s.dtmfTimeout
	s.lastEventAt = s.timeProvider.Now()

	logrus.WithFields(logrus.Fields{
		"function": "Session.processRFC2833",
		"session":  s.id,
		"event":    payload[0],
	}).Trace("Telephone event received")

	return f
}

// processVendorDTMF decodes the 8-byte proprietary DTMF relay payload. Only
// the detection point of a tone-start event yields a digit; stop markers are
// logged and produce nothing.
func (s *Session) processVendorDTMF(payload []byte) *Frame {
	if len(payload) < vendorDTMFMinSize {
		logrus.WithFields(logrus.Fields{
			"function": "Session.processVendorDTMF",
			"session":  s.id,
			"size":     len(payload),
		}).Debug("Vendor DTMF payload too short")
		s.stats.packetsDropped.Add(1)
		return NullFrame()
	}

	switch payload[2] {
	case vendorToneStart:
		if payload[4] != 0 {
			return NullFrame()
		}
		digit := EventToDigit(payload[3])
		if digit == 0 {
			return NullFrame()
		}
		s.rxMu.Lock()
		defer s.rxMu.Unlock()
		s.resp = digit
		return s.flushDTMFLocked()
	case vendorToneStop, vendorToneStopIdle:
		logrus.WithFields(logrus.Fields{
			"function": "Session.processVendorDTMF",
			"session":  s.id,
			"marker":   payload[2],
		}).Debug("Vendor DTMF tone stop ignored")
	}
	return NullFrame()
}

// FlushDTMF emits the pending DTMF digit, if any, without waiting for the
// debounce window to expire.
func (s *Session) FlushDTMF() *Frame {
	s.rxMu.Lock()
	defer s.rxMu.Unlock()
	return s.flushDTMFLocked()
}

// ExpireDTMF emits the pending digit once no telephone event has arrived for
// the idle flush window. Digits otherwise wait for a voice packet to run
// down the debounce counter, which never happens on event-only streams.
func (s *Session) ExpireDTMF() *Frame {
	s.rxMu.Lock()
	defer s.rxMu.Unlock()
	if s.resp == 0 || s.timeProvider.Now().Sub(s.lastEventAt) < s.dtmfIdle {
		return NullFrame()
	}
	return s.flushDTMFLocked()
}

func (s *Session) flushDTMFLocked() *Frame {
	if s.resp == 0 {
		return NullFrame()
	}
	f := dtmfFrame(s.resp)
	logrus.WithFields(logrus.Fields{
		"function": "Session.flushDTMF",
		"session":  s.id,
		"digit":    string(s.resp),
	}).Debug("Sending DTMF")
	s.resp = 0
	s.dtmfCount = 0
	s.stats.dtmfReceived.Add(1)
	return f
}

// SendDigit transmits digit as an RFC 2833 telephone event.
//
// Four packets are sent back to back: one start packet with the marker set
// and zero duration, then three end-of-event repeats that share a single
// sequence number and carry a 240-sample duration. All four use the
// session's current transmit timestamp.
//
// Parameters:
//   - digit: One of 0-9, *, #, A-D (lowercase a-d accepted)
//
// Returns:
//   - error: ErrInvalidDigit, ErrSessionClosed or a marshal failure; nil
//     with no peer set
func (s *Session) SendDigit(digit byte) error {
	event, ok := DigitToEvent(digit)
	if !ok {
		logrus.WithFields(logrus.Fields{
			"function": "Session.SendDigit",
			"session":  s.id,
			"digit":    string(digit),
		}).Warn("Don't know how to represent DTMF digit")
		return ErrInvalidDigit
	}
	if s.closed.Load() {
		return ErrSessionClosed
	}
	peer := s.Peer()
	if peer == nil {
		return nil
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	payload := make([]byte, limits.DTMFEventPayloadSize)
	payload[0] = event
	payload[1] = dtmfVolume

	pkt := rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			Marker:         true,
			PayloadType:    PayloadTypeTelephoneEvent,
			SequenceNumber: s.seq,
			Timestamp:      s.lastTs,
			SSRC:           s.ssrc,
		},
		Payload: payload,
	}
	s.seq++

	for i := 0; i < dtmfRepetitions; i++ {
		buf, err := pkt.Marshal()
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Session.SendDigit",
				"session":  s.id,
				"error":    err.Error(),
			}).Error("Failed to marshal DTMF packet")
			return err
		}
		s.send(buf, peer)

		if i == 0 {
			pkt.Marker = false
			pkt.SequenceNumber = s.seq
			s.seq++
			payload[1] |= dtmfEndBit
			binary.BigEndian.PutUint16(payload[2:4], dtmfDuration)
		}
	}

	s.stats.dtmfSent.Add(1)
	logrus.WithFields(logrus.Fields{
		"function": "Session.SendDigit",
		"session":  s.id,
		"digit":    string(digit),
		"peer":     peer.String(),
	}).Debug("DTMF digit sent")
	return nil
}
