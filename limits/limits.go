// Package limits provides centralized size limits for RTP datagrams.
package limits

import (
	"errors"
	"fmt"
)

const (
	// RTPHeaderSize is the fixed RTP header length without CSRCs or extensions.
	RTPHeaderSize = 12

	// MaxDatagramSize is the size of every RTP receive buffer.
	MaxDatagramSize = 8192

	// MaxRTPPayload is the largest payload that fits a single datagram.
	MaxRTPPayload = MaxDatagramSize - RTPHeaderSize

	// DTMFEventPayloadSize is the size of an RFC 2833 telephone-event payload.
	DTMFEventPayloadSize = 4
)

var (
	// ErrPayloadEmpty indicates an empty payload was provided
	ErrPayloadEmpty = errors.New("empty payload")

	// ErrPayloadTooLarge indicates a payload exceeds the maximum size
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrDatagramTruncated indicates a datagram shorter than an RTP header
	ErrDatagramTruncated = errors.New("datagram shorter than rtp header")
)

// ValidatePayloadSize validates a payload against the specified maximum size.
// Returns an error with context including the actual and maximum sizes.
func ValidatePayloadSize(payload []byte, maxSize int) error {
	if len(payload) == 0 {
		return ErrPayloadEmpty
	}
	if len(payload) > maxSize {
		return fmt.Errorf("%w: size %d exceeds limit %d", ErrPayloadTooLarge, len(payload), maxSize)
	}
	return nil
}

// ValidateRTPPayload validates an outgoing payload against MaxRTPPayload.
func ValidateRTPPayload(payload []byte) error {
	return ValidatePayloadSize(payload, MaxRTPPayload)
}

// ValidateDatagram checks that a received datagram can hold an RTP header.
func ValidateDatagram(data []byte) error {
	if len(data) < RTPHeaderSize {
		return fmt.Errorf("%w: got %d bytes", ErrDatagramTruncated, len(data))
	}
	return nil
}
