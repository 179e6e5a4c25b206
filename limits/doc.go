// Package limits provides centralized size constants and validation functions
// for RTP datagrams. This package ensures consistent size enforcement between
// the receive buffer, the transmit path and the I/O poller.
//
// # Size Hierarchy
//
//   - RTPHeaderSize (12 bytes): the fixed RTP header (two 32-bit words plus
//     the synchronization source identifier). Anything shorter is truncated.
//
//   - MaxDatagramSize (8192 bytes): the receive buffer size. Datagrams larger
//     than this are truncated by the kernel and never reach the RX path intact.
//
//   - MaxRTPPayload: the largest payload that still fits in one datagram once
//     the header has been prepended.
//
// # Validation Functions
//
//	err := limits.ValidateRTPPayload(payload)
//	if err != nil {
//	    // ErrPayloadEmpty or ErrPayloadTooLarge
//	}
//
// For custom limits use ValidatePayloadSize.
package limits
