// Package rtp implements RTP media transport for voice channels.
//
// A Session owns one UDP socket bound to an even port and turns datagrams
// into Frames and Frames into datagrams. It uses the pion/rtp library for
// header encoding and decoding.
//
// # Receive path
//
// Read performs a single receive and dispatches on the payload type:
//
//   - mapped audio payload types produce voice frames with a sample count
//     derived from the codec geometry
//   - telephone events (101, and the vendor variant 100) are debounced and
//     emitted once per tone
//   - vendor DTMF relay packets (121) emit a digit at the detection point
//   - comfort noise (13) is rendered as silence in the last received format
//
// Anything else yields a null frame that the caller ignores:
//
//	f, err := sess.Read(ctx)
//	if err != nil {
//	    return err
//	}
//	if f.IsNull() {
//	    continue
//	}
//
// Sessions created with a transport.Poller and a FrameHandler run in
// callback mode instead: the poller reads the socket and non-null frames are
// handed to the handler.
//
// # Transmit path
//
// Write accepts voice frames. G.711, G.729A, GSM and G.723.1 audio is
// re-chunked through an audio.Smoother so every packet has the same
// duration. Timestamps advance by the sample count of each packet unless
// they drift too far from the wall clock, in which case they resync.
//
// SendDigit transmits an RFC 2833 event as four packets, the last three
// carrying the end-of-event bit.
//
// # Forwarding
//
// SetBridged makes a session relay every datagram it receives out of
// another session's socket to that session's peer, unmodified. The native
// bridge in package bridge uses this to take the channel core out of the
// media path.
package rtp
