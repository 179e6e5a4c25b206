// Package audio provides the audio re-chunking stage used by the RTP
// transmit path.
//
// Channel drivers hand the RTP layer voice frames of whatever size their
// source produced: a 30ms read from a file, a 10ms burst from a sound card, a
// 2ms trickle from a conference mixer. RTP peers expect packets of a fixed
// duration, so every outgoing stream of a packetized codec passes through a
// Smoother first.
//
// # Smoother
//
// A fixed-size smoother accumulates bytes and hands them back in chunks of
// exactly the configured size:
//
//	sm, err := audio.NewSmoother(160) // 20ms of G.711
//	if err != nil {
//	    log.Fatal(err)
//	}
//	_ = sm.Feed(data)
//	for chunk := sm.Read(); chunk != nil; chunk = sm.Read() {
//	    send(chunk)
//	}
//
// Codecs with variable-length frames (G.723.1) use a framed smoother that
// consults a FrameLengthFunc and emits one whole codec frame per Read:
//
//	sm := audio.NewFramedSmoother(func(buf []byte) int {
//	    return frameLength(buf[0])
//	})
//
// # Lifetime
//
// A smoother is bound to one codec for its whole life. When the codec of an
// outgoing stream changes, the owner discards the smoother and creates a new
// one; a smoother is never re-sized in place.
//
// # Thread Safety
//
// Smoother is not safe for concurrent use. It is owned by exactly one RTP
// session and driven under that session's transmit lock.
package audio
