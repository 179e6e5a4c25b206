// Package bridge implements the native RTP bridge.
//
// When two channels both carry RTP media, the bridge redirects each side's
// stream straight at the other so audio no longer passes through the channel
// core. Channel technologies take part by registering a Protocol in a
// Registry; the bridge looks the protocol up by technology name, asks it for
// the channel's rtp.Session and for the redirection itself.
//
// A bridge attempt ends in one of three ways:
//
//   - ResultDeclined: a precondition failed and the caller should fall back
//     to relaying frames itself
//   - ResultRetry: a channel was swapped out underneath the bridge and the
//     attempt should be repeated later
//   - ResultEnded: a hangup or an intercepted DTMF frame arrived
//
// Redirection is undone on every exit path for each channel that still owns
// the technology state it had at entry.
package bridge
