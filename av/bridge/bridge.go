package bridge

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/opd-ai/rtpbridge/av/rtp"
	"github.com/sirupsen/logrus"
)

// DefaultSettleDelay is the pause before redirection that lets in-flight
// signaling on either channel complete.
const DefaultSettleDelay = 500 * time.Millisecond

// Bridger runs native bridges.
type Bridger struct {
	// Registry resolves channel technologies. Nil means DefaultRegistry.
	Registry *Registry
	// SettleDelay is waited before redirecting media. Zero means no wait.
	SettleDelay time.Duration
	// OnStateChange, if set, is called on entering each State.
	OnStateChange func(c0, c1 Channel, s State)
}

// NewBridger returns a Bridger using reg and DefaultSettleDelay.
func NewBridger(reg *Registry) *Bridger {
	return &Bridger{Registry: reg, SettleDelay: DefaultSettleDelay}
}

// leg is one side of a running bridge.
type leg struct {
	ch       Channel
	proto    Protocol
	session  *rtp.Session
	pvt      any
	redirect bool
}

func (l *leg) owned() bool {
	return samePrivate(l.ch.TechPrivate(), l.pvt)
}

// comparablePrivate reports whether samePrivate can judge v without
// panicking.
func comparablePrivate(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return true
	}
	return rv.Comparable()
}

// samePrivate reports whether a and b are the same private state. Reference
// kinds that Go cannot compare with == are matched by identity.
func samePrivate(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Slice:
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	case reflect.Map, reflect.Func, reflect.Chan:
		return va.Pointer() == vb.Pointer()
	}
	if !va.Comparable() || !vb.Comparable() {
		return false
	}
	return a == b
}

// Bridge connects the media of c0 and c1 directly and blocks until the
// bridge ends.
//
// Each channel's session is pointed at the other's after SettleDelay, so
// media flows socket to socket without being decoded. While bridged, voice
// and DTMF frames that still reach either channel are written to the other
// one. DTMF from a side flagged for interception ends the bridge, as does a
// hangup on either side. On the way out, redirected sides are pointed back
// at their own routing unless they were swapped or hung up.
//
// Parameters:
//   - ctx: Cancels the bridge; both sides are reverted
//   - c0, c1: The two legs; both technologies must be registered
//   - flags: InterceptDTMF0 / InterceptDTMF1
//
// Returns:
//   - Outcome: ResultEnded with the ending frame and channel,
//     ResultDeclined with a reason, or ResultRetry when a channel changed
//     underneath the bridge
//   - error: ctx.Err() when ctx is done, nil otherwise
func (b *Bridger) Bridge(ctx context.Context, c0, c1 Channel, flags Flags) (Outcome, error) {
	log := logrus.WithFields(logrus.Fields{
		"function": "Bridger.Bridge",
		"c0":       c0.Name(),
		"c1":       c1.Name(),
	})

	if flags&(InterceptDTMF0|InterceptDTMF1) != 0 {
		log.Debug("Declining native bridge, DTMF interception requested")
		return declined(ErrDTMFIntercepted), nil
	}

	legs := [2]*leg{{ch: c0}, {ch: c1}}
	reg := b.registry()
	for _, l := range legs {
		p, ok := reg.Lookup(l.ch.Technology())
		if !ok {
			log.WithField("technology", l.ch.Technology()).Warn("Can't find native functions for channel")
			return declined(fmt.Errorf("%w: %s", ErrNoProtocol, l.ch.Name())), nil
		}
		l.proto = p
	}
	for _, l := range legs {
		l.session = l.proto.RTPSession(l.ch)
		if l.session == nil {
			log.WithField("channel", l.ch.Name()).Debug("Channel has no RTP session")
			return declined(fmt.Errorf("%w: %s", ErrNoSession, l.ch.Name())), nil
		}
		l.pvt = l.ch.TechPrivate()
		if !comparablePrivate(l.pvt) {
			log.WithField("channel", l.ch.Name()).Warn("Channel private state is not comparable")
			return declined(fmt.Errorf("%w: %s", ErrPrivateNotComparable, l.ch.Name())), nil
		}
	}

	if b.SettleDelay > 0 {
		timer := time.NewTimer(b.SettleDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Outcome{}, ctx.Err()
		case <-timer.C:
		}
	}

	for i, l := range legs {
		other := legs[1-i]
		if err := l.proto.SetRTPPeer(l.ch, other.session); err != nil {
			log.WithFields(logrus.Fields{
				"channel": l.ch.Name(),
				"error":   err.Error(),
			}).Warn("Channel failed to talk to peer")
			continue
		}
		l.redirect = true
	}
	b.notify(c0, c1, StateBridging)
	log.Debug("Native bridge established")

	for {
		if b.invalidated(legs) {
			log.Debug("Channel changed underneath bridge, backing out")
			b.revert(legs, false)
			b.notify(c0, c1, StateEnded)
			return Outcome{Result: ResultRetry}, nil
		}

		var (
			f   *rtp.Frame
			ok  bool
			idx int
		)
		select {
		case <-ctx.Done():
			b.revert(legs, true)
			b.notify(c0, c1, StateEnded)
			return Outcome{}, ctx.Err()
		case f, ok = <-c0.Frames():
			idx = 0
		case f, ok = <-c1.Frames():
			idx = 1
		}

		if b.invalidated(legs) {
			log.Debug("Channel changed underneath bridge, backing out")
			b.revert(legs, false)
			b.notify(c0, c1, StateEnded)
			return Outcome{Result: ResultRetry}, nil
		}

		who := legs[idx].ch
		intercept := (idx == 0 && flags&InterceptDTMF0 != 0) || (idx == 1 && flags&InterceptDTMF1 != 0)
		if !ok || f == nil || (f.Type == rtp.FrameDTMF && intercept) {
			if !ok {
				f = nil
			}
			log.WithFields(logrus.Fields{
				"who":    who.Name(),
				"hangup": f == nil,
			}).Debug("Native bridge ending")
			b.revert(legs, true)
			b.notify(c0, c1, StateEnded)
			return Outcome{Result: ResultEnded, Frame: f, Who: who}, nil
		}

		if f.Type == rtp.FrameVoice || f.Type == rtp.FrameDTMF {
			if err := legs[1-idx].ch.WriteFrame(f); err != nil {
				log.WithFields(logrus.Fields{
					"channel": legs[1-idx].ch.Name(),
					"error":   err.Error(),
				}).Debug("Failed to forward frame across bridge")
			}
		}
	}
}

func (b *Bridger) registry() *Registry {
	if b.Registry != nil {
		return b.Registry
	}
	return DefaultRegistry
}

func (b *Bridger) notify(c0, c1 Channel, s State) {
	if b.OnStateChange != nil {
		b.OnStateChange(c0, c1, s)
	}
}

// invalidated reports whether either channel was swapped or is being swapped.
func (b *Bridger) invalidated(legs [2]*leg) bool {
	for _, l := range legs {
		if !l.owned() || l.ch.Masquerading() {
			return true
		}
	}
	return false
}

// revert undoes redirection for every leg still owning its entry state.
// skipHungUp leaves soft-hung-up channels alone.
func (b *Bridger) revert(legs [2]*leg, skipHungUp bool) {
	for _, l := range legs {
		if !l.redirect || !l.owned() {
			continue
		}
		if skipHungUp && l.ch.SoftHangup() {
			continue
		}
		if err := l.proto.SetRTPPeer(l.ch, nil); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Bridger.revert",
				"channel":  l.ch.Name(),
				"error":    err.Error(),
			}).Warn("Channel failed to revert")
		}
		l.redirect = false
	}
}

func declined(reason error) Outcome {
	return Outcome{Result: ResultDeclined, Reason: reason}
}
