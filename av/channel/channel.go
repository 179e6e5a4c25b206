// Package channel provides the RTP channel technology: a call leg whose
// media is a single rtp.Session driven by a transport.Poller.
package channel

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/opd-ai/rtpbridge/av/bridge"
	"github.com/opd-ai/rtpbridge/av/rtp"
	"github.com/opd-ai/rtpbridge/transport"
	"github.com/sirupsen/logrus"
)

// Technology is the name RTP channels register under.
const Technology = "RTP"

// DefaultQueueSize is the number of frames buffered for the reader.
const DefaultQueueSize = 64

// ErrNotRTPChannel indicates a bridge.Channel of another technology was
// passed to the RTP protocol.
var ErrNotRTPChannel = errors.New("not an rtp channel")

// Options configures a new RTPChannel.
type Options struct {
	Name      string
	Session   rtp.Options
	Poller    *transport.Poller
	QueueSize int
}

// RTPChannel is a bridge.Channel backed by one rtp.Session in callback mode.
type RTPChannel struct {
	name    string
	session *rtp.Session
	frames  chan *rtp.Frame

	mu         sync.Mutex
	closed     bool
	hangup     atomic.Bool
	hangupOnce sync.Once
	dropped atomic.Uint64
}

// New creates a channel and its session. The poller is required.
func New(opts Options) (*RTPChannel, error) {
	if opts.Poller == nil {
		return nil, fmt.Errorf("rtp channel %q requires a poller", opts.Name)
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}

	c := &RTPChannel{
		frames: make(chan *rtp.Frame, opts.QueueSize),
	}

	sopts := opts.Session
	sopts.Poller = opts.Poller
	sopts.Callback = c.deliver
	sess, err := rtp.NewSession(sopts)
	if err != nil {
		return nil, err
	}
	c.session = sess

	c.name = opts.Name
	if c.name == "" {
		c.name = fmt.Sprintf("%s/%s", Technology, sess.LocalAddr())
	}

	logrus.WithFields(logrus.Fields{
		"function": "channel.New",
		"channel":  c.name,
		"session":  sess.ID(),
	}).Info("RTP channel created")

	return c, nil
}

// deliver queues a received frame, dropping it when the reader is behind.
func (c *RTPChannel) deliver(_ *rtp.Session, f *rtp.Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.frames <- f:
	default:
		if c.dropped.Add(1) == 1 {
			logrus.WithFields(logrus.Fields{
				"function": "RTPChannel.deliver",
				"channel":  c.name,
			}).Warn("Frame queue full, dropping frames")
		}
	}
}

// Name returns the channel name.
func (c *RTPChannel) Name() string { return c.name }

// Technology returns "RTP".
func (c *RTPChannel) Technology() string { return Technology }

// TechPrivate returns the channel's session.
func (c *RTPChannel) TechPrivate() any { return c.session }

// Masquerading is always false; RTP channels are never swapped in place.
func (c *RTPChannel) Masquerading() bool { return false }

// SoftHangup reports whether Hangup has been called.
func (c *RTPChannel) SoftHangup() bool { return c.hangup.Load() }

// Frames delivers received frames and is closed by Hangup.
func (c *RTPChannel) Frames() <-chan *rtp.Frame { return c.frames }

// Dropped returns the number of frames discarded on a full queue.
func (c *RTPChannel) Dropped() uint64 { return c.dropped.Load() }

// Session returns the underlying session.
func (c *RTPChannel) Session() *rtp.Session { return c.session }

// SetPeer sets the remote endpoint of the channel's media.
func (c *RTPChannel) SetPeer(addr *net.UDPAddr) { c.session.SetPeer(addr) }

// WriteFrame sends voice frames as audio and DTMF frames as telephone
// events. Other frame types are ignored.
func (c *RTPChannel) WriteFrame(f *rtp.Frame) error {
	if f == nil {
		return nil
	}
	switch f.Type {
	case rtp.FrameVoice:
		return c.session.Write(f)
	case rtp.FrameDTMF:
		return c.session.SendDigit(f.Digit)
	}
	return nil
}

// Hangup closes the frame queue and the session. A digit still held by the
// DTMF debounce is queued ahead of the close. It is safe to call more than
// once.
func (c *RTPChannel) Hangup() error {
	c.hangup.Store(true)

	var err error
	c.hangupOnce.Do(func() {
		// Closing the session first deregisters it from the poller, so no
		// callback can race the final flush below.
		err = c.session.Close()
		tail := c.session.FlushDTMF()

		c.mu.Lock()
		if !tail.IsNull() {
			select {
			case c.frames <- tail:
			default:
				c.dropped.Add(1)
			}
		}
		c.closed = true
		close(c.frames)
		c.mu.Unlock()

		logrus.WithFields(logrus.Fields{
			"function": "RTPChannel.Hangup",
			"channel":  c.name,
			"dropped":  c.dropped.Load(),
		}).Info("RTP channel hung up")
	})
	return err
}

// Protocol is the bridge.Protocol of RTP channels. Redirection makes the
// channel's session forward received datagrams out of the peer session.
type Protocol struct{}

// Technology returns "RTP".
func (Protocol) Technology() string { return Technology }

// RTPSession returns the session of an RTPChannel, or nil for other channels.
func (Protocol) RTPSession(c bridge.Channel) *rtp.Session {
	rc, ok := c.(*RTPChannel)
	if !ok {
		return nil
	}
	return rc.session
}

// SetRTPPeer forwards c's inbound media out of peer, or restores normal
// decoding when peer is nil.
func (Protocol) SetRTPPeer(c bridge.Channel, peer *rtp.Session) error {
	rc, ok := c.(*RTPChannel)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotRTPChannel, c.Name())
	}
	if rc.session.Closed() {
		return rtp.ErrSessionClosed
	}
	rc.session.SetBridged(peer)
	return nil
}

// Register adds the RTP protocol to reg.
func Register(reg *bridge.Registry) error {
	return reg.Register(Protocol{})
}
