package rtp

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/opd-ai/rtpbridge/av/audio"
	"github.com/opd-ai/rtpbridge/limits"
	"github.com/opd-ai/rtpbridge/transport"
	"github.com/pion/randutil"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/ipv4"
	"golang.org/x/sys/unix"
)

// Defaults applied by NewSession to zero-valued Options fields.
const (
	DefaultBindAddress     = "0.0.0.0"
	DefaultPortMin         = 1025
	DefaultPortMax         = 65000
	DefaultDTMFTimeout     = 300
	DefaultResyncTolerance = 640
	DefaultDTMFIdleFlush   = 250 * time.Millisecond

	maxBindAttempts = 1000
)

// FrameHandler receives frames from a session operating in callback mode.
type FrameHandler func(s *Session, f *Frame)

// Options configures a new Session.
type Options struct {
	// BindAddress is the local IPv4 address to bind.
	BindAddress string
	// PortMin and PortMax bound the even-port search.
	PortMin int
	PortMax int
	// TOS is applied to the socket when non-zero.
	TOS int
	// DTMFTimeout is the RFC 2833 debounce window in timestamp units.
	DTMFTimeout int
	// DTMFIdleFlush is how long a latched digit may wait for a voice packet
	// before a callback-mode session emits it anyway.
	DTMFIdleFlush time.Duration
	// ResyncTolerance is the largest drift, in timestamp units, between the
	// incremental and wall-clock transmit timestamps that is still ignored.
	ResyncTolerance int
	// Poller and Callback together put the session in callback mode.
	Poller   *transport.Poller
	Callback FrameHandler
	// TimeProvider drives transmit timestamp prediction.
	TimeProvider TimeProvider
}

func (o Options) withDefaults() Options {
	if o.BindAddress == "" {
		o.BindAddress = DefaultBindAddress
	}
	if o.PortMin == 0 {
		o.PortMin = DefaultPortMin
	}
	if o.PortMax == 0 {
		o.PortMax = DefaultPortMax
	}
	if o.DTMFTimeout == 0 {
		o.DTMFTimeout = DefaultDTMFTimeout
	}
	if o.ResyncTolerance == 0 {
		o.ResyncTolerance = DefaultResyncTolerance
	}
	if o.DTMFIdleFlush <= 0 {
		o.DTMFIdleFlush = DefaultDTMFIdleFlush
	}
	o.TimeProvider = getTimeProvider(o.TimeProvider)
	return o
}

// Statistics is a snapshot of session counters.
type Statistics struct {
	PacketsSent      uint64
	PacketsReceived  uint64
	BytesSent        uint64
	BytesReceived    uint64
	PacketsDropped   uint64
	PacketsForwarded uint64
	DTMFSent         uint64
	DTMFReceived     uint64
	TimestampResyncs uint64
}

type counters struct {
	packetsSent      atomic.Uint64
	packetsReceived  atomic.Uint64
	bytesSent        atomic.Uint64
	bytesReceived    atomic.Uint64
	packetsDropped   atomic.Uint64
	packetsForwarded atomic.Uint64
	dtmfSent         atomic.Uint64
	dtmfReceived     atomic.Uint64
	resyncs          atomic.Uint64
}

// Session is one point-to-point RTP stream bound to a single UDP socket.
//
// The socket is bound once at creation and never rebound; only the peer
// address changes over the session's life. A Session is meant to be driven
// by one channel: Read and Write may run on different goroutines, but two
// concurrent Reads are not supported.
type Session struct {
	id     string
	conn   *net.UDPConn
	local  *net.UDPAddr
	ssrc   uint32
	closed atomic.Bool
	once   sync.Once

	peerMu  sync.RWMutex
	peer    *net.UDPAddr
	bridged *Session

	poller   *transport.Poller
	reg      *transport.Registration
	callback FrameHandler

	rxMu         sync.Mutex
	rxBuf        []byte
	lastRxTs     uint32
	haveRxTs     bool
	lastRxFormat Format
	dtmfCount    int
	dtmfTimeout  int
	dtmfIdle     time.Duration
	lastEventAt  time.Time
	resp         byte

	txMu            sync.Mutex
	seq             uint16
	lastTs          uint32
	txCore          time.Time
	lastTxFormat    Format
	smoother        *audio.Smoother
	sentFirst       bool
	resyncTolerance int
	timeProvider    TimeProvider

	stats counters
}

// NewSession creates a new RTP session bound to a random even UDP port.
//
// The port search draws random even ports inside [opts.PortMin,
// opts.PortMax] until one binds, giving up after a bounded number of
// attempts that all found the port in use. The SSRC and initial sequence
// number are random. When opts carries both a Poller and a Callback the session is
// registered for readability and received frames are delivered to the
// callback instead of being returned by Read.
//
// Parameters:
//   - opts: Bind address, port range, DTMF and timestamp tuning, and the
//     optional poller and callback. Zero fields take the package defaults.
//
// Returns:
//   - *Session: The new RTP session, with no peer set
//   - error: ErrInvalidPortRange, ErrNoPortAvailable, or any bind or
//     registration failure
func NewSession(opts Options) (*Session, error) {
	opts = opts.withDefaults()

	ip := net.ParseIP(opts.BindAddress).To4()
	if ip == nil {
		logrus.WithFields(logrus.Fields{
			"function":     "NewSession",
			"bind_address": opts.BindAddress,
		}).Error("Invalid IPv4 bind address")
		return nil, fmt.Errorf("invalid IPv4 bind address %q", opts.BindAddress)
	}

	ssrc, err := randomUint32()
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "NewSession",
			"error":    err.Error(),
		}).Error("Failed to generate SSRC")
		return nil, fmt.Errorf("failed to generate SSRC: %w", err)
	}
	seq, err := randomUint32()
	if err != nil {
		return nil, fmt.Errorf("failed to generate sequence number: %w", err)
	}

	conn, err := bindEvenPort(ip, opts.PortMin, opts.PortMax)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "NewSession",
			"port_min": opts.PortMin,
			"port_max": opts.PortMax,
			"error":    err.Error(),
		}).Error("Unable to bind RTP socket")
		return nil, err
	}

	s := &Session{
		id:              uuid.NewString(),
		conn:            conn,
		local:           conn.LocalAddr().(*net.UDPAddr),
		ssrc:            ssrc,
		rxBuf:           make([]byte, limits.MaxDatagramSize),
		dtmfTimeout:     opts.DTMFTimeout,
		dtmfIdle:        opts.DTMFIdleFlush,
		seq:             uint16(seq),
		resyncTolerance: opts.ResyncTolerance,
		timeProvider:    opts.TimeProvider,
	}

	if opts.TOS != 0 {
		_ = s.SetTOS(opts.TOS)
	}

	if opts.Poller != nil && opts.Callback != nil {
		s.poller = opts.Poller
		s.callback = opts.Callback
		reg, err := opts.Poller.Add(conn, s.onDatagram, transport.WithIdleHandler(s.onIdle))
		if err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to register rtp socket: %w", err)
		}
		s.reg = reg
	}

	logrus.WithFields(logrus.Fields{
		"function":   "NewSession",
		"session":    s.id,
		"local_addr": s.local.String(),
		"ssrc":       s.ssrc,
		"callback":   s.reg != nil,
	}).Info("RTP session created")

	return s, nil
}

// bindEvenPort binds ip on a random even port in [minPort, maxPort],
// retrying while the chosen port is in use.
func bindEvenPort(ip net.IP, minPort, maxPort int) (*net.UDPConn, error) {
	lo := minPort + minPort%2
	if minPort <= 0 || maxPort > 65535 || lo > maxPort {
		return nil, fmt.Errorf("%w: %d-%d", ErrInvalidPortRange, minPort, maxPort)
	}
	count := (maxPort-lo)/2 + 1
	gen := randutil.NewMathRandomGenerator()

	for attempt := 0; attempt < maxBindAttempts; attempt++ {
		port := lo + 2*gen.Intn(count)
		conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: ip, Port: port})
		if err == nil {
			return conn, nil
		}
		if errors.Is(err, unix.EADDRINUSE) {
			continue
		}
		return nil, fmt.Errorf("unable to bind rtp port %d: %w", port, err)
	}
	return nil, fmt.Errorf("%w after %d attempts", ErrNoPortAvailable, maxBindAttempts)
}

func randomUint32() (uint32, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

// ID returns the session identifier used in log fields.
func (s *Session) ID() string {
	return s.id
}

// SSRC returns the synchronization source identifier of outgoing packets.
func (s *Session) SSRC() uint32 {
	return s.ssrc
}

// LocalAddr returns the bound local address.
func (s *Session) LocalAddr() *net.UDPAddr {
	return cloneUDPAddr(s.local)
}

// SetPeer sets the remote address. A nil or unspecified address clears the
// peer, which turns every transmit operation into a no-op.
func (s *Session) SetPeer(addr *net.UDPAddr) {
	s.peerMu.Lock()
	defer s.peerMu.Unlock()

	if !validPeer(addr) {
		s.peer = nil
	} else {
		s.peer = cloneUDPAddr(addr)
	}

	logrus.WithFields(logrus.Fields{
		"function": "Session.SetPeer",
		"session":  s.id,
		"peer":     addrString(s.peer),
	}).Debug("RTP peer updated")
}

// Peer returns a copy of the remote address, or nil when none is set.
func (s *Session) Peer() *net.UDPAddr {
	s.peerMu.RLock()
	defer s.peerMu.RUnlock()
	return cloneUDPAddr(s.peer)
}

// SetBridged makes the session forward every received datagram, unmodified,
// out of other's socket to other's peer. Passing nil restores normal
// decoding.
func (s *Session) SetBridged(other *Session) {
	s.peerMu.Lock()
	s.bridged = other
	s.peerMu.Unlock()

	fields := logrus.Fields{
		"function": "Session.SetBridged",
		"session":  s.id,
	}
	if other != nil {
		fields["bridged_to"] = other.id
	}
	logrus.WithFields(fields).Debug("RTP forwarding updated")
}

// Bridged returns the session this one forwards to, if any.
func (s *Session) Bridged() *Session {
	s.peerMu.RLock()
	defer s.peerMu.RUnlock()
	return s.bridged
}

// SetTOS sets the IP type-of-service byte on the socket. Failure is logged
// and returned but leaves the session usable.
func (s *Session) SetTOS(tos int) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	if err := ipv4.NewPacketConn(s.conn).SetTOS(tos); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Session.SetTOS",
			"session":  s.id,
			"tos":      tos,
			"error":    err.Error(),
		}).Warn("Unable to set TOS")
		return fmt.Errorf("set tos %d: %w", tos, err)
	}
	return nil
}

// Stats returns a snapshot of the session counters.
func (s *Session) Stats() Statistics {
	return Statistics{
		PacketsSent:      s.stats.packetsSent.Load(),
		PacketsReceived:  s.stats.packetsReceived.Load(),
		BytesSent:        s.stats.bytesSent.Load(),
		BytesReceived:    s.stats.bytesReceived.Load(),
		PacketsDropped:   s.stats.packetsDropped.Load(),
		PacketsForwarded: s.stats.packetsForwarded.Load(),
		DTMFSent:         s.stats.dtmfSent.Load(),
		DTMFReceived:     s.stats.dtmfReceived.Load(),
		TimestampResyncs: s.stats.resyncs.Load(),
	}
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	return s.closed.Load()
}

// Close releases the smoother, deregisters from the poller and closes the
// socket, in that order. It is safe to call more than once.
func (s *Session) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)

		s.txMu.Lock()
		s.smoother = nil
		s.txMu.Unlock()

		if s.reg != nil {
			s.poller.Remove(s.reg)
			s.reg = nil
		}

		err = s.conn.Close()

		logrus.WithFields(logrus.Fields{
			"function": "Session.Close",
			"session":  s.id,
			"stats":    fmt.Sprintf("%+v", s.Stats()),
		}).Info("RTP session closed")
	})
	return err
}

// send writes one datagram to addr, logging transmission errors.
func (s *Session) send(buf []byte, addr *net.UDPAddr) {
	if _, err := s.conn.WriteToUDP(buf, addr); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Session.send",
			"session":  s.id,
			"peer":     addr.String(),
			"error":    err.Error(),
		}).Warn("RTP transmission error")
		return
	}
	s.stats.packetsSent.Add(1)
	s.stats.bytesSent.Add(uint64(len(buf)))
}

// forwardRaw relays a datagram received by another session out of this
// session's socket to this session's peer.
func (s *Session) forwardRaw(data []byte) {
	peer := s.Peer()
	if peer == nil || s.closed.Load() {
		return
	}
	s.send(data, peer)
	s.stats.packetsForwarded.Add(1)
}

func validPeer(addr *net.UDPAddr) bool {
	return addr != nil && addr.IP != nil && !addr.IP.IsUnspecified() && addr.Port != 0
}

func cloneUDPAddr(addr *net.UDPAddr) *net.UDPAddr {
	if addr == nil {
		return nil
	}
	clone := *addr
	if addr.IP != nil {
		clone.IP = append(net.IP(nil), addr.IP...)
	}
	return &clone
}

func addrString(addr *net.UDPAddr) string {
	if addr == nil {
		return "<none>"
	}
	return addr.String()
}
