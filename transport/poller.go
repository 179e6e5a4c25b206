package transport

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/opd-ai/rtpbridge/limits"
	"github.com/sirupsen/logrus"
)

// DefaultPollInterval bounds how long a registration's read loop blocks
// before re-checking for removal.
const DefaultPollInterval = 100 * time.Millisecond

var (
	// ErrPollerClosed indicates Add was called after Close.
	ErrPollerClosed = errors.New("poller closed")
	// ErrInvalidRegistration indicates a nil connection or handler.
	ErrInvalidRegistration = errors.New("connection and handler are required")
)

// DatagramHandler processes one datagram. data is only valid until the
// handler returns.
type DatagramHandler func(data []byte, from net.Addr)

// RegistrationOption customizes a registration created by Add.
type RegistrationOption func(*Registration)

// WithIdleHandler runs idle on the registration's read loop each time a poll
// interval passes without a datagram. idle never runs concurrently with the
// registration's DatagramHandler.
func WithIdleHandler(idle func()) RegistrationOption {
	return func(r *Registration) {
		r.idle = idle
	}
}

// Registration ties a packet connection to its handler inside a Poller.
type Registration struct {
	conn    net.PacketConn
	handler DatagramHandler
	idle    func()
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
}

// Poller multiplexes readability of many packet connections onto their
// handlers. Each registration is served by its own read loop; handlers for
// one registration never run concurrently.
type Poller struct {
	mu           sync.Mutex
	regs         map[*Registration]struct{}
	pollInterval time.Duration
	closed       bool
}

// NewPoller creates a poller. A non-positive interval selects
// DefaultPollInterval.
func NewPoller(pollInterval time.Duration) *Poller {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Poller{
		regs:         make(map[*Registration]struct{}),
		pollInterval: pollInterval,
	}
}

// Add starts delivering datagrams received on conn to handler.
func (p *Poller) Add(conn net.PacketConn, handler DatagramHandler, opts ...RegistrationOption) (*Registration, error) {
	if conn == nil || handler == nil {
		return nil, ErrInvalidRegistration
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrPollerClosed
	}

	ctx, cancel := context.WithCancel(context.Background())
	reg := &Registration{
		conn:    conn,
		handler: handler,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(reg)
	}
	p.regs[reg] = struct{}{}

	go p.processDatagrams(reg)

	logrus.WithFields(logrus.Fields{
		"function":   "Poller.Add",
		"local_addr": conn.LocalAddr().String(),
	}).Debug("Registered connection")

	return reg, nil
}

// Remove stops the registration's read loop and waits for it to exit, so
// the handler is never invoked after Remove returns. It must not be called
// from the registration's own handler.
func (p *Poller) Remove(reg *Registration) {
	if reg == nil {
		return
	}
	reg.once.Do(func() {
		reg.cancel()
		_ = reg.conn.SetReadDeadline(time.Now())
		<-reg.done

		p.mu.Lock()
		delete(p.regs, reg)
		p.mu.Unlock()

		logrus.WithFields(logrus.Fields{
			"function":   "Poller.Remove",
			"local_addr": reg.conn.LocalAddr().String(),
		}).Debug("Deregistered connection")
	})
}

// Len returns the number of active registrations.
func (p *Poller) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.regs)
}

// Close removes every registration and rejects further additions. The
// registered connections are left open.
func (p *Poller) Close() error {
	p.mu.Lock()
	p.closed = true
	regs := make([]*Registration, 0, len(p.regs))
	for reg := range p.regs {
		regs = append(regs, reg)
	}
	p.mu.Unlock()

	for _, reg := range regs {
		p.Remove(reg)
	}
	return nil
}

// processDatagrams is the read loop of one registration.
func (p *Poller) processDatagrams(reg *Registration) {
	defer close(reg.done)
	buffer := make([]byte, limits.MaxDatagramSize)

	for {
		select {
		case <-reg.ctx.Done():
			return
		default:
		}

		data, addr, err := p.readDatagram(reg.conn, buffer)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			if reg.idle != nil && isTimeout(err) && reg.ctx.Err() == nil {
				reg.idle()
			}
			continue
		}
		if reg.ctx.Err() != nil {
			return
		}
		reg.handler(data, addr)
	}
}

// readDatagram reads with a deadline so the loop can observe removal.
func (p *Poller) readDatagram(conn net.PacketConn, buffer []byte) ([]byte, net.Addr, error) {
	_ = conn.SetReadDeadline(time.Now().Add(p.pollInterval))

	n, addr, err := conn.ReadFrom(buffer)
	if err != nil {
		return nil, nil, handleReadError(conn, err)
	}
	return buffer[:n], addr, nil
}

// handleReadError logs unexpected read failures. Timeouts are routine.
func handleReadError(conn net.PacketConn, err error) error {
	if isTimeout(err) {
		return err
	}
	if errors.Is(err, net.ErrClosed) {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"function":   "Poller.readDatagram",
		"local_addr": conn.LocalAddr().String(),
		"error":      err.Error(),
	}).Warn("Datagram read error")
	return err
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
