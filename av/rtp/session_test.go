package rtp

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/opd-ai/rtpbridge/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSession(t *testing.T) {
	s := newTestSession(t, Options{PortMin: 20000, PortMax: 30000})

	local := s.LocalAddr()
	assert.True(t, local.IP.Equal(net.IPv4(127, 0, 0, 1)))
	assert.Zero(t, local.Port%2, "rtp port must be even")
	assert.GreaterOrEqual(t, local.Port, 20000)
	assert.LessOrEqual(t, local.Port, 30000)
	assert.NotEmpty(t, s.ID())
	assert.Nil(t, s.Peer())
	assert.False(t, s.Closed())
}

func TestNewSessionErrors(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		err  error
	}{
		{name: "invalid bind address", opts: Options{BindAddress: "not-an-ip"}},
		{name: "ipv6 bind address", opts: Options{BindAddress: "::1"}},
		{name: "no even port in range", opts: Options{BindAddress: "127.0.0.1", PortMin: 1001, PortMax: 1001}, err: ErrInvalidPortRange},
		{name: "inverted range", opts: Options{BindAddress: "127.0.0.1", PortMin: 30000, PortMax: 20000}, err: ErrInvalidPortRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSession(tt.opts)
			assert.Error(t, err)
			assert.Nil(t, s)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
			}
		})
	}
}

func TestNewSessionPortExhausted(t *testing.T) {
	var taken *net.UDPConn
	for port := 40000; port < 41000 && taken == nil; port += 2 {
		conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port})
		if err == nil {
			taken = conn
		}
	}
	require.NotNil(t, taken)
	defer taken.Close()

	port := taken.LocalAddr().(*net.UDPAddr).Port
	s, err := NewSession(Options{BindAddress: "127.0.0.1", PortMin: port, PortMax: port})
	assert.ErrorIs(t, err, ErrNoPortAvailable)
	assert.Nil(t, s)
}

func TestSessionPeer(t *testing.T) {
	s := newTestSession(t, Options{})

	addr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 4000}
	s.SetPeer(addr)
	addr.Port = 5000
	require.NotNil(t, s.Peer())
	assert.Equal(t, 4000, s.Peer().Port, "peer must be copied")

	s.SetPeer(&net.UDPAddr{IP: net.IPv4zero, Port: 4000})
	assert.Nil(t, s.Peer())

	s.SetPeer(addr)
	s.SetPeer(nil)
	assert.Nil(t, s.Peer())
}

func TestSessionClose(t *testing.T) {
	s := newTestSession(t, Options{})

	require.NoError(t, s.Close())
	assert.NoError(t, s.Close())
	assert.True(t, s.Closed())

	_, err := s.Read(context.Background())
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.ErrorIs(t, s.SetTOS(0xb8), ErrSessionClosed)
}

func TestSessionReadContext(t *testing.T) {
	s := newTestSession(t, Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := s.Read(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	canceled, cancel2 := context.WithCancel(context.Background())
	cancel2()
	_, err = s.Read(canceled)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSessionReadUnblocksOnCancel(t *testing.T) {
	s := newTestSession(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		_, err := s.Read(ctx)
		errCh <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("read did not unblock")
	}

	peer := newPeerListener(t)
	_, err := peer.WriteToUDP(buildPacket(t, 0, 1, 0, make([]byte, 160)), s.LocalAddr())
	require.NoError(t, err)

	readCtx, readCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer readCancel()
	f, err := s.Read(readCtx)
	require.NoError(t, err, "deadline must be cleared after cancellation")
	assert.Equal(t, FrameVoice, f.Type)
}

func TestSessionLoopback(t *testing.T) {
	sender := newTestSession(t, Options{})
	receiver := newTestSession(t, Options{})
	sender.SetPeer(receiver.LocalAddr())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var prevSeq uint16
	var prevTs uint32
	for i := 0; i < 5; i++ {
		data := make([]byte, 320)
		data[0] = byte(i)
		require.NoError(t, sender.Write(NewVoiceFrame(FormatSLINEAR, data)))

		f, err := receiver.Read(ctx)
		require.NoError(t, err)
		require.Equal(t, FrameVoice, f.Type)
		assert.Equal(t, FormatSLINEAR, f.Format)
		assert.Equal(t, 160, f.Samples)
		assert.Equal(t, data, f.Data)
		assert.Equal(t, i == 0, f.Marker)
		assert.Equal(t, "RTP", f.Source)

		if i > 0 {
			assert.Equal(t, prevSeq+1, f.SequenceNumber, "frames arrive in order")
			assert.Greater(t, int32(f.Timestamp-prevTs), int32(0), "timestamps increase")
		}
		prevSeq, prevTs = f.SequenceNumber, f.Timestamp
	}

	assert.Equal(t, uint64(5), sender.Stats().PacketsSent)
	assert.Equal(t, uint64(5), receiver.Stats().PacketsReceived)
}

func TestSessionFramesOwnPayload(t *testing.T) {
	s := newTestSession(t, Options{})
	peer := newPeerListener(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := peer.WriteToUDP(buildPacket(t, 0, 1, 0, []byte{1, 2, 3}), s.LocalAddr())
	require.NoError(t, err)
	first, err := s.Read(ctx)
	require.NoError(t, err)

	_, err = peer.WriteToUDP(buildPacket(t, 0, 2, 160, []byte{9, 9, 9}), s.LocalAddr())
	require.NoError(t, err)
	_, err = s.Read(ctx)
	require.NoError(t, err)

	assert.Equal(t, []byte{1, 2, 3}, first.Data)
}

func TestSessionDropsInvalidDatagrams(t *testing.T) {
	s := newTestSession(t, Options{})
	peer := newPeerListener(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	tests := []struct {
		name string
		data []byte
	}{
		{name: "short datagram", data: []byte{0x80, 0, 0, 1, 0}},
		{name: "unknown payload type", data: buildPacket(t, 96, 1, 0, []byte{1})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := peer.WriteToUDP(tt.data, s.LocalAddr())
			require.NoError(t, err)
			f, err := s.Read(ctx)
			require.NoError(t, err)
			assert.True(t, f.IsNull())
		})
	}
	assert.Equal(t, uint64(2), s.Stats().PacketsDropped)
}

func TestSessionCallbackMode(t *testing.T) {
	poller := transport.NewPoller(10 * time.Millisecond)
	defer poller.Close()

	frames := make(chan *Frame, 4)
	s := newTestSession(t, Options{
		Poller: poller,
		Callback: func(_ *Session, f *Frame) {
			frames <- f
		},
	})
	assert.Equal(t, 1, poller.Len())

	_, err := s.Read(context.Background())
	assert.ErrorIs(t, err, ErrCallbackMode)

	peer := newPeerListener(t)
	_, err = peer.WriteToUDP(buildPacket(t, 96, 1, 0, []byte{1}), s.LocalAddr())
	require.NoError(t, err)
	_, err = peer.WriteToUDP(buildPacket(t, 8, 2, 0, []byte{1, 2}), s.LocalAddr())
	require.NoError(t, err)

	select {
	case f := <-frames:
		assert.Equal(t, FormatALAW, f.Format, "null frames are not delivered")
		assert.Equal(t, []byte{1, 2}, f.Data)
	case <-time.After(2 * time.Second):
		t.Fatal("callback not invoked")
	}

	require.NoError(t, s.Close())
	assert.Equal(t, 0, poller.Len())
}

func TestSessionBridgedForwarding(t *testing.T) {
	inbound := newTestSession(t, Options{})
	outbound := newTestSession(t, Options{})
	far := newPeerListener(t)
	outbound.SetPeer(far.LocalAddr().(*net.UDPAddr))

	inbound.SetBridged(outbound)
	assert.Same(t, outbound, inbound.Bridged())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	near := newPeerListener(t)
	raw := buildPacket(t, 0, 77, 1234, []byte{5, 6, 7})
	_, err := near.WriteToUDP(raw, inbound.LocalAddr())
	require.NoError(t, err)

	f, err := inbound.Read(ctx)
	require.NoError(t, err)
	assert.True(t, f.IsNull())

	pkt := readPacket(t, far)
	assert.Equal(t, uint16(77), pkt.SequenceNumber)
	assert.Equal(t, uint32(1234), pkt.Timestamp)
	assert.Equal(t, []byte{5, 6, 7}, pkt.Payload)
	assert.Equal(t, uint64(1), outbound.Stats().PacketsForwarded)

	inbound.SetBridged(nil)
	_, err = near.WriteToUDP(raw, inbound.LocalAddr())
	require.NoError(t, err)
	f, err = inbound.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, FrameVoice, f.Type)
}

func TestSessionSetTOS(t *testing.T) {
	s := newTestSession(t, Options{TOS: 0xb8})
	assert.NoError(t, s.SetTOS(0x10))
}
