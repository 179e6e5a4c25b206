package rtp

import (
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionDescription(t *testing.T) {
	s := newTestSession(t, Options{})

	desc, err := s.Description(nil, FormatULAW, FormatALAW)
	require.NoError(t, err)

	raw, err := desc.Marshal()
	require.NoError(t, err)
	text := string(raw)

	assert.Contains(t, text, "c=IN IP4 127.0.0.1")
	assert.Contains(t, text, fmt.Sprintf("m=audio %d RTP/AVP 0 8 101", s.LocalAddr().Port))
	assert.Contains(t, text, "a=rtpmap:0 PCMU/8000")
	assert.Contains(t, text, "a=rtpmap:8 PCMA/8000")
	assert.Contains(t, text, "a=rtpmap:101 telephone-event/8000")
	assert.Contains(t, text, "a=fmtp:101 0-15")
	assert.Contains(t, text, "a=sendrecv")
}

func TestSessionDescriptionAdvertisedAddress(t *testing.T) {
	s := newTestSession(t, Options{})

	desc, err := s.Description(net.IPv4(192, 0, 2, 10), FormatGSM)
	require.NoError(t, err)
	assert.Equal(t, "192.0.2.10", desc.ConnectionInformation.Address.Address)
	assert.Equal(t, "192.0.2.10", desc.Origin.UnicastAddress)
}

func TestSessionDescriptionErrors(t *testing.T) {
	s := newTestSession(t, Options{})

	_, err := s.Description(nil, Format(1<<4))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = s.Description(net.ParseIP("2001:db8::1"), FormatULAW)
	assert.Error(t, err)
}
