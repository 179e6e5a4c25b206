package rtp

import (
	"fmt"
	"net"

	"github.com/pion/sdp/v3"
)

const (
	sdpSessionName    = "rtpbridge"
	sdpClockRate      = 8000
	telephoneEventFmt = "0-15"
)

// Description builds an SDP session description advertising the session's
// local port with the given formats and RFC 2833 telephone events. When
// advertise is nil the bound address is used.
func (s *Session) Description(advertise net.IP, formats ...Format) (*sdp.SessionDescription, error) {
	ip := advertise
	if ip == nil {
		ip = s.local.IP
	}
	if ip.To4() == nil {
		return nil, fmt.Errorf("advertised address %v is not IPv4", ip)
	}

	media := &sdp.MediaDescription{
		MediaName: sdp.MediaName{
			Media:  "audio",
			Port:   sdp.RangedPort{Value: s.local.Port},
			Protos: []string{"RTP", "AVP"},
		},
	}
	for _, f := range formats {
		pt, ok := PayloadTypeForFormat(f)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, f)
		}
		media = media.WithCodec(pt, PayloadLabel(pt), sdpClockRate, 0, "")
	}
	media = media.
		WithCodec(PayloadTypeTelephoneEvent, PayloadLabel(PayloadTypeTelephoneEvent), sdpClockRate, 0, telephoneEventFmt).
		WithPropertyAttribute("sendrecv")

	desc := &sdp.SessionDescription{
		Version: 0,
		Origin: sdp.Origin{
			Username:       "-",
			SessionID:      uint64(s.ssrc),
			SessionVersion: uint64(s.ssrc) + 1,
			NetworkType:    "IN",
			AddressType:    "IP4",
			UnicastAddress: ip.String(),
		},
		SessionName: sdpSessionName,
		ConnectionInformation: &sdp.ConnectionInformation{
			NetworkType: "IN",
			AddressType: "IP4",
			Address:     &sdp.Address{Address: ip.String()},
		},
		TimeDescriptions:  []sdp.TimeDescription{{Timing: sdp.Timing{StartTime: 0, StopTime: 0}}},
		MediaDescriptions: []*sdp.MediaDescription{media},
	}
	return desc, nil
}
