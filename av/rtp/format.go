package rtp

import "fmt"

// Format identifies an audio encoding carried in voice frames.
// Values are single bits so that a set of formats can be expressed as a mask.
type Format uint32

const (
	// FormatG723 is ITU-T G.723.1, 30ms variable-length sub-frames.
	FormatG723 Format = 1 << 0
	// FormatGSM is GSM 06.10 full rate, 33-byte blocks of 160 samples.
	FormatGSM Format = 1 << 1
	// FormatULAW is G.711 mu-law.
	FormatULAW Format = 1 << 2
	// FormatALAW is G.711 A-law.
	FormatALAW Format = 1 << 3
	// FormatADPCM is 4-bit IMA/DVI ADPCM.
	FormatADPCM Format = 1 << 5
	// FormatSLINEAR is 16-bit signed linear PCM in network byte order.
	FormatSLINEAR Format = 1 << 6
	// FormatLPC10 is LPC-10 2.4kbps.
	FormatLPC10 Format = 1 << 7
	// FormatG729A is ITU-T G.729 Annex A.
	FormatG729A Format = 1 << 8
)

var formatNames = map[Format]string{
	FormatG723:    "g723",
	FormatGSM:     "gsm",
	FormatULAW:    "ulaw",
	FormatALAW:    "alaw",
	FormatADPCM:   "adpcm",
	FormatSLINEAR: "slin",
	FormatLPC10:   "lpc10",
	FormatG729A:   "g729",
}

// String returns the short codec name.
func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("format(0x%x)", uint32(f))
}

// ParseFormat resolves a short codec name as printed by Format.String.
func ParseFormat(name string) (Format, bool) {
	for f, n := range formatNames {
		if n == name {
			return f, true
		}
	}
	return 0, false
}
