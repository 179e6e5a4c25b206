package rtp

// Fixed-rate codec geometry.
const (
	gsmBlockSize    = 33
	gsmBlockSamples = 160
)

// SampleCount returns the number of 8kHz samples encoded by payload in format
// f. The boolean is false when the format has no known sample geometry, in
// which case the count is zero.
func SampleCount(f Format, payload []byte) (int, bool) {
	n := len(payload)
	switch f {
	case FormatULAW, FormatALAW:
		return n, true
	case FormatSLINEAR:
		return n / 2, true
	case FormatGSM:
		return gsmBlockSamples * (n / gsmBlockSize), true
	case FormatADPCM:
		return n * 2, true
	case FormatG729A:
		return n * 8, true
	case FormatG723:
		return G723Samples(payload), true
	}
	return 0, false
}
