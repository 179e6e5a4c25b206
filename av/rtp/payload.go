package rtp

// Payload types that carry no audio format of their own and are handled by
// dedicated decoders on the receive path.
const (
	// PayloadTypeComfortNoise is RFC 3389 comfort noise.
	PayloadTypeComfortNoise uint8 = 13
	// PayloadTypeVendorEvent is a vendor telephone-event variant decoded as RFC 2833.
	PayloadTypeVendorEvent uint8 = 100
	// PayloadTypeTelephoneEvent is the RFC 2833 telephone-event payload type.
	PayloadTypeTelephoneEvent uint8 = 101
	// PayloadTypeVendorDTMF is the proprietary 8-byte DTMF relay encoding.
	PayloadTypeVendorDTMF uint8 = 121
)

// PayloadMapping is one row of the static payload-type table.
type PayloadMapping struct {
	PayloadType uint8
	Format      Format
	Label       string
}

// payloadTable is immutable after init and scanned linearly in both directions.
var payloadTable = []PayloadMapping{
	{PayloadType: 0, Format: FormatULAW, Label: "PCMU"},
	{PayloadType: 3, Format: FormatGSM, Label: "GSM"},
	{PayloadType: 4, Format: FormatG723, Label: "G723"},
	{PayloadType: 5, Format: FormatADPCM, Label: "DVI4"},
	{PayloadType: 7, Format: FormatLPC10, Label: "LPC"},
	{PayloadType: 8, Format: FormatALAW, Label: "PCMA"},
	{PayloadType: 11, Format: FormatSLINEAR, Label: "L16"},
	{PayloadType: 18, Format: FormatG729A, Label: "G729"},
}

// FormatForPayloadType translates a wire payload type into a Format.
func FormatForPayloadType(pt uint8) (Format, bool) {
	for _, m := range payloadTable {
		if m.PayloadType == pt {
			return m.Format, true
		}
	}
	return 0, false
}

// PayloadTypeForFormat translates a Format into its wire payload type.
func PayloadTypeForFormat(f Format) (uint8, bool) {
	for _, m := range payloadTable {
		if m.Format == f {
			return m.PayloadType, true
		}
	}
	return 0, false
}

// PayloadLabel returns the encoding name for a payload type, or "" when the
// payload type is not in the table.
func PayloadLabel(pt uint8) string {
	for _, m := range payloadTable {
		if m.PayloadType == pt {
			return m.Label
		}
	}
	switch pt {
	case PayloadTypeTelephoneEvent:
		return "telephone-event"
	case PayloadTypeComfortNoise:
		return "CN"
	}
	return ""
}

// PayloadTable returns a copy of the static payload-type table.
func PayloadTable() []PayloadMapping {
	out := make([]PayloadMapping, len(payloadTable))
	copy(out, payloadTable)
	return out
}
