package limits

import (
	"errors"
	"testing"
)

// TestMaxRTPPayloadCalculation verifies that MaxRTPPayload leaves room for the header
func TestMaxRTPPayloadCalculation(t *testing.T) {
	expected := MaxDatagramSize - RTPHeaderSize
	if MaxRTPPayload != expected {
		t.Errorf("MaxRTPPayload = %d, want %d", MaxRTPPayload, expected)
	}
}

func TestValidatePayloadSize(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		max     int
		wantErr error
	}{
		{"empty", nil, 10, ErrPayloadEmpty},
		{"exact", make([]byte, 10), 10, nil},
		{"too large", make([]byte, 11), 10, ErrPayloadTooLarge},
		{"small", []byte{1}, 10, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePayloadSize(tt.payload, tt.max)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateRTPPayload(t *testing.T) {
	if err := ValidateRTPPayload(make([]byte, MaxRTPPayload)); err != nil {
		t.Errorf("payload at limit rejected: %v", err)
	}
	if err := ValidateRTPPayload(make([]byte, MaxRTPPayload+1)); !errors.Is(err, ErrPayloadTooLarge) {
		t.Errorf("oversized payload error = %v, want ErrPayloadTooLarge", err)
	}
}

func TestValidateDatagram(t *testing.T) {
	if err := ValidateDatagram(make([]byte, RTPHeaderSize-1)); !errors.Is(err, ErrDatagramTruncated) {
		t.Errorf("short datagram error = %v, want ErrDatagramTruncated", err)
	}
	if err := ValidateDatagram(make([]byte, RTPHeaderSize)); err != nil {
		t.Errorf("header-sized datagram rejected: %v", err)
	}
}
