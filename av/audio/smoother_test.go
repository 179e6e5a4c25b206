package audio

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSmoother(t *testing.T) {
	tests := []struct {
		name      string
		size      int
		expectErr bool
	}{
		{name: "ulaw_20ms", size: 160},
		{name: "gsm_block", size: 33},
		{name: "zero", size: 0, expectErr: true},
		{name: "negative", size: -1, expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sm, err := NewSmoother(tt.size)
			if tt.expectErr {
				assert.ErrorIs(t, err, ErrInvalidChunkSize)
				assert.Nil(t, sm)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.size, sm.Size())
			assert.Zero(t, sm.Len())
		})
	}
}

func TestSmootherRechunksFixedSize(t *testing.T) {
	sm, err := NewSmoother(160)
	require.NoError(t, err)

	// 100 + 100 + 120 bytes in, two 160-byte chunks out.
	require.NoError(t, sm.Feed(bytes.Repeat([]byte{1}, 100)))
	assert.Nil(t, sm.Read())

	require.NoError(t, sm.Feed(bytes.Repeat([]byte{2}, 100)))
	first := sm.Read()
	require.Len(t, first, 160)
	assert.Equal(t, byte(1), first[0])
	assert.Equal(t, byte(2), first[159])
	assert.Nil(t, sm.Read())

	require.NoError(t, sm.Feed(bytes.Repeat([]byte{3}, 120)))
	second := sm.Read()
	require.Len(t, second, 160)
	assert.Equal(t, 0, sm.Len())
}

func TestSmootherReturnsOwnedChunks(t *testing.T) {
	sm, err := NewSmoother(4)
	require.NoError(t, err)

	require.NoError(t, sm.Feed([]byte{1, 2, 3, 4, 5, 6, 7, 8}))
	a := sm.Read()
	b := sm.Read()
	a[0] = 99

	assert.Equal(t, []byte{5, 6, 7, 8}, b)
}

func TestSmootherOverflow(t *testing.T) {
	sm, err := NewSmoother(MaxBuffered * 2)
	require.NoError(t, err)

	require.NoError(t, sm.Feed(make([]byte, MaxBuffered)))
	assert.ErrorIs(t, sm.Feed([]byte{1}), ErrSmootherFull)
	assert.Equal(t, MaxBuffered, sm.Len())
}

func TestFramedSmoother(t *testing.T) {
	// First byte encodes the frame length.
	framer := func(buf []byte) int { return int(buf[0]) }
	sm := NewFramedSmoother(framer)
	assert.Zero(t, sm.Size())

	require.NoError(t, sm.Feed([]byte{3, 0, 0, 2, 0, 4}))
	assert.Equal(t, []byte{3, 0, 0}, sm.Read())
	assert.Equal(t, []byte{2, 0}, sm.Read())

	// Only one byte of a four-byte frame is buffered.
	assert.Nil(t, sm.Read())
	require.NoError(t, sm.Feed([]byte{0, 0, 0}))
	assert.Equal(t, []byte{4, 0, 0, 0}, sm.Read())
}

func TestFramedSmootherDiscardsUndecodable(t *testing.T) {
	sm := NewFramedSmoother(func(buf []byte) int { return -1 })

	require.NoError(t, sm.Feed([]byte{1, 2, 3}))
	assert.Nil(t, sm.Read())
	assert.Zero(t, sm.Len())
}

func TestSmootherReset(t *testing.T) {
	sm, err := NewSmoother(10)
	require.NoError(t, err)

	require.NoError(t, sm.Feed([]byte{1, 2, 3}))
	sm.Reset()
	assert.Zero(t, sm.Len())
}
