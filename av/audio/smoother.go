package audio

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// MaxBuffered bounds the bytes a smoother may hold before Feed refuses input.
const MaxBuffered = 8192

var (
	// ErrInvalidChunkSize indicates a non-positive fixed chunk size.
	ErrInvalidChunkSize = errors.New("smoother chunk size must be positive")

	// ErrSmootherFull indicates Feed would exceed MaxBuffered.
	ErrSmootherFull = errors.New("smoother buffer full")
)

// FrameLengthFunc returns the byte length of the codec frame at the start of
// buf. A return value <= 0 marks the data as undecodable.
type FrameLengthFunc func(buf []byte) int

// Smoother re-chunks a byte stream into fixed-size or frame-aligned units.
type Smoother struct {
	size   int
	framer FrameLengthFunc
	buf    []byte
}

// NewSmoother creates a smoother that emits chunks of exactly size bytes.
func NewSmoother(size int) (*Smoother, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChunkSize, size)
	}
	return &Smoother{
		size: size,
		buf:  make([]byte, 0, size*2),
	}, nil
}

// NewFramedSmoother creates a smoother that emits one codec frame per Read,
// with frame boundaries found by framer.
func NewFramedSmoother(framer FrameLengthFunc) *Smoother {
	return &Smoother{framer: framer}
}

// Size returns the fixed chunk size, or 0 for a framed smoother.
func (s *Smoother) Size() int {
	return s.size
}

// Len returns the number of buffered bytes not yet handed out.
func (s *Smoother) Len() int {
	return len(s.buf)
}

// Feed appends data to the smoother.
func (s *Smoother) Feed(data []byte) error {
	if len(s.buf)+len(data) > MaxBuffered {
		logrus.WithFields(logrus.Fields{
			"function": "Smoother.Feed",
			"buffered": len(s.buf),
			"incoming": len(data),
		}).Warn("Smoother overflow, dropping frame")
		return fmt.Errorf("%w: %d buffered, %d incoming", ErrSmootherFull, len(s.buf), len(data))
	}
	s.buf = append(s.buf, data...)
	return nil
}

// Read returns the next complete chunk, or nil when not enough data is
// buffered. The returned slice is owned by the caller.
func (s *Smoother) Read() []byte {
	n := s.nextLength()
	if n <= 0 || n > len(s.buf) {
		return nil
	}
	out := make([]byte, n)
	copy(out, s.buf[:n])
	s.buf = append(s.buf[:0], s.buf[n:]...)
	return out
}

// Reset discards all buffered data.
func (s *Smoother) Reset() {
	s.buf = s.buf[:0]
}

func (s *Smoother) nextLength() int {
	if s.framer == nil {
		return s.size
	}
	if len(s.buf) == 0 {
		return 0
	}
	n := s.framer(s.buf)
	if n <= 0 {
		logrus.WithFields(logrus.Fields{
			"function": "Smoother.Read",
			"dropped":  len(s.buf),
		}).Warn("Undecodable frame in smoother, discarding buffered data")
		s.Reset()
		return 0
	}
	return n
}
