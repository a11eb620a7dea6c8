package notification

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Source is a report attachment. It is one of BytesSource, PathSource or
// *ReaderSource.
type Source interface {
	Bytes() ([]byte, error)
	sealed()
}

// BytesSource is an attachment already held in memory.
type BytesSource []byte

// Bytes returns the raw content.
func (b BytesSource) Bytes() ([]byte, error) {
	return []byte(b), nil
}

func (BytesSource) sealed() {}

// PathSource is an attachment read from disk when needed.
type PathSource string

// Bytes reads the file.
func (p PathSource) Bytes() ([]byte, error) {
	data, err := os.ReadFile(string(p))
	if err != nil {
		return nil, fmt.Errorf("read attachment %s: %w", string(p), err)
	}
	return data, nil
}

func (PathSource) sealed() {}

// ReaderSource is an attachment backed by a stream. The stream is consumed on
// the first call to Bytes and the result is reused afterwards.
type ReaderSource struct {
	r    io.Reader
	once sync.Once
	data []byte
	err  error
}

// NewReaderSource wraps r.
func NewReaderSource(r io.Reader) *ReaderSource {
	return &ReaderSource{r: r}
}

// Bytes drains the reader once.
func (s *ReaderSource) Bytes() ([]byte, error) {
	s.once.Do(func() {
		if s.r == nil {
			s.err = fmt.Errorf("read attachment: nil reader")
			return
		}
		s.data, s.err = io.ReadAll(s.r)
		if s.err != nil {
			s.err = fmt.Errorf("read attachment: %w", s.err)
		}
	})
	return s.data, s.err
}

func (*ReaderSource) sealed() {}
