package stream

import (
	"context"
	"errors"
	"io"
	"unicode/utf8"
)

const readBufferSize = 4096

// ReaderSource turns an io.Reader, typically an HTTP response body, into a
// Source. Each successful Read becomes one fragment; bytes of a UTF-8 sequence
// split across reads are held back until the sequence is complete.
type ReaderSource struct {
	r       io.Reader
	buf     []byte
	pending []byte
	err     error
}

func NewReaderSource(r io.Reader) *ReaderSource {
	return &ReaderSource{r: r, buf: make([]byte, readBufferSize)}
}

func (s *ReaderSource) Next(ctx context.Context) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if s.err != nil {
			return s.finish()
		}

		n, err := s.r.Read(s.buf)
		if err != nil {
			s.err = err
		}
		if n == 0 {
			continue
		}

		data := append(s.pending, s.buf[:n]...)
		cut := completeRunes(data)
		frag := string(data[:cut])
		s.pending = append([]byte(nil), data[cut:]...)
		if frag != "" {
			return frag, nil
		}
	}
}

// finish flushes held-back bytes before reporting the terminal error.
func (s *ReaderSource) finish() (string, error) {
	if len(s.pending) > 0 && errors.Is(s.err, io.EOF) {
		frag := string(s.pending)
		s.pending = nil
		return frag, nil
	}
	return "", s.err
}

// completeRunes returns the length of the longest prefix of b that does not
// end inside a multi-byte UTF-8 sequence.
func completeRunes(b []byte) int {
	i := len(b) - 1
	for i >= 0 && i > len(b)-utf8.UTFMax && !utf8.RuneStart(b[i]) {
		i--
	}
	if i < 0 || utf8.FullRune(b[i:]) {
		return len(b)
	}
	return i
}
