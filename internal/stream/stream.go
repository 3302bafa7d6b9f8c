// Package stream assembles a streamed response body into cumulative snapshots.
//
// One Assembler handles exactly one response. Fragments are appended in arrival
// order and every fragment produces one snapshot, the concatenation of all
// fragments so far. A broken source never discards what already arrived: the
// partial text travels with the InterruptedError.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"
	"time"
)

var (
	// ErrInterrupted matches any *InterruptedError.
	ErrInterrupted = errors.New("stream interrupted")
	// ErrConsumed is returned when an Assembler is iterated a second time.
	ErrConsumed = errors.New("stream already consumed")
)

// InterruptedError reports a source failure before the end-of-data marker,
// preserving the content received until then.
type InterruptedError struct {
	Partial string
	Err     error
}

func (e *InterruptedError) Error() string {
	if e.Partial != "" {
		return fmt.Sprintf("stream interrupted after %d bytes: %v", len(e.Partial), e.Err)
	}
	return fmt.Sprintf("stream interrupted: %v", e.Err)
}

func (e *InterruptedError) Unwrap() []error {
	return []error{ErrInterrupted, e.Err}
}

// Source yields fragments in order. It returns io.EOF once there is no more data.
type Source interface {
	Next(ctx context.Context) (string, error)
}

// Stats describes one assembled stream.
type Stats struct {
	Fragments     int
	Bytes         int
	FirstFragment time.Duration // time to first fragment
	Elapsed       time.Duration
}

// Assembler accumulates the fragments of one Source.
type Assembler struct {
	src      Source
	text     strings.Builder
	stats    Stats
	consumed bool
	done     bool
}

// New returns an assembler over src.
func New(src Source) *Assembler {
	return &Assembler{src: src}
}

// Snapshots returns a lazy, finite, non-restartable sequence of snapshots. The
// sequence ends cleanly when the source is exhausted; on failure the last pair
// carries an *InterruptedError.
func (a *Assembler) Snapshots(ctx context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if a.consumed {
			yield("", ErrConsumed)
			return
		}
		a.consumed = true

		start := time.Now()
		defer func() { a.stats.Elapsed = time.Since(start) }()

		for {
			frag, err := a.src.Next(ctx)
			if errors.Is(err, io.EOF) {
				a.done = true
				return
			}
			if err != nil {
				yield("", &InterruptedError{Partial: a.text.String(), Err: err})
				return
			}
			if a.stats.Fragments == 0 {
				a.stats.FirstFragment = time.Since(start)
			}
			a.stats.Fragments++
			a.stats.Bytes += len(frag)
			a.text.WriteString(frag)
			if !yield(a.text.String(), nil) {
				return
			}
		}
	}
}

// Run drains the stream, handing each snapshot to onProgress, and returns the
// complete text. On interruption it returns the partial text together with the
// *InterruptedError.
func (a *Assembler) Run(ctx context.Context, onProgress func(snapshot string)) (string, error) {
	for snapshot, err := range a.Snapshots(ctx) {
		if err != nil {
			return a.Text(), err
		}
		if onProgress != nil {
			onProgress(snapshot)
		}
	}
	return a.Text(), nil
}

// Text returns everything accumulated so far.
func (a *Assembler) Text() string { return a.text.String() }

// Done reports whether the source reached its end-of-data marker.
func (a *Assembler) Done() bool { return a.done }

func (a *Assembler) Stats() Stats { return a.stats }
