package source

import (
	"context"
	"io"
	"log"
	"os"
	"sync"
	"sync/atomic"

	"github.com/ftl/replayscope/stream"
)

const defaultLiveBufferCount = 64

// Live is a source that is fed by a receiver in the background. Blocks that arrive while the
// buffer is full are dropped, a live receiver must never be blocked by a slow reader.
type Live[S stream.Sample] struct {
	name       string
	sampleRate atomic.Int64
	dropped    atomic.Int64

	in          chan []S
	pending     []S
	rateChanged chan struct{}

	close     chan struct{}
	closeOnce *sync.Once
}

var _ RateNotifier = (*Live[complex64])(nil)

func NewLive[S stream.Sample](name string, bufferCount int) *Live[S] {
	if bufferCount <= 0 {
		bufferCount = defaultLiveBufferCount
	}
	return &Live[S]{
		name:        name,
		in:          make(chan []S, bufferCount),
		rateChanged: make(chan struct{}, 1),
		close:       make(chan struct{}),
		closeOnce:   &sync.Once{},
	}
}

// Push hands a block of samples to the reader. The block is copied.
func (l *Live[S]) Push(block []S) {
	select {
	case <-l.close:
		return
	default:
	}

	data := make([]S, len(block))
	copy(data, block)
	select {
	case l.in <- data:
	default:
		if l.dropped.Add(1)%100 == 1 {
			log.Printf("%s: reader too slow, dropped %d blocks so far", l.name, l.dropped.Load())
		}
	}
}

// SetSampleRate records the sample rate announced by the receiver and signals RateChanged if it differs
// from the previous rate.
func (l *Live[S]) SetSampleRate(sampleRate int) {
	if l.sampleRate.Swap(int64(sampleRate)) == int64(sampleRate) {
		return
	}
	select {
	case l.rateChanged <- struct{}{}:
	default:
	}
}

// RateChanged signals that SampleRate has a new value. Several changes may be coalesced into one signal.
func (l *Live[S]) RateChanged() <-chan struct{} {
	return l.rateChanged
}

// SampleRate returns the sample rate announced by the receiver, or 0 if it is not yet known.
func (l *Live[S]) SampleRate() int {
	return int(l.sampleRate.Load())
}

// Dropped returns the number of blocks that were dropped because the reader was too slow.
func (l *Live[S]) Dropped() int {
	return int(l.dropped.Load())
}

// Read blocks until samples are available, the context is done, or the source is closed.
func (l *Live[S]) Read(ctx context.Context, buf []S) (int, error) {
	if len(l.pending) == 0 {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-l.close:
			return 0, os.ErrClosed
		case data := <-l.in:
			l.pending = data
		}
	}
	if len(l.pending) == 0 {
		return 0, nil
	}

	n := copy(buf, l.pending)
	l.pending = l.pending[n:]
	return n, nil
}

// Done is closed when the source is closed.
func (l *Live[S]) Done() <-chan struct{} {
	return l.close
}

// CloseWithError closes the source. The receiver side uses it when the connection is lost.
func (l *Live[S]) CloseWithError(err error) {
	l.closeOnce.Do(func() {
		if err != nil && err != io.EOF {
			log.Printf("%s: %v", l.name, err)
		}
		close(l.close)
	})
}

func (l *Live[S]) Close() error {
	l.CloseWithError(nil)
	return nil
}
