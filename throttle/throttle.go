// Package throttle paces a sample stream to a nominal sample rate.
package throttle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// window is the time span of samples that may pass in one burst.
	window = 100 * time.Millisecond
	// measurementWindow is the time span over which the effective rate is measured.
	measurementWindow = time.Second
)

// Throttle limits the throughput of a stream to a target rate in samples per second.
type Throttle struct {
	limiter *rate.Limiter
	clock   func() time.Time

	measurementLock *sync.Mutex
	measurements    []measurement
}

type measurement struct {
	timestamp time.Time
	count     int
}

// New returns a throttle that paces to the given rate. The rate must be positive.
func New(sampleRate int) (*Throttle, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	return &Throttle{
		limiter:         rate.NewLimiter(rate.Limit(sampleRate), burstSize(sampleRate)),
		clock:           time.Now,
		measurementLock: &sync.Mutex{},
	}, nil
}

func burstSize(sampleRate int) int {
	return max(1, int(float64(sampleRate)*window.Seconds()))
}

// SetRate changes the target rate. It is safe to call while another goroutine waits.
func (t *Throttle) SetRate(sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	t.limiter.SetBurst(burstSize(sampleRate))
	t.limiter.SetLimit(rate.Limit(sampleRate))
	return nil
}

// Rate returns the target rate.
func (t *Throttle) Rate() int {
	return int(t.limiter.Limit())
}

// Wait blocks until n more samples may pass. It returns early with the context's error if the context is done.
func (t *Throttle) Wait(ctx context.Context, n int) error {
	for n > 0 {
		chunk := min(n, t.limiter.Burst())
		if err := t.limiter.WaitN(ctx, chunk); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if chunk > t.limiter.Burst() {
				// the burst shrunk by a concurrent SetRate
				continue
			}
			return err
		}
		t.measure(chunk)
		n -= chunk
	}
	return nil
}

func (t *Throttle) measure(count int) {
	t.measurementLock.Lock()
	defer t.measurementLock.Unlock()

	now := t.clock()
	t.measurements = append(t.measurements, measurement{timestamp: now, count: count})
	t.dropOldMeasurements(now)
}

func (t *Throttle) dropOldMeasurements(now time.Time) {
	oldest := now.Add(-measurementWindow)
	i := 0
	for i < len(t.measurements) && t.measurements[i].timestamp.Before(oldest) {
		i++
	}
	if i > 0 {
		t.measurements = append(t.measurements[:0], t.measurements[i:]...)
	}
}

// EffectiveRate returns the number of samples per second that passed during the last second.
func (t *Throttle) EffectiveRate() float64 {
	t.measurementLock.Lock()
	defer t.measurementLock.Unlock()

	t.dropOldMeasurements(t.clock())

	var sum int
	for _, m := range t.measurements {
		sum += m.count
	}
	return float64(sum) / measurementWindow.Seconds()
}
