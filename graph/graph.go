// Package graph wires the channels of replayscope together: every channel reads samples from its source,
// throttles them to the configured sample rate and feeds them into its display sinks. The graph renders
// the latest buffers of all sinks onto a display.
package graph

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ftl/replayscope/scope"
	"github.com/ftl/replayscope/snapshot"
	"github.com/ftl/replayscope/source"
	"github.com/ftl/replayscope/throttle"
)

type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	return f()
}

var WallClock = ClockFunc(time.Now)

type Graph struct {
	config    Config
	clock     Clock
	display   scope.Display
	channels  []channel
	sinks     []scope.Sink
	snapshots *snapshot.Writer

	rateLock   *sync.Mutex
	sampleRate int

	runLock   *sync.Mutex
	op        chan func()
	stopped   chan struct{}
	closeOnce *sync.Once
}

// New builds all channels of the given configuration in order. If one channel cannot be built, the
// already built channels are closed again. The display may be filled until Run is called.
func New(config Config, display scope.Display) (*Graph, error) {
	if config.BlockSize == 0 {
		config.BlockSize = defaultBlockSize
	}
	err := config.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if display == nil {
		display = scope.NewNullScope()
	}

	result := &Graph{
		config:     config,
		clock:      WallClock,
		display:    display,
		snapshots:  snapshot.NewWriter(config.SnapshotDir),
		rateLock:   &sync.Mutex{},
		sampleRate: config.SampleRate,
		runLock:    &sync.Mutex{},
		closeOnce:  &sync.Once{},
	}

	for _, channelConfig := range config.Channels {
		c, err := newChannel(config, channelConfig)
		if err != nil {
			result.closeChannels()
			return nil, err
		}
		result.channels = append(result.channels, c)
		result.sinks = append(result.sinks, c.Sinks()...)
	}

	return result, nil
}

func (g *Graph) SetClock(clock Clock) {
	g.do(func() {
		g.clock = clock
	})
}

// Panels describes the display panels of all sinks in the order of their configuration.
func (g *Graph) Panels() []scope.Panel {
	result := make([]scope.Panel, len(g.sinks))
	for i, sink := range g.sinks {
		result[i] = sink.Panel()
	}
	return result
}

func (g *Graph) Sinks() []scope.Sink {
	return g.sinks
}

// Throttles returns the throttle of every channel in the order of their configuration.
func (g *Graph) Throttles() []*throttle.Throttle {
	result := make([]*throttle.Throttle, len(g.channels))
	for i, c := range g.channels {
		result[i] = c.Throttle()
	}
	return result
}

// Run starts the channels and renders the sinks until the context is done. All channels are
// stopped and closed before Run returns. A graph can only run once.
func (g *Graph) Run(ctx context.Context) error {
	g.runLock.Lock()
	if g.op != nil || g.stopped != nil {
		g.runLock.Unlock()
		return fmt.Errorf("graph is already running")
	}
	g.op = make(chan func())
	g.stopped = make(chan struct{})
	op := g.op
	stopped := g.stopped
	g.runLock.Unlock()

	defer close(stopped)
	defer g.Close()

	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()
	workers := &sync.WaitGroup{}
	for _, c := range g.channels {
		workers.Add(1)
		go func(c channel) {
			defer workers.Done()
			err := c.run(workerCtx)
			if err != nil {
				log.Printf("channel %s stopped: %v", c.Name(), err)
			}
		}(c)

		notifier := c.rateNotifier()
		if notifier == nil {
			continue
		}
		workers.Add(1)
		go func(name string, notifier source.RateNotifier) {
			defer workers.Done()
			g.followSampleRate(workerCtx, name, notifier)
		}(c.Name(), notifier)
	}
	log.Printf("running %d channels with %d sinks at %d Hz", len(g.channels), len(g.sinks), g.SampleRate())

	ticker := time.NewTicker(g.renderTick())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			cancelWorkers()
			workers.Wait()
			log.Print("graph stopped")
			return nil
		case f := <-op:
			f()
		case <-ticker.C:
			g.render()
		}
	}
}

// renderTick is the smallest update interval of all sinks.
func (g *Graph) renderTick() time.Duration {
	result := time.Duration(0)
	for _, sink := range g.sinks {
		interval := sink.UpdateInterval()
		if result == 0 || interval < result {
			result = interval
		}
	}
	if result < minRenderTick {
		result = minRenderTick
	}
	return result
}

func (g *Graph) render() {
	now := g.clock.Now()
	for _, sink := range g.sinks {
		sink.Refresh(now, g.display)
	}
}

// do executes f on the render loop while the graph is running, otherwise directly.
func (g *Graph) do(f func()) {
	g.runLock.Lock()
	op := g.op
	stopped := g.stopped
	g.runLock.Unlock()

	if op == nil {
		f()
		return
	}

	done := make(chan struct{})
	select {
	case op <- func() {
		defer close(done)
		f()
	}:
		<-done
	case <-stopped:
		f()
	}
}

// SetSampleRate changes the rate of all throttles and the sample rate of all sinks at once.
// Setting the current rate again has no effect. An invalid rate is rejected and changes nothing.
func (g *Graph) SetSampleRate(sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", sampleRate)
	}

	g.rateLock.Lock()
	defer g.rateLock.Unlock()
	if sampleRate == g.sampleRate {
		return nil
	}

	for _, c := range g.channels {
		err := c.SetSampleRate(sampleRate)
		if err != nil {
			return fmt.Errorf("cannot set sample rate of channel %s: %w", c.Name(), err)
		}
	}
	g.sampleRate = sampleRate
	log.Printf("sample rate set to %d Hz", sampleRate)
	return nil
}

// followSampleRate applies the sample rate that a live source announces to the whole graph.
func (g *Graph) followSampleRate(ctx context.Context, name string, notifier source.RateNotifier) {
	apply := func() {
		sampleRate := notifier.SampleRate()
		if sampleRate <= 0 {
			return
		}
		err := g.SetSampleRate(sampleRate)
		if err != nil {
			log.Printf("cannot follow the sample rate of channel %s: %v", name, err)
		}
	}

	apply()
	for {
		select {
		case <-ctx.Done():
			return
		case <-notifier.RateChanged():
			apply()
		}
	}
}

func (g *Graph) SampleRate() int {
	g.rateLock.Lock()
	defer g.rateLock.Unlock()
	return g.sampleRate
}

// Snapshot writes the latest buffers of all sinks to the snapshot directory.
func (g *Graph) Snapshot() ([]string, error) {
	var filenames []string
	var err error
	g.do(func() {
		snapshots := make([]scope.Snapshot, len(g.sinks))
		for i, sink := range g.sinks {
			snapshots[i] = sink.Snapshot()
		}
		filenames, err = g.snapshots.Write(g.clock.Now(), snapshots...)
	})
	return filenames, err
}

// Close releases the sources, taps and monitors of all channels. Close is called by Run on shutdown, it is
// only needed if the graph never runs.
func (g *Graph) Close() {
	g.closeOnce.Do(g.closeChannels)
}

func (g *Graph) closeChannels() {
	for _, c := range g.channels {
		c.close()
	}
}
