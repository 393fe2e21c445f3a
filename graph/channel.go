package graph

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/ftl/replayscope/audio"
	"github.com/ftl/replayscope/kiwi"
	"github.com/ftl/replayscope/scope"
	"github.com/ftl/replayscope/source"
	"github.com/ftl/replayscope/stream"
	"github.com/ftl/replayscope/tap"
	"github.com/ftl/replayscope/tci"
	"github.com/ftl/replayscope/throttle"
)

// channel is the type independent view on a pipeline.
type channel interface {
	Name() string
	Sinks() []scope.Sink
	Throttle() *throttle.Throttle
	SetSampleRate(sampleRate int) error
	rateNotifier() source.RateNotifier
	run(ctx context.Context) error
	close()
}

// pipeline moves the samples of one channel from its source through the throttle into the sinks.
type pipeline[S stream.Sample] struct {
	name      string
	blockSize int
	source    source.Source[S]
	throttle  *throttle.Throttle
	sinks     []scope.Sink
	consumers []scope.Consumer[S]
	taps      []tap.Tap
	monitor   *audio.Monitor
	feed      func([]S)
}

func newChannel(config Config, channelConfig ChannelConfig) (channel, error) {
	kind, err := stream.ParseKind(string(channelConfig.Kind))
	if err != nil {
		return nil, err
	}
	var result channel
	switch kind {
	case stream.Complex:
		p, err := newPipeline[complex64](config, channelConfig)
		if err != nil {
			return nil, err
		}
		result = p
	default:
		p, err := newPipeline[float32](config, channelConfig)
		if err != nil {
			return nil, err
		}
		result = p
	}
	return result, nil
}

func newPipeline[S stream.Sample](config Config, channelConfig ChannelConfig) (result *pipeline[S], err error) {
	result = &pipeline[S]{
		name:      channelConfig.Name,
		blockSize: config.BlockSize,
	}
	defer func() {
		if err != nil {
			result.close()
			result = nil
		}
	}()

	result.source, err = openSource[S](config, channelConfig)
	if err != nil {
		return result, fmt.Errorf("channel %s: %w", channelConfig.Name, err)
	}

	result.throttle, err = throttle.New(config.SampleRate)
	if err != nil {
		return result, fmt.Errorf("channel %s: %w", channelConfig.Name, err)
	}

	ids := make(map[scope.StreamID]int)
	for _, sinkConfig := range channelConfig.Sinks {
		id := scope.StreamID(fmt.Sprintf("%s-%s", channelConfig.Name, sinkConfig.Type))
		ids[id]++
		if ids[id] > 1 {
			id = scope.StreamID(fmt.Sprintf("%s-%d", id, ids[id]))
		}

		sink, consumer, err := newSink[S](id, config.SampleRate, sinkConfig)
		if err != nil {
			return result, fmt.Errorf("channel %s: %w", channelConfig.Name, err)
		}
		result.sinks = append(result.sinks, sink)
		result.consumers = append(result.consumers, consumer)
	}

	for _, arg := range channelConfig.Taps {
		t, err := tap.Parse(arg)
		if err != nil {
			return result, fmt.Errorf("channel %s: %w", channelConfig.Name, err)
		}
		t.Start()
		result.taps = append(result.taps, t)
	}

	if channelConfig.Monitor {
		result.startMonitor(config.SampleRate)
	}

	return result, nil
}

// startMonitor plays a real channel on the audio output. An unavailable audio output is not fatal.
func (p *pipeline[S]) startMonitor(sampleRate int) {
	monitor, err := audio.NewMonitor(p.name, sampleRate)
	if err != nil {
		log.Printf("cannot monitor channel %s: %v", p.name, err)
		return
	}
	feed, ok := any(monitor.Feed).(func([]S))
	if !ok {
		log.Printf("cannot monitor channel %s: only real channels can be monitored", p.name)
		monitor.Close()
		return
	}
	p.monitor = monitor
	p.feed = feed
}

func openSource[S stream.Sample](config Config, channelConfig ChannelConfig) (source.Source[S], error) {
	sourceConfig := channelConfig.Source
	var result any
	var err error
	switch sourceConfig.Type {
	case FileSource, "":
		filename := sourceConfig.Path
		if !filepath.IsAbs(filename) && config.DataDir != "" {
			filename = filepath.Join(config.DataDir, filename)
		}
		file, err := source.OpenFile[S](filename, source.FileOptions{
			Repeat: !sourceConfig.Once,
			Offset: sourceConfig.Offset,
			Length: sourceConfig.Length,
		})
		if err != nil {
			return nil, err
		}
		return file, nil
	case TCISource:
		result, err = tci.Open(sourceConfig.Host, sourceConfig.TRX, sourceConfig.TraceTCI)
	case KiwiSource:
		result, err = kiwi.Open(sourceConfig.Host, sourceConfig.Username, sourceConfig.Password, sourceConfig.CenterFrequency, sourceConfig.Bandwidth)
	default:
		return nil, fmt.Errorf("unknown source type %q", sourceConfig.Type)
	}
	if err != nil {
		return nil, err
	}

	typed, ok := result.(source.Source[S])
	if !ok {
		closer, _ := result.(io.Closer)
		if closer != nil {
			closer.Close()
		}
		return nil, fmt.Errorf("%s provides %s samples", sourceConfig.Type, stream.Complex)
	}
	return typed, nil
}

func newSink[S stream.Sample](id scope.StreamID, sampleRate int, config scope.Config) (scope.Sink, scope.Consumer[S], error) {
	switch config.Type {
	case scope.TimePanel:
		sink, err := scope.NewTimeSink[S](id, sampleRate, config)
		if err != nil {
			return nil, nil, err
		}
		return sink, sink, nil
	case scope.FrequencyPanel:
		sink, err := scope.NewFrequencySink[S](id, sampleRate, config)
		if err != nil {
			return nil, nil, err
		}
		return sink, sink, nil
	case scope.WaterfallPanel:
		sink, err := scope.NewWaterfallSink[S](id, sampleRate, config)
		if err != nil {
			return nil, nil, err
		}
		return sink, sink, nil
	default:
		return nil, nil, fmt.Errorf("sink %s: unknown sink type %q", id, config.Type)
	}
}

func (p *pipeline[S]) Name() string {
	return p.name
}

func (p *pipeline[S]) Sinks() []scope.Sink {
	return p.sinks
}

func (p *pipeline[S]) Throttle() *throttle.Throttle {
	return p.throttle
}

func (p *pipeline[S]) SetSampleRate(sampleRate int) error {
	err := p.throttle.SetRate(sampleRate)
	if err != nil {
		return err
	}
	for _, sink := range p.sinks {
		err = sink.SetSampleRate(sampleRate)
		if err != nil {
			return err
		}
	}
	if p.monitor != nil {
		err = p.monitor.SetSampleRate(sampleRate)
		if err != nil {
			log.Printf("cannot change the monitor sample rate of channel %s: %v", p.name, err)
		}
	}
	return nil
}

// rateNotifier returns the source if it announces its sample rate, otherwise nil.
func (p *pipeline[S]) rateNotifier() source.RateNotifier {
	notifier, ok := p.source.(source.RateNotifier)
	if !ok {
		return nil
	}
	return notifier
}

// run reads and forwards samples until the context is done or the source fails.
func (p *pipeline[S]) run(ctx context.Context) error {
	buf := make([]S, p.blockSize)
	var raw []byte
	for {
		n, err := p.source.Read(ctx, buf)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
			log.Printf("channel %s: end of stream", p.name)
			return nil
		}
		if err != nil {
			return fmt.Errorf("channel %s: %w", p.name, err)
		}
		if n == 0 {
			continue
		}

		err = p.throttle.Wait(ctx, n)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return fmt.Errorf("channel %s: %w", p.name, err)
		}

		block := buf[:n]
		if len(p.taps) > 0 {
			raw = stream.Encode(raw[:0], block)
			for _, t := range p.taps {
				t.Tap(raw)
			}
		}
		if p.feed != nil {
			p.feed(block)
		}
		for _, consumer := range p.consumers {
			consumer.Consume(block)
		}
	}
}

func (p *pipeline[S]) close() {
	if p.source != nil {
		err := p.source.Close()
		if err != nil {
			log.Printf("cannot close the source of channel %s: %v", p.name, err)
		}
	}
	for _, t := range p.taps {
		t.Stop()
	}
	if p.monitor != nil {
		p.monitor.Close()
	}
}
