// Package audio plays a real valued channel on the default PulseAudio sink.
package audio

import (
	"fmt"
	"log"
	"sync"

	"github.com/jfreymuth/pulse"
)

const (
	applicationName = "replayscope"
	blockQueueSize  = 32
)

// Monitor plays the samples that are fed into it. Feeding never blocks, if the playback cannot keep
// up, blocks are dropped. If no samples are available, the monitor plays silence.
type Monitor struct {
	name   string
	client *pulse.Client

	streamLock *sync.Mutex
	stream     *pulse.PlaybackStream
	sampleRate int

	buffer *blockBuffer
}

// NewMonitor connects to the PulseAudio server and starts the playback at the given sample rate.
func NewMonitor(name string, sampleRate int) (*Monitor, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid monitor sample rate %d", sampleRate)
	}
	client, err := pulse.NewClient(pulse.ClientApplicationName(applicationName))
	if err != nil {
		return nil, fmt.Errorf("cannot connect to pulseaudio: %w", err)
	}

	result := &Monitor{
		name:       name,
		client:     client,
		streamLock: &sync.Mutex{},
		buffer:     newBlockBuffer(blockQueueSize),
	}
	err = result.startPlayback(sampleRate)
	if err != nil {
		client.Close()
		return nil, err
	}

	return result, nil
}

func (m *Monitor) startPlayback(sampleRate int) error {
	stream, err := m.client.NewPlayback(
		pulse.Float32Reader(m.buffer.Read),
		pulse.PlaybackSampleRate(sampleRate),
		pulse.PlaybackMono,
	)
	if err != nil {
		return fmt.Errorf("cannot create playback stream: %w", err)
	}
	stream.Start()

	m.stream = stream
	m.sampleRate = sampleRate
	log.Printf("monitoring %s at %d Hz", m.name, sampleRate)
	return nil
}

func (m *Monitor) stopPlayback() {
	if m.stream == nil {
		return
	}
	m.stream.Stop()
	m.stream.Close()
	m.stream = nil
}

// SetSampleRate restarts the playback with the given sample rate.
func (m *Monitor) SetSampleRate(sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("invalid monitor sample rate %d", sampleRate)
	}

	m.streamLock.Lock()
	defer m.streamLock.Unlock()
	if sampleRate == m.sampleRate && m.stream != nil {
		return nil
	}
	m.stopPlayback()
	return m.startPlayback(sampleRate)
}

func (m *Monitor) Feed(block []float32) {
	m.buffer.Put(block)
}

func (m *Monitor) Close() {
	m.streamLock.Lock()
	defer m.streamLock.Unlock()
	m.stopPlayback()
	m.client.Close()
}

// blockBuffer hands the fed blocks to the playback callback.
type blockBuffer struct {
	in      chan []float32
	pending []float32
}

func newBlockBuffer(size int) *blockBuffer {
	return &blockBuffer{
		in: make(chan []float32, size),
	}
}

func (b *blockBuffer) Put(block []float32) {
	data := make([]float32, len(block))
	copy(data, block)
	select {
	case b.in <- data:
	default:
	}
}

// Read fills the whole buffer, with silence if not enough samples are available.
func (b *blockBuffer) Read(buf []float32) (int, error) {
	filled := 0
	for filled < len(buf) {
		if len(b.pending) == 0 {
			select {
			case data := <-b.in:
				b.pending = data
				continue
			default:
			}
			clear(buf[filled:])
			return len(buf), nil
		}
		n := copy(buf[filled:], b.pending)
		b.pending = b.pending[n:]
		filled += n
	}
	return len(buf), nil
}
