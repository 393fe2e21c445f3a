// Package kiwi receives live IQ data from a KiwiSDR.
package kiwi

import (
	"fmt"
	"log"

	"github.com/ftl/replayscope/source"
)

const (
	maxBandwidth  = 12_000
	iqBufferCount = 100
)

// Source provides the IQ stream of a KiwiSDR as complex samples.
type Source struct {
	*source.Live[complex64]
	client *Client
}

// Open connects to the KiwiSDR at the given host and tunes it to the given center frequency in Hz.
func Open(host string, username string, password string, centerFrequency float64, bandwidth int) (*Source, error) {
	if bandwidth <= 0 || bandwidth > maxBandwidth {
		return nil, fmt.Errorf("invalid KiwiSDR bandwidth %d, must be within (0, %d]", bandwidth, maxBandwidth)
	}
	if centerFrequency <= 0 {
		return nil, fmt.Errorf("invalid KiwiSDR center frequency %v", centerFrequency)
	}

	result := &Source{
		Live: source.NewLive[complex64](fmt.Sprintf("KiwiSDR %s", host), iqBufferCount),
	}

	client, err := Connect(host, username, password, centerFrequency, bandwidth, result)
	if err != nil {
		return nil, fmt.Errorf("cannot open KiwiSDR client: %v", err)
	}
	result.client = client

	return result, nil
}

func (s *Source) Close() error {
	select {
	case <-s.Done():
		return nil
	default:
	}
	if s.client != nil {
		s.client.Close()
	}
	return s.Live.Close()
}

func (s *Source) Connected(sampleRate int) {
	log.Printf("KiwiSDR audio rate is %d Hz", sampleRate)
	s.SetSampleRate(sampleRate)
}

func (s *Source) IQData(_ int, data []complex64) {
	s.Push(data)
}

func (s *Source) Disconnected(err error) {
	s.CloseWithError(err)
}
