// Package tci receives live IQ data from a TCI server, e.g. ExpertSDR.
package tci

import (
	"fmt"
	"log"
	"sync/atomic"
	"time"

	tci "github.com/ftl/tci/client"

	"github.com/ftl/replayscope/cli"
	"github.com/ftl/replayscope/source"
)

const (
	defaultHostname = "localhost"
	defaultPort     = 40001
	timeout         = 10 * time.Second
	iqSampleRate    = 48000
	iqBufferCount   = 100
)

// Source provides the IQ stream of one TCI trx as complex samples.
type Source struct {
	*source.Live[complex64]
	client   *tci.Client
	listener *tciListener
	trx      int

	centerFrequency atomic.Int64
	iq              []complex64
}

// Open connects to the TCI server at the given host and starts the IQ stream of the given trx once
// the connection is established. The connection is kept open and re-established in the background.
func Open(host string, trx int, traceTCI bool) (*Source, error) {
	tcpHost, err := cli.ParseTCPAddrArg(host, defaultHostname, defaultPort)
	if err != nil {
		return nil, fmt.Errorf("invalid TCI host: %v", err)
	}
	if tcpHost.Port == 0 {
		tcpHost.Port = defaultPort
	}
	if trx < 0 {
		return nil, fmt.Errorf("invalid TCI trx %d", trx)
	}

	result := &Source{
		Live: source.NewLive[complex64](fmt.Sprintf("tci %s trx %d", tcpHost, trx), iqBufferCount),
		trx:  trx,
	}
	result.SetSampleRate(iqSampleRate)
	result.listener = &tciListener{source: result, trx: trx}

	result.client = tci.KeepOpen(tcpHost, timeout, traceTCI)
	result.client.Notify(result.listener)

	return result, nil
}

func (s *Source) Close() error {
	select {
	case <-s.Done():
		return nil
	default:
	}
	if s.client.Connected() {
		s.client.StopIQ(s.trx)
	}
	return s.Live.Close()
}

// CenterFrequency returns the DDS frequency of the trx in Hz, 0 while unknown.
func (s *Source) CenterFrequency() int {
	return int(s.centerFrequency.Load())
}

func (s *Source) onConnected(connected bool) {
	if !connected {
		log.Printf("TCI disconnected, waiting for reconnect")
		return
	}

	s.client.SetIQSampleRate(iqSampleRate)
	s.client.StartIQ(s.trx)
}

// onIQData converts the interleaved I/Q values into complex samples.
func (s *Source) onIQData(sampleRate int, data []float32) {
	if sampleRate != s.SampleRate() {
		log.Printf("TCI IQ sample rate changed to %d Hz", sampleRate)
		s.SetSampleRate(sampleRate)
	}

	n := len(data) / 2
	if len(s.iq) != n {
		s.iq = make([]complex64, n)
	}
	for i := range s.iq {
		s.iq[i] = complex(data[2*i], data[2*i+1])
	}
	s.Push(s.iq)
}

type tciListener struct {
	source *Source
	trx    int
}

func (l *tciListener) Connected(connected bool) {
	l.source.onConnected(connected)
}

func (l *tciListener) SetDDS(trx int, frequency int) {
	if trx != l.trx {
		return
	}
	l.source.centerFrequency.Store(int64(frequency))
}

func (l *tciListener) IQData(trx int, sampleRate tci.IQSampleRate, data []float32) {
	if trx != l.trx {
		return
	}
	l.source.onIQData(int(sampleRate), data)
}
