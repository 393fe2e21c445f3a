// Package tap copies the raw sample stream of a channel out of the process, e.g. into a file
// or to another program on the network. A tap never blocks the channel, data that cannot be
// delivered in time is dropped.
package tap

import (
	"fmt"
	"io"
	"log"
	"net"
	"os"

	"github.com/ftl/replayscope/cli"
)

const (
	queueSize       = 64
	maxDatagramSize = 1472
)

type Tap interface {
	Destination() string
	Start()
	Tap(data []byte)
	Stop()
}

// Parse creates a tap for arguments of the form file:<filename>, udp:<host:port> or zmq:<endpoint>.
func Parse(arg string) (Tap, error) {
	kind, destination, err := cli.SplitDestination(arg)
	if err != nil {
		return nil, fmt.Errorf("invalid tap: %w", err)
	}

	switch kind {
	case "file":
		return NewFileTap(destination), nil
	case "udp":
		return NewUDPTap(destination)
	case "zmq":
		return NewZMQTap(destination), nil
	default:
		return nil, fmt.Errorf("unknown tap kind %q", kind)
	}
}

type NoTap struct{}

func (t *NoTap) Destination() string { return "" }
func (t *NoTap) Start()              {}
func (t *NoTap) Tap([]byte)          {}
func (t *NoTap) Stop()               {}

// queue decouples the channel from the tap's output. The output is written in a separate goroutine.
type queue struct {
	destination string
	in          chan []byte
	dropped     int
	done        chan struct{}
}

func startQueue(destination string, out io.WriteCloser) *queue {
	result := &queue{
		destination: destination,
		in:          make(chan []byte, queueSize),
		done:        make(chan struct{}),
	}
	go result.run(out)
	return result
}

func (q *queue) run(out io.WriteCloser) {
	defer close(q.done)
	defer out.Close()

	failed := false
	for data := range q.in {
		if failed {
			continue
		}
		_, err := out.Write(data)
		if err != nil {
			log.Printf("cannot write to tap %s, tap disabled: %v", q.destination, err)
			failed = true
		}
	}
}

func (q *queue) put(data []byte) {
	block := make([]byte, len(data))
	copy(block, data)
	select {
	case q.in <- block:
	default:
		q.dropped++
		if q.dropped%100 == 1 {
			log.Printf("tap %s too slow, dropped %d blocks so far", q.destination, q.dropped)
		}
	}
}

func (q *queue) stop() {
	close(q.in)
	<-q.done
}

// FileTap writes the raw samples into a file.
type FileTap struct {
	filename string
	queue    *queue
}

func NewFileTap(filename string) *FileTap {
	return &FileTap{
		filename: filename,
	}
}

func (t *FileTap) Destination() string {
	return "file:" + t.filename
}

func (t *FileTap) Start() {
	if t.queue != nil {
		return
	}

	out, err := os.Create(t.filename)
	if err != nil {
		log.Printf("cannot start tap: %v", err)
		return
	}
	t.queue = startQueue(t.Destination(), out)
}

func (t *FileTap) Tap(data []byte) {
	if t.queue == nil {
		return
	}
	t.queue.put(data)
}

func (t *FileTap) Stop() {
	if t.queue == nil {
		return
	}

	t.queue.stop()
	t.queue = nil
}

// UDPTap sends the raw samples as datagrams.
type UDPTap struct {
	addr  *net.UDPAddr
	queue *queue
}

func NewUDPTap(destination string) (*UDPTap, error) {
	addr, err := net.ResolveUDPAddr("udp", destination)
	if err != nil {
		return nil, fmt.Errorf("cannot parse UDP destination: %w", err)
	}
	return &UDPTap{
		addr: addr,
	}, nil
}

func (t *UDPTap) Destination() string {
	return "udp:" + t.addr.String()
}

func (t *UDPTap) Start() {
	if t.queue != nil {
		return
	}

	conn, err := net.DialUDP("udp", nil, t.addr)
	if err != nil {
		log.Printf("cannot start tap: %v", err)
		return
	}
	t.queue = startQueue(t.Destination(), &datagramWriter{conn: conn})
}

func (t *UDPTap) Tap(data []byte) {
	if t.queue == nil {
		return
	}
	t.queue.put(data)
}

func (t *UDPTap) Stop() {
	if t.queue == nil {
		return
	}

	t.queue.stop()
	t.queue = nil
}

// datagramWriter splits writes into datagrams that fit into a single ethernet frame.
// The datagram size is a multiple of the size of all sample types.
type datagramWriter struct {
	conn *net.UDPConn
}

func (w *datagramWriter) Write(data []byte) (int, error) {
	written := 0
	for written < len(data) {
		end := min(written+maxDatagramSize, len(data))
		n, err := w.conn.Write(data[written:end])
		written += n
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

func (w *datagramWriter) Close() error {
	return w.conn.Close()
}
