package tap

import (
	"log"
	"syscall"

	"github.com/pebbe/zmq4"
)

// ZMQTap publishes the raw samples on a ZeroMQ PUB socket, one message per block.
// Subscribers that are too slow lose messages, the socket never blocks.
type ZMQTap struct {
	endpoint string
	socket   *zmq4.Socket
}

func NewZMQTap(endpoint string) *ZMQTap {
	return &ZMQTap{
		endpoint: endpoint,
	}
}

func (t *ZMQTap) Destination() string {
	return "zmq:" + t.endpoint
}

func (t *ZMQTap) Start() {
	if t.socket != nil {
		return
	}

	socket, err := zmq4.NewSocket(zmq4.PUB)
	if err != nil {
		log.Printf("cannot start tap: %v", err)
		return
	}
	err = socket.Bind(t.endpoint)
	if err != nil {
		socket.Close()
		log.Printf("cannot start tap: %v", err)
		return
	}
	t.socket = socket
}

func (t *ZMQTap) Tap(data []byte) {
	if t.socket == nil {
		return
	}

	_, err := t.socket.SendBytes(data, zmq4.DONTWAIT)
	if err != nil && zmq4.AsErrno(err) != zmq4.Errno(syscall.EAGAIN) {
		log.Printf("cannot publish on tap %s: %v", t.endpoint, err)
	}
}

func (t *ZMQTap) Stop() {
	if t.socket == nil {
		return
	}

	t.socket.SetLinger(0)
	t.socket.Close()
	t.socket = nil
}
