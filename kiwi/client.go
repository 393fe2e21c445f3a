package kiwi

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"math"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ftl/replayscope/cli"
)

// Protocol details: https://github.com/hcab14/kiwiclient/blob/master/kiwi/client.py

const (
	defaultHostname   = "localhost"
	defaultPort       = 8073
	keepaliveInterval = 5 * time.Second
	// iqHeaderSize: flags (1), sequence number (4), s-meter (2), GPS information (10)
	iqHeaderSize = 17
)

type kiwiTag string

const (
	msgTag kiwiTag = "MSG"
	sndTag kiwiTag = "SND"
)

var (
	ErrTooBusy     = errors.New("kiwi too busy")
	ErrBadPassword = errors.New("bad password")
	ErrDown        = errors.New("kiwi down")
)

// refusals maps the status keys that end the session to their errors.
var refusals = map[string]error{
	"too_busy": ErrTooBusy,
	"badp":     ErrBadPassword,
	"down":     ErrDown,
}

type clientConn interface {
	Close() error
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
}

// KiwiHandler is notified about the state of the connection and receives the IQ data.
type KiwiHandler interface {
	// Connected is called whenever the KiwiSDR announces its audio rate.
	Connected(sampleRate int)
	IQData(sampleRate int, data []complex64)
	Disconnected(err error)
}

type Client struct {
	host      *net.TCPAddr
	handler   KiwiHandler
	audioRate int
	iqBuffer  []complex64

	out       chan string
	close     chan struct{}
	closeOnce *sync.Once
	closed    chan struct{}
}

// Connect opens the websocket connection to the KiwiSDR and requests an IQ stream.
func Connect(host string, username string, password string, centerFrequency float64, bandwidth int, handler KiwiHandler) (*Client, error) {
	client, err := newClient(host, handler)
	if err != nil {
		return nil, err
	}

	conn, err := client.dial()
	if err != nil {
		return nil, err
	}
	log.Printf("connected to KiwiSDR %s", host)

	go client.readLoop(conn)
	go client.writeLoop(conn)

	err = client.sendAll(
		fmt.Sprintf("SET auth t=kiwi p=%s", url.QueryEscape(password)),
		fmt.Sprintf("SET ident_user=%s", url.QueryEscape(username)),
		"SET squelch=0 max=0",
		"SET lms_autonotch=0",
		"SET gen=0 mix=-1",
		"SET agc=0 hang=0 thresh=-100 slope=6 decay=1000 manGain=50",
		"SET compression=0",
		fmt.Sprintf("SET mod=iq low_cut=%d high_cut=%d freq=%.3f", -bandwidth/2, bandwidth/2, centerFrequency/1000.0),
	)
	if err != nil {
		client.Close()
		return nil, err
	}

	return client, nil
}

func newClient(host string, handler KiwiHandler) (*Client, error) {
	tcpHost, err := cli.ParseTCPAddrArg(host, defaultHostname, defaultPort)
	if err != nil {
		return nil, fmt.Errorf("invalid Kiwi host: %v", err)
	}
	if tcpHost.Port == 0 {
		tcpHost.Port = defaultPort
	}

	return &Client{
		host:      tcpHost,
		handler:   handler,
		out:       make(chan string, 16),
		close:     make(chan struct{}),
		closeOnce: &sync.Once{},
		closed:    make(chan struct{}),
	}, nil
}

func (c *Client) dial() (clientConn, error) {
	hostUrl := url.URL{
		Scheme: "ws",
		Host:   c.host.String(),
		Path:   fmt.Sprintf("/%d/SND", time.Now().Unix()),
	}
	conn, _, err := websocket.DefaultDialer.Dial(hostUrl.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("cannot dial KiwiSDR websocket: %v", err)
	}
	return conn, nil
}

func (c *Client) readLoop(conn clientConn) {
	var disconnectErr error
	defer func() {
		conn.Close()
		if c.handler != nil {
			c.handler.Disconnected(disconnectErr)
		}
	}()

	for {
		msgType, msgBytes, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.close:
			default:
				disconnectErr = fmt.Errorf("cannot read next message from websocket: %w", err)
				c.shutdown()
			}
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}

		err = c.handleMessage(msgBytes)
		if isRefusal(err) {
			disconnectErr = err
			c.shutdown()
			return
		}
		if err != nil {
			log.Print(err)
		}
	}
}

func (c *Client) handleMessage(msgBytes []byte) error {
	tag, payload, err := decodeKiwiMessage(msgBytes)
	if err != nil {
		return err
	}

	switch tag {
	case msgTag:
		audioRate, err := parseStatus(payload)
		if err != nil {
			return err
		}
		if audioRate == 0 || audioRate == c.audioRate {
			return nil
		}
		c.audioRate = audioRate
		c.trySend(fmt.Sprintf("SET AR OK in=%d out=48000", audioRate))
		if c.handler != nil {
			c.handler.Connected(audioRate)
		}
	case sndTag:
		if c.audioRate == 0 {
			return fmt.Errorf("received IQ data with unknown audio rate")
		}
		c.iqBuffer, err = decodeIQMessage(c.iqBuffer, payload)
		if err != nil {
			return err
		}
		if c.handler != nil {
			c.handler.IQData(c.audioRate, c.iqBuffer)
		}
	}
	return nil
}

func isRefusal(err error) bool {
	return errors.Is(err, ErrTooBusy) || errors.Is(err, ErrBadPassword) || errors.Is(err, ErrDown)
}

func decodeKiwiMessage(bytes []byte) (kiwiTag, []byte, error) {
	if len(bytes) < 3 {
		return "", nil, fmt.Errorf("message too short: %v", bytes)
	}
	return kiwiTag(bytes[0:3]), bytes[3:], nil
}

// parseStatus reads the space separated key=value pairs of a status message. It returns the announced
// audio rate, 0 if the message does not contain one.
func parseStatus(payload []byte) (int, error) {
	audioRate := 0
	for _, part := range strings.Fields(string(payload)) {
		key, value, _ := strings.Cut(part, "=")
		if refusal, ok := refusals[key]; ok && value == "1" {
			return 0, refusal
		}
		if key != "audio_rate" {
			continue
		}
		var err error
		audioRate, err = strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("invalid audio rate %q: %w", value, err)
		}
	}
	return audioRate, nil
}

func decodeIQMessage(iqData []complex64, payload []byte) ([]complex64, error) {
	if len(payload) < iqHeaderSize {
		return iqData, fmt.Errorf("IQ message too short: %d bytes", len(payload))
	}
	return decodeIQBytes(iqData, payload[iqHeaderSize:]), nil
}

// decodeIQBytes decodes big endian 16 bit I/Q pairs into complex samples in [-1, 1].
func decodeIQBytes(iqData []complex64, iqBytes []byte) []complex64 {
	n := len(iqBytes) / 4
	if len(iqData) != n {
		iqData = make([]complex64, n)
	}
	for i := range iqData {
		rawI := int16(binary.BigEndian.Uint16(iqBytes[4*i:]))
		rawQ := int16(binary.BigEndian.Uint16(iqBytes[4*i+2:]))
		iqData[i] = complex(float32(rawI)/math.MaxInt16, float32(rawQ)/math.MaxInt16)
	}
	return iqData
}

func (c *Client) writeLoop(conn clientConn) {
	defer close(c.closed)
	defer conn.Close()

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for {
		var message string
		select {
		case <-c.close:
			return
		case <-keepalive.C:
			message = "SET keepalive"
		case message = <-c.out:
		}
		err := conn.WriteMessage(websocket.TextMessage, []byte(message))
		if err != nil {
			log.Printf("cannot write message to websocket: %v", err)
			c.shutdown()
			return
		}
	}
}

func (c *Client) sendAll(messages ...string) error {
	for _, message := range messages {
		select {
		case c.out <- message:
		case <-c.closed:
			return fmt.Errorf("connection to KiwiSDR %s closed", c.host)
		}
	}
	return nil
}

// trySend is used by the read loop, which must not block on the write loop.
func (c *Client) trySend(message string) {
	select {
	case c.out <- message:
	default:
		log.Printf("cannot send %q to KiwiSDR %s: write queue full", message, c.host)
	}
}

func (c *Client) shutdown() {
	c.closeOnce.Do(func() { close(c.close) })
}

// Close the connection and wait until the write loop is finished.
func (c *Client) Close() {
	c.shutdown()
	<-c.closed
}
