package tap

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tt := []struct {
		arg         string
		destination string
		invalid     bool
	}{
		{arg: "file:/tmp/tap.cf32", destination: "file:/tmp/tap.cf32"},
		{arg: "FILE:tap.f32", destination: "file:tap.f32"},
		{arg: "udp:127.0.0.1:7355", destination: "udp:127.0.0.1:7355"},
		{arg: "zmq:tcp://*:5555", destination: "zmq:tcp://*:5555"},
		{arg: "tcp:localhost:1234", invalid: true},
		{arg: "tap.f32", invalid: true},
		{arg: "udp:", invalid: true},
	}
	for _, tc := range tt {
		t.Run(tc.arg, func(t *testing.T) {
			tap, err := Parse(tc.arg)
			if tc.invalid {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.destination, tap.Destination())
		})
	}
}

func TestFileTapWritesAllBlocks(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "tap.raw")
	tap := NewFileTap(filename)
	tap.Tap([]byte{0}) // not started, ignored

	tap.Start()
	block := []byte{1, 2, 3}
	tap.Tap(block)
	block[0] = 9 // the tap keeps its own copy
	tap.Tap([]byte{4, 5})
	tap.Stop()
	tap.Stop()

	content, err := os.ReadFile(filename)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, content)
}

func TestFileTapCannotCreateFile(t *testing.T) {
	tap := NewFileTap(filepath.Join(t.TempDir(), "missing", "tap.raw"))
	tap.Start()
	tap.Tap([]byte{1})
	tap.Stop()
}

func TestUDPTapSendsDatagrams(t *testing.T) {
	receiver, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer receiver.Close()

	tap, err := NewUDPTap(receiver.LocalAddr().String())
	require.NoError(t, err)
	tap.Start()
	defer tap.Stop()

	data := make([]byte, maxDatagramSize+8)
	for i := range data {
		data[i] = byte(i)
	}
	tap.Tap(data)

	buf := make([]byte, 2*maxDatagramSize)
	require.NoError(t, receiver.SetReadDeadline(time.Now().Add(time.Second)))
	n, err := receiver.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, data[:maxDatagramSize], buf[:n])

	n, err = receiver.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, data[maxDatagramSize:], buf[:n])
}

func TestNoTap(t *testing.T) {
	var tap Tap = &NoTap{}
	tap.Start()
	tap.Tap([]byte{1})
	tap.Stop()
	assert.Equal(t, "", tap.Destination())
}
