package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitHostPort(t *testing.T) {
	tt := []struct {
		value        string
		expectedHost string
		expectedPort string
	}{
		{"", "", ""},
		{"localhost", "localhost", ""},
		{"localhost:8073", "localhost", "8073"},
		{":40001", "", "40001"},
		{"[::1]:1234", "::1", "1234"},
		{"[::1]", "::1", ""},
		{"host:port", "host:port", ""},
	}
	for _, tc := range tt {
		t.Run(tc.value, func(t *testing.T) {
			host, port := splitHostPort(tc.value)
			assert.Equal(t, tc.expectedHost, host)
			assert.Equal(t, tc.expectedPort, port)
		})
	}
}

func TestParseTCPAddrArgUsesDefaults(t *testing.T) {
	addr, err := ParseTCPAddrArg("", "127.0.0.1", 40001)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:40001", addr.String())

	addr, err = ParseTCPAddrArg(":8073", "127.0.0.1", 40001)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8073", addr.String())
}

func TestSplitDestination(t *testing.T) {
	kind, destination, err := SplitDestination("UDP:localhost:1234")
	require.NoError(t, err)
	assert.Equal(t, "udp", kind)
	assert.Equal(t, "localhost:1234", destination)

	_, _, err = SplitDestination("localhost")
	assert.Error(t, err)
	_, _, err = SplitDestination("file:")
	assert.Error(t, err)
}
