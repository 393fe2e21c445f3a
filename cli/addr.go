// Package cli contains helpers to handle command line arguments.
package cli

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// ParseTCPAddrArg resolves a host:port argument. A missing host or port is replaced by the given default.
func ParseTCPAddrArg(arg string, defaultHost string, defaultPort int) (*net.TCPAddr, error) {
	host, port := splitHostPort(arg)
	if host == "" {
		host = defaultHost
	}
	if port == "" {
		port = strconv.Itoa(defaultPort)
	}

	return net.ResolveTCPAddr("tcp", net.JoinHostPort(host, port))
}

func splitHostPort(hostport string) (host, port string) {
	host = hostport

	colon := strings.LastIndexByte(host, ':')
	if colon != -1 && validOptionalPort(host[colon:]) {
		host, port = host[:colon], host[colon+1:]
	}

	if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
		host = host[1 : len(host)-1]
	}

	return
}

func validOptionalPort(port string) bool {
	if port == "" {
		return true
	}
	if port[0] != ':' {
		return false
	}
	for _, b := range port[1:] {
		if b < '0' || b > '9' {
			return false
		}
	}
	return true
}

// SplitDestination splits arguments of the form <kind>:<destination>, e.g. udp:localhost:1234.
func SplitDestination(arg string) (string, string, error) {
	kind, destination, found := strings.Cut(arg, ":")
	if !found || kind == "" || destination == "" {
		return "", "", fmt.Errorf("%q is not of the form <kind>:<destination>", arg)
	}
	return strings.ToLower(kind), destination, nil
}
