package util

import (
	"fmt"
	"net"
	"strconv"
)

// CheckHost reports whether host can be dialed without a resolver.
// With noDNS only literal IPv4 and IPv6 addresses pass; names are left
// for the dialer to resolve otherwise.
func CheckHost(host string, noDNS bool) error {
	if host == "" {
		return fmt.Errorf("empty host")
	}
	if noDNS && net.ParseIP(host) == nil {
		return fmt.Errorf("%q is not an IP address and --no-dns forbids lookups", host)
	}
	return nil
}

// FormatAddr joins host and port into the endpoint string the TCP, UDP,
// QUIC and SSH bindings dial.  IPv6 literals are bracketed.
func FormatAddr(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// ClosedPort returns a loopback port that was free a moment ago, so
// connecting to it is refused.  Tests use it as an endpoint that never
// answers.
func ClosedPort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("reserving loopback port: %w", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	if err := l.Close(); err != nil {
		return 0, fmt.Errorf("releasing loopback port: %w", err)
	}
	return port, nil
}
