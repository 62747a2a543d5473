package throttle

import (
	"net"
	"net/netip"
	"strings"
)

// NormalizeAddr canonicalizes an origin address so that different raw
// representations of the same address ("::ffff:10.0.0.1", "10.0.0.1",
// "10.0.0.1:54321") collapse to one throttle key. Unparseable input falls
// back to the trimmed lowercase string rather than failing the attempt.
func NormalizeAddr(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return s
	}
	if host, _, err := net.SplitHostPort(s); err == nil && host != "" {
		s = host
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return s
	}
	addr = addr.Unmap().WithZone("")
	return addr.String()
}
