package discovery

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

const (
	// MulticastAddress is the SSDP IPv4 multicast group
	MulticastAddress = "239.255.255.250"

	// BroadcastAddress is the limited broadcast address, for networks that filter multicast
	BroadcastAddress = "255.255.255.255"

	// DefaultPort is the SSDP UDP port
	DefaultPort = 1900

	// SearchAll is the search target matching every device and service
	SearchAll = "ssdp:all"

	// DefaultTimeout is how long a discovery listens for responses
	DefaultTimeout = 60 * time.Second

	// mxMargin is kept free between the responders' delay window and our own timeout
	mxMargin = 100 * time.Millisecond
)

// SearchRequest describes a single M-SEARCH round-trip.
// Zero-valued fields take the package defaults.
type SearchRequest struct {
	// Host is the destination group or broadcast address (default MulticastAddress)
	Host string

	// Port is the destination UDP port (default DefaultPort)
	Port int

	// SearchTarget is the ST to search for; empty means ssdp:all and disables filtering
	SearchTarget string

	// Timeout bounds the whole round-trip (default DefaultTimeout)
	Timeout time.Duration
}

func (r SearchRequest) withDefaults() SearchRequest {
	if r.Host == "" {
		r.Host = MulticastAddress
	}
	if r.Port == 0 {
		r.Port = DefaultPort
	}
	if r.Timeout <= 0 {
		r.Timeout = DefaultTimeout
	}
	return r
}

// Payload builds the request bytes for r.
func (r SearchRequest) Payload() []byte {
	return []byte(BuildSearchRequest(r.Timeout, r.Host, r.Port, r.SearchTarget))
}

// BuildSearchRequest returns the M-SEARCH request text.
//
// The MX header is only sent when timeout is at least 1.1s, and advertises
// floor((timeout-100ms)/1s) seconds so responders finish before we stop
// listening.
func BuildSearchRequest(timeout time.Duration, host string, port int, searchTarget string) string {
	if searchTarget == "" {
		searchTarget = SearchAll
	}

	var b strings.Builder
	b.WriteString("M-SEARCH * HTTP/1.1\r\n")
	fmt.Fprintf(&b, "Host: %s\r\n", net.JoinHostPort(host, strconv.Itoa(port)))
	b.WriteString("MAN: ssdp:discover\r\n")
	fmt.Fprintf(&b, "ST: %s\r\n", searchTarget)
	if mx, ok := maxWait(timeout); ok {
		fmt.Fprintf(&b, "MX: %d\r\n", mx)
	}
	b.WriteString("\r\n")
	return b.String()
}

// maxWait computes the MX value in seconds for a caller timeout
func maxWait(timeout time.Duration) (int64, bool) {
	ms := timeout.Milliseconds()
	if ms < 1100 {
		return 0, false
	}
	return (ms - mxMargin.Milliseconds()) / 1000, true
}
