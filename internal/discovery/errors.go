package discovery

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// ErrNoDevice is returned by DiscoverOne when nothing answered before the timeout.
var ErrNoDevice = errors.New("no device found")

// TransportErrorKind classifies a transport failure
type TransportErrorKind int

const (
	// TransportGeneral is any failure not covered below
	TransportGeneral TransportErrorKind = iota
	// TransportDNS indicates the destination host could not be resolved
	TransportDNS
	// TransportHostUnreachable indicates no route to the destination host
	TransportHostUnreachable
	// TransportNetworkUnreachable indicates the local network is down or has no route
	TransportNetworkUnreachable
	// TransportPermissionDenied indicates the OS refused the send (e.g. broadcast without permission)
	TransportPermissionDenied
)

// String returns a human-readable name for the kind
func (k TransportErrorKind) String() string {
	switch k {
	case TransportGeneral:
		return "Network Error"
	case TransportDNS:
		return "DNS Error"
	case TransportHostUnreachable:
		return "Host Unreachable"
	case TransportNetworkUnreachable:
		return "Network Unreachable"
	case TransportPermissionDenied:
		return "Permission Denied"
	default:
		return fmt.Sprintf("TransportErrorKind(%d)", int(k))
	}
}

// TransportError is returned when the discovery socket could not be created,
// the destination could not be resolved, or sending/receiving failed.
type TransportError struct {
	Op   string             // "listen", "resolve", "send" or "receive"
	Addr string             // Destination address (for context)
	Kind TransportErrorKind // Classification of the cause
	Err  error              // Underlying error
}

// Error implements the error interface
func (e *TransportError) Error() string {
	if e.Addr != "" {
		return fmt.Sprintf("%s: %s %s: %v", e.Kind, e.Op, e.Addr, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

// Unwrap returns the underlying error for error chain inspection
func (e *TransportError) Unwrap() error {
	return e.Err
}

// ClassifyTransportError wraps err in a TransportError with its kind filled in.
// It returns nil for a nil error.
func ClassifyTransportError(op, addr string, err error) *TransportError {
	if err == nil {
		return nil
	}

	te := &TransportError{Op: op, Addr: addr, Kind: TransportGeneral, Err: err}

	var dnsErr *net.DNSError
	var addrErr *net.AddrError
	switch {
	case errors.As(err, &dnsErr), errors.As(err, &addrErr):
		te.Kind = TransportDNS
	case errors.Is(err, syscall.EHOSTUNREACH):
		te.Kind = TransportHostUnreachable
	case errors.Is(err, syscall.ENETUNREACH):
		te.Kind = TransportNetworkUnreachable
	case errors.Is(err, syscall.EACCES), errors.Is(err, syscall.EPERM):
		te.Kind = TransportPermissionDenied
	}

	return te
}

// IsTransportError checks if an error is (or wraps) a TransportError
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// TroubleshootingHint returns user-facing advice for a discovery error
func TroubleshootingHint(err error) string {
	if errors.Is(err, ErrNoDevice) {
		return strings.Join([]string{
			"No device answered the search.",
			"Troubleshooting:",
			"  • Try a longer --timeout",
			"  • Check the search target (ST) spelling",
			"  • Try --broadcast if your network filters multicast",
		}, "\n")
	}

	var te *TransportError
	if !errors.As(err, &te) {
		return "An unexpected error occurred. Please try again."
	}

	switch te.Kind {
	case TransportDNS:
		return strings.Join([]string{
			"Could not resolve the destination address.",
			"Troubleshooting:",
			"  • Use a literal IP such as 239.255.255.250",
			"  • Check your DNS settings",
		}, "\n")

	case TransportHostUnreachable, TransportNetworkUnreachable:
		return strings.Join([]string{
			"The search request could not be sent.",
			"Troubleshooting:",
			"  • Check that a network interface is up",
			"  • Verify a multicast route exists (e.g. 224.0.0.0/4)",
			"  • Pass --interface to pick the outgoing interface",
		}, "\n")

	case TransportPermissionDenied:
		return strings.Join([]string{
			"The operating system refused to send the request.",
			"Troubleshooting:",
			"  • Check local firewall rules for UDP port 1900",
			"  • Broadcast may require elevated privileges on some systems",
		}, "\n")

	default:
		return strings.Join([]string{
			"Network communication failed.",
			"Troubleshooting:",
			"  • Check your network connection",
			"  • Ensure UDP port 1900 is not blocked",
		}, "\n")
	}
}
