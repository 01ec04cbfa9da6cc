package discovery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/ipv4"

	"github.com/muurk/ssdp-scan/internal/logging"
)

const (
	// DefaultMulticastTTL is the IP TTL for outgoing multicast searches
	DefaultMulticastTTL = 2

	// DefaultBufferSize is the receive buffer size; SSDP responses fit a single datagram
	DefaultBufferSize = 2048

	// QuickScanTimeout is the timeout used by QuickScan
	QuickScanTimeout = 3 * time.Second
)

// ListenFunc opens the UDP endpoint a discovery sends from and receives on.
// net.ListenPacket satisfies it.
type ListenFunc func(network, address string) (net.PacketConn, error)

// Session performs SSDP discoveries. A Session only holds configuration;
// every call opens and closes its own endpoint, so one Session may be used
// from several goroutines at once.
type Session struct {
	// Listen opens the endpoint (default net.ListenPacket)
	Listen ListenFunc

	// MulticastTTL is applied to IPv4 multicast searches; 0 leaves the OS default
	MulticastTTL int

	// Interface names the outgoing interface for multicast; empty uses the routing table
	Interface string

	// BufferSize is the receive buffer size in bytes
	BufferSize int

	// OnDevice, if set, is called on the discovering goroutine for every accepted device
	OnDevice func(Device)
}

// NewSession creates a session with default settings
func NewSession() *Session {
	return &Session{
		Listen:       net.ListenPacket,
		MulticastTTL: DefaultMulticastTTL,
		BufferSize:   DefaultBufferSize,
	}
}

// Discover sends one M-SEARCH and collects every matching response until the
// request timeout elapses. The result is never nil; it is empty when nothing
// answered. Only transport failures are returned as errors.
func (s *Session) Discover(req SearchRequest) ([]Device, error) {
	return s.DiscoverContext(context.Background(), req)
}

// DiscoverContext is Discover with a context. Cancelling ctx ends the receive
// window early and returns the devices collected so far.
func (s *Session) DiscoverContext(ctx context.Context, req SearchRequest) ([]Device, error) {
	return s.discover(ctx, req, 0)
}

// DiscoverOne is Discover stopping at the first accepted response.
// It returns ErrNoDevice if nothing matched before the timeout.
func (s *Session) DiscoverOne(req SearchRequest) (*Device, error) {
	return s.DiscoverOneContext(context.Background(), req)
}

// DiscoverOneContext is DiscoverOne with a context
func (s *Session) DiscoverOneContext(ctx context.Context, req SearchRequest) (*Device, error) {
	devices, err := s.discover(ctx, req, 1)
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return nil, ErrNoDevice
	}
	return &devices[0], nil
}

// Broadcast is Discover sent to the limited broadcast address instead of the
// multicast group, for networks that filter multicast.
func (s *Session) Broadcast(req SearchRequest) ([]Device, error) {
	req.Host = BroadcastAddress
	return s.Discover(req)
}

// discover runs one round-trip. limit > 0 stops after that many accepted devices.
func (s *Session) discover(ctx context.Context, req SearchRequest, limit int) ([]Device, error) {
	req = req.withDefaults()
	payload := req.Payload()
	dest := net.JoinHostPort(req.Host, strconv.Itoa(req.Port))

	// Host names resolve to IPv4 when they can and fall back to IPv6
	raddr, err := net.ResolveUDPAddr("udp", dest)
	if err != nil {
		return nil, ClassifyTransportError("resolve", dest, err)
	}
	network := endpointNetwork(raddr)

	conn, err := s.listen()(network, ":0")
	if err != nil {
		return nil, ClassifyTransportError("listen", dest, err)
	}
	defer func() {
		_ = conn.Close()
	}()

	if err := s.configureMulticast(conn, raddr); err != nil {
		return nil, ClassifyTransportError("listen", dest, err)
	}

	logging.LogSearchRequest(dest, payload)
	if _, err := conn.WriteTo(payload, raddr); err != nil {
		return nil, ClassifyTransportError("send", dest, err)
	}

	start := time.Now()
	if err := conn.SetReadDeadline(start.Add(req.Timeout)); err != nil {
		return nil, ClassifyTransportError("receive", dest, err)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	buf := make([]byte, s.bufferSize())
	devices := make([]Device, 0)

	for time.Since(start) < req.Timeout {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			if isTimeout(err) || ctx.Err() != nil {
				break
			}
			return nil, ClassifyTransportError("receive", dest, err)
		}

		data := buf[:n]
		src := hostAddress(addr)
		if !matchesTarget(req.SearchTarget, data) {
			logging.LogDatagram(src, false, data)
			continue
		}
		logging.LogDatagram(src, true, data)

		device := Parse(src, data)
		devices = append(devices, device)
		if s.OnDevice != nil {
			s.OnDevice(device)
		}
		if limit > 0 && len(devices) >= limit {
			break
		}
	}

	logging.Debug("Discovery finished",
		zap.String("dest", dest),
		zap.String("search_target", req.SearchTarget),
		zap.Int("devices", len(devices)),
		zap.Duration("elapsed", time.Since(start)),
	)

	return devices, nil
}

// configureMulticast applies TTL and interface selection for IPv4 multicast
// destinations. Endpoints that are not real UDP sockets are left alone.
func (s *Session) configureMulticast(conn net.PacketConn, raddr *net.UDPAddr) error {
	if raddr.IP.To4() == nil || !raddr.IP.IsMulticast() {
		return nil
	}
	if _, ok := conn.(*net.UDPConn); !ok {
		return nil
	}

	p := ipv4.NewPacketConn(conn)
	if s.MulticastTTL > 0 {
		if err := p.SetMulticastTTL(s.MulticastTTL); err != nil {
			logging.Warn("Failed to set multicast TTL",
				zap.Int("ttl", s.MulticastTTL),
				zap.Error(err),
			)
		}
	}
	if s.Interface != "" {
		ifi, err := net.InterfaceByName(s.Interface)
		if err != nil {
			return fmt.Errorf("failed to find interface %q: %w", s.Interface, err)
		}
		if err := p.SetMulticastInterface(ifi); err != nil {
			return fmt.Errorf("failed to use interface %q for multicast: %w", s.Interface, err)
		}
	}
	return nil
}

// endpointNetwork picks the socket family matching the resolved destination
func endpointNetwork(raddr *net.UDPAddr) string {
	if raddr.IP.To4() == nil {
		return "udp6"
	}
	return "udp4"
}

func (s *Session) listen() ListenFunc {
	if s.Listen == nil {
		return net.ListenPacket
	}
	return s.Listen
}

func (s *Session) bufferSize() int {
	if s.BufferSize <= 0 {
		return DefaultBufferSize
	}
	return s.BufferSize
}

// matchesTarget reports whether a response should be kept. The check is a
// plain substring match on the raw payload, not on the ST header.
func matchesTarget(searchTarget string, payload []byte) bool {
	if searchTarget == "" || searchTarget == SearchAll {
		return true
	}
	return bytes.Contains(payload, []byte(searchTarget))
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Discover is a convenience function that searches the multicast group with a default session
func Discover(timeout time.Duration, searchTarget string) ([]Device, error) {
	return NewSession().Discover(SearchRequest{SearchTarget: searchTarget, Timeout: timeout})
}

// DiscoverOne is a convenience function returning the first matching device
func DiscoverOne(timeout time.Duration, searchTarget string) (*Device, error) {
	return NewSession().DiscoverOne(SearchRequest{SearchTarget: searchTarget, Timeout: timeout})
}

// Broadcast is a convenience function that searches via the limited broadcast address
func Broadcast(timeout time.Duration, searchTarget string) ([]Device, error) {
	return NewSession().Broadcast(SearchRequest{SearchTarget: searchTarget, Timeout: timeout})
}

// QuickScan performs a fast ssdp:all search with a 3-second timeout
func QuickScan() ([]Device, error) {
	return Discover(QuickScanTimeout, SearchAll)
}
