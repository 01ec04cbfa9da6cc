package server

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/ssdp-scan/internal/logging"
)

const (
	// ServiceType is the DNS-SD service type scan servers announce
	ServiceType = "_ssdp-scan._tcp"

	// ServiceDomain is the mDNS domain
	ServiceDomain = "local."

	// DefaultBrowseTimeout is how long FindServers listens by default
	DefaultBrowseTimeout = 3 * time.Second
)

// Endpoint is a scan server found over mDNS
type Endpoint struct {
	Instance  string   `json:"instance"`
	HostName  string   `json:"hostname"`
	Port      int      `json:"port"`
	Addresses []string `json:"addresses"`
	Path      string   `json:"path"`
	Scheme    string   `json:"scheme"`
}

// URL returns the websocket URL of the endpoint's scan stream, preferring
// the first announced address over the host name
func (e Endpoint) URL() string {
	host := strings.TrimSuffix(e.HostName, ".")
	if len(e.Addresses) > 0 {
		host = e.Addresses[0]
	}
	return fmt.Sprintf("%s://%s%s", e.Scheme, net.JoinHostPort(host, strconv.Itoa(e.Port)), e.Path)
}

// Announce registers a scan server over mDNS. The caller must Shutdown the
// returned server.
func Announce(instance string, port int, txt []string) (*zeroconf.Server, error) {
	server, err := zeroconf.Register(instance, ServiceType, ServiceDomain, port, txt, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}

	logging.Info("Announced scan server over mDNS",
		zap.String("instance", instance),
		zap.String("service", ServiceType),
		zap.Int("port", port),
	)
	return server, nil
}

// FindServers browses the local network for announced scan servers
func FindServers(ctx context.Context, timeout time.Duration) ([]Endpoint, error) {
	if timeout <= 0 {
		timeout = DefaultBrowseTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	found := make(map[string]Endpoint)
	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return sortEndpoints(found), nil
			}
			if ep, ok := parseServiceEntry(entry); ok {
				found[ep.Instance] = ep
			}
		case <-ctx.Done():
			return sortEndpoints(found), nil
		}
	}
}

// parseServiceEntry converts a zeroconf service entry to an Endpoint
func parseServiceEntry(entry *zeroconf.ServiceEntry) (Endpoint, bool) {
	if entry == nil || entry.Port == 0 {
		return Endpoint{}, false
	}

	ep := Endpoint{
		Instance: entry.Instance,
		HostName: entry.HostName,
		Port:     entry.Port,
		Path:     "/scan",
		Scheme:   "ws",
	}
	for _, ip := range entry.AddrIPv4 {
		ep.Addresses = append(ep.Addresses, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		ep.Addresses = append(ep.Addresses, ip.String())
	}

	for _, txt := range entry.Text {
		k, v, ok := strings.Cut(txt, "=")
		if !ok {
			continue
		}
		switch k {
		case "path":
			ep.Path = v
		case "scheme":
			ep.Scheme = v
		}
	}

	logging.Debug("Found scan server",
		zap.String("instance", ep.Instance),
		zap.String("url", ep.URL()),
	)
	return ep, true
}

func sortEndpoints(found map[string]Endpoint) []Endpoint {
	endpoints := make([]Endpoint, 0, len(found))
	for _, ep := range found {
		endpoints = append(endpoints, ep)
	}
	sort.Slice(endpoints, func(i, j int) bool {
		return endpoints[i].Instance < endpoints[j].Instance
	})
	return endpoints
}
