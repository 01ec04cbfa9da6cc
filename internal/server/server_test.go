package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"

	"github.com/muurk/ssdp-scan/internal/discovery"
)

const (
	serviceResponse = "HTTP/1.1 200 OK\r\n" +
		"CACHE-CONTROL: max-age=1800\r\n" +
		"LOCATION: http://192.168.0.1/description.xml\r\n" +
		"SERVER: Linux/2.0 UPnP/1.0 MyDevice/1.0\r\n" +
		"ST: urn:schemas-upnp-org:service:MyService:1\r\n" +
		"USN: uuid:1234567890\r\n" +
		"\r\n"

	rootResponse = "HTTP/1.1 200 OK\r\n" +
		"LOCATION: http://192.168.0.2/root.xml\r\n" +
		"ST: upnp:rootdevice\r\n" +
		"USN: uuid:abc::upnp:rootdevice\r\n" +
		"\r\n"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// fakePacketConn replays canned responses, then reports a read timeout
type fakePacketConn struct {
	mu        sync.Mutex
	responses []string
	sent      [][]byte
}

func (c *fakePacketConn) ReadFrom(p []byte) (int, net.Addr, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.responses) == 0 {
		return 0, nil, timeoutError{}
	}
	resp := c.responses[0]
	c.responses = c.responses[1:]
	ip := "192.168.0.1"
	if strings.Contains(resp, "192.168.0.2") {
		ip = "192.168.0.2"
	}
	return copy(p, resp), &net.UDPAddr{IP: net.ParseIP(ip), Port: 1900}, nil
}

func (c *fakePacketConn) WriteTo(p []byte, addr net.Addr) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, append([]byte(nil), p...))
	return len(p), nil
}

func (c *fakePacketConn) Close() error                       { return nil }
func (c *fakePacketConn) LocalAddr() net.Addr                { return &net.UDPAddr{IP: net.IPv4zero} }
func (c *fakePacketConn) SetDeadline(t time.Time) error      { return nil }
func (c *fakePacketConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *fakePacketConn) SetWriteDeadline(t time.Time) error { return nil }

func fakeSession(responses ...string) *discovery.Session {
	s := discovery.NewSession()
	s.Listen = func(network, address string) (net.PacketConn, error) {
		return &fakePacketConn{responses: append([]string(nil), responses...)}, nil
	}
	return s
}

func newTestServer(t *testing.T, session *discovery.Session) *httptest.Server {
	t.Helper()
	srv, err := New(&Config{
		Session:  session,
		Defaults: discovery.SearchRequest{SearchTarget: discovery.SearchAll, Timeout: time.Second},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func wsURL(ts *httptest.Server, query string) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/scan" + query
}

func TestScan_StreamsDevices(t *testing.T) {
	ts := newTestServer(t, fakeSession(serviceResponse, rootResponse))

	tests := []struct {
		name    string
		query   string
		wantIPs []string
	}{
		{"all", "", []string{"192.168.0.1", "192.168.0.2"}},
		{"filtered", "?target=upnp:rootdevice", []string{"192.168.0.2"}},
		{"no match", "?target=urn:schemas-upnp-org:device:Printer:1", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			var got []string
			count, err := Stream(ctx, wsURL(ts, tt.query), func(d discovery.Device) {
				got = append(got, d.IP)
			})
			if err != nil {
				t.Fatalf("Stream() error = %v", err)
			}
			if count != len(tt.wantIPs) {
				t.Errorf("count = %d, want %d", count, len(tt.wantIPs))
			}
			if strings.Join(got, ",") != strings.Join(tt.wantIPs, ",") {
				t.Errorf("devices = %v, want %v", got, tt.wantIPs)
			}
		})
	}
}

func TestScan_DeviceFields(t *testing.T) {
	ts := newTestServer(t, fakeSession(serviceResponse))

	var got []discovery.Device
	if _, err := Stream(context.Background(), wsURL(ts, ""), func(d discovery.Device) {
		got = append(got, d)
	}); err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	want := discovery.Device{
		IP:             "192.168.0.1",
		DescriptionURL: "http://192.168.0.1/description.xml",
		Server:         "Linux/2.0 UPnP/1.0 MyDevice/1.0",
		ServiceType:    "urn:schemas-upnp-org:service:MyService:1",
		USN:            discovery.NewNullString("uuid:1234567890"),
	}
	if len(got) != 1 || got[0] != want {
		t.Errorf("devices = %v, want [%v]", got, want)
	}
}

func TestScan_TransportError(t *testing.T) {
	session := discovery.NewSession()
	session.Listen = func(network, address string) (net.PacketConn, error) {
		return nil, errors.New("no sockets")
	}
	ts := newTestServer(t, session)

	_, err := Stream(context.Background(), wsURL(ts, ""), nil)
	if !errors.Is(err, ErrRemoteScan) {
		t.Fatalf("Stream() error = %v, want ErrRemoteScan", err)
	}
	if !strings.Contains(err.Error(), "no sockets") {
		t.Errorf("error %q should carry the cause", err)
	}
}

func TestScan_BadRequest(t *testing.T) {
	ts := newTestServer(t, fakeSession())

	for _, query := range []string{"?timeout=soon", "?timeout=-5", "?port=70000", "?host=example.com"} {
		t.Run(query, func(t *testing.T) {
			resp, err := http.Get(ts.URL + "/scan" + query)
			if err != nil {
				t.Fatal(err)
			}
			_ = resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	handleHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "ok" {
		t.Errorf("GET /healthz = %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	handleHealth(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /healthz = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}

func TestParseScanRequest(t *testing.T) {
	defaults := discovery.SearchRequest{
		Host:         discovery.MulticastAddress,
		Port:         discovery.DefaultPort,
		SearchTarget: discovery.SearchAll,
		Timeout:      5 * time.Second,
	}

	tests := []struct {
		name    string
		query   string
		want    discovery.SearchRequest
		wantErr bool
	}{
		{
			name:  "defaults",
			query: "",
			want:  defaults,
		},
		{
			name:  "target and duration",
			query: "target=upnp:rootdevice&timeout=2s",
			want:  discovery.SearchRequest{Host: defaults.Host, Port: 1900, SearchTarget: "upnp:rootdevice", Timeout: 2 * time.Second},
		},
		{
			name:  "milliseconds",
			query: "timeout=1500",
			want:  discovery.SearchRequest{Host: defaults.Host, Port: 1900, SearchTarget: discovery.SearchAll, Timeout: 1500 * time.Millisecond},
		},
		{
			name:  "capped",
			query: "timeout=10m",
			want:  discovery.SearchRequest{Host: defaults.Host, Port: 1900, SearchTarget: discovery.SearchAll, Timeout: 30 * time.Second},
		},
		{
			name:  "broadcast",
			query: "host=255.255.255.255&port=1901",
			want:  discovery.SearchRequest{Host: "255.255.255.255", Port: 1901, SearchTarget: discovery.SearchAll, Timeout: 5 * time.Second},
		},
		{name: "bad timeout", query: "timeout=soon", wantErr: true},
		{name: "zero timeout", query: "timeout=0", wantErr: true},
		{name: "bad port", query: "port=0", wantErr: true},
		{name: "hostname", query: "host=router.local", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, err := url.ParseQuery(tt.query)
			if err != nil {
				t.Fatal(err)
			}
			got, err := parseScanRequest(query, defaults, DefaultMaxTimeout)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseScanRequest() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("parseScanRequest() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNew(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Error("New(nil) should fail")
	}
	if _, err := New(&Config{CertPath: "cert.pem"}); err == nil {
		t.Error("New() with a certificate but no key should fail")
	}
	if _, err := New(&Config{CertPath: "missing.pem", KeyPath: "missing.key"}); err == nil {
		t.Error("New() with unreadable certificate files should fail")
	}

	srv, err := New(&Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if srv.config.Session == nil || srv.config.MaxTimeout != DefaultMaxTimeout || srv.config.InstanceName == "" {
		t.Errorf("defaults not applied: %+v", srv.config)
	}
}

func TestServeAndShutdown(t *testing.T) {
	srv, err := New(&Config{Session: fakeSession()})
	if err != nil {
		t.Fatal(err)
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	served := make(chan error, 1)
	go func() { served <- srv.Serve(listener) }()

	// Wait until the server answers
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get("http://" + listener.Addr().String() + "/healthz")
		if err == nil {
			_ = resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never came up: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if err := <-served; err != nil {
		t.Errorf("Serve() error = %v", err)
	}
	if n := srv.GetActiveConnections(); n != 0 {
		t.Errorf("GetActiveConnections() = %d after shutdown", n)
	}
}

func TestParseServiceEntry(t *testing.T) {
	entry := &zeroconf.ServiceEntry{
		ServiceRecord: zeroconf.ServiceRecord{Instance: "ssdp-scan on pi"},
		HostName:      "pi.local.",
		Port:          8900,
		Text:          []string{"path=/scan", "scheme=wss", "junk"},
		AddrIPv4:      []net.IP{net.ParseIP("192.168.0.10")},
	}

	ep, ok := parseServiceEntry(entry)
	if !ok {
		t.Fatal("parseServiceEntry() rejected a valid entry")
	}
	if ep.Instance != "ssdp-scan on pi" || ep.Port != 8900 || ep.Scheme != "wss" {
		t.Errorf("parseServiceEntry() = %+v", ep)
	}
	if got, want := ep.URL(), "wss://192.168.0.10:8900/scan"; got != want {
		t.Errorf("URL() = %q, want %q", got, want)
	}

	if _, ok := parseServiceEntry(&zeroconf.ServiceEntry{}); ok {
		t.Error("entry without a port should be rejected")
	}
	if _, ok := parseServiceEntry(nil); ok {
		t.Error("nil entry should be rejected")
	}
}

func TestEndpointURL_HostName(t *testing.T) {
	ep := Endpoint{HostName: "pi.local.", Port: 8900, Path: "/scan", Scheme: "ws"}
	if got, want := ep.URL(), "ws://pi.local:8900/scan"; got != want {
		t.Errorf("URL() = %q, want %q", got, want)
	}
}
