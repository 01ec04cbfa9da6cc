package server

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/muurk/ssdp-scan/internal/discovery"
)

// parseScanRequest builds a search request from the /scan query string.
//
//	target   search target (default from config)
//	timeout  receive window as a duration ("3s") or milliseconds ("3000")
//	host     destination address (default from config)
//	port     destination port (default from config)
//
// The timeout is capped at maxTimeout.
func parseScanRequest(query url.Values, defaults discovery.SearchRequest, maxTimeout time.Duration) (discovery.SearchRequest, error) {
	req := defaults

	if target := query.Get("target"); target != "" {
		req.SearchTarget = target
	}

	if raw := query.Get("timeout"); raw != "" {
		timeout, err := parseTimeout(raw)
		if err != nil {
			return req, err
		}
		req.Timeout = timeout
	}
	if req.Timeout <= 0 || req.Timeout > maxTimeout {
		req.Timeout = maxTimeout
	}

	if host := query.Get("host"); host != "" {
		if net.ParseIP(host) == nil {
			return req, fmt.Errorf("invalid host %q: must be an IP address", host)
		}
		req.Host = host
	}

	if raw := query.Get("port"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil || port < 1 || port > 65535 {
			return req, fmt.Errorf("invalid port %q", raw)
		}
		req.Port = port
	}

	return req, nil
}

// parseTimeout accepts a Go duration or a bare number of milliseconds
func parseTimeout(raw string) (time.Duration, error) {
	if ms, err := strconv.Atoi(raw); err == nil {
		if ms <= 0 {
			return 0, errors.New("timeout must be positive")
		}
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", raw, err)
	}
	if d <= 0 {
		return 0, errors.New("timeout must be positive")
	}
	return d, nil
}

// handleHealth answers liveness probes
func handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}
