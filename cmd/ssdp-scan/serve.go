package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/ssdp-scan/internal/discovery"
	"github.com/muurk/ssdp-scan/internal/logging"
	"github.com/muurk/ssdp-scan/internal/server"
	"github.com/muurk/ssdp-scan/internal/ui"
)

// Server command flags
var (
	listenAddr     string
	announce       bool
	instanceName   string
	certPath       string
	keyPath        string
	maxTimeout     time.Duration
	browseTimeout  time.Duration
	serversJSON    bool
	remoteTarget   string
	remoteTimeout  time.Duration
	remoteFormat   string
	remoteRecorded bool
)

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address (default from config, :8900)")
	serveCmd.Flags().BoolVar(&announce, "announce", false, "Announce the server over mDNS")
	serveCmd.Flags().StringVar(&instanceName, "name", "", "mDNS instance name (default \"ssdp-scan on <hostname>\")")
	serveCmd.Flags().StringVar(&certPath, "cert", "", "Path to TLS certificate file (serves wss:// when set)")
	serveCmd.Flags().StringVar(&keyPath, "key", "", "Path to TLS private key file")
	serveCmd.Flags().DurationVar(&maxTimeout, "max-timeout", server.DefaultMaxTimeout, "Longest scan a client may request")

	serversCmd.Flags().DurationVarP(&browseTimeout, "timeout", "t", server.DefaultBrowseTimeout, "How long to listen for announcements")
	serversCmd.Flags().BoolVar(&serversJSON, "json", false, "Print servers as JSON")

	remoteCmd.Flags().StringVar(&remoteTarget, "target", "", "Search target (default from the server)")
	remoteCmd.Flags().DurationVarP(&remoteTimeout, "timeout", "t", 0, "How long the server waits for responses (default from the server)")
	remoteCmd.Flags().StringVar(&remoteFormat, "format", "", "Output format (table, compact, json)")
	remoteCmd.Flags().BoolVar(&remoteRecorded, "record", false, "Remember discovered devices in the config file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(serversCmd)
	rootCmd.AddCommand(remoteCmd)
}

// serveCmd runs the websocket scan server
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the websocket scan server",
	Long: `Start a server that runs SSDP scans on behalf of websocket clients.

Clients connect to /scan and receive one JSON frame per discovered device,
followed by a "done" frame with the device count:

  {"type":"device","device":{...}}
  {"type":"done","count":3}

Query parameters target, timeout, host and port override the scan defaults.
With --announce the server registers itself over mDNS so that
'ssdp-scan servers' can find it.`,
	Example: `  # Serve on the configured address (default :8900)
  ssdp-scan serve

  # Announce over mDNS
  ssdp-scan serve --announce --name "Office scanner"

  # Serve wss:// with your own certificate
  ssdp-scan serve --listen :8943 --cert cert.pem --key key.pem`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	// The server logs its lifecycle unless told otherwise
	if logLevel == "" && registry.Preferences.LogLevel == "" && os.Getenv(logging.LogLevelEnvVar) == "" {
		if err := logging.Initialize("info"); err != nil {
			return err
		}
	}

	prefs := registry.Preferences
	addr := listenAddr
	if addr == "" {
		addr = prefs.ServeListen
	}

	srv, err := server.New(&server.Config{
		Addr:         addr,
		CertPath:     certPath,
		KeyPath:      keyPath,
		Session:      prefs.Session(),
		Defaults:     prefs.SearchRequest(),
		MaxTimeout:   maxTimeout,
		Announce:     announce,
		InstanceName: instanceName,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	scheme := "ws"
	if certPath != "" {
		scheme = "wss"
	}
	p := ui.NewPrinter(os.Stdout)
	p.PrintHeader("Scan Server", "ssdp-scan serve",
		ui.Param{Key: "Listen", Value: addr},
		ui.Param{Key: "Endpoint", Value: scheme + "://<host>" + portSuffix(addr) + "/scan"},
		ui.Param{Key: "mDNS", Value: fmt.Sprintf("%t", announce)},
	)

	return srv.Start()
}

func portSuffix(addr string) string {
	if i := strings.LastIndex(addr, ":"); i >= 0 {
		return addr[i:]
	}
	return ""
}

// serversCmd finds announced scan servers
var serversCmd = &cobra.Command{
	Use:   "servers",
	Short: "Find scan servers announced over mDNS",
	Long: `Browse the local network for scan servers started with
'ssdp-scan serve --announce'.`,
	Args: cobra.NoArgs,
	RunE: runServers,
}

func runServers(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	p := ui.NewPrinter(os.Stdout)
	endpoints, err := server.FindServers(cmd.Context(), browseTimeout)
	if err != nil {
		if !serversJSON {
			p.PrintError("Browse failed", err,
				"Check that multicast DNS (UDP 5353) is allowed",
			)
		}
		return err
	}
	if serversJSON {
		return printJSON(endpoints)
	}

	if len(endpoints) == 0 {
		p.PrintWarning("No scan servers found",
			"Start one with: ssdp-scan serve --announce",
			"Try a longer --timeout",
		)
		return nil
	}

	details := make([]ui.Param, 0, len(endpoints))
	for _, ep := range endpoints {
		details = append(details, ui.Param{Key: ep.Instance, Value: ep.URL()})
	}
	p.PrintSuccess(fmt.Sprintf("Found %d scan server(s)", len(endpoints)), details...)
	return nil
}

// remoteCmd runs a scan through a scan server
var remoteCmd = &cobra.Command{
	Use:   "remote <url>",
	Short: "Scan through a remote scan server",
	Long: `Ask a scan server to run a scan on its network and show the results.

The URL may be a full websocket URL or just host:port.`,
	Example: `  ssdp-scan remote 192.168.1.20:8900
  ssdp-scan remote ws://pi.local:8900/scan --target upnp:rootdevice
  ssdp-scan remote wss://nas:8943/scan --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runRemote,
}

func runRemote(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	scanURL, err := remoteURL(args[0], remoteTarget, remoteTimeout)
	if err != nil {
		return err
	}

	format := remoteFormat
	if format == "" {
		format = registry.Preferences.Format
	}
	if !ui.ValidFormat(format) {
		return fmt.Errorf("unknown output format %q (expected one of %s)", format, strings.Join(ui.Formats, ", "))
	}

	p := ui.NewPrinter(os.Stdout)
	styled := format != ui.FormatJSON
	if styled {
		p.PrintHeader("Remote SSDP Discovery", "ssdp-scan remote", ui.Param{Key: "Server", Value: scanURL})
	}

	var devices []discovery.Device
	count, err := server.Stream(cmd.Context(), scanURL, func(d discovery.Device) {
		if format == ui.FormatCompact {
			p.Println(ui.FormatCompactLine(d, registry.Nickname))
		}
		devices = append(devices, d)
	})
	if err != nil {
		if styled {
			p.PrintError("Remote scan failed", err,
				"Check the server address and that 'ssdp-scan serve' is running",
				"Find announced servers with: ssdp-scan servers",
			)
		}
		return err
	}

	if format != ui.FormatCompact {
		if len(devices) == 0 && styled {
			p.PrintWarning("No devices found", noDevicesHints...)
			return nil
		}
		if err := p.PrintDevices(devices, format, registry.Nickname); err != nil {
			return err
		}
	}
	if styled {
		p.Newline()
		p.PrintSuccess("Remote scan complete", ui.Param{Key: "Found", Value: ui.DeviceCount(count)})
	}

	recordDevices = remoteRecorded
	return record(devices)
}

// remoteURL normalizes a server address into a /scan URL with query parameters
func remoteURL(raw, target string, timeout time.Duration) (string, error) {
	if !strings.Contains(raw, "://") {
		raw = "ws://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid server URL %q: %w", raw, err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid server URL %q: unsupported scheme %q", raw, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid server URL %q: missing host", raw)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/scan"
	}

	query := u.Query()
	if target != "" {
		query.Set("target", target)
	}
	if timeout > 0 {
		query.Set("timeout", timeout.String())
	}
	u.RawQuery = query.Encode()
	return u.String(), nil
}

// printJSON writes v as indented JSON to stdout
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
