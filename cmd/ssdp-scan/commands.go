package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/ssdp-scan/internal/discovery"
	"github.com/muurk/ssdp-scan/internal/ui"
)

// Scan command flags
var (
	scanTimeout   time.Duration
	searchTarget  string
	destHost      string
	destPort      int
	useBroadcast  bool
	outputFormat  string
	interactive   bool
	recordDevices bool
	multicastTTL  int
	ifaceName     string
)

func init() {
	for _, cmd := range []*cobra.Command{scanCmd, oneCmd} {
		addSearchFlags(cmd)
		cmd.Flags().StringVar(&outputFormat, "format", "", "Output format (table, compact, json)")
		cmd.Flags().BoolVar(&recordDevices, "record", false, "Remember discovered devices in the config file")
		cmd.Flags().IntVar(&multicastTTL, "ttl", 0, "Multicast TTL (default from config)")
		cmd.Flags().StringVar(&ifaceName, "interface", "", "Network interface for multicast searches")
	}
	scanCmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Show results in an interactive terminal UI")

	devicesCmd.Flags().StringVar(&outputFormat, "format", "", "Output format (table, compact, json)")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(oneCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(aliasCmd)
}

// addSearchFlags registers the flags that shape an M-SEARCH request
func addSearchFlags(cmd *cobra.Command) {
	cmd.Flags().DurationVarP(&scanTimeout, "timeout", "t", 0, "How long to wait for responses, e.g. 3s (default from config)")
	cmd.Flags().StringVar(&searchTarget, "target", "", "Search target, e.g. upnp:rootdevice (default ssdp:all)")
	cmd.Flags().StringVar(&destHost, "host", "", "Destination address (default 239.255.255.250)")
	cmd.Flags().IntVar(&destPort, "port", 0, "Destination port (default 1900)")
	cmd.Flags().BoolVar(&useBroadcast, "broadcast", false, "Search via 255.255.255.255 instead of multicast")
}

// searchRequest merges explicitly set flags over the configured preferences
func searchRequest(cmd *cobra.Command) discovery.SearchRequest {
	req := registry.Preferences.SearchRequest()
	flags := cmd.Flags()
	if flags.Changed("timeout") {
		req.Timeout = scanTimeout
	}
	if flags.Changed("target") {
		req.SearchTarget = searchTarget
	}
	if flags.Changed("host") {
		req.Host = destHost
	}
	if flags.Changed("port") {
		req.Port = destPort
	}
	if useBroadcast {
		req.Host = discovery.BroadcastAddress
	}
	return req
}

// session builds a discovery session from the preferences and socket flags
func session(cmd *cobra.Command) *discovery.Session {
	s := registry.Preferences.Session()
	if cmd.Flags().Changed("ttl") {
		s.MulticastTTL = multicastTTL
	}
	if cmd.Flags().Changed("interface") {
		s.Interface = ifaceName
	}
	return s
}

func resolveFormat() (string, error) {
	format := outputFormat
	if format == "" {
		format = registry.Preferences.Format
	}
	if !ui.ValidFormat(format) {
		return "", fmt.Errorf("unknown output format %q (expected one of %s)", format, strings.Join(ui.Formats, ", "))
	}
	return format, nil
}

func requestParams(req discovery.SearchRequest) []ui.Param {
	target := req.SearchTarget
	if target == "" {
		target = discovery.SearchAll
	}
	return []ui.Param{
		{Key: "Destination", Value: fmt.Sprintf("%s:%d", req.Host, req.Port)},
		{Key: "Search Target", Value: target},
		{Key: "Timeout", Value: req.Timeout.String()},
	}
}

// troubleshooting splits a discovery hint into result box lines
func troubleshooting(err error) []string {
	var lines []string
	for _, line := range strings.Split(discovery.TroubleshootingHint(err), "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "•"))
		if line == "" || line == "Troubleshooting:" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

var noDevicesHints = []string{
	"Check that devices are powered on and on the same network",
	"Try a longer --timeout for slow responders",
	"Try --broadcast if your network filters multicast",
	"Check that your firewall allows inbound UDP",
}

// scanCmd discovers devices on the network
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for SSDP devices on the network",
	Long: `Scan for UPnP devices and services using an SSDP M-SEARCH request.

Every response received before the timeout is listed. With a search target
other than ssdp:all, only responses mentioning that target are kept.`,
	Example: `  # Scan for 5 seconds (default)
  ssdp-scan scan

  # Quick scan for root devices only
  ssdp-scan scan --timeout 2s --target upnp:rootdevice

  # Networks that drop multicast
  ssdp-scan scan --broadcast

  # JSON output for scripting
  ssdp-scan scan --format json

  # Browse results interactively and remember the devices
  ssdp-scan scan -i --record`,
	RunE: runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	// Suppress usage on execution errors (we're past argument parsing)
	cmd.SilenceUsage = true

	req := searchRequest(cmd)
	s := session(cmd)

	if interactive && ui.IsTerminal() {
		devices, err := ui.RunInteractiveScan(ui.NewScanModel(ui.SessionScanner(s), req, registry.Nickname))
		if err != nil {
			return err
		}
		return record(devices)
	}

	format, err := resolveFormat()
	if err != nil {
		return err
	}

	p := ui.NewPrinter(os.Stdout)
	styled := format != ui.FormatJSON
	if styled {
		p.PrintHeader("SSDP Discovery", "ssdp-scan scan", requestParams(req)...)
	}

	start := time.Now()
	devices, err := s.DiscoverContext(cmd.Context(), req)
	if err != nil {
		if styled {
			p.PrintError("Scan failed", err, troubleshooting(err)...)
		}
		return fmt.Errorf("scan failed: %w", err)
	}

	if len(devices) == 0 && styled {
		p.PrintWarning("No devices found", noDevicesHints...)
		return nil
	}

	if err := p.PrintDevices(devices, format, registry.Nickname); err != nil {
		return err
	}
	if err := record(devices); err != nil {
		return err
	}

	if styled {
		result := ui.NewSuccessResult("Scan complete",
			ui.Param{Key: "Found", Value: ui.DeviceCount(len(devices))},
			ui.Param{Key: "Elapsed", Value: time.Since(start).Round(time.Millisecond).String()},
		)
		if recordDevices {
			result.AddDetail("Recorded in", registryPath)
		}
		p.Newline()
		p.Println(result.SetWidth(p.Width()).Render())
	}
	return nil
}

// oneCmd stops at the first answering device
var oneCmd = &cobra.Command{
	Use:   "one",
	Short: "Find the first device matching a search target",
	Long: `Send an M-SEARCH request and stop at the first matching response.

Exits with an error when no device answers before the timeout.`,
	Example: `  # First media renderer on the network
  ssdp-scan one --target urn:schemas-upnp-org:device:MediaRenderer:1

  # Address only, for scripts
  ssdp-scan one --target upnp:rootdevice --format compact`,
	RunE: runOne,
}

func runOne(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	req := searchRequest(cmd)
	format, err := resolveFormat()
	if err != nil {
		return err
	}

	p := ui.NewPrinter(os.Stdout)
	styled := format != ui.FormatJSON
	if styled {
		p.PrintHeader("SSDP Discovery", "ssdp-scan one", requestParams(req)...)
	}

	device, err := session(cmd).DiscoverOneContext(cmd.Context(), req)
	if err != nil {
		if styled {
			if errors.Is(err, discovery.ErrNoDevice) {
				p.PrintWarning("No device found", troubleshooting(err)...)
			} else {
				p.PrintError("Search failed", err, troubleshooting(err)...)
			}
		}
		return err
	}

	devices := []discovery.Device{*device}
	if err := p.PrintDevices(devices, format, registry.Nickname); err != nil {
		return err
	}
	return record(devices)
}

// record stores devices in the registry when --record is set
func record(devices []discovery.Device) error {
	if !recordDevices || len(devices) == 0 {
		return nil
	}

	seen := time.Now()
	stored := 0
	for _, d := range devices {
		if registry.Record(d, seen) {
			stored++
		}
	}
	if stored == 0 {
		return nil
	}
	if err := registry.SaveTo(registryPath); err != nil {
		return fmt.Errorf("failed to record devices: %w", err)
	}
	return nil
}

// devicesCmd lists devices remembered from earlier scans
var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List devices remembered from earlier scans",
	Long: `List the devices recorded with 'ssdp-scan scan --record'.

Each entry shows the address, headers and nickname from the last scan
that saw the device.`,
	Args: cobra.NoArgs,
	RunE: runDevices,
}

func runDevices(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	format, err := resolveFormat()
	if err != nil {
		return err
	}

	usns := recordedUSNs()
	devices := make([]discovery.Device, 0, len(usns))
	for _, usn := range usns {
		rec := registry.Devices[usn]
		devices = append(devices, discovery.Device{
			IP:             rec.LastIP,
			DescriptionURL: rec.Location,
			Server:         rec.Server,
			ServiceType:    rec.ServiceType,
			USN:            discovery.NewNullString(usn),
		})
	}

	p := ui.NewPrinter(os.Stdout)
	if len(devices) == 0 && format != ui.FormatJSON {
		p.PrintWarning("No devices recorded",
			"Record devices with: ssdp-scan scan --record",
			"Config file: "+registryPath,
		)
		return nil
	}
	return p.PrintDevices(devices, format, registry.Nickname)
}

// aliasCmd sets a device nickname
var aliasCmd = &cobra.Command{
	Use:   "alias <usn|#> [nickname]",
	Short: "Set or clear a device nickname",
	Long: `Give a device a nickname, shown in scan results.

The device is identified by its USN, or by its row number in the output
of 'ssdp-scan devices'. Omit the nickname to clear it.`,
	Example: `  ssdp-scan alias uuid:4d696e69-444c-164e-9d41-b827eb1e6a3c "Living room TV"
  ssdp-scan alias 2 "NAS"
  ssdp-scan alias 2`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runAlias,
}

func runAlias(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	usn := resolveUSN(args[0])
	nickname := ""
	if len(args) == 2 {
		nickname = strings.TrimSpace(args[1])
	}

	registry.SetDeviceNickname(usn, nickname)
	if err := registry.SaveTo(registryPath); err != nil {
		return err
	}

	p := ui.NewPrinter(os.Stdout)
	if nickname == "" {
		p.PrintSuccess("Nickname cleared", ui.Param{Key: "USN", Value: usn})
	} else {
		p.PrintSuccess("Nickname set",
			ui.Param{Key: "USN", Value: usn},
			ui.Param{Key: "Nickname", Value: nickname},
		)
	}
	return nil
}

// resolveUSN maps a row number from 'devices' to its USN
func resolveUSN(arg string) string {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > len(registry.Devices) {
		return arg
	}
	return recordedUSNs()[n-1]
}

// recordedUSNs returns the registry keys in display order
func recordedUSNs() []string {
	usns := make([]string, 0, len(registry.Devices))
	for usn := range registry.Devices {
		usns = append(usns, usn)
	}
	sort.Strings(usns)
	return usns
}
