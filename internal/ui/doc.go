// Package ui provides terminal output for the ssdp-scan CLI.
//
// This package uses Lipgloss for styled, non-interactive output and Bubble Tea
// for the interactive scan screen.
//
// # Components
//
//   - Header: Command banner showing the search target and destination
//   - Result: Success/failure/warning boxes with troubleshooting tips
//   - Device renderers: table, compact and JSON output of discovered devices
//   - ScanModel: full-screen scan that lists devices as responses arrive
//
// # Output Formats
//
// Printer.PrintDevices writes one of:
//
//	table    aligned columns, nicknames highlighted
//	compact  one device per line
//	json     indented array, an absent USN is null
//
// Headers and result boxes are meant for a terminal. Commands skip them for
// JSON output so stdout stays machine readable.
//
// # Interactive Scan
//
// ScanModel streams devices from a ScanFunc through a channel. Each scan has
// an id, and events from a superseded scan are dropped after a rescan.
//
//	devices, err := ui.RunInteractiveScan(
//	    ui.NewScanModel(ui.SessionScanner(session), req, registry.Nickname),
//	)
package ui
