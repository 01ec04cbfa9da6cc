package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/ssdp-scan/internal/discovery"
)

// Output formats for discovered devices
const (
	FormatTable   = "table"
	FormatCompact = "compact"
	FormatJSON    = "json"
)

// Formats lists the accepted output formats
var Formats = []string{FormatTable, FormatCompact, FormatJSON}

// NicknameFunc returns a user-assigned name for a device, or "".
type NicknameFunc func(discovery.Device) string

// ValidFormat reports whether format is one of Formats
func ValidFormat(format string) bool {
	for _, f := range Formats {
		if f == format {
			return true
		}
	}
	return false
}

// deviceColumns are the table columns in display order
var deviceColumns = []string{"#", "IP", "NAME", "SERVICE TYPE", "USN", "LOCATION", "SERVER"}

// deviceRow returns the cell values for one device
func deviceRow(i int, d discovery.Device, nickname NicknameFunc) []string {
	name := ""
	if nickname != nil {
		name = nickname(d)
	}
	usn := AbsentValue
	if d.USN.Valid {
		usn = d.USN.String
	}
	return []string{
		strconv.Itoa(i + 1),
		orAbsent(d.IP),
		orAbsent(name),
		orAbsent(d.ServiceType),
		orAbsent(usn),
		orAbsent(d.DescriptionURL),
		orAbsent(d.Server),
	}
}

func orAbsent(s string) string {
	if s == "" {
		return AbsentValue
	}
	return s
}

// RenderDeviceTable renders devices as an aligned table with a heading row.
func RenderDeviceTable(devices []discovery.Device, nickname NicknameFunc) string {
	rows := make([][]string, len(devices))
	widths := make([]int, len(deviceColumns))
	for c, h := range deviceColumns {
		widths[c] = lipgloss.Width(h)
	}
	for i, d := range devices {
		rows[i] = deviceRow(i, d, nickname)
		for c, cell := range rows[i] {
			if w := lipgloss.Width(cell); w > widths[c] {
				widths[c] = w
			}
		}
	}

	var b strings.Builder
	b.WriteString(renderRow(deviceColumns, widths, func(int, string) lipgloss.Style { return TableHeaderStyle }))
	b.WriteString("\n")
	for _, row := range rows {
		b.WriteString(renderRow(row, widths, cellStyle))
		b.WriteString("\n")
	}
	return b.String()
}

func cellStyle(col int, value string) lipgloss.Style {
	switch {
	case value == AbsentValue:
		return MutedStyle
	case deviceColumns[col] == "NAME":
		return NicknameStyle
	default:
		return TableCellStyle
	}
}

func renderRow(cells []string, widths []int, style func(int, string) lipgloss.Style) string {
	parts := make([]string, len(cells))
	for c, cell := range cells {
		pad := ""
		if c < len(cells)-1 {
			pad = strings.Repeat(" ", widths[c]-lipgloss.Width(cell))
		}
		parts[c] = style(c, cell).Render(cell) + pad
	}
	return "  " + strings.Join(parts, "  ")
}

// FormatCompactLine renders one device on a single line:
// ip, service type, USN and location separated by two spaces.
func FormatCompactLine(d discovery.Device, nickname NicknameFunc) string {
	usn := AbsentValue
	if d.USN.Valid {
		usn = d.USN.String
	}
	line := fmt.Sprintf("%s  %s  %s  %s", orAbsent(d.IP), orAbsent(d.ServiceType), orAbsent(usn), orAbsent(d.DescriptionURL))
	if nickname != nil {
		if name := nickname(d); name != "" {
			line += "  (" + name + ")"
		}
	}
	return line
}

// WriteDevicesJSON writes devices as an indented JSON array. An empty slice
// is written as [] rather than null.
func WriteDevicesJSON(w io.Writer, devices []discovery.Device) error {
	if devices == nil {
		devices = []discovery.Device{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(devices); err != nil {
		return fmt.Errorf("failed to encode devices: %w", err)
	}
	return nil
}
