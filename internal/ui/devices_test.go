package ui

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/muurk/ssdp-scan/internal/discovery"
)

func TestRenderDeviceTable(t *testing.T) {
	nickname := func(d discovery.Device) string {
		if d.IP == "192.168.0.1" {
			return "Router"
		}
		return ""
	}

	out := RenderDeviceTable(testDevices, nickname)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header + 2 rows:\n%s", len(lines), out)
	}

	for _, want := range []string{"IP", "SERVICE TYPE", "USN", "LOCATION"} {
		if !strings.Contains(lines[0], want) {
			t.Errorf("header %q missing column %q", lines[0], want)
		}
	}
	for _, want := range []string{"192.168.0.1", "Router", "uuid:1234567890", "http://192.168.0.1/description.xml"} {
		if !strings.Contains(lines[1], want) {
			t.Errorf("row %q missing %q", lines[1], want)
		}
	}
	if !strings.Contains(lines[2], "192.168.0.2") || !strings.Contains(lines[2], AbsentValue) {
		t.Errorf("row %q should show absent values as %q", lines[2], AbsentValue)
	}

	// Columns line up: the IP column starts at the same offset on every line
	col := strings.Index(lines[0], "IP")
	if strings.Index(lines[1], "192.168.0.1") != col || strings.Index(lines[2], "192.168.0.2") != col {
		t.Errorf("IP column misaligned:\n%s", out)
	}
}

func TestRenderDeviceTable_Empty(t *testing.T) {
	out := RenderDeviceTable(nil, nil)
	if got := strings.Count(out, "\n"); got != 1 {
		t.Errorf("empty table should be a header only, got %d lines", got)
	}
}

func TestFormatCompactLine(t *testing.T) {
	tests := []struct {
		name     string
		device   discovery.Device
		nickname NicknameFunc
		want     string
	}{
		{
			name:   "full",
			device: testDevices[0],
			want:   "192.168.0.1  urn:schemas-upnp-org:service:MyService:1  uuid:1234567890  http://192.168.0.1/description.xml",
		},
		{
			name:   "absent fields",
			device: discovery.Device{IP: "10.0.0.1"},
			want:   "10.0.0.1  -  -  -",
		},
		{
			name:     "nickname",
			device:   discovery.Device{IP: "10.0.0.1"},
			nickname: func(discovery.Device) string { return "NAS" },
			want:     "10.0.0.1  -  -  -  (NAS)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatCompactLine(tt.device, tt.nickname); got != tt.want {
				t.Errorf("FormatCompactLine() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWriteDevicesJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteDevicesJSON(&buf, testDevices); err != nil {
		t.Fatalf("WriteDevicesJSON() error = %v", err)
	}

	var got []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if len(got) != 2 {
		t.Fatalf("got %d devices, want 2", len(got))
	}
	if got[0]["usn"] != "uuid:1234567890" {
		t.Errorf("usn = %v, want uuid:1234567890", got[0]["usn"])
	}
	if got[1]["usn"] != nil {
		t.Errorf("absent usn = %v, want null", got[1]["usn"])
	}
}

func TestWriteDevicesJSON_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteDevicesJSON(&buf, nil); err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(buf.String()); got != "[]" {
		t.Errorf("WriteDevicesJSON(nil) = %q, want []", got)
	}
}

func TestPrinter_PrintDevices(t *testing.T) {
	tests := []struct {
		format  string
		want    string
		wantErr bool
	}{
		{FormatTable, "SERVICE TYPE", false},
		{"", "SERVICE TYPE", false},
		{FormatCompact, "192.168.0.2  upnp:rootdevice", false},
		{FormatJSON, `"ip": "192.168.0.1"`, false},
		{"xml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			err := NewPrinter(&buf).PrintDevices(testDevices, tt.format, nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("PrintDevices() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("output missing %q:\n%s", tt.want, buf.String())
			}
		})
	}
}

func TestValidFormat(t *testing.T) {
	for _, f := range Formats {
		if !ValidFormat(f) {
			t.Errorf("ValidFormat(%q) = false", f)
		}
	}
	if ValidFormat("yaml") {
		t.Error("ValidFormat(yaml) = true")
	}
}

func TestResultRender(t *testing.T) {
	tests := []struct {
		name   string
		result *Result
		want   []string
	}{
		{
			name:   "success",
			result: NewSuccessResult("2 devices found", Param{"Target", "ssdp:all"}),
			want:   []string{"SUCCESS", "2 devices found", "Target:", "ssdp:all"},
		},
		{
			name:   "failure",
			result: NewFailureResult("Scan failed", errors.New("boom"), "Check the firewall"),
			want:   []string{"FAILED", "Error: boom", "Troubleshooting:", "Check the firewall"},
		},
		{
			name:   "warning",
			result: NewWarningResult("No devices found", "Try --broadcast"),
			want:   []string{"WARNING", "No devices found", "Try --broadcast"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := tt.result.SetWidth(80).Render()
			for _, want := range tt.want {
				if !strings.Contains(out, want) {
					t.Errorf("Render() missing %q:\n%s", want, out)
				}
			}
		})
	}
}

func TestHeaderRender(t *testing.T) {
	h := NewHeader("SSDP Discovery", "ssdp-scan scan",
		Param{"Target", "ssdp:all"},
		Param{"Destination", "239.255.255.250:1900"},
	).SetWidth(80)

	out := h.Render()
	for _, want := range []string{"SSDP DISCOVERY", "ssdp-scan scan", "Target:", "Destination:", "239.255.255.250:1900"} {
		if !strings.Contains(out, want) {
			t.Errorf("Render() missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "Target:") > strings.Index(out, "Destination:") {
		t.Error("params should render in the order given")
	}
}
