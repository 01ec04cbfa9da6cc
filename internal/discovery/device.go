package discovery

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"net"
	"regexp"
	"strings"
)

// NullString is a string that may be absent. Valid is false when the
// header the value comes from was not present at all.
type NullString struct {
	String string
	Valid  bool
}

// NewNullString returns a present value.
func NewNullString(s string) NullString {
	return NullString{String: s, Valid: true}
}

// MarshalJSON encodes an absent value as null.
func (n NullString) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.String)
}

// UnmarshalJSON decodes null as an absent value.
func (n *NullString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*n = NullString{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*n = NewNullString(s)
	return nil
}

// Device represents one SSDP response from a device or service on the network.
// Devices are plain values: two devices are equal when all five fields are
// equal, including whether the USN was present.
type Device struct {
	// IP is the source address the response arrived from (e.g., "192.168.0.1")
	IP string `json:"ip"`

	// DescriptionURL is the LOCATION header, pointing at the device description XML
	DescriptionURL string `json:"description_url"`

	// Server is the SERVER header (e.g., "Linux/2.0 UPnP/1.0 MyDevice/1.0")
	Server string `json:"server"`

	// ServiceType is the ST header of the response
	ServiceType string `json:"service_type"`

	// USN is the unique service name, absent if the response carried none
	USN NullString `json:"usn"`
}

// Datagram is one raw inbound packet and the address it came from.
type Datagram struct {
	Addr net.Addr
	Data []byte
}

// headerPattern matches "KEY: value" lines; the value keeps any further colons
var headerPattern = regexp.MustCompile(`^([^:]+): (.*)$`)

// Equal reports whether d and o describe the same response.
func (d Device) Equal(o Device) bool {
	return d == o
}

// Hash returns a digest that agrees for equal devices.
func (d Device) Hash() uint64 {
	h := fnv.New64a()
	for _, s := range []string{d.IP, d.DescriptionURL, d.Server, d.ServiceType, d.USN.String} {
		_, _ = h.Write([]byte(s))
		_, _ = h.Write([]byte{0})
	}
	if d.USN.Valid {
		_, _ = h.Write([]byte{1})
	}
	return h.Sum64()
}

// String returns a human-readable representation of the device
func (d Device) String() string {
	usn := "<absent>"
	if d.USN.Valid {
		usn = "'" + d.USN.String + "'"
	}
	return fmt.Sprintf("Device{ip='%s', descriptionUrl='%s', server='%s', serviceType='%s', usn=%s}",
		d.IP, d.DescriptionURL, d.Server, d.ServiceType, usn)
}

// ParseHeaders extracts the header block of an SSDP message. Keys are
// upper-cased and the last occurrence of a repeated key wins. Lines that are
// not "KEY: value" (status line, blank lines, garbage) are skipped.
func ParseHeaders(payload []byte) map[string]string {
	headers := make(map[string]string)
	for _, line := range strings.Split(string(payload), "\r\n") {
		matches := headerPattern.FindStringSubmatch(line)
		if matches == nil {
			continue
		}
		headers[strings.ToUpper(matches[1])] = matches[2]
	}
	return headers
}

// Parse converts a response payload received from ip into a Device.
// Parsing never fails; missing headers leave their fields empty.
func Parse(ip string, payload []byte) Device {
	headers := ParseHeaders(payload)

	device := Device{
		IP:             ip,
		DescriptionURL: headers["LOCATION"],
		Server:         headers["SERVER"],
		ServiceType:    headers["ST"],
	}
	if usn, ok := headers["USN"]; ok {
		device.USN = NewNullString(usn)
	}
	return device
}

// ParseDatagram parses a received packet. It returns nil for a nil datagram.
func ParseDatagram(dg *Datagram) *Device {
	if dg == nil {
		return nil
	}
	device := Parse(hostAddress(dg.Addr), dg.Data)
	return &device
}

// hostAddress returns the bare IP of addr, without port or zone decoration
func hostAddress(addr net.Addr) string {
	switch a := addr.(type) {
	case nil:
		return ""
	case *net.UDPAddr:
		if a == nil {
			return ""
		}
		return a.IP.String()
	case *net.IPAddr:
		if a == nil {
			return ""
		}
		return a.IP.String()
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
