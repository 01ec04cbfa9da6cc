package config

import (
	"time"

	"github.com/muurk/ssdp-scan/internal/discovery"
)

// CurrentVersion is the config file format version
const CurrentVersion = 1

// Registry represents the entire user configuration file.
// It stores scan preferences and metadata about devices seen on earlier scans.
type Registry struct {
	Version     int                      `yaml:"version"`
	Preferences *Preferences             `yaml:"preferences,omitempty"`
	Devices     map[string]*DeviceRecord `yaml:"devices,omitempty"` // Keyed by USN
}

// Preferences holds the defaults used by scan commands when a flag is not given.
type Preferences struct {
	Host         string        `yaml:"host"`                   // Destination group or broadcast address
	Port         int           `yaml:"port"`                   // Destination UDP port
	SearchTarget string        `yaml:"search_target"`          // ST to search for
	Timeout      time.Duration `yaml:"timeout"`                // Receive window, e.g. "5s"
	Format       string        `yaml:"format"`                 // Output format (table, compact, json)
	MulticastTTL int           `yaml:"multicast_ttl"`          // IP TTL for multicast searches
	Interface    string        `yaml:"interface,omitempty"`    // Outgoing interface name
	LogLevel     string        `yaml:"log_level,omitempty"`    // debug, info, warn, error
	ServeListen  string        `yaml:"serve_listen,omitempty"` // Address for the serve command
}

// DeviceRecord is what we remember about a device between scans.
type DeviceRecord struct {
	Nickname    string    `yaml:"nickname,omitempty"`     // User-friendly name
	LastIP      string    `yaml:"last_ip,omitempty"`      // Last known IP address
	LastSeen    time.Time `yaml:"last_seen,omitempty"`    // Last time it answered a scan
	Location    string    `yaml:"location,omitempty"`     // Last LOCATION header
	Server      string    `yaml:"server,omitempty"`       // Last SERVER header
	ServiceType string    `yaml:"service_type,omitempty"` // Last ST header
}

// DefaultPreferences returns the built-in scan defaults.
func DefaultPreferences() *Preferences {
	return &Preferences{
		Host:         discovery.MulticastAddress,
		Port:         discovery.DefaultPort,
		SearchTarget: discovery.SearchAll,
		Timeout:      5 * time.Second,
		Format:       "table",
		MulticastTTL: discovery.DefaultMulticastTTL,
		ServeListen:  ":8900",
	}
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version:     CurrentVersion,
		Preferences: DefaultPreferences(),
		Devices:     make(map[string]*DeviceRecord),
	}
}

// GetDevice retrieves a device record by USN.
// Returns nil if the device doesn't exist in the registry.
func (r *Registry) GetDevice(usn string) *DeviceRecord {
	return r.Devices[usn]
}

// EnsureDevice ensures a device entry exists in the registry.
// Returns the device entry (existing or newly created).
func (r *Registry) EnsureDevice(usn string) *DeviceRecord {
	if r.Devices == nil {
		r.Devices = make(map[string]*DeviceRecord)
	}

	if device, exists := r.Devices[usn]; exists {
		return device
	}

	device := &DeviceRecord{}
	r.Devices[usn] = device
	return device
}

// Record stores a discovered device. Devices without a USN cannot be keyed
// and are ignored; Record reports whether the device was stored.
func (r *Registry) Record(d discovery.Device, seen time.Time) bool {
	if !d.USN.Valid || d.USN.String == "" {
		return false
	}

	device := r.EnsureDevice(d.USN.String)
	device.LastIP = d.IP
	device.LastSeen = seen
	device.Location = d.DescriptionURL
	device.Server = d.Server
	device.ServiceType = d.ServiceType
	return true
}

// SetDeviceNickname sets a user-friendly nickname for a device.
func (r *Registry) SetDeviceNickname(usn, nickname string) {
	device := r.EnsureDevice(usn)
	device.Nickname = nickname
}

// Nickname returns the nickname recorded for a discovered device, if any.
func (r *Registry) Nickname(d discovery.Device) string {
	if !d.USN.Valid {
		return ""
	}
	if device := r.GetDevice(d.USN.String); device != nil {
		return device.Nickname
	}
	return ""
}

// SearchRequest builds a discovery request from the preferences.
func (p *Preferences) SearchRequest() discovery.SearchRequest {
	return discovery.SearchRequest{
		Host:         p.Host,
		Port:         p.Port,
		SearchTarget: p.SearchTarget,
		Timeout:      p.Timeout,
	}
}

// Session builds a discovery session from the preferences.
func (p *Preferences) Session() *discovery.Session {
	session := discovery.NewSession()
	session.MulticastTTL = p.MulticastTTL
	session.Interface = p.Interface
	return session
}
