// Package config provides user configuration management for ssdp-scan.
//
// This package manages a YAML-based configuration file that stores scan
// preferences and metadata about devices seen on earlier scans. Devices are
// keyed by their USN, so a device that changes address keeps its nickname.
//
// # Configuration File Location
//
// The configuration file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/ssdp-scan/config.yaml or $HOME/.config/ssdp-scan/config.yaml
//   - macOS: $HOME/.config/ssdp-scan/config.yaml
//   - Windows: %LOCALAPPDATA%\ssdp-scan\config.yaml
//
// # Usage Example
//
//	registry, err := config.LoadRegistry()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	devices, err := registry.Preferences.Session().DiscoverContext(ctx, registry.Preferences.SearchRequest())
//	for _, d := range devices {
//	    registry.Record(d, time.Now())
//	}
//
//	if err := registry.Save(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Thread Safety
//
// The global registry uses sync.Once for safe initialization across goroutines.
// File operations are protected by a mutex to ensure atomic writes.
package config
