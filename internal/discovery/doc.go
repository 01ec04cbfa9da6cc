// Package discovery provides SSDP-based discovery of UPnP devices and services.
//
// This package implements the search half of the Simple Service Discovery
// Protocol: it sends a single M-SEARCH request to the SSDP multicast group
// (or the limited broadcast address) and collects the unicast responses that
// arrive within a time window.
//
// # Discovery Process
//
// The discovery process works as follows:
//  1. Builds the M-SEARCH request for the search target and timeout
//  2. Opens a fresh UDP endpoint for this call only
//  3. Sends the request once to 239.255.255.250:1900
//  4. Receives responses until the timeout elapses, dropping those that do
//     not contain the search target
//  5. Parses each accepted response into a Device, in arrival order
//
// # Usage Example
//
//	// Discover everything that answers within 5 seconds
//	devices, err := discovery.Discover(5*time.Second, discovery.SearchAll)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for _, device := range devices {
//	    fmt.Printf("Found: %s at %s (%s)\n",
//	        device.ServiceType, device.IP, device.DescriptionURL)
//	}
//
// For finer control build a Session:
//
//	session := discovery.NewSession()
//	session.Interface = "eth0"
//	session.OnDevice = func(d discovery.Device) { fmt.Println(d) }
//	devices, err := session.Discover(discovery.SearchRequest{
//	    SearchTarget: "urn:schemas-upnp-org:device:MediaRenderer:1",
//	    Timeout:      3 * time.Second,
//	})
//
// # Device Information
//
// Each response yields:
//   - IP: address the response came from
//   - DescriptionURL: LOCATION header
//   - Server: SERVER header
//   - ServiceType: ST header
//   - USN: unique service name; USN.Valid is false when the header was missing
//
// Parsing is lenient: a malformed response produces a Device with empty
// fields rather than an error. The LOCATION document is not fetched, and
// repeated responses from one device are not merged.
//
// # Errors
//
// A timeout is the normal end of a discovery and is never reported. Socket,
// resolution and send failures are returned as *TransportError.
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Devices must be on the same local network segment
// - Firewall must allow inbound UDP responses to the ephemeral source port
//
// # Thread Safety
//
// This package is safe for concurrent use. Each discovery owns its socket and
// result slice, so concurrent discoveries do not interfere.
package discovery
