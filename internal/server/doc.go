// Package server streams SSDP discoveries to websocket clients.
//
// A client opens a websocket on /scan and receives one JSON frame per device
// as responses arrive, followed by a frame that ends the scan:
//
//	{"type":"device","device":{"ip":"192.168.0.1","usn":"uuid:...",...}}
//	{"type":"done","count":1}
//
// or, when the discovery could not run:
//
//	{"type":"error","error":"Permission Denied: send 239.255.255.250:1900: ..."}
//
// The server then closes the connection with a normal closure.
//
// # Query Parameters
//
//	target   search target, e.g. upnp:rootdevice (default from config)
//	timeout  receive window, "3s" or milliseconds (capped by Config.MaxTimeout)
//	host     destination IP, e.g. 255.255.255.255 for broadcast
//	port     destination port
//
// Invalid parameters are rejected with 400 before the upgrade.
//
// # Discovery Over mDNS
//
// With Config.Announce set, the server registers itself as _ssdp-scan._tcp
// so FindServers can locate it from another machine.
//
// # Usage Example
//
//	srv, err := server.New(&server.Config{
//	    Addr:     ":8900",
//	    Defaults: discovery.SearchRequest{SearchTarget: discovery.SearchAll},
//	    Announce: true,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Start blocks until SIGINT/SIGTERM or error
//	if err := srv.Start(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Graceful Shutdown
//
// On SIGINT or SIGTERM the server stops accepting connections, withdraws its
// mDNS announcement, closes open websockets and waits for running scans.
package server
