package discovery

import (
	"encoding/json"
	"net"
	"testing"
)

const (
	testIP             = "192.168.0.1"
	testDescriptionURL = "http://192.168.0.1/description.xml"
	testServer         = "Linux/2.0 UPnP/1.0 MyDevice/1.0"
	testServiceType    = "urn:schemas-upnp-org:service:MyService:1"
	testUSN            = "uuid:1234567890"
)

const testResponse = "HTTP/1.1 200 OK\r\n" +
	"CACHE-CONTROL: max-age=1800\r\n" +
	"EXT:\r\n" +
	"LOCATION: " + testDescriptionURL + "\r\n" +
	"SERVER: " + testServer + "\r\n" +
	"ST: " + testServiceType + "\r\n" +
	"USN: " + testUSN + "\r\n" +
	"\r\n"

func testDevice(usn NullString) Device {
	return Device{
		IP:             testIP,
		DescriptionURL: testDescriptionURL,
		Server:         testServer,
		ServiceType:    testServiceType,
		USN:            usn,
	}
}

func TestParse(t *testing.T) {
	got := Parse(testIP, []byte(testResponse))
	want := testDevice(NewNullString(testUSN))

	if got != want {
		t.Errorf("Parse() = %v, want %v", got, want)
	}
}

func TestParse_Headers(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    Device
	}{
		{
			name:    "lowercase keys",
			payload: "HTTP/1.1 200 OK\r\nlocation: http://10.0.0.2/d.xml\r\nserver: test\r\nst: upnp:rootdevice\r\nusn: uuid:a\r\n\r\n",
			want: Device{
				IP:             "10.0.0.2",
				DescriptionURL: "http://10.0.0.2/d.xml",
				Server:         "test",
				ServiceType:    "upnp:rootdevice",
				USN:            NewNullString("uuid:a"),
			},
		},
		{
			name:    "mixed case keys",
			payload: "Location: http://10.0.0.2/d.xml\r\nSt: upnp:rootdevice\r\n",
			want: Device{
				IP:             "10.0.0.2",
				DescriptionURL: "http://10.0.0.2/d.xml",
				ServiceType:    "upnp:rootdevice",
			},
		},
		{
			name:    "value keeps embedded colons",
			payload: "USN: uuid:abc::urn:schemas-upnp-org:device:MediaServer:1\r\n",
			want: Device{
				IP:  "10.0.0.2",
				USN: NewNullString("uuid:abc::urn:schemas-upnp-org:device:MediaServer:1"),
			},
		},
		{
			name:    "last occurrence wins",
			payload: "SERVER: first\r\nSERVER: second\r\n",
			want: Device{
				IP:     "10.0.0.2",
				Server: "second",
			},
		},
		{
			name:    "explicitly empty USN",
			payload: "USN: \r\n",
			want: Device{
				IP:  "10.0.0.2",
				USN: NewNullString(""),
			},
		},
		{
			name:    "missing space after colon is skipped",
			payload: "LOCATION:http://10.0.0.2/d.xml\r\nEXT:\r\n",
			want:    Device{IP: "10.0.0.2"},
		},
		{
			name:    "LF only lines are not headers",
			payload: "SERVER: a\nST: b\n",
			want:    Device{IP: "10.0.0.2"},
		},
		{
			name:    "garbage",
			payload: "\x00\x01\x02 not a header at all",
			want:    Device{IP: "10.0.0.2"},
		},
		{
			name:    "empty payload",
			payload: "",
			want:    Device{IP: "10.0.0.2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse("10.0.0.2", []byte(tt.payload))
			if got != tt.want {
				t.Errorf("Parse() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParse_AbsentUSN(t *testing.T) {
	got := Parse(testIP, []byte("HTTP/1.1 200 OK\r\nST: upnp:rootdevice\r\n\r\n"))

	if got.USN.Valid {
		t.Errorf("USN.Valid = true, want false for missing header")
	}
	if got.DescriptionURL != "" || got.Server != "" {
		t.Errorf("absent string headers should be empty, got %q and %q", got.DescriptionURL, got.Server)
	}
	if got.Equal(Parse(testIP, []byte("ST: upnp:rootdevice\r\nUSN: \r\n"))) {
		t.Error("device without USN should differ from device with empty USN")
	}
}

func TestParseDatagram(t *testing.T) {
	if got := ParseDatagram(nil); got != nil {
		t.Errorf("ParseDatagram(nil) = %v, want nil", got)
	}

	dg := &Datagram{
		Addr: &net.UDPAddr{IP: net.ParseIP(testIP), Port: 49152},
		Data: []byte(testResponse),
	}
	got := ParseDatagram(dg)
	if got == nil {
		t.Fatal("ParseDatagram() = nil, want device")
	}
	if *got != testDevice(NewNullString(testUSN)) {
		t.Errorf("ParseDatagram() = %v, want %v", *got, testDevice(NewNullString(testUSN)))
	}
}

func TestHostAddress(t *testing.T) {
	tests := []struct {
		name string
		addr net.Addr
		want string
	}{
		{"nil", nil, ""},
		{"udp v4", &net.UDPAddr{IP: net.ParseIP("10.1.2.3"), Port: 1900}, "10.1.2.3"},
		{"udp v6", &net.UDPAddr{IP: net.ParseIP("fe80::1"), Port: 1900}, "fe80::1"},
		{"ip addr", &net.IPAddr{IP: net.ParseIP("10.1.2.4")}, "10.1.2.4"},
		{"typed nil udp", (*net.UDPAddr)(nil), ""},
		{"tcp", &net.TCPAddr{IP: net.ParseIP("10.1.2.5"), Port: 80}, "10.1.2.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hostAddress(tt.addr); got != tt.want {
				t.Errorf("hostAddress() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDevice_Equal(t *testing.T) {
	device1 := testDevice(NewNullString(testUSN))
	device2 := testDevice(NewNullString(testUSN))
	device3 := testDevice(NewNullString("uuid:0987654321"))
	device4 := testDevice(NullString{})
	device5 := testDevice(NewNullString(""))

	if !device1.Equal(device2) {
		t.Error("identical devices should be equal")
	}
	if device1.Equal(device3) {
		t.Error("devices with different USN should not be equal")
	}
	if device1.Equal(device4) {
		t.Error("device with absent USN should not equal device with USN")
	}
	if device4.Equal(device5) {
		t.Error("absent USN should not equal empty USN")
	}
}

func TestDevice_Hash(t *testing.T) {
	device1 := testDevice(NewNullString(testUSN))
	device2 := testDevice(NewNullString(testUSN))

	if device1.Hash() != device2.Hash() {
		t.Errorf("equal devices hash differently: %d != %d", device1.Hash(), device2.Hash())
	}

	// Field boundaries must be part of the digest
	a := Device{IP: "ab", Server: "c"}
	b := Device{IP: "a", Server: "bc"}
	if a.Hash() == b.Hash() {
		t.Error("shifted field contents should not collide")
	}

	if testDevice(NullString{}).Hash() == testDevice(NewNullString("")).Hash() {
		t.Error("absent and empty USN should hash differently")
	}
}

func TestDevice_String(t *testing.T) {
	device := testDevice(NewNullString(testUSN))

	expected := "Device{ip='" + testIP + "', descriptionUrl='" + testDescriptionURL +
		"', server='" + testServer + "', serviceType='" + testServiceType +
		"', usn='" + testUSN + "'}"
	if device.String() != expected {
		t.Errorf("Device.String() = %v, want %v", device.String(), expected)
	}

	absent := testDevice(NullString{})
	expectedAbsent := "Device{ip='" + testIP + "', descriptionUrl='" + testDescriptionURL +
		"', server='" + testServer + "', serviceType='" + testServiceType +
		"', usn=<absent>}"
	if absent.String() != expectedAbsent {
		t.Errorf("Device.String() = %v, want %v", absent.String(), expectedAbsent)
	}
}

func TestDevice_JSON(t *testing.T) {
	tests := []struct {
		name   string
		device Device
		want   string
	}{
		{
			name:   "present USN",
			device: Device{IP: "10.0.0.1", USN: NewNullString("uuid:a")},
			want:   `{"ip":"10.0.0.1","description_url":"","server":"","service_type":"","usn":"uuid:a"}`,
		},
		{
			name:   "absent USN",
			device: Device{IP: "10.0.0.1"},
			want:   `{"ip":"10.0.0.1","description_url":"","server":"","service_type":"","usn":null}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.device)
			if err != nil {
				t.Fatalf("json.Marshal() error = %v", err)
			}
			if string(data) != tt.want {
				t.Errorf("json.Marshal() = %s, want %s", data, tt.want)
			}

			var back Device
			if err := json.Unmarshal(data, &back); err != nil {
				t.Fatalf("json.Unmarshal() error = %v", err)
			}
			if back != tt.device {
				t.Errorf("json round trip = %v, want %v", back, tt.device)
			}
		})
	}
}

func BenchmarkParse(b *testing.B) {
	payload := []byte(testResponse)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Parse(testIP, payload)
	}
}
