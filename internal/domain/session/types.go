package session

import (
	"fmt"
	"strings"
)

// PlatformType is the client platform reported by the SDK.
type PlatformType uint8

const (
	PlatformUnknown PlatformType = iota
	PlatformWindows
	PlatformMac
	PlatformLinux
	PlatformSwitch
	PlatformPS4
	PlatformIOS
	PlatformXBoxOne
	PlatformXBoxSeriesX
	PlatformPS5
	PlatformGDK

	PlatformMax = PlatformGDK
)

var platformNames = [...]string{
	PlatformUnknown:     "unknown",
	PlatformWindows:     "windows",
	PlatformMac:         "mac",
	PlatformLinux:       "linux",
	PlatformSwitch:      "switch",
	PlatformPS4:         "ps4",
	PlatformIOS:         "ios",
	PlatformXBoxOne:     "xboxone",
	PlatformXBoxSeriesX: "xboxseriesx",
	PlatformPS5:         "ps5",
	PlatformGDK:         "gdk",
}

// Display names used by the User Tool table.
var platformLabels = [...]string{
	PlatformUnknown:     "Unknown",
	PlatformWindows:     "Windows",
	PlatformMac:         "Mac",
	PlatformLinux:       "Linux",
	PlatformSwitch:      "Switch",
	PlatformPS4:         "PS4",
	PlatformIOS:         "iOS",
	PlatformXBoxOne:     "Xbox One",
	PlatformXBoxSeriesX: "Xbox Series X",
	PlatformPS5:         "PS5",
	PlatformGDK:         "GDK",
}

func (p PlatformType) String() string {
	if p > PlatformMax {
		return platformNames[PlatformUnknown]
	}
	return platformNames[p]
}

// Label is the human-readable platform name.
func (p PlatformType) Label() string {
	if p > PlatformMax {
		return platformLabels[PlatformUnknown]
	}
	return platformLabels[p]
}

// MarshalText implements encoding.TextMarshaler.
func (p PlatformType) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *PlatformType) UnmarshalText(b []byte) error {
	s := strings.ToLower(string(b))
	for i, name := range platformNames {
		if name == s {
			*p = PlatformType(i)
			return nil
		}
	}
	return fmt.Errorf("session: unknown platform %q", string(b))
}

// ConnectionType is the client network connection reported by the SDK.
type ConnectionType uint8

const (
	ConnectionUnknown ConnectionType = iota
	ConnectionWired
	ConnectionWifi
	ConnectionCellular

	ConnectionMax = ConnectionCellular
)

var connectionNames = [...]string{
	ConnectionUnknown:  "unknown",
	ConnectionWired:    "wired",
	ConnectionWifi:     "wifi",
	ConnectionCellular: "cellular",
}

var connectionLabels = [...]string{
	ConnectionUnknown:  "Unknown",
	ConnectionWired:    "Wired",
	ConnectionWifi:     "Wi-Fi",
	ConnectionCellular: "Cellular",
}

func (c ConnectionType) String() string {
	if c > ConnectionMax {
		return connectionNames[ConnectionUnknown]
	}
	return connectionNames[c]
}

// Label is the human-readable connection name.
func (c ConnectionType) Label() string {
	if c > ConnectionMax {
		return connectionLabels[ConnectionUnknown]
	}
	return connectionLabels[c]
}

// MarshalText implements encoding.TextMarshaler.
func (c ConnectionType) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *ConnectionType) UnmarshalText(b []byte) error {
	s := strings.ToLower(string(b))
	for i, name := range connectionNames {
		if name == s {
			*c = ConnectionType(i)
			return nil
		}
	}
	return fmt.Errorf("session: unknown connection type %q", string(b))
}
