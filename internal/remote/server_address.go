package remote

import (
	"fmt"
	"strconv"
	"strings"
)

// ServerAddress is a realtime multiplayer server.
type ServerAddress struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// serverEntry is the wire shape of a multiplayer server.
type serverEntry struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Port    int    `json:"port,omitempty"`
	Secure  bool   `json:"secure,omitempty"`
}

// ParseServerAddress normalizes an address into a websocket URL.
//
// Addresses that already carry a scheme ("ws://host/room") are kept as is.
// Otherwise address is "host[:port][/path]"; port falls back to the given
// port, then to 443 (secure) or 80. Name defaults to the host part.
func ParseServerAddress(name, address string, port int, secure bool) ServerAddress {
	if i := strings.Index(address, "://"); i > 0 {
		if name == "" {
			name = address[i+3:]
		}
		return ServerAddress{Name: name, Address: address}
	}

	host := address
	path := ""
	if i := strings.Index(host, "/"); i > 0 {
		path = host[i+1:]
		host = host[:i]
	}
	if i := strings.Index(host, ":"); i > 0 {
		if p, err := strconv.Atoi(host[i+1:]); err == nil {
			port = p
		}
		host = host[:i]
	}

	scheme := "ws"
	if secure {
		scheme = "wss"
		if port == 0 {
			port = 443
		}
	} else if port == 0 {
		port = 80
	}
	if name == "" {
		name = host
	}
	return ServerAddress{
		Name:    name,
		Address: fmt.Sprintf("%s://%s:%d/%s", scheme, host, port, path),
	}
}

// String returns the display name.
func (a ServerAddress) String() string {
	return a.Name
}
