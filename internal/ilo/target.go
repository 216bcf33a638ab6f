package ilo

import (
	"context"
	"net"
	"strconv"
)

// Key identifies a controller for caching purposes.
//
// Two requests with the same host, port and user share a Key even when their
// passwords differ.
type Key struct {
	Host string
	Port int
	User string
}

// String renders the key as host:port:user. It is safe to log.
func (k Key) String() string {
	return k.Host + ":" + strconv.Itoa(k.Port) + ":" + k.User
}

// Target is everything needed to poll one controller.
type Target struct {
	Host     string
	Port     int
	User     string
	Password string
}

// Key returns the cache key for the target.
func (t Target) Key() Key {
	return Key{Host: t.Host, Port: t.Port, User: t.User}
}

// Address returns host:port, bracketing IPv6 literals.
func (t Target) Address() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// Snapshot is the health of a controller at the time it was polled.
type Snapshot struct {
	// ProductName is the server model, e.g. "ProLiant DL360 Gen10".
	ProductName string

	// ServerName is the host name the controller reports. May be empty.
	ServerName string

	// Health maps a category (fans, temperature, ...) to its components
	// and their status strings, using the controller's own vocabulary
	// ("OK", "Redundant", "Degraded", "Failed", ...).
	Health map[string]map[string]string

	// FirmwareVersion is the controller firmware string, e.g. "iLO 5 v2.72".
	FirmwareVersion string
}

// Poller fetches a health snapshot from a controller.
//
// Fetch blocks for the duration of the poll. Implementations enforce their
// own connect and read timeouts and must be safe for concurrent use.
type Poller interface {
	Fetch(ctx context.Context, target Target) (Snapshot, error)
}

// PollerFunc adapts a function to the [Poller] interface.
type PollerFunc func(ctx context.Context, target Target) (Snapshot, error)

// Fetch calls f(ctx, target).
func (f PollerFunc) Fetch(ctx context.Context, target Target) (Snapshot, error) {
	return f(ctx, target)
}
