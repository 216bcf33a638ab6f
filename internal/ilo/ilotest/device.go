// Package ilotest provides a mock iLO controller speaking just enough
// Redfish for the exporter's poller.
//
// It is used by package tests and by the example/cmd/mockilo binary.
package ilotest

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sinamoghaddas/hpilo-exporter/internal/ilo"
)

// State is the health a [Device] reports. Health values are Redfish words:
// "OK", "Warning" or "Critical".
type State struct {
	Model    string
	HostName string
	Firmware string

	System     string
	Processors string
	Memory     string

	Fans          map[string]string
	Temperatures  map[string]string
	PowerSupplies map[string]string

	// Enclosure, when set, is served as a second chassis with Id "2".
	Enclosure *Enclosure
}

// Enclosure is the component health of an additional chassis.
type Enclosure struct {
	Fans          map[string]string
	Temperatures  map[string]string
	PowerSupplies map[string]string
}

// chassis returns the enclosures the device reports, keyed by chassis Id.
func (st State) chassis() map[string]Enclosure {
	out := map[string]Enclosure{
		"1": {Fans: st.Fans, Temperatures: st.Temperatures, PowerSupplies: st.PowerSupplies},
	}
	if st.Enclosure != nil {
		out["2"] = *st.Enclosure
	}
	return out
}

// DefaultState returns a healthy ProLiant.
func DefaultState() State {
	return State{
		Model:         "ProLiant DL360 Gen10",
		HostName:      "node01.example.com",
		Firmware:      "iLO 5 v2.72",
		System:        "OK",
		Processors:    "OK",
		Memory:        "OK",
		Fans:          map[string]string{"Fan 1": "OK", "Fan 2": "OK"},
		Temperatures:  map[string]string{"01-Inlet Ambient": "OK"},
		PowerSupplies: map[string]string{"PSU 1": "OK", "PSU 2": "OK"},
	}
}

// Device is an http.Handler emulating a controller's Redfish tree.
//
// The service root is served without authentication, like on real
// hardware. Everything else requires HTTP basic auth.
type Device struct {
	user     string
	password string

	mu    sync.Mutex
	state State
	delay time.Duration
	fail  int

	polls atomic.Int64
}

// NewDevice creates a [Device] accepting the given credentials.
func NewDevice(user, password string) *Device {
	return &Device{
		user:     user,
		password: password,
		state:    DefaultState(),
	}
}

// SetState replaces the reported health.
func (d *Device) SetState(st State) {
	d.mu.Lock()
	d.state = st
	d.mu.Unlock()
}

// SetDelay makes every poll take at least delay.
func (d *Device) SetDelay(delay time.Duration) {
	d.mu.Lock()
	d.delay = delay
	d.mu.Unlock()
}

// SetFailing makes the device answer every authenticated request with
// the given status code. Zero restores normal operation.
func (d *Device) SetFailing(code int) {
	d.mu.Lock()
	d.fail = code
	d.mu.Unlock()
}

// Polls returns how many polls (system collection reads) the device served.
func (d *Device) Polls() int64 {
	return d.polls.Load()
}

// ServeHTTP implements http.Handler.
func (d *Device) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSuffix(r.URL.Path, "/")

	if path == "/redfish/v1" {
		writeJSON(w, serviceRoot())
		return
	}

	user, pass, ok := r.BasicAuth()
	if !ok || user != d.user || pass != d.password {
		writeError(w, http.StatusUnauthorized, "Base.1.0.NoValidSession")
		return
	}

	d.mu.Lock()
	st := d.state
	delay := d.delay
	fail := d.fail
	d.mu.Unlock()

	if fail != 0 {
		writeError(w, fail, "Base.1.0.InternalError")
		return
	}

	switch path {
	case "/redfish/v1/Systems":
		d.polls.Add(1)
		if delay > 0 {
			time.Sleep(delay)
		}
		writeJSON(w, collection("/redfish/v1/Systems/1"))
	case "/redfish/v1/Systems/1":
		writeJSON(w, map[string]any{
			"@odata.id":        "/redfish/v1/Systems/1",
			"Id":               "1",
			"Name":             "Computer System",
			"Model":            st.Model,
			"HostName":         st.HostName,
			"Status":           status(st.System),
			"ProcessorSummary": map[string]any{"Count": 2, "Status": map[string]string{"HealthRollup": st.Processors}},
			"MemorySummary":    map[string]any{"TotalSystemMemoryGiB": 256, "Status": map[string]string{"HealthRollup": st.Memory}},
		})
	case "/redfish/v1/Chassis":
		uris := []string{"/redfish/v1/Chassis/1"}
		if st.Enclosure != nil {
			uris = append(uris, "/redfish/v1/Chassis/2")
		}
		writeJSON(w, collection(uris...))
	case "/redfish/v1/Managers":
		writeJSON(w, collection("/redfish/v1/Managers/1"))
	case "/redfish/v1/Managers/1":
		writeJSON(w, map[string]any{
			"@odata.id":       "/redfish/v1/Managers/1",
			"Id":              "1",
			"Name":            "Manager",
			"FirmwareVersion": st.Firmware,
		})
	default:
		if !serveChassis(w, path, st) {
			writeError(w, http.StatusNotFound, "Base.1.0.ResourceMissingAtURI")
		}
	}
}

// serveChassis answers /redfish/v1/Chassis/{id}[/Thermal|/Power] and
// reports whether path was one of them.
func serveChassis(w http.ResponseWriter, path string, st State) bool {
	rest, ok := strings.CutPrefix(path, "/redfish/v1/Chassis/")
	if !ok {
		return false
	}
	id, sub, _ := strings.Cut(rest, "/")
	enc, ok := st.chassis()[id]
	if !ok {
		return false
	}

	base := "/redfish/v1/Chassis/" + id
	switch sub {
	case "":
		writeJSON(w, map[string]any{
			"@odata.id": base,
			"Id":        id,
			"Name":      "Computer System Chassis",
			"Thermal":   map[string]string{"@odata.id": base + "/Thermal"},
			"Power":     map[string]string{"@odata.id": base + "/Power"},
		})
	case "Thermal":
		writeJSON(w, map[string]any{
			"@odata.id":    base + "/Thermal",
			"Id":           "Thermal",
			"Fans":         members(enc.Fans),
			"Temperatures": members(enc.Temperatures),
		})
	case "Power":
		writeJSON(w, map[string]any{
			"@odata.id":     base + "/Power",
			"Id":            "Power",
			"PowerSupplies": members(enc.PowerSupplies),
		})
	default:
		return false
	}
	return true
}

// Server is a [Device] behind an httptest TLS server.
type Server struct {
	*httptest.Server
	*Device
}

// NewServer starts a TLS mock controller. Callers must Close it.
func NewServer(user, password string) *Server {
	dev := NewDevice(user, password)
	return &Server{
		Server: httptest.NewTLSServer(dev),
		Device: dev,
	}
}

// Target returns a poll target for this server using the given password.
func (s *Server) Target(password string) ilo.Target {
	host, portStr, _ := net.SplitHostPort(s.Listener.Addr().String())
	port, _ := strconv.Atoi(portStr)
	return ilo.Target{
		Host:     host,
		Port:     port,
		User:     s.Device.user,
		Password: password,
	}
}

func serviceRoot() map[string]any {
	return map[string]any{
		"@odata.id":      "/redfish/v1",
		"Id":             "RootService",
		"Name":           "HPE RESTful Root Service",
		"RedfishVersion": "1.6.0",
		"Systems":        map[string]string{"@odata.id": "/redfish/v1/Systems"},
		"Chassis":        map[string]string{"@odata.id": "/redfish/v1/Chassis"},
		"Managers":       map[string]string{"@odata.id": "/redfish/v1/Managers"},
	}
}

func collection(uris ...string) map[string]any {
	refs := make([]map[string]string, 0, len(uris))
	for _, u := range uris {
		refs = append(refs, map[string]string{"@odata.id": u})
	}
	return map[string]any{
		"Members":             refs,
		"Members@odata.count": len(refs),
	}
}

// members renders named components in a stable order.
func members(components map[string]string) []map[string]any {
	names := make([]string, 0, len(components))
	for n := range components {
		names = append(names, n)
	}
	sort.Strings(names)

	out := make([]map[string]any, 0, len(names))
	for i, n := range names {
		out = append(out, map[string]any{
			"MemberId": strconv.Itoa(i),
			"Name":     n,
			"Status":   status(components[n]),
		})
	}
	return out
}

func status(health string) map[string]string {
	st := map[string]string{"State": "Enabled"}
	if health != "" {
		st["Health"] = health
	}
	return st
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msgID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    msgID,
			"message": http.StatusText(code),
		},
	})
}
