package ilo

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/stmcginnis/gofish"
	"github.com/stmcginnis/gofish/common"
	"github.com/stmcginnis/gofish/redfish"
)

const (
	// DefaultTimeout bounds a whole poll: connect, login and every read.
	DefaultTimeout = 10 * time.Second

	defaultProductName = "Unknown HP Server"

	// one connection at a time per controller; older iLOs fall over otherwise
	defaultMaxConnsPerHost = 1
	defaultIdleConnTimeout = 30 * time.Second
)

// Health categories, named after iLO's "health at a glance" section.
const (
	CategoryBIOSHardware  = "bios_hardware"
	CategoryProcessor     = "processor"
	CategoryMemory        = "memory"
	CategoryFans          = "fans"
	CategoryTemperature   = "temperature"
	CategoryPowerSupplies = "power_supplies"
)

// RedfishPoller is a [Poller] that reads controller health over Redfish.
//
// Each Fetch opens a fresh connection using HTTP basic auth, so no session
// is left open on the controller between polls. Certificate verification is
// disabled by default and legacy cipher suites are allowed, since older iLO
// firmware still negotiates them.
type RedfishPoller struct {
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
}

// RedfishOption configures a [RedfishPoller].
type RedfishOption func(*RedfishPoller)

// WithHTTPClient replaces the HTTP client used for polls.
func WithHTTPClient(c *http.Client) RedfishOption {
	return func(p *RedfishPoller) {
		p.httpClient = c
	}
}

// NewRedfishPoller creates a [RedfishPoller].
//
// timeout bounds each poll end to end; zero means [DefaultTimeout].
// insecure disables certificate verification.
func NewRedfishPoller(timeout time.Duration, insecure bool, logger *slog.Logger, opts ...RedfishOption) *RedfishPoller {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	p := &RedfishPoller{
		timeout: timeout,
		logger:  logger,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig:     legacyTLSConfig(insecure),
				TLSHandshakeTimeout: timeout,
				MaxConnsPerHost:     defaultMaxConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
			},
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// legacyTLSConfig accepts every cipher suite Go still implements, including
// the insecure ones, down to TLS 1.0.
func legacyTLSConfig(insecure bool) *tls.Config {
	var suites []uint16
	for _, s := range tls.CipherSuites() {
		suites = append(suites, s.ID)
	}
	for _, s := range tls.InsecureCipherSuites() {
		suites = append(suites, s.ID)
	}
	return &tls.Config{
		InsecureSkipVerify: insecure,
		MinVersion:         tls.VersionTLS10,
		CipherSuites:       suites,
	}
}

// Fetch polls the controller and returns its health snapshot.
//
// Failure to connect, log in, or list the computer systems fails the poll.
// Missing chassis, thermal or power data only drops the affected
// categories.
func (p *RedfishPoller) Fetch(ctx context.Context, target Target) (Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	client, err := gofish.ConnectContext(ctx, gofish.ClientConfig{
		Endpoint:   "https://" + target.Address(),
		Username:   target.User,
		Password:   target.Password,
		BasicAuth:  true,
		HTTPClient: p.httpClient,
	})
	if err != nil {
		return Snapshot{}, classify("connect", err)
	}
	defer client.Logout()

	service := client.Service

	systems, err := service.Systems()
	if err != nil {
		return Snapshot{}, classify("systems", err)
	}
	if len(systems) == 0 {
		return Snapshot{}, &Error{Kind: KindCommunication, Op: "systems", Err: errors.New("controller reports no computer systems")}
	}

	snap := Snapshot{
		ProductName: defaultProductName,
		Health:      make(map[string]map[string]string),
	}

	system := systems[0]
	if system.Model != "" {
		snap.ProductName = system.Model
	}
	snap.ServerName = system.HostName

	addHealth(snap.Health, CategoryBIOSHardware, "system", system.Status)
	addHealth(snap.Health, CategoryProcessor, "processors", system.ProcessorSummary.Status)
	addHealth(snap.Health, CategoryMemory, "memory", system.MemorySummary.Status)

	chassis, err := service.Chassis()
	if err != nil {
		p.logger.Warn("chassis unavailable", "target", target.Key().String(), "error", err)
	}
	for _, ch := range chassis {
		prefix := ""
		if len(chassis) > 1 {
			prefix = ch.ID + "/"
		}
		p.collectChassis(snap.Health, target, ch, prefix)
	}

	managers, err := service.Managers()
	if err != nil {
		p.logger.Warn("managers unavailable", "target", target.Key().String(), "error", err)
	} else if len(managers) > 0 {
		snap.FirmwareVersion = managers[0].FirmwareVersion
	}

	return snap, nil
}

// collectChassis adds fan, temperature and power supply health for one
// chassis. Component names are prefixed so that chassis reporting the same
// names do not overwrite each other.
func (p *RedfishPoller) collectChassis(health map[string]map[string]string, target Target, ch *redfish.Chassis, prefix string) {
	thermal, err := ch.Thermal()
	if err != nil {
		p.logger.Warn("thermal unavailable", "target", target.Key().String(), "chassis", ch.ID, "error", err)
	} else if thermal != nil {
		for i, fan := range thermal.Fans {
			addHealth(health, CategoryFans, prefix+componentName(fan.Name, "fan", i), fan.Status)
		}
		for i, temp := range thermal.Temperatures {
			addHealth(health, CategoryTemperature, prefix+componentName(temp.Name, "sensor", i), temp.Status)
		}
	}

	power, err := ch.Power()
	if err != nil {
		p.logger.Warn("power unavailable", "target", target.Key().String(), "chassis", ch.ID, "error", err)
	} else if power != nil {
		for i, psu := range power.PowerSupplies {
			addHealth(health, CategoryPowerSupplies, prefix+componentName(psu.Name, "psu", i), psu.Status)
		}
	}
}

// addHealth records a component's status, skipping components that report
// no health at all (absent or powered off).
func addHealth(health map[string]map[string]string, category, component string, status common.Status) {
	h := status.Health
	if h == "" {
		h = status.HealthRollup
	}
	if h == "" {
		return
	}
	if health[category] == nil {
		health[category] = make(map[string]string)
	}
	health[category][component] = TranslateHealth(string(h))
}

func componentName(name, fallback string, idx int) string {
	if name != "" {
		return name
	}
	return fallback + " " + strconv.Itoa(idx+1)
}

// TranslateHealth maps a Redfish health word onto the iLO vocabulary.
// Words that are not Redfish health values pass through unchanged.
func TranslateHealth(h string) string {
	switch common.Health(h) {
	case common.OKHealth:
		return "OK"
	case common.WarningHealth:
		return "Degraded"
	case common.CriticalHealth:
		return "Failed"
	default:
		return h
	}
}

// Categories returns the snapshot's health categories in sorted order.
func (s Snapshot) Categories() []string {
	out := make([]string, 0, len(s.Health))
	for c := range s.Health {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// String summarizes the snapshot for logs.
func (s Snapshot) String() string {
	return fmt.Sprintf("%s (%s) firmware=%q categories=%d", s.ProductName, s.ServerName, s.FirmwareVersion, len(s.Health))
}
