package metrics

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/sinamoghaddas/hpilo-exporter/internal/ilo"
)

// ContentType is the Content-Type of payloads produced by [Encoder].
const ContentType = "text/plain; version=0.0.4; charset=utf-8"

const namespace = "hpilo"

var (
	// first dotted number, e.g. "2.72" in "iLO 5 v2.72"
	firmwarePattern = regexp.MustCompile(`\d+\.\d+`)

	invalidNameChars = regexp.MustCompile(`[^a-z0-9_]+`)
)

// Encoder renders health snapshots in Prometheus text exposition format.
//
// The zero value is ready to use.
type Encoder struct{}

// Encode renders snap. pollDuration, when positive, is exported as
// hpilo_scrape_duration_seconds.
//
// For every health category the payload carries
// hpilo_<category>_gauge{product_name,server_name}, valued at the worst
// component status in that category (see [Status.Gauge]). The firmware
// version is exported numerically as hpilo_firmware_version when it
// contains a dotted number.
func (Encoder) Encode(snap ilo.Snapshot, pollDuration time.Duration) ([]byte, error) {
	reg := prometheus.NewRegistry()
	labels := prometheus.Labels{
		"product_name": snap.ProductName,
		"server_name":  snap.ServerName,
	}

	// categories that normalize to one metric name share a gauge
	gauges := make(map[string]prometheus.Gauge)
	worst := make(map[string]float64)
	for _, category := range snap.Categories() {
		components := snap.Health[category]
		if len(components) == 0 {
			continue
		}

		name := metricName(category)
		v := worstGauge(components)
		if _, ok := gauges[name]; ok {
			if v > worst[name] {
				worst[name] = v
			}
			continue
		}

		g := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        name + "_gauge",
			Help:        fmt.Sprintf("iLO %s health: 0 = OK, 1 = degraded, 2 = failed or unknown", name),
			ConstLabels: labels,
		})
		if err := reg.Register(g); err != nil {
			return nil, fmt.Errorf("register %s gauge: %w", category, err)
		}
		gauges[name] = g
		worst[name] = v
	}
	for name, g := range gauges {
		g.Set(worst[name])
	}

	if v, ok := FirmwareNumber(snap.FirmwareVersion); ok {
		g := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "firmware_version",
			Help:        "iLO firmware version",
			ConstLabels: labels,
		})
		if err := reg.Register(g); err != nil {
			return nil, fmt.Errorf("register firmware gauge: %w", err)
		}
		g.Set(v)
	}

	if pollDuration > 0 {
		g := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "scrape_duration_seconds",
			Help:        "Time spent polling the iLO",
			ConstLabels: labels,
		})
		if err := reg.Register(g); err != nil {
			return nil, fmt.Errorf("register duration gauge: %w", err)
		}
		g.Set(pollDuration.Seconds())
	}

	families, err := reg.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather: %w", err)
	}

	var buf bytes.Buffer
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			return nil, fmt.Errorf("encode %s: %w", mf.GetName(), err)
		}
	}
	return buf.Bytes(), nil
}

// worstGauge returns the highest gauge value among the components.
func worstGauge(components map[string]string) float64 {
	worst := 0.0
	for _, s := range components {
		if v := ParseStatus(s).Gauge(); v > worst {
			worst = v
		}
	}
	return worst
}

// FirmwareNumber extracts the numeric version from a firmware string.
func FirmwareNumber(fw string) (float64, bool) {
	m := firmwarePattern.FindString(fw)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// metricName lowercases a category and replaces anything that is not
// valid in a metric name with underscores.
func metricName(category string) string {
	name := invalidNameChars.ReplaceAllString(strings.ToLower(category), "_")
	name = strings.Trim(name, "_")
	if name == "" {
		return "unknown"
	}
	if name[0] >= '0' && name[0] <= '9' {
		name = "_" + name
	}
	return name
}
