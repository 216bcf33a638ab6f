package metrics

import "strings"

// Status is a component health state.
//
// Status is a closed set: every status string a controller may report maps
// onto exactly one of these, with anything unrecognized landing in
// [StatusOther].
type Status int

const (
	// StatusOther is any state that is not OK, Redundant or Degraded,
	// including failures and strings the exporter does not recognize.
	StatusOther Status = iota

	// StatusOK indicates the component is healthy.
	StatusOK

	// StatusRedundant indicates a redundant group is fully healthy.
	StatusRedundant

	// StatusDegraded indicates the component works but needs attention.
	StatusDegraded
)

// ParseStatus maps a controller status string to a [Status].
// Matching is case-insensitive and ignores surrounding whitespace.
func ParseStatus(s string) Status {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "OK":
		return StatusOK
	case "REDUNDANT":
		return StatusRedundant
	case "DEGRADED":
		return StatusDegraded
	default:
		return StatusOther
	}
}

// Gauge returns the exported gauge value: 0 for healthy, 1 for degraded,
// 2 for everything else.
func (s Status) Gauge() float64 {
	switch s {
	case StatusOK, StatusRedundant:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusRedundant:
		return "redundant"
	case StatusDegraded:
		return "degraded"
	default:
		return "other"
	}
}
