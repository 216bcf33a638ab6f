package ilo

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"regexp"

	"github.com/stmcginnis/gofish/common"
)

// Kind classifies why a poll failed.
type Kind int

const (
	// KindCommunication covers protocol-level failures: unexpected status
	// codes, malformed payloads, TLS negotiation problems.
	KindCommunication Kind = iota

	// KindAuth means the controller rejected the credentials.
	KindAuth

	// KindNetwork means the controller could not be reached: DNS, dial,
	// connection reset or timeout.
	KindNetwork
)

// String returns the kind's log name.
func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindNetwork:
		return "network"
	default:
		return "communication"
	}
}

// Error is a classified poll failure.
type Error struct {
	Kind Kind

	// Op is the poll step that failed, e.g. "connect" or "systems".
	Op string

	Err error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindAuth:
		return fmt.Sprintf("ilo %s: login failed: %v", e.Op, e.Err)
	case KindNetwork:
		return fmt.Sprintf("ilo %s: invalid address or port: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("ilo %s: %v", e.Op, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a poll error, and false if err is not an [*Error].
func KindOf(err error) (Kind, bool) {
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Kind, true
	}
	return 0, false
}

// IsKind reports whether err is a poll error of the given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// classify wraps err in an [*Error] for the given step.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := KindOf(err); ok {
		return err
	}
	return &Error{Kind: kindFor(err), Op: op, Err: err}
}

func kindFor(err error) Kind {
	var redfishErr *common.Error
	if errors.As(err, &redfishErr) {
		switch redfishErr.HTTPReturnedStatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return KindAuth
		}
		return KindCommunication
	}

	// TLS failures surface as net errors too, but they are a protocol
	// mismatch rather than an unreachable host.
	var certErr *tls.CertificateVerificationError
	var unknownAuth x509.UnknownAuthorityError
	var recordErr tls.RecordHeaderError
	if errors.As(err, &certErr) || errors.As(err, &unknownAuth) || errors.As(err, &recordErr) {
		return KindCommunication
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindNetwork
	}
	var dnsErr *net.DNSError
	var opErr *net.OpError
	var netErr net.Error
	if errors.As(err, &dnsErr) || errors.As(err, &opErr) || errors.As(err, &netErr) {
		return KindNetwork
	}

	// gofish flattens error bodies it cannot decode into "<status>: <body>"
	if flattenedAuthStatus.MatchString(err.Error()) {
		return KindAuth
	}
	return KindCommunication
}

// flattenedAuthStatus matches a 401 or 403 in gofish's "<status>: <body>"
// format, at the start of the message or after a wrapping "op: " prefix.
var flattenedAuthStatus = regexp.MustCompile(`(^|: )40[13]: `)
