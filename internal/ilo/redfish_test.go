package ilo_test

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sinamoghaddas/hpilo-exporter/internal/ilo"
	"github.com/sinamoghaddas/hpilo-exporter/internal/ilo/ilotest"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRedfishPoller_Fetch(t *testing.T) {
	srv := ilotest.NewServer("admin", "secret")
	defer srv.Close()

	p := ilo.NewRedfishPoller(5*time.Second, true, testLogger())
	snap, err := p.Fetch(context.Background(), srv.Target("secret"))
	require.NoError(t, err)

	assert.Equal(t, "ProLiant DL360 Gen10", snap.ProductName)
	assert.Equal(t, "node01.example.com", snap.ServerName)
	assert.Equal(t, "iLO 5 v2.72", snap.FirmwareVersion)

	assert.Equal(t, []string{
		ilo.CategoryBIOSHardware,
		ilo.CategoryFans,
		ilo.CategoryMemory,
		ilo.CategoryPowerSupplies,
		ilo.CategoryProcessor,
		ilo.CategoryTemperature,
	}, snap.Categories())

	assert.Equal(t, map[string]string{"Fan 1": "OK", "Fan 2": "OK"}, snap.Health[ilo.CategoryFans])
	assert.Equal(t, "OK", snap.Health[ilo.CategoryProcessor]["processors"])
	assert.EqualValues(t, 1, srv.Polls())
}

func TestRedfishPoller_TranslatesHealthWords(t *testing.T) {
	srv := ilotest.NewServer("admin", "secret")
	defer srv.Close()

	st := ilotest.DefaultState()
	st.Fans = map[string]string{"Fan 1": "Warning", "Fan 2": "Critical"}
	st.Memory = ""
	srv.SetState(st)

	p := ilo.NewRedfishPoller(5*time.Second, true, testLogger())
	snap, err := p.Fetch(context.Background(), srv.Target("secret"))
	require.NoError(t, err)

	assert.Equal(t, "Degraded", snap.Health[ilo.CategoryFans]["Fan 1"])
	assert.Equal(t, "Failed", snap.Health[ilo.CategoryFans]["Fan 2"])

	// components without health are skipped entirely
	_, ok := snap.Health[ilo.CategoryMemory]
	assert.False(t, ok, "memory category should be absent when no health is reported")
}

func TestRedfishPoller_MultipleChassisKeepDuplicateNames(t *testing.T) {
	srv := ilotest.NewServer("admin", "secret")
	defer srv.Close()

	st := ilotest.DefaultState()
	st.Fans = map[string]string{"Fan 1": "Critical"}
	st.Enclosure = &ilotest.Enclosure{
		Fans:          map[string]string{"Fan 1": "OK"},
		PowerSupplies: map[string]string{"PSU 1": "OK"},
	}
	srv.SetState(st)

	p := ilo.NewRedfishPoller(5*time.Second, true, testLogger())
	snap, err := p.Fetch(context.Background(), srv.Target("secret"))
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"1/Fan 1": "Failed", "2/Fan 1": "OK"}, snap.Health[ilo.CategoryFans])
	assert.Equal(t, "OK", snap.Health[ilo.CategoryPowerSupplies]["2/PSU 1"])
	assert.Equal(t, "OK", snap.Health[ilo.CategoryTemperature]["1/01-Inlet Ambient"])
}

func TestRedfishPoller_DefaultProductName(t *testing.T) {
	srv := ilotest.NewServer("admin", "secret")
	defer srv.Close()

	st := ilotest.DefaultState()
	st.Model = ""
	st.HostName = ""
	srv.SetState(st)

	p := ilo.NewRedfishPoller(5*time.Second, true, testLogger())
	snap, err := p.Fetch(context.Background(), srv.Target("secret"))
	require.NoError(t, err)

	assert.Equal(t, "Unknown HP Server", snap.ProductName)
	assert.Empty(t, snap.ServerName)
}

func TestRedfishPoller_AuthError(t *testing.T) {
	srv := ilotest.NewServer("admin", "secret")
	defer srv.Close()

	p := ilo.NewRedfishPoller(5*time.Second, true, testLogger())
	_, err := p.Fetch(context.Background(), srv.Target("wrong"))
	require.Error(t, err)

	assert.True(t, ilo.IsKind(err, ilo.KindAuth), "got %v", err)
	assert.Contains(t, err.Error(), "login failed")
}

func TestRedfishPoller_CommunicationError(t *testing.T) {
	srv := ilotest.NewServer("admin", "secret")
	defer srv.Close()
	srv.SetFailing(http.StatusInternalServerError)

	p := ilo.NewRedfishPoller(5*time.Second, true, testLogger())
	_, err := p.Fetch(context.Background(), srv.Target("secret"))
	require.Error(t, err)

	assert.True(t, ilo.IsKind(err, ilo.KindCommunication), "got %v", err)
}

func TestRedfishPoller_NetworkError(t *testing.T) {
	// grab a free port and release it so nothing is listening
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	p := ilo.NewRedfishPoller(2*time.Second, true, testLogger())
	_, err = p.Fetch(context.Background(), ilo.Target{
		Host:     "127.0.0.1",
		Port:     port,
		User:     "admin",
		Password: "secret",
	})
	require.Error(t, err)

	assert.True(t, ilo.IsKind(err, ilo.KindNetwork), "got %v", err)
}

func TestRedfishPoller_Timeout(t *testing.T) {
	srv := ilotest.NewServer("admin", "secret")
	defer srv.Close()
	srv.SetDelay(2 * time.Second)

	p := ilo.NewRedfishPoller(200*time.Millisecond, true, testLogger())

	start := time.Now()
	_, err := p.Fetch(context.Background(), srv.Target("secret"))
	require.Error(t, err)

	assert.Less(t, time.Since(start), 2*time.Second, "poll should be cut off by its timeout")
	assert.True(t, ilo.IsKind(err, ilo.KindNetwork), "got %v", err)
}

func TestTranslateHealth(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"OK", "OK"},
		{"Warning", "Degraded"},
		{"Critical", "Failed"},
		{"Redundant", "Redundant"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ilo.TranslateHealth(tt.in))
		})
	}
}

func TestKeyExcludesPassword(t *testing.T) {
	a := ilo.Target{Host: "10.0.0.1", Port: 443, User: "admin", Password: "one"}
	b := ilo.Target{Host: "10.0.0.1", Port: 443, User: "admin", Password: "two"}

	assert.Equal(t, a.Key(), b.Key())
	assert.Equal(t, "10.0.0.1:443:admin", a.Key().String())
	assert.NotContains(t, a.Key().String(), "one")
}

func TestTargetAddress_IPv6(t *testing.T) {
	tgt := ilo.Target{Host: "fe80::1", Port: 443}
	assert.Equal(t, "[fe80::1]:443", tgt.Address())
}
