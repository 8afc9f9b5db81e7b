package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/b3nn0/hoverfc/fc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, srv *httptest.Server, path string) string {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestManagementInterface(t *testing.T) {
	hoverClock = NewMonotonic()
	t.Cleanup(hoverClock.Stop)

	reg := prometheus.NewRegistry()
	registerMetrics(reg)
	cfg := fc.DefaultConfig()
	st := fc.NewEstimatorState(&cfg)
	st.Height = 0.42
	snap := fc.SensorSnapshot{}
	cmd := fc.ActuationCommand{Motors: [4]int32{110, 111, 112, 113}}
	observeTick(st, &snap, &cmd)
	updateStatus(st, &snap, &cmd)

	srv := httptest.NewServer(newManagementMux(reg))
	defer srv.Close()

	metrics := get(t, srv, "/metrics")
	assert.Contains(t, metrics, `hoverfc_motor_command{motor="4"} 113`)
	assert.Contains(t, metrics, "hoverfc_height_m 0.41999")
	assert.Contains(t, metrics, `hoverfc_stale_readings_total{sensor="imu"}`)

	var s status
	require.NoError(t, json.Unmarshal([]byte(get(t, srv, "/getStatus")), &s))
	assert.Equal(t, [4]int32{110, 111, 112, 113}, s.Motors)
	assert.InDelta(t, 0.42, s.Height, 1e-6)

	assert.Contains(t, get(t, srv, "/status.txt"), "motors: 110 111 112 113")
}

func TestMonotonicAdvances(t *testing.T) {
	t.Parallel()
	m := NewMonotonic()
	defer m.Stop()
	start := m.Milliseconds()
	assert.Eventually(t, func() bool { return m.Milliseconds() >= start+50 }, 5*time.Second, 10*time.Millisecond)
	assert.True(t, m.Time().After(time.Time{}))
	assert.NotEmpty(t, m.Uptime())
}
