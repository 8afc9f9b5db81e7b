package main

import (
	"bytes"
	"math"
	"testing"

	"github.com/b3nn0/hoverfc/fc"
	"github.com/stretchr/testify/assert"
)

func TestWrapDegrees(t *testing.T) {
	t.Parallel()
	tests := []struct {
		rad  float32
		want float64
	}{
		{0, 0},
		{math.Pi / 2, 90},
		{-math.Pi / 2, 270},
		{5 * math.Pi, 180},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, wrapDegrees(tt.rad), 1e-3, "rad %v", tt.rad)
	}
}

func TestUpdateAndDumpStatus(t *testing.T) {
	cfg := fc.DefaultConfig()
	st := fc.NewEstimatorState(&cfg)
	st.Phase = fc.Armed
	st.Ticks = 12345
	st.Roll = math.Pi / 18
	st.Height = 0.5
	snap := fc.SensorSnapshot{BatteryVoltage: fc.BatteryVoltage{Value: 3.9, Updated: true}}
	cmd := fc.ActuationCommand{Motors: [4]int32{117, 118, 119, 120}}
	updateStatus(st, &snap, &cmd)

	addSingleSystemErrorf("test-b", "second %d", 2)
	addSingleSystemErrorf("test-a", "first")
	addSingleSystemErrorf("test-a", "first again")

	s := snapshotStatus()
	assert.Equal(t, "armed", s.Phase)
	assert.InDelta(t, 10, s.Roll, 1e-4)
	assert.Contains(t, s.Errors, "first again")
	assert.NotContains(t, s.Errors, "first")

	var b bytes.Buffer
	dumpStatus(&b, s, "3 minutes")
	out := b.String()
	assert.Contains(t, out, "up 3 minutes")
	assert.Contains(t, out, "phase armed, 12,345 ticks")
	assert.Contains(t, out, "motors: 117 118 119 120")
	assert.Contains(t, out, "battery 3.90 V")
	assert.Contains(t, out, "error: first again")
}
