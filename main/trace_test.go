package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/b3nn0/hoverfc/fc"
	"github.com/b3nn0/hoverfc/sensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceRowRoundTrip(t *testing.T) {
	r := traceRecord{
		Tick: 42,
		Snap: fc.SensorSnapshot{
			CurrentTime:    0.084,
			BatteryVoltage: fc.BatteryVoltage{Value: 3.97, Updated: true},
			IMU: fc.IMUMeasurement{
				Accelerometer: fc.Vec3{X: -0.1234567, Y: 1e-7, Z: 9.81},
				RateGyro:      fc.Vec3{X: 0.0123, Y: -3.3, Z: 1.0 / 3.0},
				Updated:       true,
			},
			Joystick:    fc.JoystickInput{Axes: [4]float32{0.5, -1, 0, 0.25}, Buttons: [6]bool{true, false, false, true}},
			OpticalFlow: fc.OpticalFlowSensor{ValueX: 0.7, ValueY: -0.01},
			Height:      fc.HeightSensor{Value: 5.5, Updated: true},
			Extra:       fc.Extra{IMUTemperature: 31.5},
		},
		Motors: [4]int32{-7, 117, 200, 0},
	}
	row := marshalTraceRow(&r)
	require.Len(t, row, traceSnapshotFields)

	got, err := unmarshalTraceRow(row)
	require.NoError(t, err)
	assert.Equal(t, r, got)

	row[5] = "not-a-float"
	_, err = unmarshalTraceRow(row)
	assert.Error(t, err)
	_, err = unmarshalTraceRow(row[:10])
	assert.Error(t, err)
}

func TestTraceRecordAndReplay(t *testing.T) {
	dir := t.TempDir()
	tracer := new(TraceLogger)
	require.NoError(t, tracer.Start(dir))

	simCfg := sensors.DefaultSimConfig()
	simCfg.GyroNoise = 0.01
	simCfg.AccelNoise = 0.05
	simCfg.GyroBias = fc.Vec3{X: 0.01}
	simCfg.Seed = 7
	sim := sensors.NewSimulator(simCfg)
	loop := newFlightLoop(&simCfg.Vehicle, sim, sim)
	loop.realtime = false
	loop.trace = tracer

	require.NoError(t, loop.Run(testContext(t), 1500))
	tracer.Stop()
	assert.False(t, tracer.IsActive())

	files, err := filepath.Glob(filepath.Join(dir, "*_trace.csv.gz"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	records, events, err := readTrace(files[0], nil)
	require.NoError(t, err)
	assert.Len(t, records, 1500)
	for i, r := range records {
		require.Equal(t, uint64(i), r.Tick)
	}
	require.NotEmpty(t, events)
	assert.Contains(t, events[0], "armed")

	var out bytes.Buffer
	cfg := simCfg.Vehicle
	require.NoError(t, runReplay(&HoverOpt{Vehicle: cfg}, files[0], &out))
	assert.Contains(t, out.String(), "1,500 ticks")
	assert.Contains(t, out.String(), "all motor commands match")
}

func TestReplayDetectsDivergence(t *testing.T) {
	cfg := fc.DefaultConfig()
	src := &traceSource{}
	for i := 0; i < 10; i++ {
		src.records = append(src.records, traceRecord{
			Tick: uint64(i),
			Snap: fc.SensorSnapshot{CurrentTime: float32(i) * cfg.DT},
		})
	}
	sum, err := replayTrace(&cfg, src)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), sum.Ticks)
	assert.Equal(t, uint64(10), sum.Mismatches)
	assert.Equal(t, int64(0), sum.FirstBad)
	assert.Equal(t, fc.Calibrating, sum.Phase)
}
