package fc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hoverPWM(cfg *Config) int32 {
	return PWMCommandFromSpeed(cfg, SpeedFromForce(cfg, cfg.Mass*cfg.Gravity/4))
}

func TestTickHover(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	st := NewEstimatorState(&cfg)

	var out ActuationCommand
	for i := 0; i < 3*TickRate; i++ {
		in := levelSnapshot(&cfg, float32(i)*cfg.DT, cfg.DesiredHeight)
		out = Tick(&cfg, st, &in)
	}

	require.Equal(t, Armed, st.Phase)
	assert.Equal(t, uint64(3*TickRate), st.Ticks)
	want := hoverPWM(&cfg)
	for i, m := range out.Motors {
		assert.InDelta(t, want, m, 1, "motor %d", i)
		assert.Equal(t, out.Motors[0], m)
	}
	assert.InDelta(t, cfg.DesiredHeight, out.Telemetry[TelHeight], 1e-3)
	assert.InDelta(t, cfg.Gravity, out.Telemetry[TelDesNormAcc], 1e-2)
	assert.Zero(t, out.Telemetry[TelRoll])
	assert.Zero(t, out.Telemetry[TelDriftCorrX])
}

func TestTickTelemetryBounded(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	st := NewEstimatorState(&cfg)
	st.Phase = Armed
	st.Height = -1e6 // far below the setpoint: huge thrust demand

	in := levelSnapshot(&cfg, 2, 0)
	in.Height.Updated = false
	out := Tick(&cfg, st, &in)

	for i, v := range out.Telemetry {
		assert.LessOrEqual(t, v, float32(TelemetryMax), "slot %d", i)
		assert.GreaterOrEqual(t, v, float32(-TelemetryMax), "slot %d", i)
	}
	assert.Equal(t, float32(TelemetryMax), out.Telemetry[TelDesNormAcc])
	assert.Equal(t, float32(-TelemetryMax), out.Telemetry[TelHeight])
}

func TestTickRecordsCorrectedRate(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	st := NewEstimatorState(&cfg)
	st.Phase = Armed
	st.GyroBias = Vec3{X: 0.01}

	in := levelSnapshot(&cfg, 2, cfg.DesiredHeight)
	in.IMU.RateGyro = Vec3{X: 0.05, Z: -0.02}
	Tick(&cfg, st, &in)
	assert.InDelta(t, 0.04, st.RateCorrected.X, 1e-6)
	assert.InDelta(t, -0.02, st.RateCorrected.Z, 1e-6)
}

func TestTickDeterministic(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	a, b := NewEstimatorState(&cfg), NewEstimatorState(&cfg)

	for i := 0; i < 700; i++ {
		in := levelSnapshot(&cfg, float32(i)*cfg.DT, 0.3+float32(i%7)*0.01)
		in.IMU.RateGyro = Vec3{X: 0.01, Y: -0.02, Z: 0.003}
		in.OpticalFlow.ValueX = float32(i%5) * 0.01
		in.OpticalFlow.Updated = i%5 == 0
		require.Equal(t, Tick(&cfg, a, &in), Tick(&cfg, b, &in))
	}
}
