package fc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGyroBiasConverges(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	st := NewEstimatorState(&cfg)
	bias := Vec3{X: 0.02, Y: -0.015, Z: 0.004}
	imu := IMUMeasurement{RateGyro: bias, Updated: true}

	n := int(cfg.CalibrationWindow/cfg.DT) + 10
	var rate Vec3
	for i := 0; i < n; i++ {
		rate = UpdateGyroBias(&cfg, st, &imu, float32(i)*cfg.DT)
	}

	require.Equal(t, Armed, st.Phase)
	assert.InDelta(t, bias.X, st.GyroBias.X, 0.01*0.02)
	assert.InDelta(t, bias.Y, st.GyroBias.Y, 0.01*0.015)
	assert.InDelta(t, bias.Z, st.GyroBias.Z, 0.01*0.004)
	assert.InDelta(t, 0, rate.X, 1e-3)
	assert.InDelta(t, 0, rate.Y, 1e-3)
	assert.InDelta(t, 0, rate.Z, 1e-3)
}

func TestGyroBiasFrozenAfterWindow(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	st := NewEstimatorState(&cfg)
	imu := IMUMeasurement{RateGyro: Vec3{X: 0.1}, Updated: true}

	UpdateGyroBias(&cfg, st, &imu, 0)
	before := st.GyroBias
	require.Equal(t, Calibrating, st.Phase)
	require.NotZero(t, before.X)

	rate := UpdateGyroBias(&cfg, st, &imu, cfg.CalibrationWindow)
	assert.Equal(t, Armed, st.Phase)
	assert.Equal(t, before, st.GyroBias)
	assert.Equal(t, imu.RateGyro.Sub(before), rate)

	// Time going backwards does not reopen the window.
	UpdateGyroBias(&cfg, st, &imu, 0)
	assert.Equal(t, Armed, st.Phase)
	assert.Equal(t, before, st.GyroBias)
}

func TestGyroBiasIgnoresStaleSamples(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	st := NewEstimatorState(&cfg)
	imu := IMUMeasurement{RateGyro: Vec3{X: 0.3, Y: 0.3, Z: 0.3}}

	for i := 0; i < 100; i++ {
		UpdateGyroBias(&cfg, st, &imu, float32(i)*cfg.DT)
	}
	assert.Equal(t, Vec3{}, st.GyroBias)
	assert.Equal(t, Calibrating, st.Phase)
}

func TestGyroBiasWithIntermittentSamples(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	st := NewEstimatorState(&cfg)
	bias := Vec3{X: 0.02, Y: -0.01, Z: 0.005}

	var rate Vec3
	for i := 0; i < 600; i++ {
		imu := IMUMeasurement{RateGyro: bias, Updated: i%2 == 0}
		rate = UpdateGyroBias(&cfg, st, &imu, float32(i)*cfg.DT)
	}

	require.Equal(t, Armed, st.Phase)
	assert.InDelta(t, bias.X, st.GyroBias.X, 1e-6)
	assert.InDelta(t, bias.Y, st.GyroBias.Y, 1e-6)
	assert.InDelta(t, bias.Z, st.GyroBias.Z, 1e-6)
	assert.InDelta(t, 0, rate.X, 1e-6)
}

func TestGyroBiasIsSampleMean(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	st := NewEstimatorState(&cfg)

	for i, x := range []float32{0.1, 0.3, 0.2} {
		imu := IMUMeasurement{RateGyro: Vec3{X: x}, Updated: true}
		UpdateGyroBias(&cfg, st, &imu, float32(i)*cfg.DT)
	}
	assert.InDelta(t, 0.2, st.GyroBias.X, 1e-6)
	assert.Equal(t, Calibrating, st.Phase)
}

func TestCalibrationPhaseString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "calibrating", Calibrating.String())
	assert.Equal(t, "armed", Armed.String())
	assert.Equal(t, "phase(7)", CalibrationPhase(7).String())
}
