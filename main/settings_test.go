package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestHoverOptValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		modify func(o *HoverOpt)
		errMsg string
	}{
		{"defaults", func(o *HoverOpt) {}, ""},
		{"bad vehicle", func(o *HoverOpt) { o.Vehicle.Mass = 0 }, "vehicle: mass"},
		{"unknown source", func(o *HoverOpt) { o.Loop.Source = "gps" }, "unknown source"},
		{"replay without file", func(o *HoverOpt) { o.Loop.Source = sourceReplay }, "needs trace_file"},
		{"replay with file", func(o *HoverOpt) { o.Loop.Source = sourceReplay; o.Loop.TraceFile = "x.csv.gz" }, ""},
		{"negative duration", func(o *HoverOpt) { o.Loop.Duration = -1 }, "negative duration"},
		{"pwm defaults", func(o *HoverOpt) { o.PWM.Enable = true }, ""},
		{"pwm no pins", func(o *HoverOpt) { o.PWM.Enable = true; o.PWM.Pins = nil }, "need 1 to 4 pins"},
		{"pwm software pin", func(o *HoverOpt) { o.PWM.Enable = true; o.PWM.Pins = []int{17} }, "no hardware PWM"},
		{"pwm shared channel", func(o *HoverOpt) { o.PWM.Enable = true; o.PWM.Pins = []int{12, 18} }, "share PWM channel 0"},
		{"pwm pulse beyond cycle", func(o *HoverOpt) { o.PWM.Enable = true; o.PWM.PulseMax = 3000 }, "bad command or pulse range"},
		{"pwm inverted commands", func(o *HoverOpt) { o.PWM.Enable = true; o.PWM.CommandMax = -1 }, "bad command or pulse range"},
		{"telemetry decimation", func(o *HoverOpt) { o.Telemetry.Enable = true; o.Telemetry.Decimation = 0 }, "decimation must be positive"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			o := NewHoverOpt()
			tt.modify(&o)
			err := o.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.errMsg)
			}
		})
	}
}

func TestPulseFor(t *testing.T) {
	t.Parallel()
	opt := NewHoverOpt().PWM
	assert.Equal(t, uint32(1000), opt.pulseFor(-7))
	assert.Equal(t, uint32(1000), opt.pulseFor(0))
	assert.Equal(t, uint32(1459), opt.pulseFor(117))
	assert.Equal(t, uint32(2000), opt.pulseFor(255))
	assert.Equal(t, uint32(2000), opt.pulseFor(4000))
}

func newTestCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().StringP("config", "c", "", "")
	cmd.Flags().StringP("source", "s", "", "")
	cmd.Flags().Float64("duration", 0, "")
	cmd.Flags().BoolP("debug", "d", false, "")
	cmd.Flags().String("log-dir", "", "")
	return cmd
}

func TestParseConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "hover.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte(`
vehicle:
  mass: 0.05
  desired_height: 1.2
loop:
  source: replay
  trace_file: /tmp/flight_trace.csv.gz
sim:
  gyro_noise: 0.02
telemetry:
  enable: true
  decimation: 25
`), 0644))
	t.Setenv(envPrefix+"_LOOP_DURATION", "2.5")

	cmd := newTestCommand()
	require.NoError(t, cmd.Flags().Set("config", cfgFile))
	require.NoError(t, cmd.Flags().Set("debug", "true"))

	desc := NewHoverDesc()
	require.NoError(t, desc.Parse(cmd))

	o := desc.Opt
	assert.InDelta(t, 0.05, o.Vehicle.Mass, 1e-9)
	assert.InDelta(t, 1.2, o.Vehicle.DesiredHeight, 1e-6)
	assert.InDelta(t, 9.81, o.Vehicle.Gravity, 1e-6)
	assert.Equal(t, o.Vehicle, o.Sim.Vehicle)
	assert.InDelta(t, 0.02, o.Sim.GyroNoise, 1e-9)
	assert.Equal(t, sourceReplay, o.Loop.Source)
	assert.Equal(t, "/tmp/flight_trace.csv.gz", o.Loop.TraceFile)
	assert.Equal(t, 2.5, o.Loop.Duration)
	assert.True(t, o.Telemetry.Enable)
	assert.Equal(t, 25, o.Telemetry.Decimation)
	assert.Equal(t, defaultSerialBaud, o.Telemetry.Baud)
	assert.True(t, o.Debug)
}

func TestParseRejectsInvalid(t *testing.T) {
	cfgFile := filepath.Join(t.TempDir(), "hover.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("vehicle:\n  mix_height: 1.5\n"), 0644))

	cmd := newTestCommand()
	require.NoError(t, cmd.Flags().Set("config", cfgFile))
	desc := NewHoverDesc()
	assert.ErrorContains(t, desc.Parse(cmd), "mix_height")
}

func TestDumpOption(t *testing.T) {
	t.Parallel()
	out := filepath.Join(t.TempDir(), "etc", "hoverfc.yaml")
	opt := NewHoverOpt()
	require.NoError(t, dumpOption(opt, out, false))
	assert.ErrorContains(t, dumpOption(opt, out, false), "exists")
	require.NoError(t, dumpOption(opt, out, true))

	buf, err := os.ReadFile(out)
	require.NoError(t, err)
	var back HoverOpt
	require.NoError(t, yaml.Unmarshal(buf, &back))
	assert.Equal(t, opt.Vehicle, back.Vehicle)
	assert.Equal(t, opt.PWM, back.PWM)
	assert.Equal(t, opt.Telemetry, back.Telemetry)
}
