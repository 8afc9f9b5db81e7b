/*
	Copyright (c) 2026 The hoverfc Authors
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	status.go: Daemon status shared with the web and text interfaces.
*/

package main

import (
	"fmt"
	"io"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/b3nn0/goflying/ahrs"
	"github.com/b3nn0/hoverfc/fc"
	humanize "github.com/dustin/go-humanize"
	"golang.org/x/exp/slices"
)

type status struct {
	Version        string
	Source         string
	Uptime         uint64 // ms
	Phase          string
	Ticks          uint64
	Overruns       uint64
	Roll           float64 // deg
	Pitch          float64 // deg
	Heading        float64 // deg, yaw wrapped to [0, 360)
	Height         float64 // m
	Velocity       [3]float64
	GyroBias       [3]float64 // deg/s
	Motors         [4]int32
	Telemetry      [fc.TelemetryLen]float32
	BatteryVoltage float32
	IMUTemp        float32
	CPUTemp        float32
	DatalogRows    uint64
	DatalogBytes   uint64
	TraceRows      uint64
	TelemetrySent  uint64
	Errors         []string
}

var (
	globalStatus status
	statusMutex  sync.Mutex

	systemErrs = make(map[string]string)
)

// addSingleSystemErrorf records one error per key; later reports with the
// same key replace the text instead of growing the list.
func addSingleSystemErrorf(key string, format string, a ...interface{}) {
	statusMutex.Lock()
	defer statusMutex.Unlock()
	systemErrs[key] = fmt.Sprintf(format, a...)
	globalStatus.Errors = globalStatus.Errors[:0]
	for _, e := range systemErrs {
		globalStatus.Errors = append(globalStatus.Errors, e)
	}
	slices.Sort(globalStatus.Errors)
}

func wrapDegrees(rad float32) float64 {
	d := math.Mod(float64(rad)/ahrs.Deg, 360)
	if d < 0 {
		d += 360
	}
	return d
}

// updateStatus copies the per-tick values into globalStatus.
func updateStatus(st *fc.EstimatorState, snap *fc.SensorSnapshot, cmd *fc.ActuationCommand) {
	statusMutex.Lock()
	defer statusMutex.Unlock()
	s := &globalStatus
	s.Phase = st.Phase.String()
	s.Ticks = st.Ticks
	s.Roll = float64(st.Roll) / ahrs.Deg
	s.Pitch = float64(st.Pitch) / ahrs.Deg
	s.Heading = wrapDegrees(st.Yaw)
	s.Height = float64(st.Height)
	s.Velocity = [3]float64{float64(st.Velocity.X), float64(st.Velocity.Y), float64(st.Velocity.Z)}
	s.GyroBias = [3]float64{float64(st.GyroBias.X) / ahrs.Deg, float64(st.GyroBias.Y) / ahrs.Deg, float64(st.GyroBias.Z) / ahrs.Deg}
	s.Motors = cmd.Motors
	s.Telemetry = cmd.Telemetry
	if snap.BatteryVoltage.Updated {
		s.BatteryVoltage = snap.BatteryVoltage.Value
	}
	s.IMUTemp = snap.Extra.IMUTemperature
}

// snapshotStatus returns a copy safe to marshal outside the lock.
func snapshotStatus() status {
	statusMutex.Lock()
	defer statusMutex.Unlock()
	s := globalStatus
	if hoverClock != nil {
		s.Uptime = hoverClock.Milliseconds()
	}
	s.Errors = append([]string(nil), globalStatus.Errors...)
	return s
}

// dumpStatus writes a human readable view of s.
func dumpStatus(w io.Writer, s status, uptime string) {
	var b strings.Builder
	fmt.Fprintf(&b, "hoverfc %s, source %s, up %s\n", s.Version, s.Source, uptime)
	fmt.Fprintf(&b, "phase %s, %s ticks, %s overruns\n", s.Phase, humanize.Comma(int64(s.Ticks)), humanize.Comma(int64(s.Overruns)))
	fmt.Fprintf(&b, "attitude: roll %6.2f° pitch %6.2f° heading %6.2f°\n", s.Roll, s.Pitch, s.Heading)
	fmt.Fprintf(&b, "gyro bias: %.4f %.4f %.4f °/s\n", s.GyroBias[0], s.GyroBias[1], s.GyroBias[2])
	fmt.Fprintf(&b, "height %.3f m, velocity %.3f %.3f %.3f m/s\n", s.Height, s.Velocity[0], s.Velocity[1], s.Velocity[2])
	fmt.Fprintf(&b, "motors: %d %d %d %d\n", s.Motors[0], s.Motors[1], s.Motors[2], s.Motors[3])
	fmt.Fprintf(&b, "battery %.2f V, IMU %.1f °C, CPU %.1f °C\n", s.BatteryVoltage, s.IMUTemp, s.CPUTemp)
	fmt.Fprintf(&b, "datalog %s rows (%s), trace %s rows, telemetry %s frames\n",
		humanize.Comma(int64(s.DatalogRows)), humanize.Bytes(s.DatalogBytes),
		humanize.Comma(int64(s.TraceRows)), humanize.Comma(int64(s.TelemetrySent)))
	for _, e := range s.Errors {
		fmt.Fprintf(&b, "error: %s\n", e)
	}
	_, _ = io.WriteString(w, b.String())
}

func statusDumper(w io.Writer, every time.Duration, done <-chan struct{}) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			dumpStatus(w, snapshotStatus(), hoverClock.Uptime())
		case <-done:
			return
		}
	}
}
