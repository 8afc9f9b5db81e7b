package common

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"
)

const InvalidCpuTemp = float32(-99.0)

// ThermalZone is the sysfs file holding the board temperature.
var ThermalZone = "/sys/class/thermal/thermal_zone0/temp"

type CpuTempUpdateFunc func(cpuTemp float32)

// ReadCpuTemp parses the thermal zone file. Values above 1000 are taken as
// millidegrees.
func ReadCpuTemp(path string) float32 {
	temp, err := os.ReadFile(path)
	if err != nil {
		return InvalidCpuTemp
	}
	tInt, err := strconv.Atoi(strings.TrimSpace(string(temp)))
	if err != nil {
		return InvalidCpuTemp
	}
	if tInt > 1000 {
		return float32(tInt) / 1000.0
	}
	return float32(tInt)
}

// CpuTempMonitor reads the board temperature every second and calls updater
// with each valid value. Run it in its own goroutine, away from the flight
// loop: reading the RPi thermal zone can hang for a long time.
func CpuTempMonitor(ctx context.Context, updater CpuTempUpdateFunc) {
	timer := time.NewTicker(1 * time.Second)
	defer timer.Stop()
	for {
		if t := ReadCpuTemp(ThermalZone); IsCPUTempValid(t) {
			updater(t)
		}
		select {
		case <-timer.C:
		case <-ctx.Done():
			return
		}
	}
}

// Check if CPU temperature is valid. Assume <= 0 is invalid.
func IsCPUTempValid(cpuTemp float32) bool {
	return cpuTemp > 0
}
