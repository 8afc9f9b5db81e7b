// Package sensors provides the snapshot sources and motor sinks that feed the
// flight-control core: a closed-loop simulator and I2C IMU drivers.
package sensors

import (
	"errors"

	"github.com/b3nn0/hoverfc/fc"
)

// Source produces one synchronized SensorSnapshot per tick. Readings that did
// not refresh since the previous call carry Updated=false.
type Source interface {
	// Next returns the snapshot for the coming tick.
	Next() (fc.SensorSnapshot, error)
	// Close releases the underlying device.
	Close() error
}

// MotorSink receives the command produced by each tick.
type MotorSink interface {
	Write(cmd fc.ActuationCommand) error
	Close() error
}

// ErrClosed is returned by sources and sinks used after Close.
var ErrClosed = errors.New("sensors: closed")

// maxReadFailures is how many consecutive failed reads a hardware source
// tolerates before Next gives up with an error.
const maxReadFailures = 100

// staleIMU keeps the last reading but marks it as not refreshed.
func staleIMU(last fc.IMUMeasurement) fc.IMUMeasurement {
	last.Updated = false
	return last
}
