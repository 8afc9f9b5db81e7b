package sensors

import (
	"fmt"
	"math"
	"time"

	"github.com/b3nn0/goflying/icm20948"
	"github.com/b3nn0/hoverfc/fc"
	"github.com/kidoman/embd"
	log "github.com/sirupsen/logrus"
)

const (
	icmGyroRange  = 500 // °/s full scale
	icmAccelRange = 4   // g full scale
	icmLPF        = 98  // Hz
)

// ICM20948 is a snapshot source backed by the goflying ICM-20948 driver,
// which samples in its own goroutine. Next never blocks: when the driver has
// not produced a sample since the last tick the IMU is reported stale.
type ICM20948 struct {
	mpu     *icm20948.ICM20948
	gravity float32
	start   time.Time

	last     fc.IMUMeasurement
	failures int
	closed   bool
}

// NewICM20948 connects to an ICM-20948 at either valid address and starts it
// sampling at rate Hz.
func NewICM20948(i2cbus *embd.I2CBus, rate int, gravity float32) (*ICM20948, error) {
	mpu, err := icm20948.NewICM20948(i2cbus, icmGyroRange, icmAccelRange, rate, false, false)
	if err != nil {
		return nil, fmt.Errorf("icm20948: %w", err)
	}
	mpu.SetGyroLPF(icmLPF)
	mpu.SetAccelLPF(icmLPF)
	log.Printf("Sensor Info: ICM20948 sampling at %d Hz", rate)

	return &ICM20948{mpu: mpu, gravity: gravity, start: time.Now()}, nil
}

func (m *ICM20948) Next() (fc.SensorSnapshot, error) {
	if m.closed {
		return fc.SensorSnapshot{}, ErrClosed
	}
	snap := fc.SensorSnapshot{CurrentTime: float32(time.Since(m.start).Seconds())}
	snap.IMU = staleIMU(m.last)

	select {
	case data := <-m.mpu.C:
		if data.GAError != nil {
			m.failures++
			if m.failures >= maxReadFailures {
				return snap, fmt.Errorf("icm20948: %d consecutive read failures: %w", m.failures, data.GAError)
			}
			break
		}
		m.failures = 0
		m.last = fc.IMUMeasurement{
			Accelerometer: fc.Vec3{X: float32(data.A1), Y: float32(data.A2), Z: float32(data.A3)}.Scale(m.gravity),
			RateGyro:      fc.Vec3{X: float32(data.G1), Y: float32(data.G2), Z: float32(data.G3)}.Scale(math.Pi / 180),
			Updated:       true,
		}
		snap.IMU = m.last
	default:
	}
	return snap, nil
}

// Close stops the driver.
func (m *ICM20948) Close() error {
	if !m.closed {
		m.closed = true
		m.mpu.CloseMPU()
	}
	return nil
}
