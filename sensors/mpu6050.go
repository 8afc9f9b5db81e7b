package sensors

import (
	"fmt"
	"math"
	"time"

	"github.com/b3nn0/hoverfc/fc"
	"github.com/kidoman/embd"
	log "github.com/sirupsen/logrus"
)

// https://www.olimex.com/Products/Modules/Sensors/MOD-MPU6050/resources/RM-MPU-60xxA_rev_4.pdf
const (
	mpu6050Address = 0x68

	mpu6050GyroXOutH  = 0x43
	mpu6050GyroYOutH  = 0x45
	mpu6050GyroZOutH  = 0x47
	mpu6050AccelXOutH = 0x3B
	mpu6050AccelYOutH = 0x3D
	mpu6050AccelZOutH = 0x3F
	mpu6050TempOutH   = 0x41
	mpu6050PwrMgmt1   = 0x6B

	mpu6050AccelScale = 16384.0 // LSB/g, AFS_SEL = 0.
	mpu6050GyroScale  = 131.0   // LSB/(°/s), FS_SEL = 0.
)

// MPU6050 reads an InvenSense MPU6050 over I2C synchronously, once per Next.
// It only supplies the IMU and temperature; range, flow and joystick stay
// stale.
type MPU6050 struct {
	bus     embd.I2CBus
	gravity float32
	start   time.Time

	last     fc.IMUMeasurement
	temp     float32
	failures int
	closed   bool
}

// NewMPU6050 wakes the device at the default address.
func NewMPU6050(bus embd.I2CBus, gravity float32) (*MPU6050, error) {
	if err := bus.WriteByteToReg(mpu6050Address, mpu6050PwrMgmt1, 0); err != nil {
		return nil, fmt.Errorf("mpu6050: wake: %w", err)
	}
	log.Println("Sensor Info: MPU6050 awake")
	return &MPU6050{bus: bus, gravity: gravity, start: time.Now()}, nil
}

func (d *MPU6050) readXYZ(reg byte, scale float32) (fc.Vec3, error) {
	var v [3]float32
	for i := range v {
		w, err := d.bus.ReadWordFromReg(mpu6050Address, reg+byte(2*i))
		if err != nil {
			return fc.Vec3{}, err
		}
		v[i] = float32(int16(w)) / scale
	}
	return fc.Vec3{X: v[0], Y: v[1], Z: v[2]}, nil
}

func (d *MPU6050) measure() (fc.IMUMeasurement, error) {
	gyro, err := d.readXYZ(mpu6050GyroXOutH, mpu6050GyroScale)
	if err != nil {
		return fc.IMUMeasurement{}, err
	}
	accel, err := d.readXYZ(mpu6050AccelXOutH, mpu6050AccelScale)
	if err != nil {
		return fc.IMUMeasurement{}, err
	}
	if t, err := d.bus.ReadWordFromReg(mpu6050Address, mpu6050TempOutH); err == nil {
		d.temp = float32(int16(t))/340 + 36.53
	}
	return fc.IMUMeasurement{
		Accelerometer: accel.Scale(d.gravity),
		RateGyro:      gyro.Scale(math.Pi / 180),
		Updated:       true,
	}, nil
}

// Next returns a snapshot carrying a fresh IMU reading, or the previous one
// marked stale when the bus read fails.
func (d *MPU6050) Next() (fc.SensorSnapshot, error) {
	if d.closed {
		return fc.SensorSnapshot{}, ErrClosed
	}
	snap := fc.SensorSnapshot{CurrentTime: float32(time.Since(d.start).Seconds())}

	imu, err := d.measure()
	if err != nil {
		d.failures++
		if d.failures >= maxReadFailures {
			return snap, fmt.Errorf("mpu6050: %d consecutive read failures: %w", d.failures, err)
		}
		snap.IMU = staleIMU(d.last)
	} else {
		d.failures = 0
		d.last = imu
		snap.IMU = imu
	}
	snap.Extra.IMUTemperature = d.temp
	return snap, nil
}

// Close puts the device to sleep.
func (d *MPU6050) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	return d.bus.WriteByteToReg(mpu6050Address, mpu6050PwrMgmt1, 0x40)
}
