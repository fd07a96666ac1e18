package port

import (
	"context"
	"errors"
)

// ErrSensor is wrapped by sensor drivers on bus or conversion failures.
var ErrSensor = errors.New("sensor error")

// Output is a single boolean hardware output (GPIO line, Modbus coil).
type Output interface {
	Set(level bool) error
	Close() error
}

// SensorDriver drives one temperature/humidity sensor through its
// wake, measure, read and sleep steps.
type SensorDriver interface {
	WakeUp(ctx context.Context) error
	StartMeasurement(ctx context.Context) error
	// ReadMeasurement returns temperature in degrees Celsius and relative humidity in percent.
	ReadMeasurement(ctx context.Context) (float64, float64, error)
	Sleep(ctx context.Context) error
	Close() error
}

// Identifier is implemented by sensor drivers able to report a device id.
type Identifier interface {
	DeviceIdentifier(ctx context.Context) (string, error)
}
