package hwmon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/berfenger/kal2mqtt/internal/core/port"
)

const (
	FILE_NAME        = "name"
	FILE_TEMPERATURE = "temp1_input"
	FILE_HUMIDITY    = "humidity1_input"

	milli = 1000.0
)

// Sensor reads a temperature/humidity chip exposed by a Linux hwmon driver
// (e.g. shtc1). The kernel driver performs wake, conversion and sleep on each
// read, so only ReadMeasurement touches the bus.
type Sensor struct {
	path string
}

func NewSensor(path string) *Sensor {
	return &Sensor{path: path}
}

func (s *Sensor) WakeUp(_ context.Context) error {
	info, err := os.Stat(s.path)
	if err != nil {
		return fmt.Errorf("%w: %w", port.ErrSensor, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a hwmon directory", port.ErrSensor, s.path)
	}
	return nil
}

func (s *Sensor) StartMeasurement(_ context.Context) error {
	return nil
}

func (s *Sensor) ReadMeasurement(_ context.Context) (float64, float64, error) {
	temperature, err := s.readMilli(FILE_TEMPERATURE)
	if err != nil {
		return 0, 0, err
	}
	humidity, err := s.readMilli(FILE_HUMIDITY)
	if err != nil {
		return 0, 0, err
	}
	return temperature, humidity, nil
}

func (s *Sensor) Sleep(_ context.Context) error {
	return nil
}

func (s *Sensor) Close() error {
	return nil
}

// DeviceIdentifier returns the hwmon chip name.
func (s *Sensor) DeviceIdentifier(_ context.Context) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.path, FILE_NAME))
	if err != nil {
		return "", fmt.Errorf("%w: %w", port.ErrSensor, err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (s *Sensor) readMilli(file string) (float64, error) {
	data, err := os.ReadFile(filepath.Join(s.path, file))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", port.ErrSensor, err)
	}
	value, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", port.ErrSensor, file, err)
	}
	return float64(value) / milli, nil
}

var (
	_ port.SensorDriver = (*Sensor)(nil)
	_ port.Identifier   = (*Sensor)(nil)
)
