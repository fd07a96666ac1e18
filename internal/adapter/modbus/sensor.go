package modbus

import (
	"context"
	"fmt"

	"github.com/berfenger/kal2mqtt/internal/core/port"
)

const (
	// input registers of the transmitter: temperature (signed) then humidity, both ×10
	REG_TEMPERATURE uint16 = 1
	REG_COUNT       uint16 = 2
	SCALE                  = 0.1
)

// Sensor reads a temperature/humidity transmitter. The transmitter converts
// continuously, so waking up opens the link and sleeping closes it.
type Sensor struct {
	client *Client
	open   bool
}

func NewSensor(client *Client) *Sensor {
	return &Sensor{client: client}
}

func (s *Sensor) WakeUp(_ context.Context) error {
	if s.open {
		return nil
	}
	if err := s.client.Open(); err != nil {
		return fmt.Errorf("%w: modbus open: %w", port.ErrSensor, err)
	}
	s.open = true
	return nil
}

func (s *Sensor) StartMeasurement(_ context.Context) error {
	if !s.open {
		return fmt.Errorf("%w: modbus link closed", port.ErrSensor)
	}
	return nil
}

func (s *Sensor) ReadMeasurement(_ context.Context) (float64, float64, error) {
	regs, err := s.client.readInputRegisters(REG_TEMPERATURE, REG_COUNT)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: modbus read: %w", port.ErrSensor, err)
	}
	if len(regs) != int(REG_COUNT) {
		return 0, 0, fmt.Errorf("%w: modbus read: got %d registers", port.ErrSensor, len(regs))
	}
	temperature := float64(int16(regs[0])) * SCALE
	humidity := float64(regs[1]) * SCALE
	return temperature, humidity, nil
}

func (s *Sensor) Sleep(_ context.Context) error {
	if !s.open {
		return nil
	}
	s.open = false
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("%w: modbus close: %w", port.ErrSensor, err)
	}
	return nil
}

func (s *Sensor) Close() error {
	return s.Sleep(context.Background())
}

var _ port.SensorDriver = (*Sensor)(nil)
