package modbus

import (
	"time"

	"github.com/simonvetter/modbus"
	"go.uber.org/zap"
)

const DEFAULT_TIMEOUT = 1 * time.Second

// registerClient is the subset of *modbus.ModbusClient used by the adapters.
type registerClient interface {
	Open() error
	Close() error
	ReadRegisters(addr uint16, quantity uint16, regType modbus.RegType) ([]uint16, error)
	WriteCoil(addr uint16, value bool) error
}

type Client struct {
	client     registerClient
	instrument []Instrument
}

type Instrument struct {
	RecordTime func(fnName string, readTime time.Duration)
}

// NewClient creates a client for url (tcp://host:port or rtu:///dev/ttyUSB0) addressing unitId.
// speed is only used by RTU links.
func NewClient(url string, speed uint, unitId uint8, logger *zap.Logger, instrumentation *Instrument) (*Client, error) {
	client, err := modbus.NewClient(&modbus.ClientConfiguration{
		URL:     url,
		Speed:   speed,
		Timeout: DEFAULT_TIMEOUT,
	})
	if err != nil {
		return nil, err
	}
	if unitId > 0 {
		if err := client.SetUnitId(unitId); err != nil {
			return nil, err
		}
	}

	var inst []Instrument
	inst = append(inst, traceLoggerInstrumentation(logger.With(zap.String("url", url), zap.Uint8("unit", unitId))))
	if instrumentation != nil {
		inst = append(inst, *instrumentation)
	}
	return &Client{client: client, instrument: inst}, nil
}

func (c *Client) Open() error {
	return c.client.Open()
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) readInputRegisters(addr uint16, quantity uint16) ([]uint16, error) {
	defer RecordTimer("ReadInputRegisters", c.instrument)()
	return c.client.ReadRegisters(addr, quantity, modbus.INPUT_REGISTER)
}

func (c *Client) writeCoil(addr uint16, value bool) error {
	defer RecordTimer("WriteCoil", c.instrument)()
	return c.client.WriteCoil(addr, value)
}

func traceLoggerInstrumentation(logger *zap.Logger) Instrument {
	return Instrument{
		RecordTime: func(fnName string, readTime time.Duration) {
			logger.Debug("modbus call", zap.String("fn", fnName), zap.Int64("millis", readTime.Milliseconds()))
		},
	}
}

func RecordTimer(name string, instrument []Instrument) func() {
	if instrument == nil {
		return func() {}
	}

	start := time.Now()
	return func() {
		duration := time.Since(start)
		for i := range instrument {
			instrument[i].RecordTime(name, duration)
		}
	}
}
