package modbus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/berfenger/kal2mqtt/internal/core/port"

	"github.com/simonvetter/modbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRegisters struct {
	opened  int
	closed  int
	input   map[uint16]uint16
	coils   map[uint16]bool
	readErr error
}

func newFakeRegisters() *fakeRegisters {
	return &fakeRegisters{input: make(map[uint16]uint16), coils: make(map[uint16]bool)}
}

func (f *fakeRegisters) Open() error  { f.opened++; return nil }
func (f *fakeRegisters) Close() error { f.closed++; return nil }

func (f *fakeRegisters) ReadRegisters(addr uint16, quantity uint16, regType modbus.RegType) ([]uint16, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	if regType != modbus.INPUT_REGISTER {
		return nil, modbus.ErrIllegalDataAddress
	}
	regs := make([]uint16, quantity)
	for i := range regs {
		regs[i] = f.input[addr+uint16(i)]
	}
	return regs, nil
}

func (f *fakeRegisters) WriteCoil(addr uint16, value bool) error {
	f.coils[addr] = value
	return nil
}

func testClient(regs registerClient, calls *[]string) *Client {
	return &Client{
		client: regs,
		instrument: []Instrument{{RecordTime: func(fnName string, _ time.Duration) {
			*calls = append(*calls, fnName)
		}}},
	}
}

func TestSensorReadScalesRegisters(t *testing.T) {
	regs := newFakeRegisters()
	minus := int16(-35)
	regs.input[1] = uint16(minus)
	regs.input[2] = 452
	var calls []string
	sensor := NewSensor(testClient(regs, &calls))
	ctx := context.Background()

	require.NoError(t, sensor.WakeUp(ctx))
	require.NoError(t, sensor.StartMeasurement(ctx))
	temperature, humidity, err := sensor.ReadMeasurement(ctx)
	require.NoError(t, err)
	require.NoError(t, sensor.Sleep(ctx))

	assert.InDelta(t, -3.5, temperature, 0.001)
	assert.InDelta(t, 45.2, humidity, 0.001)
	assert.Equal(t, 1, regs.opened)
	assert.Equal(t, 1, regs.closed)
	assert.Equal(t, []string{"ReadInputRegisters"}, calls)
}

func TestSensorErrorsWrapErrSensor(t *testing.T) {
	regs := newFakeRegisters()
	regs.readErr = modbus.ErrRequestTimedOut
	var calls []string
	sensor := NewSensor(testClient(regs, &calls))
	ctx := context.Background()

	assert.ErrorIs(t, sensor.StartMeasurement(ctx), port.ErrSensor)
	require.NoError(t, sensor.WakeUp(ctx))
	_, _, err := sensor.ReadMeasurement(ctx)
	assert.ErrorIs(t, err, port.ErrSensor)
	assert.True(t, errors.Is(err, modbus.ErrRequestTimedOut))
}

func TestCoilOutput(t *testing.T) {
	regs := newFakeRegisters()
	var calls []string
	out, err := OpenCoilOutput(testClient(regs, &calls), 4, true)
	require.NoError(t, err)
	assert.True(t, regs.coils[4])

	require.NoError(t, out.Set(false))
	assert.False(t, regs.coils[4])
	require.NoError(t, out.Close())
	assert.Equal(t, 1, regs.closed)
	assert.Equal(t, []string{"WriteCoil", "WriteCoil"}, calls)
}

func TestRecordTimerWithoutInstruments(t *testing.T) {
	assert.NotPanics(t, func() { RecordTimer("noop", nil)() })
}
