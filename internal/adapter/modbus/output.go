package modbus

import (
	"fmt"

	"github.com/berfenger/kal2mqtt/internal/core/port"
)

// CoilOutput drives a relay wired to a Modbus coil.
type CoilOutput struct {
	client *Client
	coil   uint16
}

// OpenCoilOutput opens the link and writes the initial level.
func OpenCoilOutput(client *Client, coil uint16, initial bool) (*CoilOutput, error) {
	if err := client.Open(); err != nil {
		return nil, fmt.Errorf("modbus open: %w", err)
	}
	out := &CoilOutput{client: client, coil: coil}
	if err := out.Set(initial); err != nil {
		_ = client.Close()
		return nil, err
	}
	return out, nil
}

func (o *CoilOutput) Set(level bool) error {
	if err := o.client.writeCoil(o.coil, level); err != nil {
		return fmt.Errorf("modbus write coil %d: %w", o.coil, err)
	}
	return nil
}

func (o *CoilOutput) Close() error {
	return o.client.Close()
}

var _ port.Output = (*CoilOutput)(nil)
