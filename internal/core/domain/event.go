package domain

import "fmt"

const (
	KEY_TEMPERATURE = "TEMPERATURE"
	KEY_HUMIDITY    = "HUMIDITY"
	KEY_MODE        = "MODE"
	KEY_LWT         = "LWT"

	PAYLOAD_TRUE  = "true"
	PAYLOAD_FALSE = "false"
)

// Sample is any value destined for telemetry.
type Sample interface {
	// Key is the topic key K of tele/<device>/K.
	Key() string
	Payload() string
}

type Temperature struct {
	Sensor  string
	Celsius float64
}

type Humidity struct {
	Sensor  string
	Percent float64
}

type DeviceState struct {
	Device string
	Level  bool
}

type ModeState struct {
	Mode Mode
}

func (s Temperature) Key() string {
	return SensorKey(s.Sensor, KEY_TEMPERATURE)
}

func (s Temperature) Payload() string {
	return fmt.Sprintf("%.2f", s.Celsius)
}

func (s Humidity) Key() string {
	return SensorKey(s.Sensor, KEY_HUMIDITY)
}

func (s Humidity) Payload() string {
	return fmt.Sprintf("%.2f", s.Percent)
}

func (s DeviceState) Key() string {
	return s.Device
}

func (s DeviceState) Payload() string {
	return LevelPayload(s.Level)
}

func (s ModeState) Key() string {
	return KEY_MODE
}

func (s ModeState) Payload() string {
	return s.Mode.String()
}

// SensorKey prefixes a measurement key with the sensor name, if any.
func SensorKey(sensor, measurement string) string {
	if sensor == "" {
		return measurement
	}
	return fmt.Sprintf("%s_%s", sensor, measurement)
}

func LevelPayload(level bool) string {
	if level {
		return PAYLOAD_TRUE
	}
	return PAYLOAD_FALSE
}

// ensure interface compliance
var (
	_ Sample = Temperature{}
	_ Sample = Humidity{}
	_ Sample = DeviceState{}
	_ Sample = ModeState{}
)
