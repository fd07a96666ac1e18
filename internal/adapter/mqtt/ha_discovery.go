package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/berfenger/kal2mqtt/internal/config"
	"github.com/berfenger/kal2mqtt/internal/core/domain"
)

const (
	HA_PAYLOAD_ON  = "ON"
	HA_PAYLOAD_OFF = "OFF"
)

type HADiscoveryConfig struct {
	Device            HADiscoveryDevice `json:"device"`
	StateTopic        string            `json:"state_topic"`
	CommandTopic      string            `json:"command_topic,omitempty"`
	StateClass        string            `json:"state_class,omitempty"`
	DeviceClass       string            `json:"device_class,omitempty"`
	UnitOfMeasurement string            `json:"unit_of_measurement,omitempty"`
	AvTopic           string            `json:"availability_topic,omitempty"`
	Name              string            `json:"name"`
	UniqueId          string            `json:"unique_id"`
	Platform          string            `json:"platform"`
	PayloadOn         string            `json:"payload_on,omitempty"`
	PayloadOff        string            `json:"payload_off,omitempty"`
	StateOn           string            `json:"state_on,omitempty"`
	StateOff          string            `json:"state_off,omitempty"`
	Icon              string            `json:"icon,omitempty"`
	Options           []string          `json:"options,omitempty"`
}

type HADiscoveryDevice struct {
	Id           []string `json:"identifiers"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Version      string   `json:"sw_version,omitempty"`
	Model        string   `json:"model,omitempty"`
	Name         string   `json:"name,omitempty"`
}

// Discovery is the set of entities announced to Home Assistant.
type Discovery struct {
	Sensors  []domain.GenericSensor
	Switches []domain.GenericSwitch
	Selects  []domain.GenericSelect
}

// BuildDiscovery derives the announced entities from the configured outputs, sensors and thermostat.
func BuildDiscovery(cfg *config.Config, dev domain.Device) Discovery {
	var d Discovery
	for _, out := range cfg.Outputs {
		icon := "mdi:electric-switch"
		if strings.Contains(out.Key, "LED") {
			icon = "mdi:led-on"
		}
		d.Switches = append(d.Switches, domain.GenericSwitch{
			Device:   dev,
			Key:      out.Key,
			Name:     out.Key,
			UniqueId: fmt.Sprintf("%s_%s", dev.Id, strings.ToLower(out.Key)),
			Icon:     icon,
		})
	}
	for _, sensor := range cfg.Sensors {
		for _, m := range []struct {
			key, unit, class string
		}{
			{domain.KEY_TEMPERATURE, "°C", "temperature"},
			{domain.KEY_HUMIDITY, "%", "humidity"},
		} {
			key := domain.SensorKey(sensor.Name, m.key)
			d.Sensors = append(d.Sensors, domain.GenericSensor{
				Device:            dev,
				Key:               key,
				Name:              key,
				UniqueId:          fmt.Sprintf("%s_%s", dev.Id, strings.ToLower(key)),
				UnitOfMeasurement: m.unit,
				StateClass:        "measurement",
				DeviceClass:       m.class,
			})
		}
	}
	if cfg.Thermostat.Enabled {
		d.Selects = append(d.Selects, domain.GenericSelect{
			Device:   dev,
			Key:      domain.KEY_MODE,
			Name:     "Thermostat mode",
			UniqueId: fmt.Sprintf("%s_mode", dev.Id),
			Icon:     "mdi:thermostat",
			Options:  []string{domain.ModeAuto.String(), domain.ModeOn.String(), domain.ModeOff.String()},
		})
	}
	return d
}

func HADiscoveryTopic(baseTopic, component string, dev domain.Device, key string) string {
	return fmt.Sprintf("%s/%s/%s/%s/config", baseTopic, component, dev.Id, strings.ToLower(key))
}

func GenericSensorToHADiscoveryMessage(topics domain.Topics, sensor domain.GenericSensor) HADiscoveryConfig {
	return HADiscoveryConfig{
		Device:            device(sensor.Device),
		StateTopic:        topics.Telemetry(sensor.Key),
		StateClass:        sensor.StateClass,
		DeviceClass:       sensor.DeviceClass,
		UnitOfMeasurement: sensor.UnitOfMeasurement,
		AvTopic:           topics.Availability(),
		Name:              sensor.Name,
		UniqueId:          sensor.UniqueId,
		Icon:              sensor.Icon,
		Platform:          "mqtt",
	}
}

func GenericSwitchToHADiscoveryMessage(topics domain.Topics, _switch domain.GenericSwitch) HADiscoveryConfig {
	return HADiscoveryConfig{
		Device:       device(_switch.Device),
		StateTopic:   topics.Telemetry(_switch.Key),
		CommandTopic: topics.Command(_switch.Key),
		AvTopic:      topics.Availability(),
		Name:         _switch.Name,
		UniqueId:     _switch.UniqueId,
		Icon:         _switch.Icon,
		Platform:     "mqtt",
		PayloadOn:    HA_PAYLOAD_ON,
		PayloadOff:   HA_PAYLOAD_OFF,
		StateOn:      domain.PAYLOAD_TRUE,
		StateOff:     domain.PAYLOAD_FALSE,
	}
}

func GenericSelectToHADiscoveryMessage(topics domain.Topics, sel domain.GenericSelect) HADiscoveryConfig {
	return HADiscoveryConfig{
		Device:       device(sel.Device),
		StateTopic:   topics.Telemetry(sel.Key),
		CommandTopic: topics.Command(sel.Key),
		AvTopic:      topics.Availability(),
		Name:         sel.Name,
		UniqueId:     sel.UniqueId,
		Icon:         sel.Icon,
		Platform:     "mqtt",
		Options:      sel.Options,
	}
}

// PublishHomeAssistantDiscovery publishes retained discovery configs under baseTopic.
func (c *Client) PublishHomeAssistantDiscovery(ctx context.Context, baseTopic string, d Discovery) error {
	publish := func(topic string, msg HADiscoveryConfig) error {
		payload, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		return c.PublishRetained(ctx, topic, payload)
	}
	for _, sensor := range d.Sensors {
		if err := publish(HADiscoveryTopic(baseTopic, "sensor", sensor.Device, sensor.Key), GenericSensorToHADiscoveryMessage(c.topics, sensor)); err != nil {
			return err
		}
	}
	for _, sw := range d.Switches {
		if err := publish(HADiscoveryTopic(baseTopic, "switch", sw.Device, sw.Key), GenericSwitchToHADiscoveryMessage(c.topics, sw)); err != nil {
			return err
		}
	}
	for _, sel := range d.Selects {
		if err := publish(HADiscoveryTopic(baseTopic, "select", sel.Device, sel.Key), GenericSelectToHADiscoveryMessage(c.topics, sel)); err != nil {
			return err
		}
	}
	return nil
}

func device(d domain.Device) HADiscoveryDevice {
	return HADiscoveryDevice{
		Id:           []string{d.Id},
		Manufacturer: d.Manufacturer,
		Version:      d.Version,
		Model:        d.Model,
		Name:         d.Name,
	}
}
