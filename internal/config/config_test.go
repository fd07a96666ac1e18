package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/berfenger/kal2mqtt/internal/config"
	"github.com/berfenger/kal2mqtt/internal/core/domain"
	"github.com/berfenger/kal2mqtt/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTestConfig(t *testing.T) {
	cfg := util.LoadTestConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidateNormalizesNames(t *testing.T) {
	cfg := util.LoadTestConfig()
	cfg.Device = "Kal_Office"
	cfg.Outputs[0].Key = "relay"
	cfg.Thermostat.Relay = "relay"
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "kal_office", cfg.Device)
	assert.Equal(t, "RELAY", cfg.Outputs[0].Key)
	assert.Equal(t, "RELAY", cfg.Thermostat.Relay)
}

func TestApplyDefaults(t *testing.T) {
	cfg := config.Config{
		Outputs: []config.OutputConfig{{Key: "RELAY", HeartbeatMillis: 60000}},
		Sensors: []config.SensorConfig{{Name: "ATTIC", Driver: config.SENSOR_DRIVER_MODBUS}},
	}
	cfg.ApplyDefaults()

	assert.Equal(t, config.OUTPUT_DRIVER_GPIO, cfg.Outputs[0].Driver)
	assert.Equal(t, uint32(60000), cfg.Outputs[0].HeartbeatMillis)
	assert.Equal(t, 5, cfg.Outputs[0].InboxCapacity)
	assert.Equal(t, config.SENSOR_DRIVER_MODBUS, cfg.Sensors[0].Driver)
	assert.Equal(t, uint32(300000), cfg.Sensors[0].IntervalMillis)
	assert.Equal(t, uint32(13), cfg.Sensors[0].ConversionMillis)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*config.Config)
	}{
		{"device with slash", func(c *config.Config) { c.Device = "kal/one" }},
		{"zero telemetry capacity", func(c *config.Config) { c.Telemetry.Capacity = 0 }},
		{"wpa without ssid", func(c *config.Config) { c.Network.Radio = config.RADIO_WPA }},
		{"unknown radio", func(c *config.Config) { c.Network.Radio = "bluetooth" }},
		{"duplicated output", func(c *config.Config) { c.Outputs[1].Key = "RELAY" }},
		{"unknown output driver", func(c *config.Config) { c.Outputs[0].Driver = "i2c" }},
		{"gpio without chip", func(c *config.Config) { c.Outputs[0].Driver = config.OUTPUT_DRIVER_GPIO }},
		{"short heartbeat", func(c *config.Config) { c.Outputs[0].HeartbeatMillis = 10 }},
		{"modbus sensor without url", func(c *config.Config) { c.Sensors[0].Driver = config.SENSOR_DRIVER_MODBUS }},
		{"thermostat unknown relay", func(c *config.Config) { c.Thermostat.Relay = "HEATER" }},
		{"thermostat unknown sensor", func(c *config.Config) { c.Thermostat.Sensor = "OUTDOOR" }},
		{"store without path", func(c *config.Config) { c.Store.Enabled = true }},
		{"qos out of range", func(c *config.Config) { c.MQTT.QoS = 3 }},
		{"output keyed MODE", func(c *config.Config) { c.Outputs[1].Key = "mode" }},
		{"output keyed LWT", func(c *config.Config) { c.Outputs[1].Key = "LWT" }},
		{"output clashing with sensor telemetry", func(c *config.Config) { c.Outputs[1].Key = "TEMPERATURE" }},
		{"output clashing with named sensor telemetry", func(c *config.Config) {
			c.Sensors[0].Name = "attic"
			c.Thermostat.Sensor = "attic"
			c.Outputs[1].Key = "ATTIC_HUMIDITY"
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := util.LoadTestConfig()
			tt.modify(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestParseSchedule(t *testing.T) {
	data := []byte(`
schedule:
  - start: "06:30"
    end: "22:00"
    low: 19.5
    high: 21
  - start: "22:00"
    end: "06:30"
    low: 16
    high: 18
`)
	entries, err := config.ParseSchedule(data)
	require.NoError(t, err)
	assert.Equal(t, []domain.ScheduleEntry{
		{Start: domain.NewTimeOfDay(6, 30), End: domain.NewTimeOfDay(22, 0), Low: 19.5, High: 21},
		{Start: domain.NewTimeOfDay(22, 0), End: domain.NewTimeOfDay(6, 30), Low: 16, High: 18},
	}, entries)
}

func TestParseScheduleRejectsInvertedThresholds(t *testing.T) {
	_, err := config.ParseSchedule([]byte("schedule:\n  - {start: \"00:00\", end: \"00:00\", low: 22, high: 18}\n"))
	assert.Error(t, err)
}

func TestParseScheduleRejectsBadTime(t *testing.T) {
	_, err := config.ParseSchedule([]byte("schedule:\n  - {start: \"25:00\", end: \"00:00\", low: 18, high: 22}\n"))
	assert.Error(t, err)
}

func TestLoadSchedule(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schedule.yaml")
	require.NoError(t, os.WriteFile(path, []byte("schedule:\n  - {start: \"00:00\", end: \"00:00\", low: 18, high: 20}\n"), 0o600))
	entries, err := config.LoadSchedule(path)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	_, err = config.LoadSchedule(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
