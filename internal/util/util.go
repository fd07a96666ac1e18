package util

import (
	"github.com/berfenger/kal2mqtt/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		Device:             "kal",
		LogLevel:           zap.DebugLevel,
		Port:               8080,
		RestartDelayMillis: 3000,
		MQTT: config.MQTTConfig{
			Host:               "localhost",
			Port:               1883,
			QueryTimeoutMillis: 1000,
			HADiscoveryTopic:   "homeassistant",
		},
		Network: config.NetworkConfig{
			Radio:                config.RADIO_STATIC,
			Interface:            "lo",
			ScanMax:              10,
			BackoffMillis:        5000,
			ReconnectDelayMillis: 5000,
			LinkPollMillis:       500,
		},
		Telemetry: config.TelemetryConfig{
			Capacity: 3,
		},
		Outputs: []config.OutputConfig{
			{
				Key:             "RELAY",
				Driver:          config.OUTPUT_DRIVER_MEMORY,
				Decoder:         "strict",
				HeartbeatMillis: 300000,
				InboxCapacity:   5,
			},
			{
				Key:             "LED",
				Driver:          config.OUTPUT_DRIVER_MEMORY,
				Decoder:         "lenient",
				HeartbeatMillis: 300000,
				InboxCapacity:   5,
			},
		},
		Sensors: []config.SensorConfig{
			{
				Driver:            config.SENSOR_DRIVER_HWMON,
				HwmonPath:         "/sys/class/hwmon/hwmon0",
				IntervalMillis:    300000,
				WarmupMillis:      1,
				ConversionMillis:  13,
				StepTimeoutMillis: 2000,
			},
		},
		Thermostat: config.ThermostatConfig{
			Enabled:                true,
			Relay:                  "RELAY",
			Mode:                   "AUTO",
			ScheduleFile:           "schedule.yaml",
			EvaluateIntervalMillis: 60000,
		},
	}
}
