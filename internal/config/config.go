package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/berfenger/kal2mqtt/internal/core/domain"

	"go.uber.org/zap/zapcore"
)

const (
	OUTPUT_DRIVER_GPIO   = "gpio"
	OUTPUT_DRIVER_MODBUS = "modbus"
	OUTPUT_DRIVER_MEMORY = "memory"

	SENSOR_DRIVER_HWMON  = "hwmon"
	SENSOR_DRIVER_MODBUS = "modbus"

	RADIO_WPA    = "wpa"
	RADIO_STATIC = "static"
)

type Config struct {
	Device             string `mapstructure:"device"`
	LogLevel           zapcore.Level
	Port               uint   `mapstructure:"port"`
	HttpLog            bool   `mapstructure:"http_log"`
	RestartDelayMillis uint32 `mapstructure:"restart_delay_millis"`

	MQTT       MQTTConfig       `mapstructure:"mqtt"`
	Network    NetworkConfig    `mapstructure:"network"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	Outputs    []OutputConfig   `mapstructure:"outputs"`
	Sensors    []SensorConfig   `mapstructure:"sensors"`
	Thermostat ThermostatConfig `mapstructure:"thermostat"`
	Store      StoreConfig      `mapstructure:"store"`
	InfluxDB   InfluxDBConfig   `mapstructure:"influxdb"`
}

type MQTTConfig struct {
	Host               string
	Port               int
	Username           string
	Password           string
	QoS                byte   `mapstructure:"qos"`
	QueryTimeoutMillis uint32 `mapstructure:"query_timeout_millis"`
	HADiscoveryEnable  bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic   string `mapstructure:"ha_discovery_topic"`
}

type NetworkConfig struct {
	SSID                 string `mapstructure:"ssid"`
	Password             string `mapstructure:"password"`
	Radio                string `mapstructure:"radio"`
	Interface            string `mapstructure:"interface"`
	ScanMax              int    `mapstructure:"scan_max"`
	BackoffMillis        uint32 `mapstructure:"backoff_millis"`
	ReconnectDelayMillis uint32 `mapstructure:"reconnect_delay_millis"`
	LinkPollMillis       uint32 `mapstructure:"link_poll_millis"`
}

type TelemetryConfig struct {
	Capacity int `mapstructure:"capacity"`
}

// OutputConfig describes a relay or LED. Driver specific fields are ignored by other drivers.
type OutputConfig struct {
	Key             string `mapstructure:"key"`
	Driver          string `mapstructure:"driver"`
	Chip            string `mapstructure:"chip"`
	Line            int    `mapstructure:"line"`
	ActiveLow       bool   `mapstructure:"active_low"`
	ModbusURL       string `mapstructure:"modbus_url"`
	ModbusSpeed     uint   `mapstructure:"modbus_speed"`
	UnitId          uint8  `mapstructure:"unit_id"`
	Coil            uint16 `mapstructure:"coil"`
	Decoder         string `mapstructure:"decoder"`
	HeartbeatMillis uint32 `mapstructure:"heartbeat_millis"`
	InboxCapacity   int    `mapstructure:"inbox_capacity"`
}

type SensorConfig struct {
	Name              string `mapstructure:"name"`
	Driver            string `mapstructure:"driver"`
	HwmonPath         string `mapstructure:"hwmon_path"`
	ModbusURL         string `mapstructure:"modbus_url"`
	ModbusSpeed       uint   `mapstructure:"modbus_speed"`
	UnitId            uint8  `mapstructure:"unit_id"`
	IntervalMillis    uint32 `mapstructure:"interval_millis"`
	WarmupMillis      uint32 `mapstructure:"warmup_millis"`
	ConversionMillis  uint32 `mapstructure:"conversion_millis"`
	StepTimeoutMillis uint32 `mapstructure:"step_timeout_millis"`
}

type ThermostatConfig struct {
	Enabled                bool   `mapstructure:"enabled"`
	Relay                  string `mapstructure:"relay"`
	Sensor                 string `mapstructure:"sensor"`
	Mode                   string `mapstructure:"mode"`
	ScheduleFile           string `mapstructure:"schedule_file"`
	EvaluateIntervalMillis uint32 `mapstructure:"evaluate_interval_millis"`
}

type StoreConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type InfluxDBConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	URL           string `mapstructure:"url"`
	Token         string `mapstructure:"token"`
	Org           string `mapstructure:"org"`
	Bucket        string `mapstructure:"bucket"`
	BatchSize     uint   `mapstructure:"batch_size"`
	FlushInterval uint   `mapstructure:"flush_interval"`
}

func Millis(ms uint32) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func (c Config) RestartDelay() time.Duration {
	return Millis(c.RestartDelayMillis)
}

// ApplyDefaults fills zero valued fields of list entries, which viper defaults cannot reach.
func (c *Config) ApplyDefaults() {
	for i := range c.Outputs {
		out := &c.Outputs[i]
		if out.Driver == "" {
			out.Driver = OUTPUT_DRIVER_GPIO
		}
		if out.HeartbeatMillis == 0 {
			out.HeartbeatMillis = 300000
		}
		if out.InboxCapacity == 0 {
			out.InboxCapacity = 5
		}
	}
	for i := range c.Sensors {
		sensor := &c.Sensors[i]
		if sensor.Driver == "" {
			sensor.Driver = SENSOR_DRIVER_HWMON
		}
		if sensor.IntervalMillis == 0 {
			sensor.IntervalMillis = 300000
		}
		if sensor.WarmupMillis == 0 {
			sensor.WarmupMillis = 1
		}
		if sensor.ConversionMillis == 0 {
			sensor.ConversionMillis = 13
		}
		if sensor.StepTimeoutMillis == 0 {
			sensor.StepTimeoutMillis = 2000
		}
	}
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}

var keyRegexp = regexp.MustCompile("^[A-Z0-9_]+$")

// reservedKeys are topic keys used by the device itself.
var reservedKeys = map[string]bool{
	domain.KEY_MODE: true,
	domain.KEY_LWT:  true,
}

// Validate normalizes topics and checks bounds and cross references.
func (c *Config) Validate() error {
	device, err := CheckMQTTTopic(c.Device)
	if err != nil {
		return fmt.Errorf("invalid device name: %w", err)
	}
	c.Device = device

	if c.MQTT.HADiscoveryEnable {
		haTopic, err := CheckMQTTTopic(c.MQTT.HADiscoveryTopic)
		if err != nil {
			return fmt.Errorf("invalid homeassistant discovery topic: %w", err)
		}
		c.MQTT.HADiscoveryTopic = haTopic
	}
	if c.MQTT.QoS > 2 {
		return errors.New("config param mqtt.qos must be 0, 1 or 2")
	}
	if c.Telemetry.Capacity <= 0 {
		return errors.New("config param telemetry.capacity should be > 0")
	}
	switch c.Network.Radio {
	case RADIO_WPA:
		if c.Network.SSID == "" {
			return errors.New("config param network.ssid is required by the wpa radio")
		}
	case RADIO_STATIC:
	default:
		return fmt.Errorf("unknown network.radio %q", c.Network.Radio)
	}
	if c.Network.Interface == "" {
		return errors.New("config param network.interface is required")
	}

	keys := make(map[string]bool)
	for i := range c.Outputs {
		out := &c.Outputs[i]
		out.Key = strings.ToUpper(out.Key)
		if !keyRegexp.MatchString(out.Key) {
			return fmt.Errorf("outputs[%d]: invalid key %q", i, out.Key)
		}
		if reservedKeys[out.Key] {
			return fmt.Errorf("outputs[%d]: key %q is reserved", i, out.Key)
		}
		if keys[out.Key] {
			return fmt.Errorf("outputs[%d]: duplicated key %q", i, out.Key)
		}
		keys[out.Key] = true
		switch out.Driver {
		case OUTPUT_DRIVER_GPIO:
			if out.Chip == "" || out.Line < 0 {
				return fmt.Errorf("outputs[%d]: gpio driver needs chip and line", i)
			}
		case OUTPUT_DRIVER_MODBUS:
			if out.ModbusURL == "" {
				return fmt.Errorf("outputs[%d]: modbus driver needs modbus_url", i)
			}
		case OUTPUT_DRIVER_MEMORY:
		default:
			return fmt.Errorf("outputs[%d]: unknown driver %q", i, out.Driver)
		}
		if out.HeartbeatMillis < 1000 {
			return fmt.Errorf("outputs[%d]: heartbeat_millis should be >= 1000", i)
		}
	}

	names := make(map[string]bool)
	for i := range c.Sensors {
		sensor := &c.Sensors[i]
		sensor.Name = strings.ToUpper(sensor.Name)
		if sensor.Name != "" && !keyRegexp.MatchString(sensor.Name) {
			return fmt.Errorf("sensors[%d]: invalid name %q", i, sensor.Name)
		}
		if names[sensor.Name] {
			return fmt.Errorf("sensors[%d]: duplicated name %q", i, sensor.Name)
		}
		names[sensor.Name] = true
		switch sensor.Driver {
		case SENSOR_DRIVER_HWMON:
			if sensor.HwmonPath == "" {
				return fmt.Errorf("sensors[%d]: hwmon driver needs hwmon_path", i)
			}
		case SENSOR_DRIVER_MODBUS:
			if sensor.ModbusURL == "" {
				return fmt.Errorf("sensors[%d]: modbus driver needs modbus_url", i)
			}
		default:
			return fmt.Errorf("sensors[%d]: unknown driver %q", i, sensor.Driver)
		}
		if sensor.IntervalMillis < 1000 {
			return fmt.Errorf("sensors[%d]: interval_millis should be >= 1000", i)
		}
		for _, measurement := range []string{domain.KEY_TEMPERATURE, domain.KEY_HUMIDITY} {
			if key := domain.SensorKey(sensor.Name, measurement); keys[key] {
				return fmt.Errorf("sensors[%d]: telemetry key %q clashes with an output", i, key)
			}
		}
	}

	if c.Thermostat.Enabled {
		c.Thermostat.Relay = strings.ToUpper(c.Thermostat.Relay)
		c.Thermostat.Sensor = strings.ToUpper(c.Thermostat.Sensor)
		if !keys[c.Thermostat.Relay] {
			return fmt.Errorf("thermostat.relay %q is not a configured output", c.Thermostat.Relay)
		}
		if !names[c.Thermostat.Sensor] {
			return fmt.Errorf("thermostat.sensor %q is not a configured sensor", c.Thermostat.Sensor)
		}
		if c.Thermostat.ScheduleFile == "" {
			return errors.New("config param thermostat.schedule_file is required")
		}
		if c.Thermostat.EvaluateIntervalMillis < 1000 {
			return errors.New("config param thermostat.evaluate_interval_millis should be >= 1000")
		}
	}

	if c.Store.Enabled && c.Store.Path == "" {
		return errors.New("config param store.path is required")
	}
	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		return errors.New("config params influxdb.url and influxdb.bucket are required")
	}
	return nil
}
