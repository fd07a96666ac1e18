package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/berfenger/kal2mqtt/internal/adapter/gpio"
	"github.com/berfenger/kal2mqtt/internal/adapter/hwmon"
	"github.com/berfenger/kal2mqtt/internal/adapter/influx"
	"github.com/berfenger/kal2mqtt/internal/adapter/modbus"
	"github.com/berfenger/kal2mqtt/internal/adapter/radio"
	"github.com/berfenger/kal2mqtt/internal/adapter/store"
	"github.com/berfenger/kal2mqtt/internal/config"
	coreactor "github.com/berfenger/kal2mqtt/internal/core/actor"
	"github.com/berfenger/kal2mqtt/internal/core/domain"
	"github.com/berfenger/kal2mqtt/internal/core/port"
	"github.com/berfenger/kal2mqtt/internal/core/service"

	"go.uber.org/zap"
)

func networkProvider(cfg *config.Config, logger *zap.Logger) (port.Stack, port.Radio, error) {
	stack := radio.NewHostStack(cfg.Network.Interface, logger)
	switch cfg.Network.Radio {
	case config.RADIO_WPA:
		return stack, radio.NewWPARadio(radio.WPACli(cfg.Network.Interface), logger), nil
	case config.RADIO_STATIC:
		return stack, &radio.StaticRadio{}, nil
	}
	return nil, nil, fmt.Errorf("unknown radio %q", cfg.Network.Radio)
}

// stateStoreProvider returns nil when persistence is disabled.
func stateStoreProvider(cfg *config.Config) (*store.StateSQLite, error) {
	if !cfg.Store.Enabled {
		return nil, nil
	}
	db, err := store.InitDB(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	return store.NewStateSQLite(db), nil
}

// influxProvider returns nil when history is disabled or unreachable.
func influxProvider(cfg *config.Config, logger *zap.Logger) *influx.Recorder {
	if !cfg.InfluxDB.Enabled {
		return nil
	}
	recorder, err := influx.Connect(cfg.InfluxDB, cfg.Device, logger)
	if err != nil {
		logger.Warn("influxdb unavailable, telemetry history disabled", zap.Error(err))
		return nil
	}
	return recorder
}

func childrenProvider(ctx context.Context, cfg *config.Config, stateStore port.StateStore, rad port.Radio, logger *zap.Logger) (coreactor.Children, error) {
	var children coreactor.Children

	for _, out := range cfg.Outputs {
		initial := initialLevel(ctx, stateStore, out.Key, logger)
		output, err := outputProvider(out, initial, logger)
		if err != nil {
			return children, fmt.Errorf("output %s: %w", out.Key, err)
		}
		children.Devices = append(children.Devices, coreactor.DeviceChild{
			Config: coreactor.DeviceConfig{
				Key:           out.Key,
				Heartbeat:     config.Millis(out.HeartbeatMillis),
				InitialLevel:  initial,
				InboxCapacity: out.InboxCapacity,
			},
			Output: output,
		})
	}

	for _, sensor := range cfg.Sensors {
		driver, err := sensorProvider(sensor, logger)
		if err != nil {
			return children, fmt.Errorf("sensor %q: %w", sensor.Name, err)
		}
		children.Sensors = append(children.Sensors, coreactor.SensorChild{
			Config: coreactor.SensorConfig{
				Name:        sensor.Name,
				Interval:    config.Millis(sensor.IntervalMillis),
				WarmUp:      config.Millis(sensor.WarmupMillis),
				Conversion:  config.Millis(sensor.ConversionMillis),
				StepTimeout: config.Millis(sensor.StepTimeoutMillis),
			},
			Driver: driver,
		})
	}

	children.Network = &coreactor.NetworkChild{
		Config: coreactor.NetworkConfig{
			Credentials:    port.Credentials{SSID: cfg.Network.SSID, Password: cfg.Network.Password},
			ScanMax:        cfg.Network.ScanMax,
			Backoff:        config.Millis(cfg.Network.BackoffMillis),
			ReconnectDelay: config.Millis(cfg.Network.ReconnectDelayMillis),
		},
		Radio: rad,
	}

	if cfg.Thermostat.Enabled {
		entries, err := config.LoadSchedule(cfg.Thermostat.ScheduleFile)
		if err != nil {
			return children, err
		}
		children.Thermostat = &coreactor.ThermostatChild{
			Config: coreactor.ThermostatConfig{
				Relay:            cfg.Thermostat.Relay,
				Sensor:           cfg.Thermostat.Sensor,
				Mode:             initialMode(ctx, cfg, stateStore, logger),
				EvaluateInterval: config.Millis(cfg.Thermostat.EvaluateIntervalMillis),
				Clock:            time.Now,
			},
			Logic: &service.DefaultScheduleLogic{Entries: entries},
		}
	}

	return children, nil
}

func outputProvider(out config.OutputConfig, initial bool, logger *zap.Logger) (port.Output, error) {
	logger = logger.With(zap.String("output", out.Key))
	switch out.Driver {
	case config.OUTPUT_DRIVER_GPIO:
		return gpio.Open(out.Chip, out.Line, out.ActiveLow, initial, logger)
	case config.OUTPUT_DRIVER_MODBUS:
		client, err := modbus.NewClient(out.ModbusURL, out.ModbusSpeed, out.UnitId, logger, nil)
		if err != nil {
			return nil, err
		}
		return modbus.OpenCoilOutput(client, out.Coil, initial)
	case config.OUTPUT_DRIVER_MEMORY:
		output, _ := gpio.OpenMemory(out.ActiveLow, initial, logger)
		return output, nil
	}
	return nil, fmt.Errorf("unknown output driver %q", out.Driver)
}

func sensorProvider(sensor config.SensorConfig, logger *zap.Logger) (port.SensorDriver, error) {
	switch sensor.Driver {
	case config.SENSOR_DRIVER_HWMON:
		return hwmon.NewSensor(sensor.HwmonPath), nil
	case config.SENSOR_DRIVER_MODBUS:
		client, err := modbus.NewClient(sensor.ModbusURL, sensor.ModbusSpeed, sensor.UnitId, logger.With(zap.String("sensor", sensor.Name)), nil)
		if err != nil {
			return nil, err
		}
		return modbus.NewSensor(client), nil
	}
	return nil, fmt.Errorf("unknown sensor driver %q", sensor.Driver)
}

// initialLevel is the last stored level of key, false when unknown.
func initialLevel(ctx context.Context, stateStore port.StateStore, key string, logger *zap.Logger) bool {
	if stateStore == nil {
		return false
	}
	level, err := stateStore.LoadLevel(ctx, key)
	if err != nil {
		if !errors.Is(err, store.ErrNoState) {
			logger.Warn("could not load stored level", zap.String("output", key), zap.Error(err))
		}
		return false
	}
	return level
}

// initialMode prefers the stored mode over the configured one.
func initialMode(ctx context.Context, cfg *config.Config, stateStore port.StateStore, logger *zap.Logger) domain.Mode {
	configured, err := domain.ParseMode(cfg.Thermostat.Mode)
	if err != nil {
		logger.Warn("invalid thermostat mode, using AUTO", zap.Error(err))
	}
	if stateStore == nil {
		return configured
	}
	mode, err := stateStore.LoadMode(ctx)
	if err != nil {
		if !errors.Is(err, store.ErrNoState) {
			logger.Warn("could not load stored mode", zap.Error(err))
		}
		return configured
	}
	return mode
}
