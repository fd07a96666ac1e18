package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	adactor "github.com/berfenger/kal2mqtt/internal/adapter/actor"
	"github.com/berfenger/kal2mqtt/internal/adapter/mqtt"
	"github.com/berfenger/kal2mqtt/internal/config"
	coreactor "github.com/berfenger/kal2mqtt/internal/core/actor"
	"github.com/berfenger/kal2mqtt/internal/core/codec"
	"github.com/berfenger/kal2mqtt/internal/core/domain"
	"github.com/berfenger/kal2mqtt/internal/core/netsession"
	"github.com/berfenger/kal2mqtt/internal/core/port"
	"github.com/berfenger/kal2mqtt/internal/core/telemetry"
	"github.com/berfenger/kal2mqtt/internal/server"
	"github.com/berfenger/kal2mqtt/internal/util/actorutil"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const DEFAULT_RESTART_DELAY = 3 * time.Second

func gracefulShutdown(ctx context.Context, apiServer *http.Server, logger *zap.Logger, done chan bool) {
	// Listen for the interrupt signal.
	<-ctx.Done()

	logger.Info("shutting down gracefully, press Ctrl+C again to force")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {

	// load and print config
	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		restart(DEFAULT_RESTART_DELAY)
	}
	safePrintConfig(*cfg)

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())

	if err := run(cfg, logger); err != nil {
		logger.Error("fatal error, restarting", zap.Error(err), zap.Duration("delay", cfg.RestartDelay()))
		_ = logger.Sync()
		restart(cfg.RestartDelay())
	}
	_ = logger.Sync()
}

// restart waits and exits non-zero so the service manager starts a fresh process.
func restart(delay time.Duration) {
	time.Sleep(delay)
	os.Exit(1)
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	topics := domain.Topics{Device: cfg.Device}
	device := domain.Device{
		Id:           cfg.Device,
		Name:         cfg.Device,
		Model:        "kal2mqtt",
		Manufacturer: "kal",
		Version:      versioninfo.Short(),
	}

	// network interface and radio
	stack, radio, err := networkProvider(cfg, logger)
	if err != nil {
		return err
	}
	go func() {
		if err := stack.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("network interface watcher stopped", zap.Error(err))
		}
	}()

	// persistence
	stateStore, err := stateStoreProvider(cfg)
	if err != nil {
		return err
	}
	var levels port.StateStore
	var hubOpts []telemetry.Option
	if stateStore != nil {
		defer stateStore.Close()
		levels = stateStore
		hubOpts = append(hubOpts, telemetry.WithRecorder(stateStore))
	}
	if recorder := influxProvider(cfg, logger); recorder != nil {
		defer recorder.Close()
		hubOpts = append(hubOpts, telemetry.WithRecorder(recorder))
	}

	// transport and telemetry
	client := mqtt.NewClient(cfg, mqtt.OptsFromConfig(cfg), logger)
	hub := telemetry.NewHub(cfg.Telemetry.Capacity, client, topics, logger, hubOpts...)

	children, err := childrenProvider(ctx, cfg, levels, radio, logger)
	if err != nil {
		return err
	}

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	defer as.Shutdown()
	root := as.Root

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return coreactor.NewSupervisorActor(children, hub, logger)
	})
	supervisor, err := root.SpawnNamed(props, domain.ACTOR_ID_SUPERVISOR)
	if err != nil {
		return err
	}
	defer root.Stop(supervisor)

	res, err := root.RequestFuture(supervisor, domain.GetChildrenRequest{}, 5*time.Second).Result()
	if err != nil {
		return fmt.Errorf("supervisor did not start: %w", err)
	}
	pids := res.(domain.GetChildrenResponse).Children
	thermostat, hasThermostat := pids[domain.ACTOR_ID_THERMOSTAT]
	if hasThermostat {
		hub.AddObserver(coreactor.ActorObserver{Root: root, PID: thermostat})
	}

	// wait for the network session before opening the transport
	prefix, err := netsession.WaitForLink(ctx, stack, config.Millis(cfg.Network.LinkPollMillis))
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	logger.Info("link up", zap.String("ipv4", prefix.String()))

	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer client.Disconnect(time.Second)

	go func() {
		if err := hub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("telemetry hub stopped", zap.Error(err))
		}
	}()

	// command subscriptions
	router := adactor.NewCommandRouter(client, topics, root, config.Millis(cfg.MQTT.QueryTimeoutMillis), logger)
	for _, out := range cfg.Outputs {
		decoder, err := codec.ForPolicy(out.Decoder)
		if err != nil {
			return err
		}
		if err := router.BindDevice(ctx, out.Key, decoder, pids[domain.DeviceActorId(out.Key)]); err != nil {
			return err
		}
	}
	if hasThermostat {
		if err := router.BindMode(ctx, thermostat); err != nil {
			return err
		}
	}

	if cfg.MQTT.HADiscoveryEnable {
		if err := client.PublishHomeAssistantDiscovery(ctx, cfg.MQTT.HADiscoveryTopic, mqtt.BuildDiscovery(cfg, device)); err != nil {
			logger.Warn("could not publish homeassistant discovery", zap.Error(err))
		}
	}

	apiServer := server.NewServer(*cfg, server.SupervisorProbe(root, supervisor, server.HEALTH_TIMEOUT))
	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(ctx, apiServer, logger, done)

	err = apiServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server error: %w", err)
	}

	// Wait for the graceful shutdown to complete
	<-done
	logger.Info("graceful shutdown complete")
	return nil
}

func initConfig() (*config.Config, error) {

	// alias PORT => KAL_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("KAL_PORT", port)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("kal")
	viper.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			viper.SetConfigFile(cfgFile)

			err = viper.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg config.Config

	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	// parse log level
	switch viper.GetString("log_level") {
	case "trace":
		cfg.LogLevel = zap.DebugLevel
	case "debug":
		cfg.LogLevel = zap.DebugLevel
	case "info":
		cfg.LogLevel = zap.InfoLevel
	case "error":
		cfg.LogLevel = zap.ErrorLevel
	case "warn":
		cfg.LogLevel = zap.WarnLevel
	case "fatal":
		cfg.LogLevel = zap.FatalLevel
	default:
		cfg.LogLevel = zap.InfoLevel
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setConfigDefaults() {
	viper.SetDefault("device", "kal")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("port", 8080)
	viper.SetDefault("restart_delay_millis", 3000)
	viper.SetDefault("mqtt.host", "localhost")
	viper.SetDefault("mqtt.port", 1883)
	viper.SetDefault("mqtt.qos", 0)
	viper.SetDefault("mqtt.query_timeout_millis", 1000)
	viper.SetDefault("mqtt.ha_discovery_enable", false)
	viper.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
	viper.SetDefault("network.radio", config.RADIO_STATIC)
	viper.SetDefault("network.interface", "wlan0")
	viper.SetDefault("network.scan_max", 10)
	viper.SetDefault("network.backoff_millis", 5000)
	viper.SetDefault("network.reconnect_delay_millis", 5000)
	viper.SetDefault("network.link_poll_millis", 500)
	viper.SetDefault("telemetry.capacity", 3)
	viper.SetDefault("thermostat.mode", "AUTO")
	viper.SetDefault("thermostat.evaluate_interval_millis", 60000)
	viper.SetDefault("store.path", "kal.db")
	viper.SetDefault("influxdb.batch_size", 100)
	viper.SetDefault("influxdb.flush_interval", 10)
}

func safePrintConfig(cfg config.Config) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	cfg.Network.Password = "*redacted*"
	cfg.InfluxDB.Token = "*redacted*"
	slog.Info("Using", "config", cfg)
}
