package influx

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/berfenger/kal2mqtt/internal/config"
	"github.com/berfenger/kal2mqtt/internal/core/domain"
	"github.com/berfenger/kal2mqtt/internal/core/port"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"go.uber.org/zap"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultBatchSize      = 100
	defaultFlushInterval  = 10

	millisecondsPerSecond = 1000
)

var (
	ErrNotConnected     = errors.New("influxdb: not connected")
	ErrConnectionFailed = errors.New("influxdb: connection failed")
	ErrDisabled         = errors.New("influxdb: disabled in configuration")
)

type pointWriter interface {
	WritePoint(point *write.Point)
	Flush()
}

// Recorder writes every published sample to InfluxDB. Writes are batched and non-blocking.
type Recorder struct {
	client   influxdb2.Client
	writeAPI pointWriter
	device   string
	logger   *zap.Logger

	connected bool
	mu        sync.RWMutex
}

func Connect(cfg config.InfluxDBConfig, device string, logger *zap.Logger) (*Recorder, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	batchSize := cfg.BatchSize
	if batchSize == 0 {
		batchSize = defaultBatchSize
	}
	flushInterval := cfg.FlushInterval
	if flushInterval == 0 {
		flushInterval = defaultFlushInterval
	}

	client := influxdb2.NewClientWithOptions(
		cfg.URL,
		cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(batchSize).
			SetFlushInterval(flushInterval*millisecondsPerSecond),
	)

	ctx, cancel := context.WithTimeout(context.Background(), defaultConnectTimeout)
	defer cancel()

	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)
	r := newRecorder(writeAPI, device, logger)
	r.client = client

	go func() {
		for err := range writeAPI.Errors() {
			r.logger.Warn("influxdb write failed", zap.Error(err))
		}
	}()

	return r, nil
}

func newRecorder(writeAPI pointWriter, device string, logger *zap.Logger) *Recorder {
	return &Recorder{
		writeAPI:  writeAPI,
		device:    device,
		logger:    logger.With(zap.String("component", "influxdb")),
		connected: true,
	}
}

func (r *Recorder) Record(_ context.Context, sample domain.Sample) error {
	if !r.IsConnected() {
		return ErrNotConnected
	}
	if point := SampleToPoint(r.device, sample, time.Now()); point != nil {
		r.writeAPI.WritePoint(point)
	}
	return nil
}

func (r *Recorder) IsConnected() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.connected
}

// Close flushes pending writes.
func (r *Recorder) Close() error {
	r.mu.Lock()
	r.connected = false
	r.mu.Unlock()

	r.writeAPI.Flush()
	if r.client != nil {
		r.client.Close()
	}
	return nil
}

// SampleToPoint maps a sample to its measurement. Unknown samples map to nil.
func SampleToPoint(device string, sample domain.Sample, ts time.Time) *write.Point {
	tags := map[string]string{"device": device, "key": sample.Key()}
	switch s := sample.(type) {
	case domain.Temperature:
		return write.NewPoint("temperature", tags, map[string]interface{}{"celsius": s.Celsius}, ts)
	case domain.Humidity:
		return write.NewPoint("humidity", tags, map[string]interface{}{"percent": s.Percent}, ts)
	case domain.DeviceState:
		return write.NewPoint("output", tags, map[string]interface{}{"level": s.Level}, ts)
	case domain.ModeState:
		return write.NewPoint("thermostat", tags, map[string]interface{}{"mode": s.Mode.String()}, ts)
	}
	return nil
}

var _ port.SampleRecorder = (*Recorder)(nil)
