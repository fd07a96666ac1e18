package influx

import (
	"context"
	"testing"
	"time"

	"github.com/berfenger/kal2mqtt/internal/config"
	"github.com/berfenger/kal2mqtt/internal/core/domain"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeWriteAPI struct {
	points  []*write.Point
	flushed int
}

func (f *fakeWriteAPI) WritePoint(point *write.Point) { f.points = append(f.points, point) }
func (f *fakeWriteAPI) Flush()                        { f.flushed++ }

var ts = time.Unix(1700000000, 0)

func TestSampleToPoint(t *testing.T) {
	cases := []struct {
		sample      domain.Sample
		measurement string
		key         string
		field       string
		value       interface{}
	}{
		{domain.Temperature{Celsius: 21.5}, "temperature", "TEMPERATURE", "celsius", 21.5},
		{domain.Humidity{Sensor: "ATTIC", Percent: 48}, "humidity", "ATTIC_HUMIDITY", "percent", 48.0},
		{domain.DeviceState{Device: "RELAY", Level: true}, "output", "RELAY", "level", true},
		{domain.ModeState{Mode: domain.ModeAuto}, "thermostat", "MODE", "mode", "AUTO"},
	}
	for _, c := range cases {
		point := SampleToPoint("kal", c.sample, ts)
		require.NotNil(t, point)
		assert.Equal(t, c.measurement, point.Name())
		assert.Equal(t, ts, point.Time())

		tags := make(map[string]string)
		for _, tag := range point.TagList() {
			tags[tag.Key] = tag.Value
		}
		assert.Equal(t, map[string]string{"device": "kal", "key": c.key}, tags)

		require.Len(t, point.FieldList(), 1)
		assert.Equal(t, c.field, point.FieldList()[0].Key)
		assert.Equal(t, c.value, point.FieldList()[0].Value)
	}
}

func TestRecordWritesAndCloseFlushes(t *testing.T) {
	api := &fakeWriteAPI{}
	r := newRecorder(api, "kal", zap.NewNop())

	require.NoError(t, r.Record(context.Background(), domain.DeviceState{Device: "LED"}))
	require.Len(t, api.points, 1)
	assert.Equal(t, "output", api.points[0].Name())

	require.NoError(t, r.Close())
	assert.Equal(t, 1, api.flushed)
	assert.ErrorIs(t, r.Record(context.Background(), domain.DeviceState{Device: "LED"}), ErrNotConnected)
}

func TestConnectDisabled(t *testing.T) {
	_, err := Connect(config.InfluxDBConfig{}, "kal", zap.NewNop())
	assert.ErrorIs(t, err, ErrDisabled)
}
