package main

import (
	"context"
	"errors"
	"testing"

	"github.com/berfenger/kal2mqtt/internal/adapter/store"
	"github.com/berfenger/kal2mqtt/internal/config"
	"github.com/berfenger/kal2mqtt/internal/core/domain"
	"github.com/berfenger/kal2mqtt/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeStateStore struct {
	levels  map[string]bool
	mode    *domain.Mode
	loadErr error
}

func (f fakeStateStore) LoadLevel(_ context.Context, device string) (bool, error) {
	if f.loadErr != nil {
		return false, f.loadErr
	}
	level, ok := f.levels[device]
	if !ok {
		return false, store.ErrNoState
	}
	return level, nil
}

func (f fakeStateStore) LoadMode(context.Context) (domain.Mode, error) {
	if f.loadErr != nil {
		return domain.ModeAuto, f.loadErr
	}
	if f.mode == nil {
		return domain.ModeAuto, store.ErrNoState
	}
	return *f.mode, nil
}

func TestInitialLevel(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()
	levels := fakeStateStore{levels: map[string]bool{"RELAY": true}}

	assert.True(t, initialLevel(ctx, levels, "RELAY", logger))
	assert.False(t, initialLevel(ctx, levels, "LED", logger))
	assert.False(t, initialLevel(ctx, nil, "RELAY", logger))
	assert.False(t, initialLevel(ctx, fakeStateStore{loadErr: errors.New("locked")}, "RELAY", logger))
}

func TestInitialModePrefersStoredMode(t *testing.T) {
	ctx := context.Background()
	cfg := util.LoadTestConfig()
	cfg.Thermostat.Mode = "ON"
	off := domain.ModeOff

	assert.Equal(t, domain.ModeOn, initialMode(ctx, &cfg, nil, zap.NewNop()))
	assert.Equal(t, domain.ModeOn, initialMode(ctx, &cfg, fakeStateStore{}, zap.NewNop()))
	assert.Equal(t, domain.ModeOff, initialMode(ctx, &cfg, fakeStateStore{mode: &off}, zap.NewNop()))
}

func TestChildrenProviderWithoutThermostat(t *testing.T) {
	cfg := util.LoadTestConfig()
	cfg.Thermostat.Enabled = false

	children, err := childrenProvider(context.Background(), &cfg, nil, nil, zap.NewNop())
	require.NoError(t, err)
	require.Len(t, children.Devices, 2)
	assert.Equal(t, "RELAY", children.Devices[0].Config.Key)
	require.Len(t, children.Sensors, 1)
	assert.NotNil(t, children.Network)
	assert.Nil(t, children.Thermostat)
}

func TestOutputProviderRejectsUnknownDriver(t *testing.T) {
	_, err := outputProvider(config.OutputConfig{Key: "RELAY", Driver: "i2c"}, false, zap.NewNop())
	assert.Error(t, err)
}
