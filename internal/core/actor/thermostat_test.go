package actor

import (
	"testing"
	"time"

	"github.com/berfenger/kal2mqtt/internal/core/domain"
	"github.com/berfenger/kal2mqtt/internal/core/service"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var allDay = []domain.ScheduleEntry{{Start: domain.NewTimeOfDay(0, 0), End: domain.NewTimeOfDay(0, 0), Low: 18, High: 20}}

type thermostatProbe struct {
	as         *actor.ActorSystem
	thermostat *actor.PID
	commands   chan domain.Command
	sink       *fakeSink
}

func spawnThermostat(t *testing.T, config ThermostatConfig) *thermostatProbe {
	t.Helper()
	as := actor.NewActorSystem()
	t.Cleanup(as.Shutdown)
	commands := make(chan domain.Command, 16)
	relay, err := as.Root.SpawnNamed(actor.PropsFromFunc(func(ctx actor.Context) {
		if cmd, ok := ctx.Message().(domain.Command); ok {
			commands <- cmd
		}
	}), "relay")
	require.NoError(t, err)

	if config.Clock == nil {
		config.Clock = func() time.Time { return time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC) }
	}
	config.Relay = "RELAY"
	sink := newFakeSink()
	logic := &service.DefaultScheduleLogic{Entries: allDay}
	pid, err := as.Root.SpawnNamed(actor.PropsFromProducer(func() actor.Actor {
		return NewThermostatActor(config, logic, relay, sink, zap.NewNop())
	}), domain.ACTOR_ID_THERMOSTAT)
	require.NoError(t, err)

	assert.Equal(t, domain.ModeState{Mode: config.Mode}, sink.next(t))
	return &thermostatProbe{as: as, thermostat: pid, commands: commands, sink: sink}
}

func (p *thermostatProbe) observe(sample domain.Sample) {
	ActorObserver{Root: p.as.Root, PID: p.thermostat}.Observe(sample)
}

func (p *thermostatProbe) nextCommand(t *testing.T) domain.Command {
	t.Helper()
	select {
	case cmd := <-p.commands:
		return cmd
	case <-time.After(2 * time.Second):
		t.Fatal("no relay command")
		return 0
	}
}

func (p *thermostatProbe) expectNoCommand(t *testing.T) {
	t.Helper()
	select {
	case cmd := <-p.commands:
		t.Fatalf("unexpected relay command %s", cmd)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestThermostatHoldsWithoutTemperature(t *testing.T) {
	p := spawnThermostat(t, ThermostatConfig{Mode: domain.ModeAuto, EvaluateInterval: 20 * time.Millisecond})
	p.expectNoCommand(t)
}

func TestThermostatHysteresis(t *testing.T) {
	p := spawnThermostat(t, ThermostatConfig{Mode: domain.ModeAuto, EvaluateInterval: time.Hour})

	p.observe(domain.Temperature{Celsius: 17})
	assert.Equal(t, domain.CommandOn, p.nextCommand(t))

	p.observe(domain.Temperature{Celsius: 19})
	p.expectNoCommand(t)

	p.observe(domain.Temperature{Celsius: 21})
	assert.Equal(t, domain.CommandOff, p.nextCommand(t))

	p.observe(domain.Temperature{Celsius: 19})
	p.expectNoCommand(t)
}

func TestThermostatIgnoresOtherSensors(t *testing.T) {
	p := spawnThermostat(t, ThermostatConfig{Sensor: "INDOOR", Mode: domain.ModeAuto, EvaluateInterval: time.Hour})

	p.observe(domain.Temperature{Sensor: "OUTDOOR", Celsius: 5})
	p.expectNoCommand(t)

	p.observe(domain.Temperature{Sensor: "INDOOR", Celsius: 5})
	assert.Equal(t, domain.CommandOn, p.nextCommand(t))
}

func TestThermostatForcedModeSendsOnce(t *testing.T) {
	p := spawnThermostat(t, ThermostatConfig{Mode: domain.ModeAuto, EvaluateInterval: time.Hour})

	res, err := p.as.Root.RequestFuture(p.thermostat, domain.SetModeRequest{Mode: domain.ModeOn}, time.Second).Result()
	require.NoError(t, err)
	assert.Equal(t, domain.ModeOn, res.(domain.SetModeResponse).Mode)
	assert.Equal(t, domain.CommandOn, p.nextCommand(t))
	assert.Equal(t, domain.ModeState{Mode: domain.ModeOn}, p.sink.next(t))

	p.observe(domain.Temperature{Celsius: 30})
	p.expectNoCommand(t)
}

func TestThermostatPeriodicEvaluationRetries(t *testing.T) {
	p := spawnThermostat(t, ThermostatConfig{Mode: domain.ModeAuto, EvaluateInterval: 50 * time.Millisecond})

	p.observe(domain.Temperature{Celsius: 17})
	assert.Equal(t, domain.CommandOn, p.nextCommand(t))

	// the relay reports that the write did not take effect
	p.observe(domain.DeviceState{Device: "RELAY", Level: false})
	assert.Equal(t, domain.CommandOn, p.nextCommand(t))
}

func TestThermostatHealthReportsMode(t *testing.T) {
	p := spawnThermostat(t, ThermostatConfig{Mode: domain.ModeOff, EvaluateInterval: time.Hour})

	res, err := p.as.Root.RequestFuture(p.thermostat, domain.ActorHealthRequest{}, time.Second).Result()
	require.NoError(t, err)
	health := res.(domain.ActorHealthResponse)
	assert.Equal(t, domain.ACTOR_ID_THERMOSTAT, health.Id)
	assert.Equal(t, "OFF", health.State)
}
