package actor

import (
	"context"
	"fmt"
	"time"

	"github.com/berfenger/kal2mqtt/internal/core/domain"
	"github.com/berfenger/kal2mqtt/internal/core/port"
	. "github.com/berfenger/kal2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

const (
	DEFAULT_SENSOR_INTERVAL     = 300 * time.Second
	DEFAULT_SENSOR_WARMUP       = 1 * time.Millisecond
	DEFAULT_SENSOR_CONVERSION   = 13 * time.Millisecond
	DEFAULT_SENSOR_STEP_TIMEOUT = 2 * time.Second
)

type SensorConfig struct {
	// Name prefixes the telemetry keys, empty for none.
	Name        string
	Interval    time.Duration
	WarmUp      time.Duration
	Conversion  time.Duration
	StepTimeout time.Duration
}

func (c SensorConfig) withDefaults() SensorConfig {
	if c.Interval <= 0 {
		c.Interval = DEFAULT_SENSOR_INTERVAL
	}
	if c.WarmUp <= 0 {
		c.WarmUp = DEFAULT_SENSOR_WARMUP
	}
	if c.Conversion <= 0 {
		c.Conversion = DEFAULT_SENSOR_CONVERSION
	}
	if c.StepTimeout <= 0 {
		c.StepTimeout = DEFAULT_SENSOR_STEP_TIMEOUT
	}
	return c
}

// SensorActor polls one temperature/humidity sensor:
// idle -> wakingUp -> measuring -> reading -> sleeping -> idle.
type SensorActor struct {
	ActorWithStates
	id        string
	config    SensorConfig
	driver    port.SensorDriver
	sink      port.SampleSink
	scheduler *scheduler.TimerScheduler
	cycles    int
	failures  int
	logger    *zap.Logger
}

type sensorTick struct{}

type sensorDelayElapsed struct{}

type sensorStepResult struct {
	err error
}

type sensorReading struct {
	temperature float64
	humidity    float64
	err         error
}

type sensorIdentity struct {
	id  string
	err error
}

func NewSensorActor(config SensorConfig, driver port.SensorDriver, sink port.SampleSink, logger *zap.Logger) *SensorActor {
	id := domain.SensorActorId(config.Name)
	act := &SensorActor{
		id:     id,
		config: config.withDefaults(),
		driver: driver,
		sink:   sink,
		logger: ActorLogger(id, logger),
		ActorWithStates: ActorWithStates{
			Behavior: actor.NewBehavior(),
		},
	}
	act.Become(SensorIdleState{actor: act})
	return act
}

func (state *SensorActor) Receive(context actor.Context) {
	state.Behavior.Receive(context)
}

// receiveCommon handles the messages accepted in every state.
func (state *SensorActor) receiveCommon(ctx actor.Context) bool {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		RespondHealth(ctx, msg, state.id, true, state.StateName())
	case *actor.Stopped:
		if err := state.driver.Close(); err != nil {
			state.logger.Warn(fmt.Sprintf("sensor@%s could not close driver", state.StateName()), zap.Error(err))
		}
	case sensorIdentity:
		if msg.err != nil {
			state.logger.Warn("sensor@identify could not read device id", zap.Error(msg.err))
		} else {
			state.logger.Info("sensor@identify device id", zap.String("device_id", msg.id))
		}
	default:
		return false
	}
	return true
}

// runStep executes one driver step off the actor goroutine, bounded by the step timeout.
func (state *SensorActor) runStep(ctx actor.Context, step func(context.Context) error) {
	timeout := state.config.StepTimeout
	NewBackgroundTask(ctx, func() (*sensorStepResult, error) {
		stepCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return &sensorStepResult{err: step(stepCtx)}, nil
	}).WithTimeout(timeout).Recover(func(err error) sensorStepResult {
		return sensorStepResult{err: err}
	}).PipeTo(ctx.Self())
}

func (state *SensorActor) identify(ctx actor.Context) {
	identifier, ok := state.driver.(port.Identifier)
	if !ok {
		return
	}
	timeout := state.config.StepTimeout
	NewBackgroundTask(ctx, func() (*sensorIdentity, error) {
		idCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		id, err := identifier.DeviceIdentifier(idCtx)
		return &sensorIdentity{id: id, err: err}, nil
	}).WithTimeout(timeout).Recover(func(err error) sensorIdentity {
		return sensorIdentity{err: err}
	}).PipeTo(ctx.Self())
}

// Idle state

type SensorIdleState struct {
	ActorState
	actor *SensorActor
}

func (state SensorIdleState) Name() string {
	return "idle"
}

func (state SensorIdleState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.actor.logger.Debug("sensor@idle started")
		state.actor.scheduler = scheduler.NewTimerScheduler(ctx)
		state.actor.identify(ctx)
		ctx.Send(ctx.Self(), sensorTick{})
	case sensorTick:
		state.actor.cycles++
		state.actor.logger.Debug("sensor@idle read humidity and temperature",
			zap.Int("cycle", state.actor.cycles), zap.Int("failures", state.actor.failures))
		state.actor.Become(SensorWakingUpState{actor: state.actor}.OnEnter(ctx))
	default:
		if !state.actor.receiveCommon(ctx) {
			state.actor.logger.Debug("sensor@idle recv", zap.String("type", fmt.Sprintf("%T", msg)))
		}
	}
}

func (state SensorIdleState) OnEnter(ctx actor.Context) SensorIdleState {
	state.actor.scheduler.SendOnce(state.actor.config.Interval, ctx.Self(), sensorTick{})
	return state
}

// WakingUp state

type SensorWakingUpState struct {
	ActorState
	actor *SensorActor
}

func (state SensorWakingUpState) Name() string {
	return "wakingUp"
}

func (state SensorWakingUpState) OnEnter(ctx actor.Context) SensorWakingUpState {
	state.actor.runStep(ctx, state.actor.driver.WakeUp)
	return state
}

func (state SensorWakingUpState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case sensorStepResult:
		if msg.err != nil {
			state.actor.failures++
			state.actor.logger.Error("sensor@wakingUp wake up failed", zap.Error(msg.err))
			state.actor.Become(SensorSleepingState{actor: state.actor}.OnEnter(ctx))
			return
		}
		state.actor.scheduler.SendOnce(state.actor.config.WarmUp, ctx.Self(), sensorDelayElapsed{})
	case sensorDelayElapsed:
		state.actor.Become(SensorMeasuringState{actor: state.actor}.OnEnter(ctx))
	default:
		if !state.actor.receiveCommon(ctx) {
			state.actor.logger.Debug("sensor@wakingUp recv", zap.String("type", fmt.Sprintf("%T", msg)))
		}
	}
}

// Measuring state

type SensorMeasuringState struct {
	ActorState
	actor *SensorActor
}

func (state SensorMeasuringState) Name() string {
	return "measuring"
}

func (state SensorMeasuringState) OnEnter(ctx actor.Context) SensorMeasuringState {
	state.actor.runStep(ctx, state.actor.driver.StartMeasurement)
	return state
}

func (state SensorMeasuringState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case sensorStepResult:
		if msg.err != nil {
			state.actor.failures++
			state.actor.logger.Error("sensor@measuring start measurement failed", zap.Error(msg.err))
			state.actor.Become(SensorSleepingState{actor: state.actor}.OnEnter(ctx))
			return
		}
		state.actor.scheduler.SendOnce(state.actor.config.Conversion, ctx.Self(), sensorDelayElapsed{})
	case sensorDelayElapsed:
		state.actor.Become(SensorReadingState{actor: state.actor}.OnEnter(ctx))
	default:
		if !state.actor.receiveCommon(ctx) {
			state.actor.logger.Debug("sensor@measuring recv", zap.String("type", fmt.Sprintf("%T", msg)))
		}
	}
}

// Reading state

type SensorReadingState struct {
	ActorState
	actor *SensorActor
}

func (state SensorReadingState) Name() string {
	return "reading"
}

func (state SensorReadingState) OnEnter(ctx actor.Context) SensorReadingState {
	driver := state.actor.driver
	timeout := state.actor.config.StepTimeout
	NewBackgroundTask(ctx, func() (*sensorReading, error) {
		readCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		temperature, humidity, err := driver.ReadMeasurement(readCtx)
		return &sensorReading{temperature: temperature, humidity: humidity, err: err}, nil
	}).WithTimeout(timeout).Recover(func(err error) sensorReading {
		return sensorReading{err: err}
	}).PipeTo(ctx.Self())
	return state
}

func (state SensorReadingState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case sensorReading:
		if msg.err != nil {
			state.actor.failures++
			state.actor.logger.Error("sensor@reading can't read sensor data", zap.Error(msg.err))
		} else {
			state.actor.logger.Debug("sensor@reading measurement",
				zap.Float64("temperature", msg.temperature), zap.Float64("humidity", msg.humidity))
			state.actor.sink.Enqueue(domain.Humidity{Sensor: state.actor.config.Name, Percent: msg.humidity})
			state.actor.sink.Enqueue(domain.Temperature{Sensor: state.actor.config.Name, Celsius: msg.temperature})
		}
		state.actor.Become(SensorSleepingState{actor: state.actor}.OnEnter(ctx))
	default:
		if !state.actor.receiveCommon(ctx) {
			state.actor.logger.Debug("sensor@reading recv", zap.String("type", fmt.Sprintf("%T", msg)))
		}
	}
}

// Sleeping state

type SensorSleepingState struct {
	ActorState
	actor *SensorActor
}

func (state SensorSleepingState) Name() string {
	return "sleeping"
}

func (state SensorSleepingState) OnEnter(ctx actor.Context) SensorSleepingState {
	state.actor.runStep(ctx, state.actor.driver.Sleep)
	return state
}

func (state SensorSleepingState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case sensorStepResult:
		if msg.err != nil {
			state.actor.logger.Warn("sensor@sleeping sleep failed", zap.Error(msg.err))
		}
		state.actor.Become(SensorIdleState{actor: state.actor}.OnEnter(ctx))
	default:
		if !state.actor.receiveCommon(ctx) {
			state.actor.logger.Debug("sensor@sleeping recv", zap.String("type", fmt.Sprintf("%T", msg)))
		}
	}
}
