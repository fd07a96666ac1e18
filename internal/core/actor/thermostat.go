package actor

import (
	"context"
	"fmt"
	"time"

	"github.com/berfenger/kal2mqtt/internal/core/domain"
	"github.com/berfenger/kal2mqtt/internal/core/port"
	. "github.com/berfenger/kal2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/reugn/go-quartz/quartz"
	"go.uber.org/zap"
)

const DEFAULT_EVALUATE_INTERVAL = 60 * time.Second

type ThermostatConfig struct {
	// Relay is the device key driven by the thermostat.
	Relay string
	// Sensor is the name of the sensor whose temperature is used.
	Sensor           string
	Mode             domain.Mode
	EvaluateInterval time.Duration
	Clock            func() time.Time
}

// ThermostatActor drives the relay from the schedule. It only ever talks to the
// relay through its command inbox.
type ThermostatActor struct {
	config      ThermostatConfig
	logic       port.ScheduleLogic
	relay       *actor.PID
	sink        port.SampleSink
	scheduler   quartz.Scheduler
	mode        domain.Mode
	temperature float64
	hasReading  bool
	relayLevel  bool
	logger      *zap.Logger
}

type thermostatEvaluate struct{}

// evaluateJob is fired by the quartz scheduler outside of the actor.
type evaluateJob struct {
	root *actor.RootContext
	self *actor.PID
}

func (j *evaluateJob) Execute(_ context.Context) error {
	j.root.Send(j.self, thermostatEvaluate{})
	return nil
}

func (j *evaluateJob) Description() string {
	return fmt.Sprintf("thermostat-evaluate-%s", j.self.Id)
}

func NewThermostatActor(config ThermostatConfig, logic port.ScheduleLogic, relay *actor.PID, sink port.SampleSink, logger *zap.Logger) *ThermostatActor {
	if config.EvaluateInterval <= 0 {
		config.EvaluateInterval = DEFAULT_EVALUATE_INTERVAL
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}
	return &ThermostatActor{
		config: config,
		logic:  logic,
		relay:  relay,
		sink:   sink,
		mode:   config.Mode,
		logger: ActorLogger(domain.ACTOR_ID_THERMOSTAT, logger),
	}
}

func (state *ThermostatActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("thermostat@running started", zap.Stringer("mode", state.mode))
		if err := state.startTrigger(ctx); err != nil {
			state.logger.Error("thermostat@running could not schedule evaluation", zap.Error(err))
			panic(err)
		}
		state.sink.Enqueue(domain.ModeState{Mode: state.mode})
	case domain.SampleObserved:
		state.observe(ctx, msg.Sample)
	case thermostatEvaluate:
		state.evaluate(ctx)
	case domain.SetModeRequest:
		state.setMode(ctx, msg.Mode)
		ForRequest(msg).Respond(ctx, domain.SetModeResponse{Mode: state.mode})
	case domain.ActorHealthRequest:
		RespondHealth(ctx, msg, domain.ACTOR_ID_THERMOSTAT, true, state.mode.String())
	case *actor.Stopping:
		state.stopTrigger()
	case *actor.Restarting:
		state.stopTrigger()
	default:
		state.logger.Debug("thermostat@running recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *ThermostatActor) startTrigger(ctx actor.Context) error {
	sched := quartz.NewStdScheduler()
	job := &evaluateJob{root: ctx.ActorSystem().Root, self: ctx.Self()}
	detail := quartz.NewJobDetail(job, quartz.NewJobKey(job.Description()))
	sched.Start(context.Background())
	if err := sched.ScheduleJob(detail, quartz.NewSimpleTrigger(state.config.EvaluateInterval)); err != nil {
		sched.Stop()
		return err
	}
	state.scheduler = sched
	return nil
}

func (state *ThermostatActor) stopTrigger() {
	if state.scheduler != nil {
		state.scheduler.Stop()
		state.scheduler = nil
	}
}

func (state *ThermostatActor) observe(ctx actor.Context, sample domain.Sample) {
	switch s := sample.(type) {
	case domain.Temperature:
		if s.Sensor != state.config.Sensor {
			return
		}
		state.temperature = s.Celsius
		state.hasReading = true
		state.evaluate(ctx)
	case domain.DeviceState:
		if s.Device == state.config.Relay {
			state.relayLevel = s.Level
		}
	}
}

func (state *ThermostatActor) setMode(ctx actor.Context, mode domain.Mode) {
	if mode == state.mode {
		return
	}
	state.logger.Info("thermostat@running mode changed", zap.Stringer("from", state.mode), zap.Stringer("to", mode))
	state.mode = mode
	state.sink.Enqueue(domain.ModeState{Mode: mode})
	switch mode {
	case domain.ModeOn:
		state.command(ctx, true)
	case domain.ModeOff:
		state.command(ctx, false)
	default:
		state.evaluate(ctx)
	}
}

// evaluate applies the schedule in auto mode. Without a temperature reading the relay is left alone.
func (state *ThermostatActor) evaluate(ctx actor.Context) {
	if state.mode != domain.ModeAuto || !state.hasReading {
		return
	}
	now := state.config.Clock()
	desired := state.logic.Decide(now, state.temperature, state.mode, state.relayLevel)
	state.logger.Debug("thermostat@running evaluate",
		zap.Float64("temperature", state.temperature), zap.Bool("relay", state.relayLevel), zap.Bool("desired", desired))
	if desired != state.relayLevel {
		state.command(ctx, desired)
	}
}

func (state *ThermostatActor) command(ctx actor.Context, level bool) {
	cmd := domain.CommandFromLevel(level)
	state.logger.Info("thermostat@running relay command", zap.Stringer("command", cmd))
	state.relayLevel = level
	ctx.Send(state.relay, cmd)
}

// ActorObserver forwards published samples to an actor mailbox.
type ActorObserver struct {
	Root *actor.RootContext
	PID  *actor.PID
}

func (o ActorObserver) Observe(sample domain.Sample) {
	o.Root.Send(o.PID, domain.SampleObserved{Sample: sample})
}
