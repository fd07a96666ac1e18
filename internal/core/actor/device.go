package actor

import (
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
	DEFAULT_HEARTBEAT      = 300 * time.Second
	DEFAULT_INBOX_CAPACITY = 5
)

type DeviceConfig struct {
	Key           string
	Heartbeat     time.Duration
	InitialLevel  bool
	InboxCapacity int
}

// DeviceActor owns one hardware output. It is the only writer of the output level.
type DeviceActor struct {
	config    DeviceConfig
	output    port.Output
	sink      port.SampleSink
	scheduler *scheduler.TimerScheduler
	level     bool
	heartbeat deviceHeartbeat
	cancel    scheduler.CancelFunc
	logger    *zap.Logger
}

type deviceHeartbeat struct {
	seq uint64
}

func NewDeviceActor(config DeviceConfig, output port.Output, sink port.SampleSink, logger *zap.Logger) *DeviceActor {
	if config.Heartbeat <= 0 {
		config.Heartbeat = DEFAULT_HEARTBEAT
	}
	return &DeviceActor{
		config: config,
		output: output,
		sink:   sink,
		level:  config.InitialLevel,
		logger: ActorLogger(domain.DeviceActorId(config.Key), logger),
	}
}

// DeviceProps spawns the actor with a bounded mailbox acting as its command inbox.
// Senders block while the inbox is full.
func DeviceProps(config DeviceConfig, output port.Output, sink port.SampleSink, logger *zap.Logger, opts ...actor.PropsOption) *actor.Props {
	capacity := config.InboxCapacity
	if capacity <= 0 {
		capacity = DEFAULT_INBOX_CAPACITY
	}
	opts = append([]actor.PropsOption{actor.WithMailbox(actor.Bounded(capacity))}, opts...)
	return actor.PropsFromProducer(func() actor.Actor {
		return NewDeviceActor(config, output, sink, logger)
	}, opts...)
}

func (state *DeviceActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("device@running started", zap.Bool("level", state.level))
		state.scheduler = scheduler.NewTimerScheduler(ctx)
		if err := state.output.Set(state.level); err != nil {
			state.logger.Error("device@running could not apply initial level", zap.Error(err))
		}
		state.publish(ctx)
	case domain.Command:
		next := msg.Apply(state.level)
		state.logger.Debug("device@running command", zap.Stringer("command", msg), zap.Bool("from", state.level), zap.Bool("to", next))
		if err := state.output.Set(next); err != nil {
			state.logger.Error("device@running hardware write failed", zap.Stringer("command", msg), zap.Error(err))
		} else {
			state.level = next
		}
		state.publish(ctx)
	case deviceHeartbeat:
		if msg != state.heartbeat {
			return
		}
		state.logger.Debug("device@running heartbeat", zap.Bool("level", state.level))
		state.publish(ctx)
	case domain.ActorHealthRequest:
		RespondHealth(ctx, msg, domain.DeviceActorId(state.config.Key), true, domain.LevelPayload(state.level))
	case *actor.Stopping:
		state.stopHeartbeat()
	case *actor.Restarting:
		state.stopHeartbeat()
	case *actor.Stopped:
		if err := state.output.Close(); err != nil {
			state.logger.Warn("device@stopped could not close output", zap.Error(err))
		}
	default:
		state.logger.Debug("device@running recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// publish emits the current level and re-arms the heartbeat.
func (state *DeviceActor) publish(ctx actor.Context) {
	state.sink.Enqueue(domain.DeviceState{
		Device: state.config.Key,
		Level:  state.level,
	})
	state.stopHeartbeat()
	state.heartbeat = deviceHeartbeat{seq: state.heartbeat.seq + 1}
	state.cancel = state.scheduler.SendOnce(state.config.Heartbeat, ctx.Self(), state.heartbeat)
}

func (state *DeviceActor) stopHeartbeat() {
	if state.cancel != nil {
		state.cancel()
		state.cancel = nil
	}
}
