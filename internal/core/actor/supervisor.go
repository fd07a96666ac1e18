package actor

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/berfenger/kal2mqtt/internal/core/domain"
	"github.com/berfenger/kal2mqtt/internal/core/port"
	. "github.com/berfenger/kal2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

const (
	CHILD_HEALTH_TIMEOUT = 500 * time.Millisecond
	HEALTH_CHECK_TIMEOUT = 1 * time.Second
)

type DeviceChild struct {
	Config DeviceConfig
	Output port.Output
}

type SensorChild struct {
	Config SensorConfig
	Driver port.SensorDriver
}

type NetworkChild struct {
	Config NetworkConfig
	Radio  port.Radio
}

type ThermostatChild struct {
	Config ThermostatConfig
	Logic  port.ScheduleLogic
}

// Children lists the task actors to run. Network and Thermostat are optional.
type Children struct {
	Devices    []DeviceChild
	Sensors    []SensorChild
	Network    *NetworkChild
	Thermostat *ThermostatChild
}

type SupervisorActor struct {
	children Children
	sink     port.SampleSink
	behavior actor.Behavior
	stash    *Stash

	pids               map[string]*actor.PID
	currentHealthCheck healthCheckResult
	logger             *zap.Logger
}

type healthCheckResult struct {
	round     uint64
	expected  int
	responses map[string]domain.ActorHealthResponse
	respondTo *actor.PID
}

// childHealth is a child's answer tagged with the health check round that asked for it.
type childHealth struct {
	round    uint64
	id       string
	response domain.ActorHealthResponse
}

func NewSupervisorActor(children Children, sink port.SampleSink, logger *zap.Logger) *SupervisorActor {
	act := &SupervisorActor{
		children: children,
		sink:     sink,
		behavior: actor.NewBehavior(),
		stash:    &Stash{},
		pids:     make(map[string]*actor.PID),
		logger:   ActorLogger(domain.ACTOR_ID_SUPERVISOR, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *SupervisorActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *SupervisorActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("supervisor@starting started")

		for _, device := range state.children.Devices {
			if _, err := state.startDeviceActor(ctx, device); err != nil {
				panic(err)
			}
		}
		for _, sensor := range state.children.Sensors {
			if _, err := state.startSensorActor(ctx, sensor); err != nil {
				panic(err)
			}
		}
		if state.children.Network != nil {
			if _, err := state.startNetworkActor(ctx, *state.children.Network); err != nil {
				panic(err)
			}
		}
		if state.children.Thermostat != nil {
			if _, err := state.startThermostatActor(ctx, *state.children.Thermostat); err != nil {
				panic(err)
			}
		}

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("supervisor@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx)
	}
}

func (state *SupervisorActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("supervisor@default ActorHealthRequest")
		round := state.currentHealthCheck.begin(len(state.pids))
		state.currentHealthCheck.respondTo = ForRequest(msg).ReplyTo(ctx)
		if len(state.pids) == 0 {
			state.currentHealthCheck.respond(ctx)
			return
		}
		for id, pid := range state.pids {
			childId := id
			ctx.ReenterAfter(ctx.RequestFuture(pid, domain.ActorHealthRequest{}, CHILD_HEALTH_TIMEOUT), func(res any, err error) {
				response, ok := res.(domain.ActorHealthResponse)
				if err != nil || !ok {
					response = domain.ActorHealthResponse{
						ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: err},
						Id:                 childId,
						Healthy:            false,
					}
				}
				ctx.Send(ctx.Self(), childHealth{round: round, id: childId, response: response})
			})
		}
		ctx.SetReceiveTimeout(HEALTH_CHECK_TIMEOUT)
		state.behavior.BecomeStacked(state.HealthCheckReceive)
	case domain.GetChildrenRequest:
		children := make(map[string]*actor.PID, len(state.pids))
		for id, pid := range state.pids {
			children[id] = pid
		}
		ForRequest(msg).Respond(ctx, domain.GetChildrenResponse{Children: children})
	case childHealth:
		state.logger.Debug("supervisor@default late child health dropped", zap.String("child", msg.id), zap.Uint64("round", msg.round))
	case *actor.Terminated:
		state.logger.Error("supervisor@default child terminated", zap.String("child", msg.Who.Id))
		for id, pid := range state.pids {
			if pid.Equal(msg.Who) {
				delete(state.pids, id)
			}
		}
	default:
		state.logger.Debug("supervisor@default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *SupervisorActor) HealthCheckReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.ReceiveTimeout:
		// children that did not answer are reported unhealthy
		state.logger.Warn("supervisor@healthcheck timeout", zap.Int("received", len(state.currentHealthCheck.responses)))
		state.finishHealthCheck(ctx)
	case childHealth:
		if !state.currentHealthCheck.accept(msg) {
			state.logger.Debug("supervisor@healthcheck stale child health dropped", zap.String("child", msg.id), zap.Uint64("round", msg.round))
			return
		}
		state.logger.Debug("supervisor@healthcheck child health", zap.String("child", msg.id), zap.Bool("healthy", msg.response.Healthy))
		if state.currentHealthCheck.allReceived() {
			state.finishHealthCheck(ctx)
		}
	default:
		state.logger.Debug("supervisor@healthcheck stash", zap.String("type", fmt.Sprintf("%T", msg)), zap.Int("stashed", state.stash.Len()+1))
		state.stash.Stash(ctx)
	}
}

func (state *SupervisorActor) finishHealthCheck(ctx actor.Context) {
	ctx.CancelReceiveTimeout()
	state.currentHealthCheck.respond(ctx)
	state.behavior.UnbecomeStacked()
	state.stash.UnstashAll(ctx)
}

func childStrategy() actor.SupervisorStrategy {
	decider := func(reason interface{}) actor.Directive {
		return actor.RestartDirective
	}
	return actor.NewOneForOneStrategy(10, 10*time.Second, decider)
}

func (state *SupervisorActor) spawn(ctx actor.Context, id string, props *actor.Props) (*actor.PID, error) {
	pid, err := ctx.SpawnNamed(props, id)
	if err != nil {
		return nil, fmt.Errorf("could not spawn %s: %w", id, err)
	}
	state.pids[id] = pid
	return pid, nil
}

func (state *SupervisorActor) startDeviceActor(ctx actor.Context, child DeviceChild) (*actor.PID, error) {
	props := DeviceProps(child.Config, child.Output, state.sink, state.logger, actor.WithSupervisor(childStrategy()))
	return state.spawn(ctx, domain.DeviceActorId(child.Config.Key), props)
}

func (state *SupervisorActor) startSensorActor(ctx actor.Context, child SensorChild) (*actor.PID, error) {
	props := actor.PropsFromProducer(func() actor.Actor {
		return NewSensorActor(child.Config, child.Driver, state.sink, state.logger)
	}, actor.WithSupervisor(childStrategy()))
	return state.spawn(ctx, domain.SensorActorId(child.Config.Name), props)
}

func (state *SupervisorActor) startNetworkActor(ctx actor.Context, child NetworkChild) (*actor.PID, error) {
	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)
	props := actor.PropsFromProducer(func() actor.Actor {
		return NewNetworkActor(child.Config, child.Radio, state.logger)
	}, actor.WithSupervisor(supervisor))
	return state.spawn(ctx, domain.ACTOR_ID_NETWORK, props)
}

func (state *SupervisorActor) startThermostatActor(ctx actor.Context, child ThermostatChild) (*actor.PID, error) {
	relay, ok := state.pids[domain.DeviceActorId(child.Config.Relay)]
	if !ok {
		return nil, fmt.Errorf("thermostat relay %q is not a configured output", child.Config.Relay)
	}
	props := actor.PropsFromProducer(func() actor.Actor {
		return NewThermostatActor(child.Config, child.Logic, relay, state.sink, state.logger)
	}, actor.WithSupervisor(childStrategy()))
	return state.spawn(ctx, domain.ACTOR_ID_THERMOSTAT, props)
}

// begin starts a new round and returns its number.
func (state *healthCheckResult) begin(expected int) uint64 {
	state.round++
	state.expected = expected
	state.responses = make(map[string]domain.ActorHealthResponse, expected)
	state.respondTo = nil
	return state.round
}

// accept records a child answer of the current round. Answers from earlier rounds are rejected.
func (state *healthCheckResult) accept(msg childHealth) bool {
	if msg.round != state.round {
		return false
	}
	state.responses[msg.id] = msg.response
	return true
}

func (state *healthCheckResult) allReceived() bool {
	return len(state.responses) >= state.expected
}

func (state *healthCheckResult) allHealthy() bool {
	if !state.allReceived() {
		return false
	}
	for _, resp := range state.responses {
		if !resp.Healthy {
			return false
		}
	}
	return true
}

// summary renders "id=state" pairs in a stable order.
func (state *healthCheckResult) summary() string {
	ids := make([]string, 0, len(state.responses))
	for id := range state.responses {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("%s=%s", id, state.responses[id].State))
	}
	return strings.Join(parts, " ")
}

func (state *healthCheckResult) respond(ctx actor.Context) {
	resp := domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_SUPERVISOR,
		Healthy: state.allHealthy(),
		State:   state.summary(),
	}
	if state.respondTo != nil {
		ctx.Send(state.respondTo, resp)
	}
}
