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
	DEFAULT_SCAN_MAX        = 10
	DEFAULT_BACKOFF         = 5 * time.Second
	DEFAULT_RECONNECT_DELAY = 5 * time.Second
)

type NetworkConfig struct {
	Credentials    port.Credentials
	ScanMax        int
	Backoff        time.Duration
	ReconnectDelay time.Duration
}

// NetworkActor keeps the wireless session up: down -> starting -> scanning -> connecting -> connected.
// Any failure waits a fixed backoff and starts over.
type NetworkActor struct {
	ActorWithStates
	config    NetworkConfig
	radio     port.Radio
	scheduler *scheduler.TimerScheduler
	runCtx    context.Context
	cancel    context.CancelFunc
	linkState domain.LinkState
	attempts  int
	logger    *zap.Logger
}

type networkRetry struct{}

type radioStarted struct {
	err error
}

type radioScanned struct {
	accessPoints []domain.AccessPoint
	err          error
}

type radioConnected struct {
	err error
}

type radioDisconnected struct {
	err error
}

func NewNetworkActor(config NetworkConfig, radio port.Radio, logger *zap.Logger) *NetworkActor {
	if config.ScanMax <= 0 {
		config.ScanMax = DEFAULT_SCAN_MAX
	}
	if config.Backoff <= 0 {
		config.Backoff = DEFAULT_BACKOFF
	}
	if config.ReconnectDelay <= 0 {
		config.ReconnectDelay = DEFAULT_RECONNECT_DELAY
	}
	act := &NetworkActor{
		config:    config,
		radio:     radio,
		linkState: domain.LinkDown,
		logger:    ActorLogger(domain.ACTOR_ID_NETWORK, logger),
		ActorWithStates: ActorWithStates{
			Behavior: actor.NewBehavior(),
		},
	}
	act.Become(NetDownState{actor: act})
	return act
}

func (state *NetworkActor) Receive(context actor.Context) {
	state.Behavior.Receive(context)
}

func (state *NetworkActor) enter(linkState domain.LinkState, next ActorState) {
	state.logger.Debug("network@" + next.Name() + " enter")
	state.linkState = linkState
	state.Become(next)
}

func (state *NetworkActor) receiveCommon(ctx actor.Context) bool {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		RespondHealth(ctx, msg, domain.ACTOR_ID_NETWORK, true, state.linkState.String())
	case *actor.Stopping:
		if state.cancel != nil {
			state.cancel()
		}
	case *actor.Restarting:
		if state.cancel != nil {
			state.cancel()
		}
	default:
		return false
	}
	return true
}

// retryAfter parks the session in down and restarts it after delay.
func (state *NetworkActor) retryAfter(ctx actor.Context, delay time.Duration) {
	state.enter(domain.LinkDown, NetDownState{actor: state})
	state.logger.Info("network@down retrying", zap.Duration("delay", delay))
	state.scheduler.SendOnce(delay, ctx.Self(), networkRetry{})
}

// Down state

type NetDownState struct {
	ActorState
	actor *NetworkActor
}

func (state NetDownState) Name() string {
	return "down"
}

func (state NetDownState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.actor.logger.Debug("network@down started")
		state.actor.scheduler = scheduler.NewTimerScheduler(ctx)
		state.actor.runCtx, state.actor.cancel = context.WithCancel(context.Background())
		NetStartingState{actor: state.actor}.Enter(ctx)
	case networkRetry:
		NetStartingState{actor: state.actor}.Enter(ctx)
	default:
		if !state.actor.receiveCommon(ctx) {
			state.actor.logger.Debug("network@down recv", zap.String("type", fmt.Sprintf("%T", msg)))
		}
	}
}

// Starting state

type NetStartingState struct {
	ActorState
	actor *NetworkActor
}

func (state NetStartingState) Name() string {
	return "starting"
}

func (state NetStartingState) Enter(ctx actor.Context) {
	act := state.actor
	act.attempts++
	act.enter(domain.LinkStarting, state)
	radio, creds, runCtx := act.radio, act.config.Credentials, act.runCtx
	NewBackgroundTaskNoError(ctx, func() *radioStarted {
		if radio.IsStarted() {
			return &radioStarted{}
		}
		if err := radio.Configure(runCtx, creds); err != nil {
			return &radioStarted{err: err}
		}
		return &radioStarted{err: radio.Start(runCtx)}
	}).PipeTo(ctx.Self())
}

func (state NetStartingState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case radioStarted:
		if msg.err != nil {
			state.actor.logger.Error("network@starting could not start radio", zap.Error(msg.err))
			state.actor.retryAfter(ctx, state.actor.config.Backoff)
			return
		}
		NetScanningState{actor: state.actor}.Enter(ctx)
	default:
		if !state.actor.receiveCommon(ctx) {
			state.actor.logger.Debug("network@starting recv", zap.String("type", fmt.Sprintf("%T", msg)))
		}
	}
}

// Scanning state

type NetScanningState struct {
	ActorState
	actor *NetworkActor
}

func (state NetScanningState) Name() string {
	return "scanning"
}

func (state NetScanningState) Enter(ctx actor.Context) {
	act := state.actor
	act.enter(domain.LinkScanning, state)
	radio, scanMax, runCtx := act.radio, act.config.ScanMax, act.runCtx
	NewBackgroundTaskNoError(ctx, func() *radioScanned {
		aps, err := radio.Scan(runCtx, scanMax)
		return &radioScanned{accessPoints: aps, err: err}
	}).PipeTo(ctx.Self())
}

func (state NetScanningState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case radioScanned:
		ssid := state.actor.config.Credentials.SSID
		if msg.err != nil {
			state.actor.logger.Warn("network@scanning scan failed", zap.Error(msg.err))
		} else {
			found := false
			for _, ap := range msg.accessPoints {
				state.actor.logger.Info("network@scanning access point",
					zap.String("ssid", ap.SSID), zap.String("bssid", ap.BSSID), zap.Int("signal", ap.Signal))
				if ap.SSID == ssid {
					found = true
				}
			}
			if !found {
				state.actor.logger.Warn("network@scanning configured ssid not found", zap.String("ssid", ssid))
			}
		}
		NetConnectingState{actor: state.actor}.Enter(ctx)
	default:
		if !state.actor.receiveCommon(ctx) {
			state.actor.logger.Debug("network@scanning recv", zap.String("type", fmt.Sprintf("%T", msg)))
		}
	}
}

// Connecting state

type NetConnectingState struct {
	ActorState
	actor *NetworkActor
}

func (state NetConnectingState) Name() string {
	return "connecting"
}

func (state NetConnectingState) Enter(ctx actor.Context) {
	act := state.actor
	act.enter(domain.LinkConnecting, state)
	radio, runCtx := act.radio, act.runCtx
	NewBackgroundTaskNoError(ctx, func() *radioConnected {
		return &radioConnected{err: radio.Connect(runCtx)}
	}).PipeTo(ctx.Self())
}

func (state NetConnectingState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case radioConnected:
		if msg.err != nil {
			state.actor.logger.Error("network@connecting failed to connect", zap.Error(msg.err))
			state.actor.retryAfter(ctx, state.actor.config.Backoff)
			return
		}
		NetConnectedState{actor: state.actor}.Enter(ctx)
	default:
		if !state.actor.receiveCommon(ctx) {
			state.actor.logger.Debug("network@connecting recv", zap.String("type", fmt.Sprintf("%T", msg)))
		}
	}
}

// Connected state

type NetConnectedState struct {
	ActorState
	actor *NetworkActor
}

func (state NetConnectedState) Name() string {
	return "connected"
}

func (state NetConnectedState) Enter(ctx actor.Context) {
	act := state.actor
	act.enter(domain.LinkConnected, state)
	act.logger.Info("network@connected wifi connected", zap.String("ssid", act.config.Credentials.SSID), zap.Int("attempts", act.attempts))
	act.attempts = 0
	radio, runCtx := act.radio, act.runCtx
	NewBackgroundTaskNoError(ctx, func() *radioDisconnected {
		return &radioDisconnected{err: radio.WaitForDisconnect(runCtx)}
	}).PipeTo(ctx.Self())
}

func (state NetConnectedState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case radioDisconnected:
		state.actor.logger.Warn("network@connected disconnected", zap.NamedError("reason", msg.err))
		state.actor.retryAfter(ctx, state.actor.config.ReconnectDelay)
	default:
		if !state.actor.receiveCommon(ctx) {
			state.actor.logger.Debug("network@connected recv", zap.String("type", fmt.Sprintf("%T", msg)))
		}
	}
}
