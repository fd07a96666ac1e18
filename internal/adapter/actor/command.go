package actor

import (
	"context"
	"fmt"
	"time"

	"github.com/berfenger/kal2mqtt/internal/core/codec"
	"github.com/berfenger/kal2mqtt/internal/core/domain"
	"github.com/berfenger/kal2mqtt/internal/core/port"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

// CommandRouter binds command topics to actor mailboxes.
type CommandRouter struct {
	transport    port.Transport
	topics       domain.Topics
	root         *actor.RootContext
	queryTimeout time.Duration
	logger       *zap.Logger
}

func NewCommandRouter(transport port.Transport, topics domain.Topics, root *actor.RootContext, queryTimeout time.Duration, logger *zap.Logger) *CommandRouter {
	return &CommandRouter{
		transport:    transport,
		topics:       topics,
		root:         root,
		queryTimeout: queryTimeout,
		logger:       logger.With(zap.String("component", "router")),
	}
}

// BindDevice delivers the last retained command of key to pid, then subscribes to live commands.
func (r *CommandRouter) BindDevice(ctx context.Context, key string, decoder codec.CommandDecoder, pid *actor.PID) error {
	return r.bind(ctx, key, r.commandHandler(key, decoder, pid))
}

// BindMode routes thermostat mode payloads to pid as SetModeRequest.
func (r *CommandRouter) BindMode(ctx context.Context, pid *actor.PID) error {
	return r.bind(ctx, domain.KEY_MODE, r.modeHandler(pid))
}

func (r *CommandRouter) bind(ctx context.Context, key string, handler func([]byte)) error {
	topic := r.topics.Command(key)
	payload, ok, err := r.transport.Query(ctx, topic, r.queryTimeout)
	if err != nil {
		return fmt.Errorf("query %s: %w", topic, err)
	}
	if ok {
		r.logger.Info("router@startup recovered retained command", zap.String("topic", topic), zap.ByteString("payload", payload))
		handler(payload)
	}
	if err := r.transport.Subscribe(topic, handler); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	return nil
}

func (r *CommandRouter) commandHandler(key string, decoder codec.CommandDecoder, pid *actor.PID) func([]byte) {
	return func(payload []byte) {
		cmd, err := decoder.Decode(payload)
		if err != nil {
			r.logger.Warn("router@command dropped payload", zap.String("key", key), zap.String("policy", decoder.Policy()), zap.Error(err))
			return
		}
		r.logger.Debug("router@command", zap.String("key", key), zap.Stringer("command", cmd))
		// blocks while the device inbox is full
		r.root.Send(pid, cmd)
	}
}

func (r *CommandRouter) modeHandler(pid *actor.PID) func([]byte) {
	return func(payload []byte) {
		mode, err := codec.DecodeMode(payload)
		if err != nil {
			r.logger.Warn("router@mode dropped payload", zap.Error(err))
			return
		}
		r.logger.Debug("router@mode", zap.Stringer("mode", mode))
		r.root.Send(pid, domain.SetModeRequest{Mode: mode})
	}
}
