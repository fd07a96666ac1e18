package telemetry

import (
	"context"
	"errors"

	"github.com/berfenger/kal2mqtt/internal/core/domain"
	"github.com/berfenger/kal2mqtt/internal/core/port"

	"go.uber.org/zap"
)

const DEFAULT_CAPACITY = 3

var ErrHubClosed = errors.New("telemetry hub closed")

// Hub is the single bounded queue every producer pushes samples into.
// One consumer (Run) drains it in FIFO order and publishes each sample.
type Hub struct {
	queue     chan domain.Sample
	done      chan struct{}
	transport port.Transport
	topics    domain.Topics
	recorders []port.SampleRecorder
	observers []port.SampleObserver
	logger    *zap.Logger
}

type Option func(*Hub)

func WithRecorder(r port.SampleRecorder) Option {
	return func(h *Hub) {
		h.recorders = append(h.recorders, r)
	}
}

func WithObserver(o port.SampleObserver) Option {
	return func(h *Hub) {
		h.observers = append(h.observers, o)
	}
}

func NewHub(capacity int, transport port.Transport, topics domain.Topics, logger *zap.Logger, opts ...Option) *Hub {
	if capacity <= 0 {
		capacity = DEFAULT_CAPACITY
	}
	hub := &Hub{
		queue:     make(chan domain.Sample, capacity),
		done:      make(chan struct{}),
		transport: transport,
		topics:    topics,
		logger:    logger.With(zap.String("component", "telemetry")),
	}
	for _, opt := range opts {
		opt(hub)
	}
	return hub
}

// AddObserver must be called before Run.
func (h *Hub) AddObserver(o port.SampleObserver) {
	h.observers = append(h.observers, o)
}

// Enqueue blocks until the sample fits in the queue.
func (h *Hub) Enqueue(sample domain.Sample) {
	select {
	case h.queue <- sample:
	case <-h.done:
		h.logger.Debug("telemetry@closed dropped sample", zap.String("key", sample.Key()))
	}
}

// EnqueueContext is Enqueue bounded by ctx.
func (h *Hub) EnqueueContext(ctx context.Context, sample domain.Sample) error {
	select {
	case h.queue <- sample:
		return nil
	case <-h.done:
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) Capacity() int {
	return cap(h.queue)
}

func (h *Hub) Len() int {
	return len(h.queue)
}

// Run consumes the queue until ctx is done. Blocked producers are released on return.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sample := <-h.queue:
			h.publish(ctx, sample)
		}
	}
}

func (h *Hub) publish(ctx context.Context, sample domain.Sample) {
	topic := h.topics.Telemetry(sample.Key())
	payload := sample.Payload()
	h.logger.Debug("telemetry@publish", zap.String("topic", topic), zap.String("payload", payload))

	if err := h.transport.Publish(ctx, topic, []byte(payload)); err != nil {
		h.logger.Error("telemetry@publish could not publish sample", zap.String("topic", topic), zap.Error(err))
	}
	for _, r := range h.recorders {
		if err := r.Record(ctx, sample); err != nil {
			h.logger.Warn("telemetry@record could not record sample", zap.String("key", sample.Key()), zap.Error(err))
		}
	}
	for _, o := range h.observers {
		o.Observe(sample)
	}
}
