package port

import (
	"context"
	"time"

	"github.com/berfenger/kal2mqtt/internal/core/domain"
)

// Transport is the publish/subscribe session.
type Transport interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(topic string, handler func(payload []byte)) error
	// Query returns the last value held for topic, if one arrives within timeout.
	Query(ctx context.Context, topic string, timeout time.Duration) ([]byte, bool, error)
}

// SampleRecorder persists published samples.
type SampleRecorder interface {
	Record(ctx context.Context, sample domain.Sample) error
}

// SampleObserver is notified of every published sample. Observe must not block.
type SampleObserver interface {
	Observe(sample domain.Sample)
}

// StateStore keeps the last known level of each output and the thermostat mode.
type StateStore interface {
	LoadLevel(ctx context.Context, device string) (bool, error)
	LoadMode(ctx context.Context) (domain.Mode, error)
}

// SampleSink accepts samples for publication. Enqueue blocks while the sink is full.
type SampleSink interface {
	Enqueue(sample domain.Sample)
}
