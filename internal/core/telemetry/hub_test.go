package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/berfenger/kal2mqtt/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type published struct {
	topic   string
	payload string
}

type fakeTransport struct {
	mu        sync.Mutex
	published []published
	failFirst bool
	calls     int
}

func (f *fakeTransport) Publish(ctx context.Context, topic string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failFirst && f.calls == 1 {
		return errors.New("broker gone")
	}
	f.published = append(f.published, published{topic: topic, payload: string(payload)})
	return nil
}

func (f *fakeTransport) Subscribe(topic string, handler func(payload []byte)) error {
	return nil
}

func (f *fakeTransport) Query(ctx context.Context, topic string, timeout time.Duration) ([]byte, bool, error) {
	return nil, false, nil
}

func (f *fakeTransport) snapshot() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]published(nil), f.published...)
}

type observerFunc func(domain.Sample)

func (f observerFunc) Observe(s domain.Sample) { f(s) }

type recorderFunc func(domain.Sample) error

func (f recorderFunc) Record(ctx context.Context, s domain.Sample) error { return f(s) }

var topics = domain.Topics{Device: "kal"}

func TestEnqueueBlocksWhenFull(t *testing.T) {
	hub := NewHub(3, &fakeTransport{}, topics, zap.NewNop())
	for i := 0; i < 3; i++ {
		hub.Enqueue(domain.DeviceState{Device: "RELAY", Level: true})
	}
	assert.Equal(t, 3, hub.Len())

	enqueued := make(chan struct{})
	go func() {
		hub.Enqueue(domain.DeviceState{Device: "LED", Level: false})
		close(enqueued)
	}()

	select {
	case <-enqueued:
		t.Fatal("fourth enqueue must block while the queue is full")
	case <-time.After(50 * time.Millisecond):
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	select {
	case <-enqueued:
	case <-time.After(time.Second):
		t.Fatal("fourth enqueue not released after consumer started")
	}
}

func TestEnqueueContextCancelled(t *testing.T) {
	hub := NewHub(1, &fakeTransport{}, topics, zap.NewNop())
	require.NoError(t, hub.EnqueueContext(context.Background(), domain.ModeState{Mode: domain.ModeAuto}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := hub.EnqueueContext(ctx, domain.ModeState{Mode: domain.ModeOn})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDefaultCapacity(t *testing.T) {
	hub := NewHub(0, &fakeTransport{}, topics, zap.NewNop())
	assert.Equal(t, DEFAULT_CAPACITY, hub.Capacity())
}

func TestPublishesInOrder(t *testing.T) {
	transport := &fakeTransport{}
	var observed []domain.Sample
	var mu sync.Mutex
	done := make(chan struct{})
	hub := NewHub(3, transport, topics, zap.NewNop(), WithObserver(observerFunc(func(s domain.Sample) {
		mu.Lock()
		observed = append(observed, s)
		if len(observed) == 3 {
			close(done)
		}
		mu.Unlock()
	})))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	hub.Enqueue(domain.Humidity{Percent: 41.5})
	hub.Enqueue(domain.Temperature{Celsius: 21.456})
	hub.Enqueue(domain.DeviceState{Device: "RELAY", Level: true})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("samples not consumed")
	}

	assert.Equal(t, []published{
		{topic: "tele/kal/HUMIDITY", payload: "41.50"},
		{topic: "tele/kal/TEMPERATURE", payload: "21.46"},
		{topic: "tele/kal/RELAY", payload: "true"},
	}, transport.snapshot())
}

func TestPublishFailureContinues(t *testing.T) {
	transport := &fakeTransport{failFirst: true}
	recorded := make(chan domain.Sample, 2)
	hub := NewHub(3, transport, topics, zap.NewNop(), WithRecorder(recorderFunc(func(s domain.Sample) error {
		recorded <- s
		return errors.New("disk full")
	})))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	hub.Enqueue(domain.DeviceState{Device: "LED", Level: true})
	hub.Enqueue(domain.DeviceState{Device: "LED", Level: false})

	for i := 0; i < 2; i++ {
		select {
		case <-recorded:
		case <-time.After(time.Second):
			t.Fatal("sample not recorded")
		}
	}
	assert.Equal(t, []published{{topic: "tele/kal/LED", payload: "false"}}, transport.snapshot())
}

func TestRunReleasesBlockedProducers(t *testing.T) {
	hub := NewHub(1, &fakeTransport{}, topics, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, hub.Run(ctx), context.Canceled)

	var err error
	for i := 0; i < 3 && err == nil; i++ {
		err = hub.EnqueueContext(context.Background(), domain.ModeState{})
	}
	assert.ErrorIs(t, err, ErrHubClosed)
}
