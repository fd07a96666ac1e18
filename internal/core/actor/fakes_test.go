package actor

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/berfenger/kal2mqtt/internal/core/domain"
)

var errHardware = errors.New("hardware failure")

type fakeOutput struct {
	mu     sync.Mutex
	writes []bool
	fail   bool
	closed bool
}

func (o *fakeOutput) Set(level bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fail {
		return errHardware
	}
	o.writes = append(o.writes, level)
	return nil
}

func (o *fakeOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	return nil
}

func (o *fakeOutput) setFail(fail bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fail = fail
}

func (o *fakeOutput) Writes() []bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]bool(nil), o.writes...)
}

type fakeSink struct {
	samples chan domain.Sample
}

func newFakeSink() *fakeSink {
	return &fakeSink{samples: make(chan domain.Sample, 64)}
}

func (s *fakeSink) Enqueue(sample domain.Sample) {
	s.samples <- sample
}

func (s *fakeSink) next(t *testing.T) domain.Sample {
	t.Helper()
	select {
	case sample := <-s.samples:
		return sample
	case <-time.After(2 * time.Second):
		t.Fatal("no sample published")
		return nil
	}
}

func (s *fakeSink) expectNone(t *testing.T, within time.Duration) {
	t.Helper()
	select {
	case sample := <-s.samples:
		t.Fatalf("unexpected sample %s=%s", sample.Key(), sample.Payload())
	case <-time.After(within):
	}
}
