package radio

import (
	"context"
	"sync/atomic"

	"github.com/berfenger/kal2mqtt/internal/core/domain"
	"github.com/berfenger/kal2mqtt/internal/core/port"
)

// StaticRadio stands in for a wired interface: always associated once started.
type StaticRadio struct {
	started atomic.Bool
}

func (r *StaticRadio) IsStarted() bool {
	return r.started.Load()
}

func (r *StaticRadio) Configure(_ context.Context, _ port.Credentials) error {
	return nil
}

func (r *StaticRadio) Start(_ context.Context) error {
	r.started.Store(true)
	return nil
}

func (r *StaticRadio) Scan(_ context.Context, _ int) ([]domain.AccessPoint, error) {
	return nil, nil
}

func (r *StaticRadio) Connect(_ context.Context) error {
	return nil
}

func (r *StaticRadio) WaitForDisconnect(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

var _ port.Radio = (*StaticRadio)(nil)
