package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/berfenger/kal2mqtt/internal/config"
	"github.com/berfenger/kal2mqtt/internal/core/domain"

	"github.com/asynkron/protoactor-go/actor"
)

// HealthProbe asks the running tasks for their aggregated health.
type HealthProbe func() (domain.ActorHealthResponse, error)

// SupervisorProbe queries the supervisor actor, bounded by timeout.
func SupervisorProbe(root *actor.RootContext, supervisor *actor.PID, timeout time.Duration) HealthProbe {
	return func() (domain.ActorHealthResponse, error) {
		res, err := root.RequestFuture(supervisor, domain.ActorHealthRequest{}, timeout).Result()
		if err != nil {
			return domain.ActorHealthResponse{}, err
		}
		response, ok := res.(domain.ActorHealthResponse)
		if !ok {
			return domain.ActorHealthResponse{}, fmt.Errorf("unexpected health response %T", res)
		}
		return response, nil
	}
}

type Server struct {
	httpLog bool
	probe   HealthProbe
}

func NewServer(cfg config.Config, probe HealthProbe) *http.Server {
	s := &Server{
		httpLog: cfg.HttpLog,
		probe:   probe,
	}

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.RegisterRoutes(),
		IdleTimeout:       time.Minute,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      HEALTH_TIMEOUT + 5*time.Second,
	}
}
