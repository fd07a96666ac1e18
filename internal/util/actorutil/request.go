package actorutil

import (
	"github.com/berfenger/kal2mqtt/internal/core/domain"

	"github.com/asynkron/protoactor-go/actor"
)

type forRequest struct {
	req domain.ActorRequest
}

type ExtendedRequest interface {
	Respond(ctx actor.Context, resp domain.ActorResponse)
	ReplyTo(ctx actor.Context) *actor.PID
}

// ForRequest answers either to the explicit ReplyTo of the request or to its sender.
func ForRequest(r domain.ActorRequest) ExtendedRequest {
	return forRequest{req: r}
}

func (r forRequest) Respond(ctx actor.Context, resp domain.ActorResponse) {
	if r.req.ReplyTo() != nil {
		ctx.Send((*actor.PID)(r.req.ReplyTo()), resp)
	} else {
		ctx.Respond(resp)
	}
}

func (r forRequest) ReplyTo(ctx actor.Context) *actor.PID {
	if r.req.ReplyTo() != nil {
		return (*actor.PID)(r.req.ReplyTo())
	}
	return ctx.Sender()
}

// RespondHealth answers an ActorHealthRequest.
func RespondHealth(ctx actor.Context, req domain.ActorHealthRequest, id string, healthy bool, state string) {
	ForRequest(req).Respond(ctx, domain.ActorHealthResponse{
		Id:      id,
		Healthy: healthy,
		State:   state,
	})
}
