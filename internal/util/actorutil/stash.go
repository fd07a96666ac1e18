package actorutil

import (
	"github.com/asynkron/protoactor-go/actor"
)

// Stash holds messages an actor cannot handle in its current behavior.
// Replayed messages keep their original sender so requests can still be answered.
type Stash struct {
	envelopes []*actor.MessageEnvelope
}

// Stash keeps the message being processed by ctx.
func (s *Stash) Stash(ctx actor.Context) {
	s.envelopes = append(s.envelopes, &actor.MessageEnvelope{
		Message: ctx.Message(),
		Sender:  ctx.Sender(),
	})
}

func (s *Stash) Len() int {
	return len(s.envelopes)
}

// UnstashAll re-sends every stashed message to self, oldest first.
func (s *Stash) UnstashAll(ctx actor.Context) {
	pending := s.envelopes
	s.envelopes = nil
	for _, env := range pending {
		ctx.RequestWithCustomSender(ctx.Self(), env.Message, env.Sender)
	}
}
