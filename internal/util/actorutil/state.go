package actorutil

import (
	"github.com/asynkron/protoactor-go/actor"
)

// ActorState is one named behavior of a multi-state actor.
type ActorState interface {
	Name() string
	Receive(actor.Context)
}

// ActorWithStates switches between ActorState values and remembers the current one.
type ActorWithStates struct {
	Behavior actor.Behavior
	current  ActorState
}

func (s *ActorWithStates) Become(state ActorState) {
	s.current = state
	s.Behavior.Become(state.Receive)
}

// StateName is the name of the current state, or "" before the first Become.
func (s *ActorWithStates) StateName() string {
	if s.current == nil {
		return ""
	}
	return s.current.Name()
}
