package domain

import (
	"fmt"
	"strings"

	"github.com/asynkron/protoactor-go/actor"
)

const (
	ACTOR_ID_SUPERVISOR = "supervisor"
	ACTOR_ID_NETWORK    = "network"
	ACTOR_ID_THERMOSTAT = "thermostat"
)

func DeviceActorId(key string) string {
	return fmt.Sprintf("device_%s", strings.ToLower(key))
}

func SensorActorId(name string) string {
	if name == "" {
		return "sensor"
	}
	return fmt.Sprintf("sensor_%s", strings.ToLower(name))
}

type ActorRef actor.PID

type ActorRequestMixIn struct {
	ReplyToRef *ActorRef
}

type ActorRequest interface {
	ReplyTo() *ActorRef
}

func (r ActorRequestMixIn) ReplyTo() *ActorRef {
	return r.ReplyToRef
}

type ActorResponseMixIn struct {
	ResponseError error
}

func (r ActorResponseMixIn) GetResponseError() error {
	return r.ResponseError
}

func (r ActorResponseMixIn) HasResponseError() bool {
	return r.ResponseError != nil
}

type ActorResponse interface {
	GetResponseError() error
	HasResponseError() bool
}

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}

// GetChildrenRequest asks the supervisor for the PIDs of its children, keyed by actor id.
type GetChildrenRequest struct {
	ActorRequestMixIn
}

type GetChildrenResponse struct {
	ActorResponseMixIn
	Children map[string]*actor.PID
}

// SetModeRequest changes the thermostat operating mode.
type SetModeRequest struct {
	ActorRequestMixIn
	Mode Mode
}

type SetModeResponse struct {
	ActorResponseMixIn
	Mode Mode
}

// SampleObserved forwards a published sample to an interested actor.
type SampleObserved struct {
	Sample Sample
}
