package codec

import (
	"errors"
	"fmt"
	"strings"

	"github.com/berfenger/kal2mqtt/internal/core/domain"
)

const (
	POLICY_LENIENT = "lenient"
	POLICY_STRICT  = "strict"
)

var ErrInvalidPayload = errors.New("invalid payload")

// InvalidPayloadError carries the payload a strict decoder refused.
type InvalidPayloadError struct {
	Payload []byte
}

func (e *InvalidPayloadError) Error() string {
	return fmt.Sprintf("invalid payload: %q", e.Payload)
}

func (e *InvalidPayloadError) Is(target error) bool {
	return target == ErrInvalidPayload
}

// CommandDecoder maps raw command payloads to commands.
type CommandDecoder interface {
	Decode(payload []byte) (domain.Command, error)
	Policy() string
}

type lenientDecoder struct{}

type strictDecoder struct{}

var (
	// Lenient accepts on/true/1 and off/false/0 in any letter case. Anything else
	// decodes to Toggle, so a malformed payload flips the output.
	Lenient CommandDecoder = lenientDecoder{}
	// Strict accepts only the exact tokens ON, OFF and TOGGLE.
	Strict CommandDecoder = strictDecoder{}
)

var (
	onSynonyms  = []string{"on", "true", "1"}
	offSynonyms = []string{"off", "false", "0"}
)

func (lenientDecoder) Decode(payload []byte) (domain.Command, error) {
	s := string(payload)
	if matchesAny(s, onSynonyms) {
		return domain.CommandOn, nil
	}
	if matchesAny(s, offSynonyms) {
		return domain.CommandOff, nil
	}
	return domain.CommandToggle, nil
}

func (lenientDecoder) Policy() string {
	return POLICY_LENIENT
}

func (strictDecoder) Decode(payload []byte) (domain.Command, error) {
	switch string(payload) {
	case "ON":
		return domain.CommandOn, nil
	case "OFF":
		return domain.CommandOff, nil
	case "TOGGLE":
		return domain.CommandToggle, nil
	}
	return domain.CommandToggle, &InvalidPayloadError{Payload: append([]byte{}, payload...)}
}

func (strictDecoder) Policy() string {
	return POLICY_STRICT
}

// ForPolicy returns the decoder registered under name. An empty name selects Lenient.
func ForPolicy(name string) (CommandDecoder, error) {
	switch strings.ToLower(name) {
	case "", POLICY_LENIENT:
		return Lenient, nil
	case POLICY_STRICT:
		return Strict, nil
	}
	return nil, fmt.Errorf("unknown decoder policy %q", name)
}

// DecodeMode decodes a thermostat mode payload.
func DecodeMode(payload []byte) (domain.Mode, error) {
	mode, err := domain.ParseMode(string(payload))
	if err != nil {
		return mode, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return mode, nil
}

func matchesAny(s string, set []string) bool {
	for _, candidate := range set {
		if strings.EqualFold(s, candidate) {
			return true
		}
	}
	return false
}
