package domain

import "fmt"

const (
	TOPIC_PREFIX_COMMAND   = "cmnd"
	TOPIC_PREFIX_TELEMETRY = "tele"
)

// Topics builds the command and telemetry topics of one device.
type Topics struct {
	Device string
}

func (t Topics) Command(key string) string {
	return fmt.Sprintf("%s/%s/%s", TOPIC_PREFIX_COMMAND, t.Device, key)
}

func (t Topics) Telemetry(key string) string {
	return fmt.Sprintf("%s/%s/%s", TOPIC_PREFIX_TELEMETRY, t.Device, key)
}

func (t Topics) Availability() string {
	return t.Telemetry(KEY_LWT)
}
