package mqtt

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/berfenger/kal2mqtt/internal/core/domain"
	"github.com/berfenger/kal2mqtt/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDevice = domain.Device{Id: "kal", Name: "kal", Model: "kal2mqtt", Manufacturer: "berfenger"}

func TestBuildDiscovery(t *testing.T) {
	cfg := util.LoadTestConfig()
	d := BuildDiscovery(&cfg, testDevice)

	require.Len(t, d.Switches, 2)
	assert.Equal(t, "RELAY", d.Switches[0].Key)
	assert.Equal(t, "mdi:led-on", d.Switches[1].Icon)
	require.Len(t, d.Sensors, 2)
	assert.Equal(t, "TEMPERATURE", d.Sensors[0].Key)
	assert.Equal(t, "HUMIDITY", d.Sensors[1].Key)
	require.Len(t, d.Selects, 1)
	assert.Equal(t, []string{"AUTO", "ON", "OFF"}, d.Selects[0].Options)
}

func TestSwitchDiscoveryMessage(t *testing.T) {
	topics := domain.Topics{Device: "kal"}
	msg := GenericSwitchToHADiscoveryMessage(topics, domain.GenericSwitch{Device: testDevice, Key: "RELAY", Name: "RELAY", UniqueId: "kal_relay"})

	assert.Equal(t, "tele/kal/RELAY", msg.StateTopic)
	assert.Equal(t, "cmnd/kal/RELAY", msg.CommandTopic)
	assert.Equal(t, "tele/kal/LWT", msg.AvTopic)
	assert.Equal(t, "true", msg.StateOn)
	assert.Equal(t, "OFF", msg.PayloadOff)
}

func TestPublishHomeAssistantDiscovery(t *testing.T) {
	c, fake := testClient(t)
	cfg := util.LoadTestConfig()

	require.NoError(t, c.PublishHomeAssistantDiscovery(context.Background(), "homeassistant", BuildDiscovery(&cfg, testDevice)))

	require.Len(t, fake.published, 5)
	payload, ok := fake.retained["homeassistant/select/kal/mode/config"]
	require.True(t, ok)
	var msg HADiscoveryConfig
	require.NoError(t, json.Unmarshal(payload, &msg))
	assert.Equal(t, "cmnd/kal/MODE", msg.CommandTopic)
	assert.Equal(t, []string{"kal"}, msg.Device.Id)
}
