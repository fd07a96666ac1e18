package codec

import (
	"errors"
	"testing"

	"github.com/berfenger/kal2mqtt/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLenientOnSynonyms(t *testing.T) {

	assert := assert.New(t)

	for _, p := range []string{"ON", "On", "on", "oN", "TRUE", "True", "true", "1"} {
		cmd, err := Lenient.Decode([]byte(p))
		assert.NoError(err, p)
		assert.Equal(domain.CommandOn, cmd, p)
	}
}

func TestLenientOffSynonyms(t *testing.T) {

	assert := assert.New(t)

	for _, p := range []string{"OFF", "Off", "off", "FALSE", "False", "false", "0"} {
		cmd, err := Lenient.Decode([]byte(p))
		assert.NoError(err, p)
		assert.Equal(domain.CommandOff, cmd, p)
	}
}

func TestLenientUnknownIsToggle(t *testing.T) {

	assert := assert.New(t)

	for _, p := range []string{"TOGGLE", "toggle", "", "2", " on", "enable", "\x00\xff"} {
		cmd, err := Lenient.Decode([]byte(p))
		assert.NoError(err, p)
		assert.Equal(domain.CommandToggle, cmd, p)
	}
}

func TestStrictTokens(t *testing.T) {

	require := require.New(t)

	cmd, err := Strict.Decode([]byte("ON"))
	require.NoError(err)
	require.Equal(domain.CommandOn, cmd)

	cmd, err = Strict.Decode([]byte("OFF"))
	require.NoError(err)
	require.Equal(domain.CommandOff, cmd)

	cmd, err = Strict.Decode([]byte("TOGGLE"))
	require.NoError(err)
	require.Equal(domain.CommandToggle, cmd)
}

func TestStrictRejectsEverythingElse(t *testing.T) {

	assert := assert.New(t)

	for _, p := range []string{"on", "On", "true", "1", "toggle", "", "ON ", "OFFF"} {
		_, err := Strict.Decode([]byte(p))
		assert.ErrorIs(err, ErrInvalidPayload, p)

		var invalid *InvalidPayloadError
		if assert.True(errors.As(err, &invalid), p) {
			assert.Equal([]byte(p), invalid.Payload)
		}
	}
}

func TestStrictRejectsEmptyPayload(t *testing.T) {
	_, err := Strict.Decode(nil)

	var invalid *InvalidPayloadError
	require.ErrorAs(t, err, &invalid)
	assert.NotNil(t, invalid.Payload)
	assert.Empty(t, invalid.Payload)
}

func TestForPolicy(t *testing.T) {

	require := require.New(t)

	d, err := ForPolicy("strict")
	require.NoError(err)
	require.Equal(POLICY_STRICT, d.Policy())

	d, err = ForPolicy("")
	require.NoError(err)
	require.Equal(POLICY_LENIENT, d.Policy())

	_, err = ForPolicy("fuzzy")
	require.Error(err)
}

func TestDecodeMode(t *testing.T) {

	require := require.New(t)

	m, err := DecodeMode([]byte("auto"))
	require.NoError(err)
	require.Equal(domain.ModeAuto, m)

	m, err = DecodeMode([]byte("OFF"))
	require.NoError(err)
	require.Equal(domain.ModeOff, m)

	_, err = DecodeMode([]byte("TOGGLE"))
	require.ErrorIs(err, ErrInvalidPayload)
	require.ErrorIs(err, domain.ErrInvalidMode)
}
