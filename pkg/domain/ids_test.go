package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSessionID(t *testing.T) {
	valid := NewSessionID()

	parsed, err := ParseSessionID(valid.String())
	require.NoError(t, err)
	assert.Equal(t, valid, parsed)

	for name, input := range map[string]string{
		"empty":     "",
		"malformed": "not-a-uuid",
		"nil uuid":  "00000000-0000-0000-0000-000000000000",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseSessionID(input)
			assert.Error(t, err)
		})
	}
}

func TestIDJSONRoundTrip(t *testing.T) {
	type wrapper struct {
		Session  SessionID  `json:"session"`
		Org      OrgID      `json:"org"`
		Endpoint EndpointID `json:"endpoint"`
	}
	in := wrapper{Session: NewSessionID(), Org: NewOrgID(), Endpoint: NewEndpointID()}

	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out wrapper
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestIDTypesAreDistinct(t *testing.T) {
	assert.False(t, NewSessionID().IsNil())
	assert.True(t, SessionID{}.IsNil())
	assert.True(t, OrgID{}.IsNil())
}
