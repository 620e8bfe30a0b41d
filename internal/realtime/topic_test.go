package realtime

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopicRoundTrip(t *testing.T) {
	for _, tp := range []Topic{OrderTopic("7f3c"), StoreTopic("acme"), AdminTopic("acme")} {
		got, err := ParseTopic(tp.String())
		require.NoError(t, err)
		assert.Equal(t, tp, got)
	}
	assert.Equal(t, "store:acme", StoreTopic("acme").String())
	assert.NotEqual(t, StoreTopic("acme"), AdminTopic("acme"))
}

func TestParseTopicRejects(t *testing.T) {
	for _, s := range []string{"", "acme", "store:", "room:acme", "store-acme"} {
		_, err := ParseTopic(s)
		assert.Error(t, err, s)
	}
}

func TestTopicJSON(t *testing.T) {
	type wrap struct {
		T Topic `json:"t"`
	}
	b, err := json.Marshal(wrap{T: OrderTopic("o-1")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"t":"order:o-1"}`, string(b))

	var w wrap
	require.NoError(t, json.Unmarshal(b, &w))
	assert.Equal(t, OrderTopic("o-1"), w.T)

	_, err = json.Marshal(wrap{})
	assert.Error(t, err)
}
