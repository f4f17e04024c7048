package codec

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Type string          `json:"type"`
	Body json.RawMessage `json:"body"`
}

func TestByName(t *testing.T) {
	for _, name := range []string{"json", "go-json"} {
		c, ok := ByName(name)
		require.True(t, ok)
		assert.Equal(t, name, c.Name())
	}
	_, ok := ByName("msgpack")
	assert.False(t, ok)
}

func TestCodecs_RawMessage(t *testing.T) {
	in := []envelope{{Type: "sum", Body: json.RawMessage(`{"value":1.5}`)}}

	for _, c := range []Codec{JSON{}, GoJSON{}} {
		t.Run(c.Name(), func(t *testing.T) {
			data, err := c.Marshal(in)
			require.NoError(t, err)

			var out []envelope
			require.NoError(t, c.Unmarshal(data, &out))
			require.Len(t, out, 1)
			assert.Equal(t, "sum", out[0].Type)
			assert.JSONEq(t, `{"value":1.5}`, string(out[0].Body))
		})
	}
}
