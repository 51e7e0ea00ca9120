package httpinput

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akave-ai/meteringest/internal/infrastructure/inputs"
)

func TestHTTPInput_DecodesBareReport(t *testing.T) {
	reg := inputs.NewRegistry()
	reg.Register(Decoder{})

	name, report, err := reg.Decode("", []byte(`{"error": {"token": "FM4568", "mspErrParam": [{"ts": 1732253451768, "err-code": 127}]}}`))

	require.NoError(t, err)
	assert.Equal(t, Name, name)
	section, ok := report["error"].(map[string]any)
	require.True(t, ok)
	events := section["mspErrParam"].([]any)
	assert.Equal(t, json.Number("127"), events[0].(map[string]any)["err-code"])
}

func TestHTTPInput_RejectsNonObject(t *testing.T) {
	_, err := Decoder{}.Decode([]byte(`["telemetry"]`))
	assert.ErrorIs(t, err, inputs.ErrInvalidPayload)
}

func TestHTTPInput_MatchesAnything(t *testing.T) {
	assert.True(t, Decoder{}.Match(nil))
	assert.Equal(t, Name, Decoder{}.TypeInfo().Type)
}
