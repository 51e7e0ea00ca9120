package lambdainput

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akave-ai/meteringest/internal/infrastructure/inputs"
)

const pumpReport = `{"pump": {"token": "FM3278", "status": "ok", "json-ver": "v1.4", "pumpParam": []}}`

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestSQSDecoder(t *testing.T) {
	event := mustJSON(t, events.SQSEvent{Records: []events.SQSMessage{
		{MessageId: "m-1", EventSource: "aws:sqs", Body: pumpReport},
		{MessageId: "m-2", EventSource: "aws:sqs", Body: `{"ignored": true}`},
	}})

	t.Run("Should read the first record body", func(t *testing.T) {
		require.True(t, SQSDecoder{}.Match(event))
		report, err := SQSDecoder{}.Decode(event)
		require.NoError(t, err)
		assert.Contains(t, report, "pump")
		assert.NotContains(t, report, "ignored")
	})

	t.Run("Should match a record without eventSource", func(t *testing.T) {
		assert.True(t, SQSDecoder{}.Match([]byte(`{"Records": [{"body": "{}"}]}`)))
	})

	t.Run("Should claim and reject an empty batch", func(t *testing.T) {
		payload := []byte(`{"Records": []}`)
		require.True(t, SQSDecoder{}.Match(payload))
		_, err := SQSDecoder{}.Decode(payload)
		assert.ErrorIs(t, err, inputs.ErrEmptyEnvelope)
	})

	t.Run("Should reject a body that is not a report", func(t *testing.T) {
		payload := mustJSON(t, events.SQSEvent{Records: []events.SQSMessage{{EventSource: "aws:sqs", Body: "not json"}}})
		_, err := SQSDecoder{}.Decode(payload)
		assert.ErrorIs(t, err, inputs.ErrInvalidPayload)
	})

	t.Run("Should not match a bare report", func(t *testing.T) {
		assert.False(t, SQSDecoder{}.Match([]byte(pumpReport)))
	})
}

func TestKinesisDecoder(t *testing.T) {
	event := mustJSON(t, events.KinesisEvent{Records: []events.KinesisEventRecord{{
		EventSource: "aws:kinesis",
		Kinesis:     events.KinesisRecord{PartitionKey: "FM3278", Data: []byte(pumpReport)},
	}}})

	require.True(t, KinesisDecoder{}.Match(event))
	assert.False(t, SQSDecoder{}.Match(event))

	report, err := KinesisDecoder{}.Decode(event)
	require.NoError(t, err)
	assert.Contains(t, report, "pump")

	assert.False(t, KinesisDecoder{}.Match([]byte(`{"Records": []}`)))
}

func TestAPIGatewayDecoder(t *testing.T) {
	t.Run("Should read a plain body", func(t *testing.T) {
		payload := mustJSON(t, events.APIGatewayProxyRequest{HTTPMethod: "POST", Path: "/report", Body: pumpReport})
		require.True(t, APIGatewayDecoder{}.Match(payload))
		report, err := APIGatewayDecoder{}.Decode(payload)
		require.NoError(t, err)
		assert.Contains(t, report, "pump")
	})

	t.Run("Should decode a base64 body", func(t *testing.T) {
		payload := mustJSON(t, events.APIGatewayProxyRequest{
			Body:            base64.StdEncoding.EncodeToString([]byte(pumpReport)),
			IsBase64Encoded: true,
		})
		report, err := APIGatewayDecoder{}.Decode(payload)
		require.NoError(t, err)
		assert.Contains(t, report, "pump")
	})

	t.Run("Should reject an empty body", func(t *testing.T) {
		payload := []byte(`{"httpMethod": "POST", "body": null}`)
		require.True(t, APIGatewayDecoder{}.Match(payload))
		_, err := APIGatewayDecoder{}.Decode(payload)
		assert.ErrorIs(t, err, inputs.ErrEmptyEnvelope)
	})

	t.Run("Should not match an object body", func(t *testing.T) {
		assert.False(t, APIGatewayDecoder{}.Match([]byte(`{"body": {"pump": {}}}`)))
		assert.False(t, APIGatewayDecoder{}.Match([]byte(pumpReport)))
	})
}
