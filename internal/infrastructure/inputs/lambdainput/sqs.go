package lambdainput

import (
	"encoding/json"
	"fmt"

	"github.com/aws/aws-lambda-go/events"

	"github.com/akave-ai/meteringest/internal/infrastructure/inputs"
	"github.com/akave-ai/meteringest/internal/model"
)

const (
	SQSName     = "sqs"
	KinesisName = "kinesis"

	sqsEventSource     = "aws:sqs"
	kinesisEventSource = "aws:kinesis"
)

// eventRecord is the part of a queue record used to tell SQS from Kinesis.
type eventRecord struct {
	EventSource string          `json:"eventSource"`
	Body        *string         `json:"body"`
	Kinesis     json.RawMessage `json:"kinesis"`
}

// records returns the Records array of an event, or ok=false if there is none.
func records(payload []byte) ([]eventRecord, bool) {
	top := inputs.Probe(payload)
	raw, ok := top["Records"]
	if !ok {
		return nil, false
	}
	var recs []eventRecord
	if err := json.Unmarshal(raw, &recs); err != nil {
		return nil, false
	}
	return recs, true
}

// SQSDecoder unwraps an SQS event delivered to a Lambda function. Only the
// first record is read; the queue is expected to deliver one report per batch.
type SQSDecoder struct{}

func (SQSDecoder) Name() string { return SQSName }

func (SQSDecoder) TypeInfo() inputs.InputTypeInfo {
	return inputs.InputTypeInfo{
		Type:        SQSName,
		Description: "SQS event whose first record body is the JSON report.",
		Detection:   `top-level "Records" whose first entry has eventSource "aws:sqs" or a "body"; an empty batch is claimed and rejected`,
		Example:     `{"Records": [{"eventSource": "aws:sqs", "body": "{\"pump\": {...}}"}]}`,
	}
}

func (SQSDecoder) Match(payload []byte) bool {
	recs, ok := records(payload)
	if !ok {
		return false
	}
	if len(recs) == 0 {
		return true
	}
	first := recs[0]
	return first.EventSource == sqsEventSource || (first.EventSource == "" && first.Body != nil)
}

func (SQSDecoder) Decode(payload []byte) (model.RawReport, error) {
	var event events.SQSEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("%w: sqs event: %v", inputs.ErrInvalidPayload, err)
	}
	if len(event.Records) == 0 {
		return nil, inputs.ErrEmptyEnvelope
	}
	return inputs.DecodeReport([]byte(event.Records[0].Body))
}

// KinesisDecoder unwraps a Kinesis event. Record data arrives base64 encoded
// and is decoded by the event type. Only the first record is read.
type KinesisDecoder struct{}

func (KinesisDecoder) Name() string { return KinesisName }

func (KinesisDecoder) TypeInfo() inputs.InputTypeInfo {
	return inputs.InputTypeInfo{
		Type:        KinesisName,
		Description: "Kinesis stream event whose first record data is the JSON report.",
		Detection:   `top-level "Records" whose first entry has eventSource "aws:kinesis" or a "kinesis" object`,
	}
}

func (KinesisDecoder) Match(payload []byte) bool {
	recs, ok := records(payload)
	if !ok || len(recs) == 0 {
		return false
	}
	return recs[0].EventSource == kinesisEventSource || len(recs[0].Kinesis) > 0
}

func (KinesisDecoder) Decode(payload []byte) (model.RawReport, error) {
	var event events.KinesisEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("%w: kinesis event: %v", inputs.ErrInvalidPayload, err)
	}
	if len(event.Records) == 0 {
		return nil, inputs.ErrEmptyEnvelope
	}
	return inputs.DecodeReport(event.Records[0].Kinesis.Data)
}
