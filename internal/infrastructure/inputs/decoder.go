package inputs

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/akave-ai/meteringest/internal/model"
)

var (
	// ErrInvalidPayload wraps every failure to turn bytes into a raw report.
	ErrInvalidPayload = errors.New("invalid payload")
	// ErrEmptyEnvelope reports an envelope that carries no report.
	ErrEmptyEnvelope = fmt.Errorf("%w: envelope carries no report", ErrInvalidPayload)
	// ErrUnknownInput reports a decoder name that is not registered.
	ErrUnknownInput = errors.New("unknown input type")
)

// Decoder unwraps one transport envelope into a raw device report.
// Each transport (direct HTTP, SQS, API Gateway...) implements and registers one.
type Decoder interface {
	Name() string
	TypeInfo() InputTypeInfo
	// Match reports whether payload looks like this decoder's envelope.
	Match(payload []byte) bool
	Decode(payload []byte) (model.RawReport, error)
}

// DecodeReport parses a JSON report. Numbers are kept as json.Number so
// integer counters survive without float rounding.
func DecodeReport(body []byte) (model.RawReport, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, ErrEmptyEnvelope
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var report model.RawReport
	if err := dec.Decode(&report); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if report == nil {
		return nil, fmt.Errorf("%w: report must be a JSON object", ErrInvalidPayload)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after report", ErrInvalidPayload)
	}
	return report, nil
}

// Probe returns the top-level keys of a JSON object, or nil if payload is
// not one. Decoders use it to recognise their envelope cheaply.
func Probe(payload []byte) map[string]json.RawMessage {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(payload, &top); err != nil {
		return nil
	}
	return top
}
