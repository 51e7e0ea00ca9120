package httpinput

import (
	"github.com/akave-ai/meteringest/internal/infrastructure/inputs"
	"github.com/akave-ai/meteringest/internal/model"
)

// Name is the input type of a report posted as the request body.
const Name = "http"

// Decoder accepts a bare JSON report. It matches anything, so it must be
// registered last.
type Decoder struct{}

func (Decoder) Name() string { return Name }

func (Decoder) TypeInfo() inputs.InputTypeInfo {
	return inputs.InputTypeInfo{
		Type:        Name,
		Description: "Device report posted directly as a JSON object keyed by domain.",
		Detection:   "fallback when no envelope is recognised",
		Example:     `{"telemetry": {"token": "FM1037", "status": "ok", "json-ver": "v1.2", "teleParam": []}}`,
	}
}

func (Decoder) Match([]byte) bool { return true }

func (Decoder) Decode(payload []byte) (model.RawReport, error) {
	return inputs.DecodeReport(payload)
}
