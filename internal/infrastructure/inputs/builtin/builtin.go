// Package builtin assembles the registry of every envelope the service accepts.
package builtin

import (
	"github.com/akave-ai/meteringest/internal/infrastructure/inputs"
	"github.com/akave-ai/meteringest/internal/infrastructure/inputs/httpinput"
	"github.com/akave-ai/meteringest/internal/infrastructure/inputs/lambdainput"
)

// Registry returns a registry with the Lambda envelopes first and the bare
// HTTP report as the fallback.
func Registry() *inputs.Registry {
	r := inputs.NewRegistry()
	r.Register(
		lambdainput.KinesisDecoder{},
		lambdainput.SQSDecoder{},
		lambdainput.APIGatewayDecoder{},
		httpinput.Decoder{},
	)
	return r
}
