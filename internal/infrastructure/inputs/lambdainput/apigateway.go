package lambdainput

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-lambda-go/events"

	"github.com/akave-ai/meteringest/internal/infrastructure/inputs"
	"github.com/akave-ai/meteringest/internal/model"
)

const APIGatewayName = "apigateway"

// APIGatewayDecoder unwraps an API Gateway proxy request. A base64 encoded
// body is decoded first.
type APIGatewayDecoder struct{}

func (APIGatewayDecoder) Name() string { return APIGatewayName }

func (APIGatewayDecoder) TypeInfo() inputs.InputTypeInfo {
	return inputs.InputTypeInfo{
		Type:        APIGatewayName,
		Description: "API Gateway proxy request whose body is the JSON report.",
		Detection:   `top-level "body" holding a string or null`,
		Example:     `{"httpMethod": "POST", "body": "{\"diagnostic\": {...}}"}`,
	}
}

func (APIGatewayDecoder) Match(payload []byte) bool {
	top := inputs.Probe(payload)
	raw, ok := top["body"]
	if !ok {
		return false
	}
	var body *string
	return json.Unmarshal(raw, &body) == nil
}

func (APIGatewayDecoder) Decode(payload []byte) (model.RawReport, error) {
	var req events.APIGatewayProxyRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("%w: api gateway request: %v", inputs.ErrInvalidPayload, err)
	}
	body := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: base64 body: %v", inputs.ErrInvalidPayload, err)
		}
		body = decoded
	}
	return inputs.DecodeReport(body)
}
