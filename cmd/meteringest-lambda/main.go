package main

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/akave-ai/meteringest/internal/app"
	"github.com/akave-ai/meteringest/internal/config"
	"github.com/akave-ai/meteringest/internal/logger"
	"github.com/akave-ai/meteringest/internal/response"
	"github.com/akave-ai/meteringest/internal/service"
)

// ingester is the part of service.ReportService the handler needs.
type ingester interface {
	Ingest(ctx context.Context, source string, payload []byte) (*service.Result, error)
}

// newHandler returns the Lambda handler. The raw event is handed to the
// service untouched so SQS, Kinesis and API Gateway events are all detected.
func newHandler(svc ingester) func(context.Context, json.RawMessage) (events.APIGatewayProxyResponse, error) {
	return func(ctx context.Context, event json.RawMessage) (events.APIGatewayProxyResponse, error) {
		status, env := response.FromIngest(svc.Ingest(ctx, "", event))
		body, err := json.Marshal(env)
		if err != nil {
			return events.APIGatewayProxyResponse{}, err
		}
		return events.APIGatewayProxyResponse{
			StatusCode: status,
			Headers:    map[string]string{"Content-Type": "application/json"},
			Body:       string(body),
		}, nil
	}
}

func main() {
	cfg := config.LoadApp()
	log := logger.New(cfg.Observability)

	a, err := app.New(context.Background(), cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	defer a.Close()

	lambda.Start(newHandler(a.Service))
}
