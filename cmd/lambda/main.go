package main

import (
	"go-callback/internal/config"
	"go-callback/internal/dispatch"
	"go-callback/internal/observability"
	"go-callback/internal/sqs"

	"github.com/aws/aws-lambda-go/lambda"
)

func main() {
	cfg := config.Load()
	observability.InitLogger(cfg.Logging.Level)

	dispatcher := dispatch.New(dispatch.Config{
		Logger: observability.GetLogger(),
	})

	handler := sqs.NewLambdaHandler(sqs.LambdaConfig{
		Dispatcher:           dispatcher,
		Settings:             config.LoadSettings,
		PartialBatchResponse: cfg.SQS.PartialBatchResponse,
	})

	lambda.Start(handler.Handle)
}
