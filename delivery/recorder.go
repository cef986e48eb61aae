package delivery

import (
	"context"
	"time"

	"github.com/marcelsud/chat-webhooks/webhook"
)

// Recorder observes deliveries, typically to export metrics
type Recorder interface {
	RecordAttempt(ctx context.Context, wh webhook.Webhook, kind Failure, elapsed time.Duration)
	RecordSequence(ctx context.Context, wh webhook.Webhook, res Result)
}

type nopRecorder struct{}

func (nopRecorder) RecordAttempt(context.Context, webhook.Webhook, Failure, time.Duration) {}

func (nopRecorder) RecordSequence(context.Context, webhook.Webhook, Result) {}
