package metrics

import (
	"context"
	"time"
)

// Metrics represents the current state of the configured webhooks.
type Metrics struct {
	// Webhooks is the number of configured webhooks
	Webhooks int64 `json:"webhooks"`

	// Active is the number of webhooks that take part in triggers
	Active int64 `json:"active"`

	// Totals sums the delivery counters of every webhook
	Totals DeliveryCounts `json:"totals"`

	// PerWebhook holds the statistics of each webhook in store order
	PerWebhook []WebhookStats `json:"per_webhook"`

	// Timestamp when metrics were collected
	Timestamp time.Time `json:"timestamp"`
}

// DeliveryCounts counts completed delivery sequences.
type DeliveryCounts struct {
	Success int64 `json:"success"`
	Failure int64 `json:"failure"`
}

// WebhookStats represents the statistics recorded for one webhook.
type WebhookStats struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Active          bool           `json:"active"`
	Deliveries      DeliveryCounts `json:"deliveries"`
	LastStatus      int            `json:"last_status"`
	LastError       string         `json:"last_error,omitempty"`
	LastDurationMS  int64          `json:"last_duration_ms"`
	LastTriggeredAt *time.Time     `json:"last_triggered_at,omitempty"`
}

// Collector defines the interface for collecting metrics from the webhook store.
type Collector interface {
	// Collect gathers current metrics from the store
	Collect(ctx context.Context) (Metrics, error)

	// GetWebhookCounts returns how many webhooks are configured and how many are active
	GetWebhookCounts(ctx context.Context) (total int64, active int64, err error)

	// GetDeliveryCounts returns the success and failure counters keyed by webhook id
	GetDeliveryCounts(ctx context.Context) (map[string]WebhookStats, error)
}
