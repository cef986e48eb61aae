package metrics

import (
	"context"
	"time"

	"github.com/marcelsud/chat-webhooks/webhook"
)

// Lister is the read side of the webhook store
type Lister interface {
	List(ctx context.Context) []webhook.Webhook
}

// StoreCollector implements the Collector interface over the webhook store
type StoreCollector struct {
	store Lister
	now   func() time.Time
}

var _ Collector = (*StoreCollector)(nil)

// NewStoreCollector creates a new store metrics collector
func NewStoreCollector(store Lister) *StoreCollector {
	return &StoreCollector{
		store: store,
		now:   time.Now,
	}
}

// Collect gathers all metrics from one snapshot of the store
func (c *StoreCollector) Collect(ctx context.Context) (Metrics, error) {
	all := c.store.List(ctx)

	m := Metrics{
		Webhooks:   int64(len(all)),
		PerWebhook: make([]WebhookStats, 0, len(all)),
		Timestamp:  c.now(),
	}
	for _, wh := range all {
		stats := statsOf(wh)
		if wh.Active {
			m.Active++
		}
		m.Totals.Success += stats.Deliveries.Success
		m.Totals.Failure += stats.Deliveries.Failure
		m.PerWebhook = append(m.PerWebhook, stats)
	}
	return m, nil
}

// GetWebhookCounts returns the configured and active webhook counts
func (c *StoreCollector) GetWebhookCounts(ctx context.Context) (int64, int64, error) {
	var total, active int64
	for _, wh := range c.store.List(ctx) {
		total++
		if wh.Active {
			active++
		}
	}
	return total, active, nil
}

// GetDeliveryCounts returns per-webhook statistics keyed by id
func (c *StoreCollector) GetDeliveryCounts(ctx context.Context) (map[string]WebhookStats, error) {
	counts := make(map[string]WebhookStats)
	for _, wh := range c.store.List(ctx) {
		counts[wh.ID] = statsOf(wh)
	}
	return counts, nil
}

func statsOf(wh webhook.Webhook) WebhookStats {
	return WebhookStats{
		ID:     wh.ID,
		Name:   wh.Name,
		Active: wh.Active,
		Deliveries: DeliveryCounts{
			Success: wh.SuccessCount,
			Failure: wh.FailureCount,
		},
		LastStatus:      wh.LastStatus,
		LastError:       wh.LastError,
		LastDurationMS:  wh.LastDurationMS,
		LastTriggeredAt: wh.LastTriggeredAt,
	}
}
