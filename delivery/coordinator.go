package delivery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/marcelsud/chat-webhooks/webhook"
	"github.com/marcelsud/chat-webhooks/webhook/payload"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
)

// Store is the part of the webhook store the coordinator needs
type Store interface {
	Active(ctx context.Context) []webhook.Webhook
	RecordOutcome(ctx context.Context, id string, outcome webhook.Outcome) error
}

// Deliverer runs a full delivery sequence for one webhook
type Deliverer interface {
	DeliverWithRetry(ctx context.Context, wh webhook.Webhook, body string) Result
}

/* Coordinator fans a chat-send event out to every active webhook
 * Each webhook's sequence runs in its own goroutine; a failure or panic in one of them
 * is contained in that webhook's Result
 */
type Coordinator struct {
	store     Store
	deliverer Deliverer
	logger    zerolog.Logger
	app       string
	now       func() time.Time
}

// CoordinatorOption configures a Coordinator
type CoordinatorOption func(*Coordinator)

// WithLogger sets the coordinator logger
func WithLogger(logger zerolog.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithAppName sets the {{app}} value used when the trigger context has none
func WithAppName(app string) CoordinatorOption {
	return func(c *Coordinator) {
		c.app = app
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) {
		c.now = now
	}
}

// NewCoordinator creates a Coordinator
func NewCoordinator(store Store, deliverer Deliverer, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		store:     store,
		deliverer: deliverer,
		logger:    zerolog.Nop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

/* Trigger delivers tc to the active webhooks and waits for every sequence to settle
 * The active set is a snapshot taken at call time; caller cancellation does not abort
 * sequences that were already issued. The returned map is keyed by webhook id
 */
func (c *Coordinator) Trigger(ctx context.Context, tc webhook.TriggerContext) map[string]Result {
	ctx = context.WithoutCancel(ctx)
	if tc.App == "" {
		tc.App = c.app
	}
	if tc.Timestamp.IsZero() {
		tc.Timestamp = c.now()
	}

	active := c.store.Active(ctx)
	results := make(map[string]Result, len(active))
	if len(active) == 0 {
		return results
	}

	var (
		mu sync.Mutex
		wg conc.WaitGroup
	)
	for _, wh := range active {
		wg.Go(func() {
			res := c.run(ctx, wh, tc)
			mu.Lock()
			results[wh.ID] = res
			mu.Unlock()
		})
	}
	wg.Wait()

	c.logger.Info().
		Int("webhooks", len(active)).
		Int("succeeded", countSucceeded(results)).
		Str("message_id", tc.MessageID).
		Msg("trigger settled")
	return results
}

// run executes one webhook's sequence and records its outcome exactly once
func (c *Coordinator) run(ctx context.Context, wh webhook.Webhook, tc webhook.TriggerContext) Result {
	var (
		res     Result
		catcher panics.Catcher
	)
	start := c.now()
	catcher.Try(func() {
		res = c.deliverer.DeliverWithRetry(ctx, Prepare(wh, tc), payload.Render(wh.BodyTemplate, tc))
	})
	if recovered := catcher.Recovered(); recovered != nil {
		c.logger.Error().
			Str("webhook_id", wh.ID).
			Str("panic", fmt.Sprint(recovered.Value)).
			Msg("webhook delivery panicked")
		res = Result{
			WebhookID:   wh.ID,
			WebhookName: wh.Name,
			Elapsed:     c.now().Sub(start),
			Err:         fmt.Errorf("delivering webhook: %w", recovered.AsError()),
		}
	}

	if !res.Success {
		c.logger.Warn().
			Str("webhook_id", wh.ID).
			Int("attempts", res.Attempts).
			Int("status", res.Status).
			Str("error", res.ErrorMessage()).
			Msg("webhook delivery failed")
	}

	if err := c.store.RecordOutcome(ctx, wh.ID, res.Outcome(c.now())); err != nil {
		c.logger.Warn().Err(err).Str("webhook_id", wh.ID).Msg("recording webhook outcome")
	}
	return res
}

// Prepare renders the URL template of a captured webhook
func Prepare(wh webhook.Webhook, tc webhook.TriggerContext) webhook.Webhook {
	wh.URL = payload.RenderURL(wh.URL, tc)
	return wh
}

func countSucceeded(results map[string]Result) int {
	n := 0
	for _, r := range results {
		if r.Success {
			n++
		}
	}
	return n
}
