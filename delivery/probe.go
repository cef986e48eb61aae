package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/marcelsud/chat-webhooks/webhook"
	"github.com/marcelsud/chat-webhooks/webhook/payload"
)

// TestHeader marks probe requests so receivers can tell them apart from chat traffic
const TestHeader = "X-Webhook-Test"

// IsTest reports whether wh was prepared for a probe rather than for chat traffic
func IsTest(wh webhook.Webhook) bool {
	v, ok := wh.Headers.Get(TestHeader)
	return ok && v == "true"
}

// Attempter performs one HTTP attempt
type Attempter interface {
	Attempt(ctx context.Context, wh webhook.Webhook, body string) AttemptResult
}

// Getter reads one webhook without mutating it
type Getter interface {
	Get(ctx context.Context, id string) (webhook.Webhook, error)
}

/* Prober runs user-initiated connectivity checks
 * A probe is a single attempt with a synthetic context and never writes to the store
 */
type Prober struct {
	attempter Attempter
	store     Getter
	app       string
	now       func() time.Time
}

// NewProber creates a Prober; store may be nil when only Test is used
func NewProber(attempter Attempter, store Getter, app string) *Prober {
	return &Prober{
		attempter: attempter,
		store:     store,
		app:       app,
		now:       time.Now,
	}
}

// Test sends one attempt to wh with a synthetic payload
func (p *Prober) Test(ctx context.Context, wh webhook.Webhook) Result {
	tc := webhook.NewTestContext(p.app, p.now())
	return p.TestWith(ctx, wh, tc)
}

// TestWith sends one attempt to wh rendered with tc, which is always marked as a test
func (p *Prober) TestWith(ctx context.Context, wh webhook.Webhook, tc webhook.TriggerContext) Result {
	tc.Test = true
	if tc.App == "" {
		tc.App = p.app
	}

	probe := Prepare(wh, tc)
	probe.Headers = wh.Headers.Clone().Set(TestHeader, "true")

	return resultFromAttempt(wh, p.attempter.Attempt(ctx, probe, payload.Render(wh.BodyTemplate, tc)), 1)
}

// TestByID loads the webhook and probes it; inactive webhooks can be probed too
func (p *Prober) TestByID(ctx context.Context, id string) (Result, error) {
	if p.store == nil {
		return Result{}, fmt.Errorf("probing webhook %s: no store configured", id)
	}
	wh, err := p.store.Get(ctx, id)
	if err != nil {
		return Result{}, fmt.Errorf("probing webhook: %w", err)
	}
	return p.Test(ctx, wh), nil
}
