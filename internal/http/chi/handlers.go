package chi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"
	"github.com/marcelsud/chat-webhooks/delivery"
	"github.com/marcelsud/chat-webhooks/metrics"
	"github.com/marcelsud/chat-webhooks/webhook"
	"github.com/rs/zerolog"
)

// Triggerer delivers one chat message to the active webhooks
type Triggerer interface {
	Trigger(ctx context.Context, tc webhook.TriggerContext) map[string]delivery.Result
}

// Tester probes a stored webhook without touching its statistics
type Tester interface {
	TestByID(ctx context.Context, id string) (delivery.Result, error)
}

/* Services groups what the HTTP layer calls into
 * Metrics and Stats are optional; their routes are only mounted when set
 */
type Services struct {
	Webhooks webhook.UseCase
	Trigger  Triggerer
	Prober   Tester
	Stats    metrics.Collector
	Metrics  http.Handler
	Logger   *zerolog.Logger
}

// AdminTimeout bounds the store management routes
const AdminTimeout = 60 * time.Second

/* WriteTimeout is the server write deadline that still lets the longest valid
 * delivery sequence reach the chat caller
 */
func WriteTimeout() time.Duration {
	return webhook.MaxSequenceDuration() + time.Minute
}

// Handlers sets up the API routes
func Handlers(ctx context.Context, s Services) *chi.Mux {
	logger := httplog.NewLogger("chat-webhooks", httplog.Options{
		JSON: true,
	})
	if s.Logger != nil {
		logger = *s.Logger
	}

	r := chi.NewRouter()
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})
	if s.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(AdminTimeout))
			r.Method(http.MethodGet, "/webhooks", getWebhooks(s.Webhooks))
			r.Method(http.MethodPost, "/webhooks", postWebhook(s.Webhooks))
			r.Method(http.MethodGet, "/webhooks/{id}", getWebhook(s.Webhooks))
			r.Method(http.MethodPatch, "/webhooks/{id}", patchWebhook(s.Webhooks))
			r.Method(http.MethodDelete, "/webhooks/{id}", deleteWebhook(s.Webhooks))
			r.Method(http.MethodPost, "/webhooks/{id}/toggle", toggleWebhook(s.Webhooks))
			r.Method(http.MethodPost, "/webhooks/{id}/reset", resetWebhook(s.Webhooks))
			if s.Stats != nil {
				r.Method(http.MethodGet, "/stats", getStats(s.Stats))
			}
		})

		// deliveries wait for every sequence to settle, so they carry no request deadline
		if s.Prober != nil {
			r.Method(http.MethodPost, "/webhooks/{id}/test", testWebhook(s.Prober))
		}
		if s.Trigger != nil {
			r.Method(http.MethodPost, "/messages", postMessage(s.Trigger))
		}
	})

	return r
}
