package chi

import (
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/marcelsud/chat-webhooks/delivery"
	"github.com/marcelsud/chat-webhooks/metrics"
	"github.com/marcelsud/chat-webhooks/webhook"
)

// messageRequest is one outgoing chat message
type messageRequest struct {
	Message   string `json:"message"`
	User      string `json:"user"`
	Channel   string `json:"channel"`
	MessageID string `json:"message_id"`
}

// resultResponse represents one webhook's delivery result
type resultResponse struct {
	WebhookID   string `json:"webhook_id"`
	WebhookName string `json:"webhook_name"`
	Success     bool   `json:"success"`
	Status      int    `json:"status,omitempty"`
	Body        any    `json:"body,omitempty"`
	ElapsedMS   int64  `json:"elapsed_ms"`
	Attempts    int    `json:"attempts"`
	Failure     string `json:"failure,omitempty"`
	Error       string `json:"error,omitempty"`
}

func newResultResponse(res delivery.Result) resultResponse {
	resp := resultResponse{
		WebhookID:   res.WebhookID,
		WebhookName: res.WebhookName,
		Success:     res.Success,
		Status:      res.Status,
		Body:        res.Body,
		ElapsedMS:   res.Elapsed.Milliseconds(),
		Attempts:    res.Attempts,
		Error:       res.ErrorMessage(),
	}
	if !res.Success {
		resp.Failure = res.LastAttemptFailure().String()
	}
	return resp
}

type messageResponse struct {
	MessageID string           `json:"message_id"`
	Reply     delivery.Reply   `json:"reply"`
	Results   []resultResponse `json:"results"`
}

// postMessage handles POST /v1/messages: the chat-send event
func postMessage(trigger Triggerer) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req messageRequest
		if err := decode(r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "message is required"})
			return
		}
		if req.MessageID == "" {
			req.MessageID = uuid.NewString()
		}

		results := trigger.Trigger(r.Context(), webhook.TriggerContext{
			Message:   req.Message,
			User:      req.User,
			Channel:   req.Channel,
			MessageID: req.MessageID,
			Timestamp: time.Now(),
		})

		resp := messageResponse{
			MessageID: req.MessageID,
			Reply:     delivery.Replies(results),
			Results:   make([]resultResponse, 0, len(results)),
		}
		for _, res := range results {
			resp.Results = append(resp.Results, newResultResponse(res))
		}
		sort.Slice(resp.Results, func(i, j int) bool {
			return resp.Results[i].WebhookID < resp.Results[j].WebhookID
		})
		writeJSON(w, http.StatusOK, resp)
	})
}

// testWebhook handles POST /v1/webhooks/{id}/test
func testWebhook(prober Tester) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res, err := prober.TestByID(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, newResultResponse(res))
	})
}

// getStats handles GET /v1/stats
func getStats(collector metrics.Collector) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m, err := collector.Collect(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, m)
	})
}
