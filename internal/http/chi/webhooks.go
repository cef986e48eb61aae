package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/marcelsud/chat-webhooks/webhook"
)

/* HTTP layer DTOs for the webhook API
 * Separate from domain entities to avoid leaking internal structure
 */

// webhookRequest carries fields to create or update; omitted fields are left alone
type webhookRequest struct {
	Name          *string          `json:"name"`
	URL           *string          `json:"url"`
	Method        *string          `json:"method"`
	Headers       *webhook.Headers `json:"headers"`
	BodyTemplate  *string          `json:"body_template"`
	Active        *bool            `json:"active"`
	TimeoutMS     *int             `json:"timeout_ms"`
	Retries       *int             `json:"retries"`
	RetryDelayMS  *int             `json:"retry_delay_ms"`
	SigningSecret *string          `json:"signing_secret"`
}

func (req webhookRequest) input() webhook.Input {
	return webhook.Input{
		Name:          req.Name,
		URL:           req.URL,
		Method:        req.Method,
		Headers:       req.Headers,
		BodyTemplate:  req.BodyTemplate,
		Active:        req.Active,
		TimeoutMS:     req.TimeoutMS,
		Retries:       req.Retries,
		RetryDelayMS:  req.RetryDelayMS,
		SigningSecret: req.SigningSecret,
	}
}

// webhookResponse represents a webhook in the API; the signing secret is never echoed
type webhookResponse struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	URL             string          `json:"url"`
	Method          string          `json:"method"`
	Headers         webhook.Headers `json:"headers"`
	BodyTemplate    string          `json:"body_template"`
	Active          bool            `json:"active"`
	TimeoutMS       int             `json:"timeout_ms"`
	Retries         int             `json:"retries"`
	RetryDelayMS    int             `json:"retry_delay_ms"`
	Signed          bool            `json:"signed"`
	SuccessCount    int64           `json:"success_count"`
	FailureCount    int64           `json:"failure_count"`
	LastTriggeredAt *time.Time      `json:"last_triggered_at,omitempty"`
	LastStatus      int             `json:"last_status"`
	LastError       string          `json:"last_error,omitempty"`
	LastDurationMS  int64           `json:"last_duration_ms"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func newWebhookResponse(wh webhook.Webhook) webhookResponse {
	headers := wh.Headers
	if headers == nil {
		headers = webhook.Headers{}
	}
	return webhookResponse{
		ID:              wh.ID,
		Name:            wh.Name,
		URL:             wh.URL,
		Method:          wh.Method.String(),
		Headers:         headers,
		BodyTemplate:    wh.BodyTemplate,
		Active:          wh.Active,
		TimeoutMS:       wh.TimeoutMS,
		Retries:         wh.Retries,
		RetryDelayMS:    wh.RetryDelayMS,
		Signed:          wh.SigningSecret != "",
		SuccessCount:    wh.SuccessCount,
		FailureCount:    wh.FailureCount,
		LastTriggeredAt: wh.LastTriggeredAt,
		LastStatus:      wh.LastStatus,
		LastError:       wh.LastError,
		LastDurationMS:  wh.LastDurationMS,
		CreatedAt:       wh.CreatedAt,
		UpdatedAt:       wh.UpdatedAt,
	}
}

type fieldErrorResponse struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error  string               `json:"error"`
	Fields []fieldErrorResponse `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// writeError maps domain errors to status codes
func writeError(w http.ResponseWriter, err error) {
	var vErr *webhook.ValidationError
	switch {
	case errors.As(err, &vErr):
		resp := errorResponse{Error: vErr.Error()}
		for _, f := range vErr.Fields {
			resp.Fields = append(resp.Fields, fieldErrorResponse{Field: f.Field, Message: f.Message})
		}
		writeJSON(w, http.StatusUnprocessableEntity, resp)
	case errors.Is(err, webhook.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}

func decode(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// getWebhooks handles GET /v1/webhooks
func getWebhooks(service webhook.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		all := service.List(r.Context())
		result := make([]webhookResponse, 0, len(all))
		for _, wh := range all {
			result = append(result, newWebhookResponse(wh))
		}
		writeJSON(w, http.StatusOK, result)
	})
}

// getWebhook handles GET /v1/webhooks/{id}
func getWebhook(service webhook.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wh, err := service.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, newWebhookResponse(wh))
	})
}

// postWebhook handles POST /v1/webhooks
func postWebhook(service webhook.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req webhookRequest
		if err := decode(r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		id, err := service.Add(r.Context(), req.input())
		if err != nil {
			writeError(w, err)
			return
		}
		wh, err := service.Get(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Location", "/v1/webhooks/"+id)
		writeJSON(w, http.StatusCreated, newWebhookResponse(wh))
	})
}

// patchWebhook handles PATCH /v1/webhooks/{id}
func patchWebhook(service webhook.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req webhookRequest
		if err := decode(r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		wh, err := service.Update(r.Context(), chi.URLParam(r, "id"), req.input())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, newWebhookResponse(wh))
	})
}

// deleteWebhook handles DELETE /v1/webhooks/{id}
func deleteWebhook(service webhook.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

// toggleWebhook handles POST /v1/webhooks/{id}/toggle
func toggleWebhook(service webhook.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wh, err := service.ToggleActive(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, newWebhookResponse(wh))
	})
}

// resetWebhook handles POST /v1/webhooks/{id}/reset
func resetWebhook(service webhook.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wh, err := service.ResetStats(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, newWebhookResponse(wh))
	})
}
