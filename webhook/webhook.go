package webhook

import (
	"strings"
	"time"
)

/* Webhook is a configured outbound endpoint plus its delivery policy and statistics
 * Uses value semantics as it represents data, not behavior
 */
type Webhook struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	URL           string  `json:"url"`
	Method        Method  `json:"method"`
	Headers       Headers `json:"headers"`
	BodyTemplate  string  `json:"body_template"`
	Active        bool    `json:"active"`
	TimeoutMS     int     `json:"timeout_ms"`
	Retries       int     `json:"retries"`
	RetryDelayMS  int     `json:"retry_delay_ms"`
	SigningSecret string  `json:"signing_secret,omitempty"`

	SuccessCount    int64      `json:"success_count"`
	FailureCount    int64      `json:"failure_count"`
	LastTriggeredAt *time.Time `json:"last_triggered_at,omitempty"`
	LastStatus      int        `json:"last_status"`
	LastError       string     `json:"last_error,omitempty"`
	LastDurationMS  int64      `json:"last_duration_ms"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Timeout returns the per-attempt deadline
func (w Webhook) Timeout() time.Duration {
	return time.Duration(w.TimeoutMS) * time.Millisecond
}

// RetryDelay returns the fixed pause between attempts
func (w Webhook) RetryDelay() time.Duration {
	return time.Duration(w.RetryDelayMS) * time.Millisecond
}

// clone returns a copy that shares no slices or pointers with w
func (w Webhook) clone() Webhook {
	c := w
	c.Headers = w.Headers.Clone()
	if w.LastTriggeredAt != nil {
		t := *w.LastTriggeredAt
		c.LastTriggeredAt = &t
	}
	return c
}

// Header is a single request header
type Header struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// Headers keeps request headers in the order they were configured
type Headers []Header

const (
	contentTypeHeader  = "Content-Type"
	defaultContentType = "application/json"
)

// Get returns the value of the first header matching name, case-insensitively
func (h Headers) Get(name string) (string, bool) {
	for _, header := range h {
		if strings.EqualFold(strings.TrimSpace(header.Name), strings.TrimSpace(name)) {
			return header.Value, true
		}
	}
	return "", false
}

// Set replaces the value of an existing header or appends a new one
func (h Headers) Set(name, value string) Headers {
	for i, header := range h {
		if strings.EqualFold(strings.TrimSpace(header.Name), strings.TrimSpace(name)) {
			h[i].Value = value
			return h
		}
	}
	return append(h, Header{Name: name, Value: value})
}

// Clone copies the header list
func (h Headers) Clone() Headers {
	if h == nil {
		return nil
	}
	return append(Headers(nil), h...)
}

// withDefaults prepends Content-Type when the caller did not configure one
func (h Headers) withDefaults() Headers {
	if _, ok := h.Get(contentTypeHeader); ok {
		return h.Clone()
	}
	return append(Headers{{Name: contentTypeHeader, Value: defaultContentType}}, h...)
}

// Outcome is the folded result of one completed delivery sequence
type Outcome struct {
	Success  bool
	Status   int
	Error    string
	Duration time.Duration
	At       time.Time
}
