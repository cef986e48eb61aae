package webhook

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/marcelsud/chat-webhooks/webhook/signature"
	"go.uber.org/multierr"
)

// Bounds on the per-webhook delivery policy
const (
	MinTimeoutMS    = 100
	MaxTimeoutMS    = 120000
	MaxRetries      = 10
	MaxRetryDelayMS = 60000
)

// DefaultBodyTemplate is used when a webhook is added without a body template
const DefaultBodyTemplate = `{"message":"{{message}}","user":"{{user}}","timestamp":"{{timestamp}}","channel":"{{channel}}","messageId":"{{messageId}}"}`

// Policy holds the delivery defaults applied to webhooks that do not override them
type Policy struct {
	TimeoutMS    int
	Retries      int
	RetryDelayMS int
}

// DefaultPolicy returns the built-in delivery defaults
func DefaultPolicy() Policy {
	return Policy{
		TimeoutMS:    10000,
		Retries:      2,
		RetryDelayMS: 1000,
	}
}

// Validate checks the policy against the bounds every stored webhook must satisfy
func (p Policy) Validate() error {
	in := Input{TimeoutMS: &p.TimeoutMS, Retries: &p.Retries, RetryDelayMS: &p.RetryDelayMS}
	return in.validate(false)
}

// clamp pulls every value into its bounds
func (p Policy) clamp() Policy {
	p.TimeoutMS = min(max(p.TimeoutMS, MinTimeoutMS), MaxTimeoutMS)
	p.Retries = min(max(p.Retries, 0), MaxRetries)
	p.RetryDelayMS = min(max(p.RetryDelayMS, 0), MaxRetryDelayMS)
	return p
}

/* MaxSequenceDuration is the longest a valid delivery sequence can take:
 * every attempt hitting its deadline plus the pauses between them
 */
func MaxSequenceDuration() time.Duration {
	attempts := time.Duration(MaxRetries+1) * MaxTimeoutMS * time.Millisecond
	pauses := time.Duration(MaxRetries) * MaxRetryDelayMS * time.Millisecond
	return attempts + pauses
}

/* Input carries webhook data for Add and Update
 * A nil field means "not supplied": Add fills it from defaults, Update leaves it untouched
 */
type Input struct {
	Name          *string
	URL           *string
	Method        *string
	Headers       *Headers
	BodyTemplate  *string
	Active        *bool
	TimeoutMS     *int
	Retries       *int
	RetryDelayMS  *int
	SigningSecret *string
}

// FieldError describes one invalid field
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError lists every invalid field of a rejected Input
type ValidationError struct {
	Fields []*FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Error())
	}
	return "invalid webhook: " + strings.Join(parts, "; ")
}

// Has reports whether field is among the invalid fields
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// Validate checks in as the definition of a new webhook, reporting every invalid field
func (in Input) Validate() error {
	return in.validate(true)
}

// validate checks every supplied field and collects all violations
// creating additionally requires the fields that have no default
func (in Input) validate(creating bool) error {
	var err error
	switch {
	case in.URL != nil:
		err = multierr.Append(err, validateURL(*in.URL))
	case creating:
		err = multierr.Append(err, &FieldError{Field: "url", Message: "is required"})
	}
	if in.Method != nil {
		if mErr := NewMethod(*in.Method).Validate(); mErr != nil {
			err = multierr.Append(err, &FieldError{Field: "method", Message: mErr.Error()})
		}
	}
	if in.Headers != nil {
		for _, h := range *in.Headers {
			if strings.TrimSpace(h.Name) == "" {
				err = multierr.Append(err, &FieldError{Field: "headers", Message: "header name cannot be empty"})
				break
			}
		}
	}
	if in.TimeoutMS != nil && (*in.TimeoutMS < MinTimeoutMS || *in.TimeoutMS > MaxTimeoutMS) {
		err = multierr.Append(err, &FieldError{
			Field:   "timeout_ms",
			Message: fmt.Sprintf("must be between %d and %d", MinTimeoutMS, MaxTimeoutMS),
		})
	}
	if in.Retries != nil && (*in.Retries < 0 || *in.Retries > MaxRetries) {
		err = multierr.Append(err, &FieldError{
			Field:   "retries",
			Message: fmt.Sprintf("must be between 0 and %d", MaxRetries),
		})
	}
	if in.RetryDelayMS != nil && (*in.RetryDelayMS < 0 || *in.RetryDelayMS > MaxRetryDelayMS) {
		err = multierr.Append(err, &FieldError{
			Field:   "retry_delay_ms",
			Message: fmt.Sprintf("must be between 0 and %d", MaxRetryDelayMS),
		})
	}
	if in.SigningSecret != nil && *in.SigningSecret != "" {
		if _, sErr := signature.ParseSecret(*in.SigningSecret); sErr != nil {
			err = multierr.Append(err, &FieldError{Field: "signing_secret", Message: sErr.Error()})
		}
	}
	if err == nil {
		return nil
	}

	errs := multierr.Errors(err)
	fields := make([]*FieldError, 0, len(errs))
	for _, e := range errs {
		fields = append(fields, e.(*FieldError))
	}
	return &ValidationError{Fields: fields}
}

func validateURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return &FieldError{Field: "url", Message: "is required"}
	}
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return &FieldError{Field: "url", Message: fmt.Sprintf("must be a valid URL: %v", err)}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &FieldError{Field: "url", Message: "scheme must be http or https"}
	}
	if u.Host == "" {
		return &FieldError{Field: "url", Message: "host is required"}
	}
	return nil
}

// nameFromURL derives a display label from the endpoint host
func nameFromURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Hostname() == "" {
		return raw
	}
	return u.Hostname()
}
