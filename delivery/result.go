package delivery

import (
	"errors"
	"time"

	"github.com/marcelsud/chat-webhooks/webhook"
)

// AttemptResult is the outcome of one HTTP call
type AttemptResult struct {
	Success bool
	Status  int
	Body    any
	RawBody string
	Elapsed time.Duration
	Err     error
}

/* Result is the outcome of a delivery sequence for one webhook
 * Body is the decoded JSON response when possible, else the raw text
 * Only Status, Err and Elapsed are folded into the stored webhook
 */
type Result struct {
	WebhookID   string
	WebhookName string
	Success     bool
	Status      int
	Body        any
	RawBody     string
	Elapsed     time.Duration
	Attempts    int
	Err         error
}

// Failure returns the terminal classification of the result
func (r Result) Failure() Failure {
	if r.Success {
		return FailureNone
	}
	return Classify(r.Err)
}

// LastAttemptFailure returns the kind of the final attempt, looking through exhaustion
func (r Result) LastAttemptFailure() Failure {
	if r.Success {
		return FailureNone
	}
	var attempt *AttemptError
	if errors.As(r.Err, &attempt) {
		return attempt.Kind
	}
	return Classify(r.Err)
}

// ErrorMessage returns the error text, empty on success
func (r Result) ErrorMessage() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Outcome folds the result into what the store records
func (r Result) Outcome(at time.Time) webhook.Outcome {
	return webhook.Outcome{
		Success:  r.Success,
		Status:   r.Status,
		Error:    r.ErrorMessage(),
		Duration: r.Elapsed,
		At:       at,
	}
}

func resultFromAttempt(wh webhook.Webhook, a AttemptResult, attempts int) Result {
	return Result{
		WebhookID:   wh.ID,
		WebhookName: wh.Name,
		Success:     a.Success,
		Status:      a.Status,
		Body:        a.Body,
		RawBody:     a.RawBody,
		Elapsed:     a.Elapsed,
		Attempts:    attempts,
		Err:         a.Err,
	}
}
