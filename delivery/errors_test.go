package delivery

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFailureString(t *testing.T) {
	assert.Equal(t, "none", FailureNone.String())
	assert.Equal(t, "timeout", FailureTimeout.String())
	assert.Equal(t, "transport_error", FailureTransport.String())
	assert.Equal(t, "http_error", FailureHTTP.String())
	assert.Equal(t, "retries_exhausted", FailureRetriesExhausted.String())
	assert.Equal(t, "unknown", Failure(99).String())
}

func TestErrors(t *testing.T) {
	t.Run("attempt error unwraps to its kind and cause", func(t *testing.T) {
		cause := fmt.Errorf("dial tcp: connection refused")
		err := &AttemptError{Kind: FailureTransport, Cause: cause}

		assert.ErrorIs(t, err, ErrTransport)
		assert.ErrorIs(t, err, cause)
		assert.NotErrorIs(t, err, ErrTimeout)
		assert.Equal(t, "transport error: dial tcp: connection refused", err.Error())
	})

	t.Run("exhausted error keeps the last attempt", func(t *testing.T) {
		err := fmt.Errorf("delivering: %w", &ExhaustedError{
			Attempts: 3,
			Last:     &AttemptError{Kind: FailureHTTP, Status: 503},
		})

		assert.ErrorIs(t, err, ErrRetriesExhausted)
		assert.ErrorIs(t, err, ErrHTTPStatus)
		assert.Equal(t, FailureRetriesExhausted, Classify(err))
		assert.Equal(t, "delivering: retries exhausted after 3 attempt(s): http status 503", err.Error())

		var attempt *AttemptError
		assert.True(t, errors.As(err, &attempt))
		assert.Equal(t, 503, attempt.Status)
	})

	t.Run("classify", func(t *testing.T) {
		assert.Equal(t, FailureNone, Classify(nil))
		assert.Equal(t, FailureTimeout, Classify(&AttemptError{Kind: FailureTimeout}))
		assert.Equal(t, FailureTransport, Classify(errors.New("anything else")))
	})

	t.Run("result classification", func(t *testing.T) {
		res := Result{Err: &ExhaustedError{Attempts: 1, Last: &AttemptError{Kind: FailureTimeout}}}
		assert.Equal(t, FailureRetriesExhausted, res.Failure())
		assert.Equal(t, FailureTimeout, res.LastAttemptFailure())
		assert.Equal(t, FailureNone, Result{Success: true}.Failure())
	})
}
