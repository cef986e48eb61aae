package delivery_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/marcelsud/chat-webhooks/delivery"
	"github.com/marcelsud/chat-webhooks/webhook"
	"github.com/marcelsud/chat-webhooks/webhook/signature"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWebhook(id, url string) webhook.Webhook {
	return webhook.Webhook{
		ID:           id,
		Name:         id,
		URL:          url,
		Method:       webhook.POST,
		Headers:      webhook.Headers{{Name: "Content-Type", Value: "application/json"}},
		BodyTemplate: webhook.DefaultBodyTemplate,
		Active:       true,
		TimeoutMS:    1000,
		Retries:      0,
		RetryDelayMS: 0,
	}
}

// hangingHandler never answers; it returns once the client gives up
// The body is drained first so the server notices the client hanging up
func hangingHandler(w http.ResponseWriter, r *http.Request) {
	_, _ = io.Copy(io.Discard, r.Body)
	select {
	case <-r.Context().Done():
	case <-time.After(5 * time.Second):
	}
}

type fakeRecorder struct {
	mu        sync.Mutex
	attempts  []delivery.Failure
	marked    []bool
	sequences []delivery.Result
}

func (f *fakeRecorder) RecordAttempt(_ context.Context, wh webhook.Webhook, kind delivery.Failure, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts = append(f.attempts, kind)
	f.marked = append(f.marked, delivery.IsTest(wh))
}

func (f *fakeRecorder) RecordSequence(_ context.Context, _ webhook.Webhook, res delivery.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sequences = append(f.sequences, res)
}

func TestAttempt(t *testing.T) {
	ctx := context.Background()

	t.Run("success - method, headers and body are sent", func(t *testing.T) {
		var (
			gotMethod, gotBody, gotToken, gotType string
		)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			gotMethod = r.Method
			gotBody = string(body)
			gotToken = r.Header.Get("X-Token")
			gotType = r.Header.Get("Content-Type")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"message":"got it"}`))
		}))
		defer srv.Close()

		wh := newWebhook("wh-1", srv.URL)
		wh.Method = webhook.PUT
		wh.Headers = append(wh.Headers, webhook.Header{Name: "X-Token", Value: "secret"})

		res := delivery.NewDispatcher().Attempt(ctx, wh, `{"message":"hi"}`)

		require.True(t, res.Success)
		assert.NoError(t, res.Err)
		assert.Equal(t, http.StatusCreated, res.Status)
		assert.Equal(t, map[string]any{"message": "got it"}, res.Body)
		assert.Equal(t, `{"message":"got it"}`, res.RawBody)
		assert.Greater(t, res.Elapsed, time.Duration(0))

		assert.Equal(t, http.MethodPut, gotMethod)
		assert.Equal(t, `{"message":"hi"}`, gotBody)
		assert.Equal(t, "secret", gotToken)
		assert.Equal(t, "application/json", gotType)
	})

	t.Run("success - plain text response", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("thanks"))
		}))
		defer srv.Close()

		res := delivery.NewDispatcher().Attempt(ctx, newWebhook("wh-1", srv.URL), "{}")
		require.True(t, res.Success)
		assert.Equal(t, "thanks", res.Body)
	})

	t.Run("failure - non 2xx status keeps the body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"boom"}`))
		}))
		defer srv.Close()

		res := delivery.NewDispatcher().Attempt(ctx, newWebhook("wh-1", srv.URL), "{}")
		assert.False(t, res.Success)
		assert.Equal(t, http.StatusInternalServerError, res.Status)
		assert.Equal(t, map[string]any{"error": "boom"}, res.Body)
		assert.ErrorIs(t, res.Err, delivery.ErrHTTPStatus)
		assert.Equal(t, delivery.FailureHTTP, delivery.Classify(res.Err))
		assert.Equal(t, "http status 500", res.Err.Error())
	})

	t.Run("failure - connection refused is a transport error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := srv.URL
		srv.Close()

		res := delivery.NewDispatcher().Attempt(ctx, newWebhook("wh-1", url), "{}")
		assert.False(t, res.Success)
		assert.Zero(t, res.Status)
		assert.ErrorIs(t, res.Err, delivery.ErrTransport)
		assert.Equal(t, delivery.FailureTransport, delivery.Classify(res.Err))
	})

	t.Run("failure - deadline is a timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(hangingHandler))
		defer srv.Close()

		wh := newWebhook("wh-1", srv.URL)
		wh.TimeoutMS = 100

		res := delivery.NewDispatcher().Attempt(ctx, wh, "{}")
		assert.False(t, res.Success)
		assert.ErrorIs(t, res.Err, delivery.ErrTimeout)
		assert.Equal(t, delivery.FailureTimeout, delivery.Classify(res.Err))
		assert.Contains(t, res.Err.Error(), "timeout")
		assert.GreaterOrEqual(t, res.Elapsed, 100*time.Millisecond)
	})

	t.Run("GET sends no body", func(t *testing.T) {
		var gotLength int64 = -2
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotLength = r.ContentLength
		}))
		defer srv.Close()

		wh := newWebhook("wh-1", srv.URL)
		wh.Method = webhook.GET

		res := delivery.NewDispatcher().Attempt(ctx, wh, `{"ignored":true}`)
		require.True(t, res.Success)
		assert.Equal(t, int64(0), gotLength)
	})

	t.Run("signing secret adds verifiable signature headers", func(t *testing.T) {
		secret, err := signature.GenerateSecret(32)
		require.NoError(t, err)

		var valid bool
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			valid, _ = signature.Verify(secret, r.Header, body)
			assert.True(t, strings.HasPrefix(r.Header.Get(signature.HeaderID), "msg_"))
		}))
		defer srv.Close()

		wh := newWebhook("wh-1", srv.URL)
		wh.SigningSecret = secret.String()

		res := delivery.NewDispatcher().Attempt(ctx, wh, `{"message":"signed"}`)
		require.True(t, res.Success)
		assert.True(t, valid)
	})

	t.Run("response body is truncated", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(strings.Repeat("x", 100)))
		}))
		defer srv.Close()

		res := delivery.NewDispatcher(delivery.WithMaxBodyBytes(10)).Attempt(ctx, newWebhook("wh-1", srv.URL), "{}")
		require.True(t, res.Success)
		assert.Equal(t, strings.Repeat("x", 10), res.RawBody)
	})

	t.Run("invalid url is a transport error", func(t *testing.T) {
		res := delivery.NewDispatcher().Attempt(ctx, newWebhook("wh-1", "http://bad host/"), "{}")
		assert.False(t, res.Success)
		assert.ErrorIs(t, res.Err, delivery.ErrTransport)
	})
}

func TestDeliverWithRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("permanently failing endpoint gets retries+1 attempts", func(t *testing.T) {
		for _, retries := range []int{0, 1, 3} {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(http.StatusBadGateway)
			}))

			wh := newWebhook("wh-1", srv.URL)
			wh.Retries = retries
			wh.RetryDelayMS = 5

			res := delivery.NewDispatcher().DeliverWithRetry(ctx, wh, "{}")
			srv.Close()

			assert.Equal(t, int32(retries+1), calls.Load())
			assert.Equal(t, retries+1, res.Attempts)
			assert.False(t, res.Success)
			assert.Equal(t, delivery.FailureRetriesExhausted, res.Failure())
			assert.Equal(t, delivery.FailureHTTP, res.LastAttemptFailure())
			assert.ErrorIs(t, res.Err, delivery.ErrRetriesExhausted)
			assert.ErrorIs(t, res.Err, delivery.ErrHTTPStatus)
			assert.Equal(t, http.StatusBadGateway, res.Status)

			var exhausted *delivery.ExhaustedError
			require.True(t, errors.As(res.Err, &exhausted))
			assert.Equal(t, retries+1, exhausted.Attempts)
		}
	})

	t.Run("endpoint succeeding on attempt k gets exactly k attempts", func(t *testing.T) {
		const retries = 3
		for k := 1; k <= retries+1; k++ {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if int(calls.Add(1)) < k {
					w.WriteHeader(http.StatusServiceUnavailable)
					return
				}
				_, _ = w.Write([]byte(`{"reply":"ok"}`))
			}))

			wh := newWebhook("wh-1", srv.URL)
			wh.Retries = retries
			wh.RetryDelayMS = 5

			res := delivery.NewDispatcher().DeliverWithRetry(ctx, wh, "{}")
			srv.Close()

			assert.True(t, res.Success, "k=%d", k)
			assert.NoError(t, res.Err)
			assert.Equal(t, k, res.Attempts)
			assert.Equal(t, int32(k), calls.Load())
			assert.Equal(t, http.StatusOK, res.Status)
			assert.Equal(t, map[string]any{"reply": "ok"}, res.Body)
			assert.Equal(t, delivery.FailureNone, res.Failure())
		}
	})

	t.Run("never responding endpoint times out on every attempt", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(hangingHandler))
		defer srv.Close()

		wh := newWebhook("wh-1", srv.URL)
		wh.TimeoutMS = 100
		wh.Retries = 2
		wh.RetryDelayMS = 50

		res := delivery.NewDispatcher().DeliverWithRetry(ctx, wh, "{}")

		assert.False(t, res.Success)
		assert.Equal(t, 3, res.Attempts)
		assert.Zero(t, res.Status)
		assert.GreaterOrEqual(t, res.Elapsed, 400*time.Millisecond)
		assert.Equal(t, delivery.FailureTimeout, res.LastAttemptFailure())
		assert.ErrorIs(t, res.Err, delivery.ErrTimeout)
		assert.Contains(t, res.Outcome(time.Now()).Error, "timeout")
	})

	t.Run("only the last attempt's diagnostics are kept", func(t *testing.T) {
		statuses := []int{http.StatusInternalServerError, http.StatusServiceUnavailable, http.StatusTooManyRequests}
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			i := calls.Add(1) - 1
			w.WriteHeader(statuses[i])
			_, _ = w.Write([]byte("attempt body"))
		}))
		defer srv.Close()

		wh := newWebhook("wh-1", srv.URL)
		wh.Retries = 2

		res := delivery.NewDispatcher().DeliverWithRetry(ctx, wh, "{}")
		assert.Equal(t, http.StatusTooManyRequests, res.Status)
		assert.Contains(t, res.ErrorMessage(), "http status 429")
		assert.NotContains(t, res.ErrorMessage(), "500")
	})

	t.Run("every attempt gets a fresh timeout", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(120 * time.Millisecond)
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		wh := newWebhook("wh-1", srv.URL)
		wh.TimeoutMS = 200
		wh.Retries = 1

		res := delivery.NewDispatcher().DeliverWithRetry(ctx, wh, "{}")
		assert.True(t, res.Success)
		assert.Equal(t, 2, res.Attempts)
		assert.Greater(t, res.Elapsed, 200*time.Millisecond)
	})

	t.Run("recorder sees every attempt and one sequence", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		rec := &fakeRecorder{}
		wh := newWebhook("wh-1", srv.URL)
		wh.Retries = 2

		delivery.NewDispatcher(delivery.WithRecorder(rec)).DeliverWithRetry(ctx, wh, "{}")

		assert.Equal(t, []delivery.Failure{delivery.FailureHTTP, delivery.FailureHTTP, delivery.FailureHTTP}, rec.attempts)
		require.Len(t, rec.sequences, 1)
		assert.Equal(t, 3, rec.sequences[0].Attempts)
	})

	t.Run("cancelled context stops retrying", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		cctx, cancel := context.WithCancel(ctx)
		wh := newWebhook("wh-1", srv.URL)
		wh.Retries = 5
		wh.RetryDelayMS = 1000

		go func() {
			time.Sleep(50 * time.Millisecond)
			cancel()
		}()
		res := delivery.NewDispatcher().DeliverWithRetry(cctx, wh, "{}")

		assert.False(t, res.Success)
		assert.Equal(t, int32(1), calls.Load())
		assert.Equal(t, delivery.FailureRetriesExhausted, res.Failure())
	})
}
