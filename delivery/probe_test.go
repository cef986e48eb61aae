package delivery_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/marcelsud/chat-webhooks/delivery"
	"github.com/marcelsud/chat-webhooks/webhook"
	"github.com/marcelsud/chat-webhooks/webhook/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestProber(t *testing.T) {
	ctx := context.Background()

	t.Run("single attempt with a marked synthetic payload", func(t *testing.T) {
		var (
			calls      atomic.Int32
			testHeader string
			body       map[string]any
		)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			testHeader = r.Header.Get(delivery.TestHeader)
			raw, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(raw, &body)
			_, _ = w.Write([]byte(`{"reply":"pong"}`))
		}))
		defer srv.Close()

		wh := newWebhook("wh-1", srv.URL)
		wh.Retries = 5

		res := delivery.NewProber(delivery.NewDispatcher(), nil, "chat").Test(ctx, wh)

		require.True(t, res.Success)
		assert.Equal(t, 1, res.Attempts)
		assert.Equal(t, int32(1), calls.Load())
		assert.Equal(t, map[string]any{"reply": "pong"}, res.Body)
		assert.Greater(t, res.Elapsed.Nanoseconds(), int64(0))
		assert.Equal(t, "true", testHeader)
		assert.Equal(t, "This is a test message from chat", body["message"])
		assert.Equal(t, "Test User", body["user"])
		assert.Equal(t, "test", body["channel"])

		assert.Len(t, wh.Headers, 1, "caller's headers are untouched")
	})

	t.Run("failure is not retried", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		wh := newWebhook("wh-1", srv.URL)
		wh.Retries = 3

		res := delivery.NewProber(delivery.NewDispatcher(), nil, "chat").Test(ctx, wh)

		assert.False(t, res.Success)
		assert.Equal(t, int32(1), calls.Load())
		assert.Equal(t, http.StatusNotFound, res.Status)
		assert.Equal(t, delivery.FailureHTTP, res.Failure())
	})

	t.Run("probing never writes to the store", func(t *testing.T) {
		repo := mocks.NewRepository(t)
		store := webhook.NewService(repo)

		repo.On("Set", ctx, webhook.DefaultStoreKey, mock.Anything).Return(nil).Twice()
		okID := add(t, store, webhook.Input{URL: ptr(okServer(t, "ok").URL)})
		badID := add(t, store, webhook.Input{URL: ptr(failingServer(t).URL), Active: ptr(false)})

		prober := delivery.NewProber(delivery.NewDispatcher(), store, "chat")
		for _, id := range []string{okID, badID} {
			_, err := prober.TestByID(ctx, id)
			require.NoError(t, err)

			wh, err := store.Get(ctx, id)
			require.NoError(t, err)
			assert.Zero(t, wh.SuccessCount)
			assert.Zero(t, wh.FailureCount)
			assert.Nil(t, wh.LastTriggeredAt)
			assert.Zero(t, wh.LastStatus)
		}
		repo.AssertNumberOfCalls(t, "Set", 2)
	})

	t.Run("recorded attempts are tagged as test traffic", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("ok"))
		}))
		defer srv.Close()

		rec := &fakeRecorder{}
		dispatcher := delivery.NewDispatcher(delivery.WithRecorder(rec))
		wh := newWebhook("wh-1", srv.URL)

		delivery.NewProber(dispatcher, nil, "chat").Test(ctx, wh)
		dispatcher.DeliverWithRetry(ctx, wh, "{}")

		assert.Equal(t, []bool{true, false}, rec.marked)
		assert.False(t, delivery.IsTest(wh))
	})

	t.Run("unknown id", func(t *testing.T) {
		store := webhook.NewService(mocks.NewRepository(t))
		_, err := delivery.NewProber(delivery.NewDispatcher(), store, "chat").TestByID(ctx, "missing")
		assert.ErrorIs(t, err, webhook.ErrNotFound)
	})
}
