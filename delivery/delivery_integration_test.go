//go:build integration

package delivery_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/marcelsud/chat-webhooks/delivery"
	"github.com/marcelsud/chat-webhooks/webhook"
	wbredis "github.com/marcelsud/chat-webhooks/webhook/redis"
	"github.com/marcelsud/chat-webhooks/webhook/signature"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testcontainersredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

// ReceivedWebhook captures what an endpoint saw
type ReceivedWebhook struct {
	Headers http.Header
	Body    []byte
}

func TestTrigger_EndToEnd(t *testing.T) {
	ctx := context.Background()

	redisContainer, err := testcontainersredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	defer func() {
		if err := redisContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Redis container: %v", err)
		}
	}()

	addr, err := redisContainer.ConnectionString(ctx)
	require.NoError(t, err)
	addr = strings.TrimPrefix(addr, "redis://")

	repo, err := wbredis.NewRepository(addr, "", 0)
	require.NoError(t, err)
	defer repo.Close(ctx)

	secret, err := signature.GenerateSecret(32)
	require.NoError(t, err)

	var (
		mu       sync.Mutex
		received []ReceivedWebhook
	)
	signed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		received = append(received, ReceivedWebhook{Headers: r.Header.Clone(), Body: body})
		mu.Unlock()

		if ok, _ := signature.Verify(secret, r.Header, body); !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"message":"verified"}`))
	}))
	defer signed.Close()

	unreachable := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	unreachableURL := unreachable.URL
	unreachable.Close()

	store := webhook.NewService(repo, webhook.WithKey("chat:webhooks:e2e"))
	store.Load(ctx)

	signedID, err := store.Add(ctx, webhook.Input{URL: ptr(signed.URL), SigningSecret: ptr(secret.String())})
	require.NoError(t, err)
	downID, err := store.Add(ctx, webhook.Input{URL: ptr(unreachableURL), Retries: ptr(1), RetryDelayMS: ptr(10)})
	require.NoError(t, err)

	coordinator := delivery.NewCoordinator(store, delivery.NewDispatcher(), delivery.WithAppName("chat"))
	results := coordinator.Trigger(ctx, webhook.TriggerContext{
		Message:   "ship it",
		User:      "Ana",
		Channel:   "deploys",
		MessageID: "m-77",
		Timestamp: time.Now(),
	})

	require.Len(t, results, 2)
	assert.True(t, results[signedID].Success)
	assert.False(t, results[downID].Success)
	assert.Equal(t, delivery.FailureTransport, results[downID].LastAttemptFailure())

	reply := delivery.Replies(results)
	require.Len(t, reply.Texts, 1)
	assert.Equal(t, "verified", reply.Texts[0].Text)

	mu.Lock()
	require.Len(t, received, 1)
	assert.True(t, strings.HasPrefix(received[0].Headers.Get(signature.HeaderSignature), "v1,"))
	assert.Contains(t, string(received[0].Body), `"message":"ship it"`)
	mu.Unlock()

	t.Run("statistics survive a reload from Redis", func(t *testing.T) {
		reloaded := webhook.NewService(repo, webhook.WithKey("chat:webhooks:e2e"))
		reloaded.Load(ctx)

		up, err := reloaded.Get(ctx, signedID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), up.SuccessCount)
		assert.Equal(t, http.StatusOK, up.LastStatus)

		down, err := reloaded.Get(ctx, downID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), down.FailureCount)
		assert.Contains(t, down.LastError, "transport error")
	})
}
