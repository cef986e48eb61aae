package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/marcelsud/chat-webhooks/config"
	"github.com/marcelsud/chat-webhooks/delivery"
	"github.com/marcelsud/chat-webhooks/webhook"
	"github.com/marcelsud/chat-webhooks/webhook/redis"
	"github.com/rs/zerolog"
)

/* cli sends one chat message to every active webhook in the store and prints the replies
 * Usage: go run cmd/cli/main.go -user alice -channel general hello there
 */

func main() {
	user := flag.String("user", "cli", "sender shown to the webhooks")
	channel := flag.String("channel", "general", "channel the message was posted to")
	flag.Parse()

	message := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if message == "" {
		fmt.Fprintln(os.Stderr, "usage: cli [-user name] [-channel name] message...")
		os.Exit(2)
	}

	cfg, err := config.GetConfig()
	if err != nil {
		fmt.Println(err)
		return
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(cfg.GetLogLevel()).
		With().Timestamp().Logger()

	ctx := context.Background()
	repo, err := redis.NewRepository(cfg.GetRedisAddr(), cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		fmt.Println(err)
		return
	}
	defer repo.Close(ctx)

	s := webhook.NewService(repo, webhook.WithKey(cfg.GetStoreKey()), webhook.WithLogger(logger))
	s.Load(ctx)

	coordinator := delivery.NewCoordinator(s,
		delivery.NewDispatcher(delivery.WithDispatcherLogger(logger)),
		delivery.WithLogger(logger),
		delivery.WithAppName(cfg.GetAppName()),
	)
	results := coordinator.Trigger(ctx, webhook.TriggerContext{
		Message:   message,
		User:      *user,
		Channel:   *channel,
		MessageID: uuid.NewString(),
		Timestamp: time.Now(),
	})

	reply := delivery.Replies(results)
	for _, r := range reply.Texts {
		fmt.Printf("[%s] %s\n", r.WebhookName, r.Text)
	}
	if reply.Notice != "" {
		fmt.Println(reply.Notice)
	}
	fmt.Printf("%d succeeded, %d failed\n", reply.Succeeded, reply.Failed)
}
