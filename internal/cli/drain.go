package cli

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"tg-quiz-miniapp/internal/app"
	"tg-quiz-miniapp/internal/config"
	"tg-quiz-miniapp/internal/infra/file"
	redisinfra "tg-quiz-miniapp/internal/infra/redis"
	"tg-quiz-miniapp/internal/transport/api"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewDrainCmd runs one delivery pass over the durable telemetry queue.
// Useful after a backend outage, instead of waiting for the next session's
// scheduled retry.
func NewDrainCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "drain",
		Short: "Retry delivery of queued telemetry events once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDrain(cmd.Context(), *configPath)
		},
	}
}

func runDrain(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.API.BaseURL == "" {
		return fmt.Errorf("api base url not configured")
	}

	var queue app.EventQueue
	switch {
	case cfg.Redis.Addr != "":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		queue = redisinfra.NewEventQueue(client, "miniapp:events")
	case cfg.Storage.Dir != "":
		queue = file.NewEventQueue(filepath.Join(cfg.Storage.Dir, "events.json"))
	default:
		return fmt.Errorf("no durable queue configured (redis addr or storage dir)")
	}

	backend := api.NewClient(cfg.API.BaseURL, config.TTLDuration(cfg.API.Timeout, 10*time.Second))

	before := len(queue.Events())
	queue.DrainAttempt(ctx, backend.DeliverEvent)
	after := len(queue.Events())
	log.Printf("drain: %d queued, %d delivered, %d still pending", before, before-after, after)
	return nil
}
