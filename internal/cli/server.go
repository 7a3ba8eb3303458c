package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"tg-quiz-miniapp/internal/app"
	"tg-quiz-miniapp/internal/config"
	"tg-quiz-miniapp/internal/domain"
	"tg-quiz-miniapp/internal/infra/file"
	"tg-quiz-miniapp/internal/infra/memory"
	pgloader "tg-quiz-miniapp/internal/infra/postgres"
	redisinfra "tg-quiz-miniapp/internal/infra/redis"
	"tg-quiz-miniapp/internal/transport/api"
	transport "tg-quiz-miniapp/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewServeCmd builds the CLI subcommand to start the session gateway.
func NewServeCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the websocket session gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	// Backend client doubles as quiz loader, event deliverer and result
	// submitter. Without one, quizzes come from postgres or the built-in
	// sample, and telemetry is logged instead of shipped.
	var backend *api.Client
	if cfg.API.BaseURL != "" {
		backend = api.NewClient(cfg.API.BaseURL, config.TTLDuration(cfg.API.Timeout, 10*time.Second))
	}

	var loader memory.QuizLoader = memory.NewStaticQuizLoader(sampleQuizzes())
	switch {
	case backend != nil:
		loader = backend
	case pool != nil:
		loader = pgloader.NewQuizLoader(pool)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	if redisClient != nil {
		quizRepo = redisinfra.NewQuizRepository(redisClient, loader, quizTTL)
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
	}

	var deliverer app.EventDeliverer = logDeliverer{}
	var submitter app.ResultSubmitter = logSubmitter{}
	if backend != nil {
		deliverer = backend
		submitter = backend
	}

	queue, newProgressStore, err := buildStores(cfg, redisClient)
	if err != nil {
		return err
	}

	wsHandler := transport.NewWSHandler(transport.Deps{
		Quizzes:          quizRepo,
		Deliverer:        deliverer,
		Submitter:        submitter,
		Queue:            queue,
		NewProgressStore: newProgressStore,
		RetryDelay:       config.TTLDuration(cfg.Analytics.RetryDelay, 5*time.Second),
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz mini-app gateway on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// buildStores picks the durable flavor for the retry queue and progress
// slots: redis when configured, a storage directory next, memory last.
func buildStores(cfg config.Config, redisClient *redis.Client) (app.EventQueue, func(string) app.ProgressStore, error) {
	progressTTL := config.TTLDuration(cfg.Progress.TTL, domain.ProgressTTL)
	queueCap := cfg.Analytics.QueueCap
	if queueCap <= 0 {
		queueCap = domain.QueueCap
	}

	if redisClient != nil {
		queue := redisinfra.NewEventQueueWithCap(redisClient, "miniapp:events", queueCap)
		newStore := func(userID string) app.ProgressStore {
			return redisinfra.NewProgressStoreWithTTL(redisClient, "miniapp:progress:"+userID, progressTTL)
		}
		return queue, newStore, nil
	}
	if cfg.Storage.Dir != "" {
		if err := os.MkdirAll(cfg.Storage.Dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create storage dir: %w", err)
		}
		queue := file.NewEventQueueWithCap(filepath.Join(cfg.Storage.Dir, "events.json"), queueCap)
		newStore := func(userID string) app.ProgressStore {
			return file.NewProgressStoreWithTTL(filepath.Join(cfg.Storage.Dir, "progress-"+userID+".json"), progressTTL)
		}
		return queue, newStore, nil
	}
	queue := memory.NewEventQueueWithCap(queueCap)
	newStore := func(string) app.ProgressStore {
		return memory.NewProgressStoreWithTTL(progressTTL)
	}
	return queue, newStore, nil
}

type logDeliverer struct{}

func (logDeliverer) DeliverEvent(_ context.Context, event domain.TelemetryEvent) error {
	log.Printf("analytics (no backend): %s user=%s session=%s", event.Action, event.UserID, event.SessionID)
	return nil
}

type logSubmitter struct{}

func (logSubmitter) SubmitResult(_ context.Context, result domain.QuizResult) error {
	log.Printf("result (no backend): quiz=%s user=%s answered=%d clickLink=%v",
		result.QuizID, result.TgID, result.QuestionsAnswered, result.ClickLink)
	return nil
}

// sampleQuizzes keeps the gateway usable with no backend or database wired.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			QuizID:   "quiz-1",
			QuizName: "Warm-up",
			Questions: []domain.Question{
				{QuestionID: 1, Question: "What is 2 + 2?", Answer1: "3", Answer2: "4", Answer3: "5", CorrectAnswer: 2},
				{QuestionID: 2, Question: "How many days are in a week?", Answer1: "7", Answer2: "6", Answer3: "8", CorrectAnswer: 1},
				{QuestionID: 3, Question: "Which planet is closest to the sun?", Answer1: "Venus", Answer2: "Mars", Answer3: "Mercury", CorrectAnswer: 3},
				{QuestionID: 4, Question: "What color mixes blue and yellow?", Answer1: "Green", Answer2: "Purple", Answer3: "Orange", CorrectAnswer: 1},
				{QuestionID: 5, Question: "How many minutes are in an hour?", Answer1: "90", Answer2: "60", Answer3: "100", CorrectAnswer: 2},
				{QuestionID: 6, Question: "Which ocean is the largest?", Answer1: "Atlantic", Answer2: "Indian", Answer3: "Pacific", CorrectAnswer: 3},
			},
		},
	}
}
