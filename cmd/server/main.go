// Command server is the platform's single entrypoint. It exposes three
// subcommands over one binary (spec §6): "api" runs the HTTP/webhook
// surface, "scheduler" runs the Call Scheduler tick loop, and "worker
// email" runs the Email Notification Worker. Each subcommand loads and
// validates only the configuration it needs (§7 class 1 errors exit 2).
package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/voicesurvey/platform/internal/api"
	"github.com/voicesurvey/platform/internal/config"
	"github.com/voicesurvey/platform/internal/dialogue"
	"github.com/voicesurvey/platform/internal/emailworker"
	"github.com/voicesurvey/platform/internal/eventbus"
	"github.com/voicesurvey/platform/internal/llm"
	"github.com/voicesurvey/platform/internal/mailing"
	"github.com/voicesurvey/platform/internal/pkg/distlock"
	"github.com/voicesurvey/platform/internal/pkg/logger"
	"github.com/voicesurvey/platform/internal/repository/postgres"
	"github.com/voicesurvey/platform/internal/scheduler"
	"github.com/voicesurvey/platform/internal/telephony"
	"github.com/voicesurvey/platform/internal/webhookingestor"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: server <api|scheduler|worker> [email]")
		os.Exit(2)
	}

	var subcommand string
	switch os.Args[1] {
	case "api":
		subcommand = "api"
	case "scheduler":
		subcommand = "scheduler"
	case "worker":
		if len(os.Args) < 3 || os.Args[2] != "email" {
			fmt.Fprintln(os.Stderr, "usage: server worker email")
			os.Exit(2)
		}
		subcommand = "worker-email"
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand %q\n", os.Args[1])
		os.Exit(2)
	}

	cfgPath := os.Getenv("CONFIG_FILE")
	cfg, err := config.LoadFromEnv(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	if err := cfg.Validate(subcommand); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		logger.Error("failed to open database", "error", err.Error())
		os.Exit(3)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime())
	if err := db.PingContext(ctx); err != nil {
		logger.Error("database unreachable", "error", err.Error())
		os.Exit(3)
	}

	switch subcommand {
	case "api":
		err = runAPI(ctx, cfg, db)
	case "scheduler":
		err = runScheduler(ctx, cfg, db)
	case "worker-email":
		err = runEmailWorker(ctx, cfg, db)
	}
	if err != nil {
		logger.Error("fatal", "subcommand", subcommand, "error", err.Error())
		os.Exit(3)
	}
}

func runAPI(ctx context.Context, cfg *config.Config, db *sql.DB) error {
	webhookRepo := postgres.NewWebhookRepo(db)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.LLM.Region))
	if err != nil {
		return fmt.Errorf("aws config: %w", err)
	}

	var orchestrator *dialogue.Orchestrator
	if cfg.LLM.Provider == "bedrock" {
		bedrockClient := llm.NewBedrockClient(bedrockruntime.NewFromConfig(awsCfg), cfg.LLM.Model)
		orchestrator = dialogue.New(llm.NewConsentDetector(bedrockClient), llm.NewQAOrchestrator(bedrockClient))
	}

	var bus eventbus.Bus
	if cfg.EventBus.URL != "" {
		bus = eventbus.NewSQSBus(sqs.NewFromConfig(awsCfg), cfg.EventBus.URL)
	}
	publisher := eventbus.NewPublisher(bus)

	ingestor := webhookingestor.New(webhookRepo, publisher, orchestrator)
	srv := api.NewServer(ingestor, cfg.Telephony.AuthToken, db)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server listening", "addr", addr)
		if err := srv.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("api server shutting down")
	return srv.Shutdown(shutdownCtx)
}

func runScheduler(ctx context.Context, cfg *config.Config, db *sql.DB) error {
	var redisClient *redis.Client
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			return fmt.Errorf("redis url: %w", err)
		}
		redisClient = redis.NewClient(opts)
	}
	lock := distlock.NewLock(redisClient, db, cfg.Scheduler.LockKey, 2*cfg.Scheduler.Interval())

	repo := postgres.NewSchedulerRepo(db)
	telClient := telephony.NewClient(http.DefaultClient, cfg.Telephony.WebhookBaseURL, cfg.Telephony.AuthToken, cfg.Telephony.FromNumber)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.EventBus.Region))
	if err != nil {
		return fmt.Errorf("aws config: %w", err)
	}
	bus := eventbus.NewSQSBus(sqs.NewFromConfig(awsCfg), cfg.EventBus.URL)
	publisher := eventbus.NewPublisher(bus)
	failures := webhookingestor.New(postgres.NewWebhookRepo(db), publisher, nil)

	sched := scheduler.New(repo, telClient, failures, lock, cfg.Telephony.MaxConcurrentCalls, cfg.Scheduler.Prefetch(), cfg.Scheduler.Interval(), cfg.Telephony.WebhookBaseURL)

	sched.Start(ctx)
	logger.Info("call scheduler started", "interval", cfg.Scheduler.Interval().String())
	<-ctx.Done()
	logger.Info("call scheduler shutting down")
	sched.Stop()
	return nil
}

func runEmailWorker(ctx context.Context, cfg *config.Config, db *sql.DB) error {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Email.Region))
	if err != nil {
		return fmt.Errorf("aws config: %w", err)
	}

	bus := eventbus.NewSQSBus(sqs.NewFromConfig(awsCfg), cfg.EventBus.URL)
	repo := postgres.NewEmailWorkerRepo(db)
	templates := mailing.NewPostgresTemplateStore(db)
	renderer := mailing.NewTemplateService()
	sender := mailing.NewSESSender(sesv2.NewFromConfig(awsCfg))

	pollWait := time.Duration(cfg.Email.PollIntervalSecs) * time.Second
	w := emailworker.New(bus, repo, templates, renderer, sender, cfg.Email.From, cfg.Email.MaxRetriesOrDefault(), pollWait, 10)

	w.Start(ctx)
	logger.Info("email worker started", "poll_interval", pollWait.String())
	<-ctx.Done()
	logger.Info("email worker shutting down")
	w.Stop()
	return nil
}
