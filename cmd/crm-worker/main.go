package main

import (
	"context"
	"log"

	"dinequeue/waitlist-service/internal/config"
	"dinequeue/waitlist-service/internal/crm"
	"dinequeue/waitlist-service/internal/store/postgres"
	"dinequeue/waitlist-service/internal/telemetry"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg := config.Load()

	shutdownTracing := telemetry.Setup("crm-worker")
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Printf("tracing shutdown error: %v", err)
		}
	}()

	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	handlers := crm.NewHandlers(postgres.NewStore(pool))

	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(crm.TypeIncrementVisit, handlers.HandleIncrementVisit)

	log.Printf("crm-worker consuming from %s", cfg.RedisAddr)
	if err := srv.Run(mux); err != nil {
		log.Fatalf("worker error: %v", err)
	}
}
