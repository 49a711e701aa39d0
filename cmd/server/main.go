package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tasks "chatroom/internal/Tasks"
	"chatroom/internal/api"
	"chatroom/internal/chat"
	"chatroom/internal/clock"
	"chatroom/internal/config"
	"chatroom/internal/db"
	"chatroom/internal/metrics"
	"chatroom/internal/middleware"
	"chatroom/internal/presence"
	"chatroom/internal/repository"
	"chatroom/internal/telemetry"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type stores struct {
	participants repository.ParticipantRepo
	messages     repository.MessageRepo
	checks       []func(context.Context) error
	closers      []func()
}

func (s *stores) health(ctx context.Context) error {
	for _, check := range s.checks {
		if err := check(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *stores) close() {
	for _, c := range s.closers {
		c()
	}
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	s := &stores{}

	var pool *pgxpool.Pool
	if cfg.NeedsPostgres() {
		var err error
		pool, err = db.Connect(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		s.checks = append(s.checks, pool.Ping)
		s.closers = append(s.closers, pool.Close)
	}

	switch cfg.ParticipantStore {
	case config.StorePostgres:
		s.participants = repository.NewParticipantRepo(pool)
	case config.StoreRedis:
		client, err := repository.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			s.close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		s.participants = repository.NewRedisParticipantRepo(client)
		s.checks = append(s.checks, func(ctx context.Context) error { return client.Ping(ctx).Err() })
		s.closers = append(s.closers, func() { closeRedis(client) })
	default:
		log.Println("[STORE] ⚠️  Participants kept in memory; they are lost on restart")
		s.participants = repository.NewMemoryParticipantRepo()
	}

	switch cfg.MessageStore {
	case config.StorePostgres:
		s.messages = repository.NewMessagesRepo(pool)
	default:
		log.Println("[STORE] ⚠️  Messages kept in memory; they are lost on restart")
		s.messages = repository.NewMemoryMessageRepo()
	}

	return s, nil
}

func closeRedis(client *redis.Client) {
	if err := client.Close(); err != nil {
		log.Printf("[STORE] Redis close error: %v", err)
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[CONFIG] ❌ CRITICAL: %v", err)
	}

	ctx := context.Background()

	shutdownTracing, err := telemetry.Init(ctx, telemetry.Settings{
		Endpoint:    cfg.OTELEndpoint,
		ServiceName: cfg.OTELServiceName,
		Environment: cfg.Env,
		SampleRatio: cfg.OTELSampleRatio,
	})
	if err != nil {
		log.Fatalf("[TRACING] Failed to start exporter: %v", err)
	}

	st, err := openStores(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to open stores:", err)
	}
	defer st.close()

	recorder := metrics.NewRecorder()
	clk := clock.Real{}

	presenceEngine := presence.NewEngine(st.participants, st.messages,
		presence.WithStaleAfter(cfg.StaleAfter),
		presence.WithObserver(recorder),
	)
	chatEngine := chat.NewEngine(st.participants, st.messages)
	chatEngine.SetObserver(recorder)

	reaper := tasks.NewReaper(presenceEngine, clk, cfg.ReapInterval)
	if err := reaper.Start(); err != nil {
		log.Fatalf("[REAPER] Failed to start: %v", err)
	}

	router := api.NewRouter(api.Deps{
		Presence:    presenceEngine,
		Chat:        chatEngine,
		Clock:       clk,
		Limiters:    middleware.NewLimiters(cfg.RateLimitBurst, cfg.RateLimitRefill),
		Metrics:     recorder.Handler(),
		Health:      st.health,
		CORSOrigins: cfg.CORSOrigins,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		fmt.Printf("🚀 Chat room server starting on :%s...\n", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("ListenAndServe: %v", err)
		}
	}()

	<-stop

	fmt.Println("\nShutdown signal received. Cleaning up...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[SERVER] HTTP shutdown error: %v", err)
	}
	if err := reaper.Stop(shutdownCtx); err != nil {
		log.Printf("[REAPER] Stop did not finish: %v", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Printf("[TRACING] Shutdown error: %v", err)
	}

	fmt.Println("Graceful shutdown complete. Goodnight!")
}
