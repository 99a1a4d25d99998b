package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/emilythestrangee/social-feed/backend/internal/comments"
	"github.com/emilythestrangee/social-feed/backend/internal/config"
	"github.com/emilythestrangee/social-feed/backend/internal/database"
	"github.com/emilythestrangee/social-feed/backend/internal/events"
	"github.com/emilythestrangee/social-feed/backend/internal/handlers"
	"github.com/emilythestrangee/social-feed/backend/internal/hashtags"
	"github.com/emilythestrangee/social-feed/backend/internal/logger"
	"github.com/emilythestrangee/social-feed/backend/internal/observability"
	"github.com/emilythestrangee/social-feed/backend/internal/polls"
	"github.com/emilythestrangee/social-feed/backend/internal/posts"
	"github.com/emilythestrangee/social-feed/backend/internal/server"
	"github.com/emilythestrangee/social-feed/backend/internal/store"
	"github.com/emilythestrangee/social-feed/backend/internal/votes"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.App.LogMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Error("Server stopped with error", "error", err)
		log.Sync()
		os.Exit(1)
	}
	log.Info("Server stopped")
}

func run(cfg config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing := observability.InitTracing(ctx, log, cfg.App.Source, cfg.App.Env, cfg.Tracing)

	db, err := database.New(cfg.DB, log)
	if err != nil {
		return err
	}
	gormDB := db.GetDB()

	producer, err := newProducer(ctx, cfg.Events, cfg.App.Source, log)
	if err != nil {
		db.Close()
		return err
	}
	emitter := events.NewEmitter(producer, cfg.App.Source, cfg.Events.PublishTimeout, log)

	tx := database.NewTxRunner(gormDB, cfg.DB.TxTimeout)
	facts := store.NewFacts(gormDB)
	aggs := store.NewAggregates(gormDB)
	tags := hashtags.NewReconciler(tx, aggs, log)

	handler := handlers.NewHandler(handlers.Engines{
		Posts:    posts.NewEngine(tx, facts, aggs, tags, emitter, log),
		Comments: comments.NewEngine(tx, facts, aggs, emitter, log),
		Votes:    votes.NewEngine(tx, facts, aggs, emitter, log),
		Polls:    polls.NewEngine(tx, facts, aggs, emitter, log),
		Hashtags: tags,
	}, log)
	srv := server.NewServer(&cfg, db, handler, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Server starting", "addr", srv.Addr, "events_driver", cfg.Events.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		if err := emitter.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close event producer: %w", err))
		}
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
		if err := shutdownTracing(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracing: %w", err))
		}
		return errors.Join(errs...)
	})
	return g.Wait()
}

// newProducer connects the configured event bus.
func newProducer(ctx context.Context, cfg config.Events, clientID string, log *logger.Logger) (events.Producer, error) {
	switch cfg.Driver {
	case "kafka":
		if err := events.EnsureTopics(ctx, cfg.KafkaBrokers, 1, log); err != nil {
			log.Warn("Could not ensure topics", "brokers", cfg.KafkaBrokers, "error", err)
		}
		return events.NewKafkaProducer(cfg.KafkaBrokers, clientID, log)
	case "redis":
		return events.NewRedisProducer(cfg.RedisAddr, cfg.RedisStreamMaxLen, log)
	case "memory":
		log.Warn("Events are kept in process only", "driver", cfg.Driver, "limit", cfg.MemoryLimit)
		return events.NewBoundedMemoryProducer(cfg.MemoryLimit), nil
	case "none":
		return events.NopProducer{}, nil
	default:
		return nil, fmt.Errorf("unknown events driver %q", cfg.Driver)
	}
}
