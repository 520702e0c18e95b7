package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tradehub/config"
	"tradehub/handlers"
	"tradehub/logger"
	"tradehub/metrics"
	"tradehub/repository"
	"tradehub/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfigOrPanic()
	log := logger.New(os.Stdout, cfg.LogLevel)

	repo, closeStore := openStore(ctx, cfg, log)
	defer closeStore()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	svc := service.NewService(
		repo,
		cfg.JWTSecret,
		cfg.TokenTTL,
		service.WithLogger(log),
		service.WithRecorder(collector),
	)

	h := handlers.NewHandler(svc, log)
	router := handlers.NewRouter(h, handlers.RouterOptions{
		CORSOrigin: cfg.CORSOrigin,
		Limiter:    handlers.NewRateLimiter(cfg.AuthRatePerMinute, cfg.AuthRateBurst),
		Requests:   collector,
		Metrics:    metrics.Handler(reg),
	})

	srv := http.Server{
		Handler:      router,
		Addr:         ":" + cfg.ServerPort,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("server shutdown")
		}
	}()

	log.WithFields(logrus.Fields{
		"port":  cfg.ServerPort,
		"store": cfg.StoreDriver,
	}).Info("server started")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		closeStore()
		log.WithError(err).Fatal("server stopped")
	}
	log.Info("server stopped")
}

func openStore(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (service.Repository, func()) {
	if cfg.StoreDriver == config.DriverMongo {
		client := config.InitMongo(ctx, cfg)
		repo := repository.NewMongoRepository(client.Database(cfg.MongoDatabase))
		if err := repo.EnsureIndexes(ctx); err != nil {
			log.WithError(err).Fatal("mongo indexes")
		}
		return repo, func() { _ = client.Disconnect(context.Background()) }
	}

	if cfg.RunMigrations {
		if err := repository.RunMigrations(cfg.PostgresURL()); err != nil {
			log.WithError(err).Fatal("migrations")
		}
	}
	db := config.InitDB(ctx, cfg)
	return repository.NewPostgresRepository(db), func() { _ = db.Close() }
}
