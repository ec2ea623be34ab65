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

	"repuestos-backoffice/cache"
	"repuestos-backoffice/catalog"
	"repuestos-backoffice/config"
	"repuestos-backoffice/database"
	"repuestos-backoffice/events"
	"repuestos-backoffice/handlers"
	"repuestos-backoffice/history"
	"repuestos-backoffice/logger"
	"repuestos-backoffice/metrics"
	"repuestos-backoffice/middleware"
	"repuestos-backoffice/quotations"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}
	envFile := ".env.development"
	if env != "development" {
		envFile = ".env.production"
	}
	envErr := godotenv.Load(envFile)

	cfg := config.LoadEnv()

	log, err := logger.New(logger.Config{
		Level:       cfg.Logger.Level,
		Environment: cfg.Server.AppEnv,
		ServiceName: cfg.Server.ServiceName,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if envErr != nil {
		log.Warn("No se pudo cargar el archivo de entorno, usando variables del sistema", zap.String("file", envFile))
	}

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.JWT.Secret == "" {
		return errors.New("JWT_SECRET no configurado")
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(cfg.Server.ServiceName, reg)

	var catalogOpts []catalog.Option
	if cfg.Redis.Enabled {
		rdb := cache.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		defer rdb.Close()
		redisCache := cache.NewRedis(rdb, cfg.Redis.TTL)
		if err := redisCache.Ping(ctx); err != nil {
			log.Warn("redis unreachable, reference lists will not be cached", zap.Error(err))
		} else {
			catalogOpts = append(catalogOpts, catalog.WithCache(redisCache))
		}
	}

	quotationOpts := []quotations.Option{
		quotations.WithRecorder(m),
		quotations.WithProducer(cfg.Server.ServiceName),
	}
	if cfg.Kafka.Enabled {
		publisher := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, 256, log)
		defer publisher.Close()
		quotationOpts = append(quotationOpts, quotations.WithPublisher(publisher))
	}

	cat := catalog.New(store, log, catalogOpts...)
	// Lists cached by a previous run may predate the seed or manual edits.
	if err := cat.InvalidateReferenceLists(ctx); err != nil {
		log.Warn("could not invalidate cached reference lists", zap.Error(err))
	}

	h := handlers.New(handlers.Deps{
		Quotations:  quotations.NewService(store, log, quotationOpts...),
		Catalog:     cat,
		History:     history.NewService(store, log, history.WithPerPage(cfg.History.PerPage)),
		Store:       store,
		Auth:        middleware.NewAuth(cfg.JWT.Secret, cfg.IsProduction()),
		AdminSecret: cfg.JWT.AdminSecret,
		Log:         log,
		Timeout:     cfg.Server.RequestTimeout,
	})
	router := handlers.NewRouter(h, handlers.RouterConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Metrics:        m,
		Log:            log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Servidor iniciado",
			zap.String("addr", "http://localhost:"+cfg.Server.Port),
			zap.String("store", cfg.Store.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openStore returns the configured document store and a func releasing it.
func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (database.Store, func(), error) {
	switch cfg.Store.Driver {
	case "memory":
		store := database.NewMemoryStore(cfg.Store.MaxAttempts)
		if err := catalog.Seed(ctx, store); err != nil {
			return nil, nil, fmt.Errorf("seed catalog: %w", err)
		}
		log.Warn("using in-memory store, data is lost on restart")
		return store, func() {}, nil

	case "mongo":
		client, err := database.Connect(ctx, cfg.Store.MongoURI)
		if err != nil {
			return nil, nil, fmt.Errorf("connect mongo: %w", err)
		}
		release := func() {
			if err := client.Disconnect(context.Background()); err != nil {
				log.Warn("mongo disconnect", zap.Error(err))
			}
		}
		store := database.NewMongoStore(client, cfg.Store.MongoDB, cfg.Store.MaxAttempts, log)
		if err := store.EnsureIndexes(ctx); err != nil {
			release()
			return nil, nil, err
		}
		if err := catalog.Seed(ctx, store); err != nil {
			log.Warn("No se pudo inicializar el catálogo de productos", zap.Error(err))
		}
		log.Info("Conectado a MongoDB", zap.String("db", cfg.Store.MongoDB))
		return store, release, nil
	}
	return nil, nil, fmt.Errorf("STORE_DRIVER desconocido: %q", cfg.Store.Driver)
}
