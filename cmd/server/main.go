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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/sarthak03dot/Chat-App/internal/blob"
	"github.com/sarthak03dot/Chat-App/internal/config"
	"github.com/sarthak03dot/Chat-App/internal/httpserver"
	"github.com/sarthak03dot/Chat-App/internal/logging"
	"github.com/sarthak03dot/Chat-App/internal/retention"
	"github.com/sarthak03dot/Chat-App/internal/security"
	"github.com/sarthak03dot/Chat-App/internal/service"
	"github.com/sarthak03dot/Chat-App/internal/store"
	"github.com/sarthak03dot/Chat-App/internal/store/sqlstore"
	"github.com/sarthak03dot/Chat-App/internal/ws"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to a YAML config file (overrides CHAT_CONFIG)")
	pflag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "chat server: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	log.Info("store_ready", "driver", cfg.StoreDriver)

	userRepo := sqlstore.NewUserRepo(db)
	groupRepo := sqlstore.NewGroupRepo(db)
	msgRepo := sqlstore.NewMessageRepo(db)

	// Nobody is connected yet, whatever the last run left behind.
	if err := userRepo.ResetOnline(ctx); err != nil {
		return fmt.Errorf("reset presence: %w", err)
	}

	tokens := security.NewTokenService(cfg.JWTSecret, 24*time.Hour)
	encryptor, err := security.NewEncryptor([]byte(cfg.EncryptKey), cfg.LegacyKeys...)
	if err != nil {
		return fmt.Errorf("init encryptor: %w", err)
	}
	identities := security.NewIdentityResolver(tokens, userRepo)

	blobs, err := blob.NewLocalStore(cfg.UploadDir, cfg.UploadBaseURL, cfg.UploadMaxBytes())
	if err != nil {
		return err
	}

	userSvc := service.NewUserService(userRepo)
	groupSvc := service.NewGroupService(groupRepo, userRepo)
	msgSvc := service.NewMessageService(msgRepo, userRepo, groupRepo, encryptor, cfg.MaxMessageLength, cfg.HistoryLimit)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := ws.NewMetrics(reg)

	hub := ws.NewHub(metrics)
	presence := ws.NewPresence(userRepo, hub, log, metrics)
	engine := ws.NewEngine(hub, presence, msgSvc, groupRepo, log, metrics)
	groupSvc.SetNotifier(engine)

	wsHandler := ws.MakeHandler(engine, identities, cfg.CORSOrigins, ws.ClientOptions{
		SendBuffer: cfg.WSSendBuffer,
		EventRate:  cfg.WSEventRate,
		EventBurst: cfg.WSEventBurst,
	}, log)

	router := httpserver.NewRouter(httpserver.Deps{
		AppName:     cfg.AppName,
		CORSOrigins: cfg.CORSOrigins,
		Log:         log,
		Store:       db,
		Identities:  identities,
		Users:       userSvc,
		Groups:      groupSvc,
		Messages:    msgSvc,
		Blobs:       blobs,
		WS:          wsHandler,
		Metrics:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})

	if cfg.RetentionEnabled {
		job, err := retention.NewManager(cfg.RetentionCron, cfg.RetentionPeriod, msgRepo, log)
		if err != nil {
			return err
		}
		go job.Run(ctx)
	}

	// No write timeout: websocket connections hold the response open.
	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http_listening", "addr", cfg.HTTPAddr(), "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("graceful_shutdown_failed", "error", err)
	}
	return nil
}
