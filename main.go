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

	"gitea.com/go-chi/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/blogem/licitacoes/authenticator"
	"github.com/blogem/licitacoes/changeset"
	"github.com/blogem/licitacoes/config"
	"github.com/blogem/licitacoes/controllers"
	"github.com/blogem/licitacoes/database"
	"github.com/blogem/licitacoes/logging"
	"github.com/blogem/licitacoes/metrics"
	appmiddleware "github.com/blogem/licitacoes/middleware"
	"github.com/blogem/licitacoes/repositories"
	"github.com/blogem/licitacoes/services"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("Server stopped")
	}
}

func run(cfg *config.Config, logger *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.InitializeDatabase(cfg.DatabasePath, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	rules, err := changeset.LoadRules(cfg.Audit.FieldRulesPath)
	if err != nil {
		return err
	}

	m := metrics.New()
	repos := repositories.NewRepositories(db)
	srvs := services.NewServices(repos, services.Options{
		Audit:   cfg.Audit,
		Rules:   rules,
		Metrics: m,
		Logger:  logger,
	})

	if err := srvs.Retention.Start(cfg.Audit.RetentionSchedule); err != nil {
		return err
	}

	var provider authenticator.Provider
	if cfg.OIDC.Enabled() {
		provider, err = authenticator.NewOIDCProvider(ctx, cfg.OIDC)
		if err != nil {
			return fmt.Errorf("failed to initialize OIDC provider: %w", err)
		}
	} else {
		logger.Warn("OIDC_DOMAIN not set: authentication is disabled and changes are recorded as System")
	}

	ctrl := controllers.NewControllers(srvs, controllers.Options{
		Provider:    provider,
		ExportRate:  cfg.Audit.ExportRate,
		ExportBurst: cfg.Audit.ExportBurst,
		Logger:      logger,
	})

	router, err := setupRouter(cfg, ctrl, m, logger)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithFields(logrus.Fields{
			"port":     cfg.Port,
			"database": cfg.DatabasePath,
		}).Info("Licitações server starting")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// Stop taking requests first so no new audit events are queued,
		// then drain the recorder before the database goes away.
		err := server.Shutdown(shutdownCtx)
		if cerr := srvs.Recorder.Close(shutdownCtx); cerr != nil {
			logger.WithError(cerr).Error("Audit queue not fully drained")
		}
		select {
		case <-srvs.Retention.Stop().Done():
		case <-shutdownCtx.Done():
		}
		return err
	})

	return g.Wait()
}

// setupRouter configures all routes
func setupRouter(cfg *config.Config, ctrl *controllers.Controllers, m *metrics.Metrics, logger logrus.FieldLogger) (*chi.Mux, error) {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(appmiddleware.Provenance)
	r.Use(appmiddleware.RequestLogger(logger))
	r.Use(appmiddleware.HTTPMetrics(m))
	r.Use(middleware.Timeout(60 * time.Second))

	sessionHandler, err := session.Sessioner(session.Options{
		Provider:       "memory",
		ProviderConfig: "",
		CookieName:     "licitacoes_session",
		Secure:         cfg.UseHTTPS,
		Gclifetime:     3600,
		Maxlifetime:    3600,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize session: %w", err)
	}
	r.Use(sessionHandler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"status": "healthy", "service": "licitacoes"}`)
	})
	r.Handle("/metrics", m.Handler())

	authEnabled := cfg.OIDC.Enabled()
	if authEnabled {
		r.Get("/login", ctrl.Auth.Login)
		r.Get("/callback", ctrl.Auth.Callback)
		r.Get("/logout", ctrl.Auth.Logout)
	}

	r.Route("/api", func(r chi.Router) {
		if authEnabled {
			r.Use(appmiddleware.RequireAuth)
		}
		ctrl.MountAPI(r)
	})

	return r, nil
}
