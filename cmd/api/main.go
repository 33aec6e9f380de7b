package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/clinic-appointments/cmd/mainconfig"
	"github.com/wolfman30/clinic-appointments/internal/api/router"
	appbootstrap "github.com/wolfman30/clinic-appointments/internal/app/bootstrap"
	"github.com/wolfman30/clinic-appointments/internal/appointments"
	"github.com/wolfman30/clinic-appointments/internal/catalog"
	appconfig "github.com/wolfman30/clinic-appointments/internal/config"
	"github.com/wolfman30/clinic-appointments/internal/observability/metrics"
	"github.com/wolfman30/clinic-appointments/internal/telemetry"
	"github.com/wolfman30/clinic-appointments/internal/templates"
	"github.com/wolfman30/clinic-appointments/internal/validation"
	intakeworker "github.com/wolfman30/clinic-appointments/internal/worker/intake"
	sweeperworker "github.com/wolfman30/clinic-appointments/internal/worker/sweeper"
	"github.com/wolfman30/clinic-appointments/pkg/logging"
)

func main() {
	envErr := godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	if envErr != nil {
		logger.Debug(".env not loaded", "error", envErr)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger.Info("starting clinic-appointments API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"clinic", cfg.ClinicName,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing := telemetry.Setup(ctx, telemetry.Options{
		Endpoint:    cfg.OTELEndpoint,
		Insecure:    cfg.OTELInsecure,
		ServiceName: cfg.OTELServiceName,
	}, logger)

	app, err := buildApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build application", "error", err)
		os.Exit(1)
	}
	if err := app.start(ctx); err != nil {
		logger.Error("failed to start background workers", "error", err)
		os.Exit(1)
	}

	// No read/write timeouts: the notification stream is long-lived.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	app.close(shutdownCtx)
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracer shutdown failed", "error", err)
	}
	logger.Info("server stopped")
}

type application struct {
	handler  http.Handler
	registry *appointments.Registry
	handoff  *appbootstrap.Handoff
	sweeper  *sweeperworker.Sweeper
	intake   *intakeworker.Consumer
	redis    *redis.Client
	logger   *logging.Logger

	stopLimiter   func()
	cancelWorkers context.CancelFunc
	intakeDone    chan struct{}
}

func setupMetrics() (*prometheus.Registry, *metrics.WorkflowMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.NewWorkflowMetrics(reg)
}

func buildApp(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*application, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	reg, workflowMetrics := setupMetrics()
	directory := catalog.Directory{}
	renderer := templates.NewRenderer()
	validator := validation.New(loc)

	var redisClient *redis.Client
	if cfg.NotificationBackend == "redis" || cfg.RateLimitBackend == "redis" {
		redisClient = appbootstrap.BuildRedisClient(ctx, cfg, logger, true)
	}
	notifications := appbootstrap.BuildNotifications(cfg, redisClient, logger)
	limiter, stopLimiter := appbootstrap.BuildLimiter(cfg, redisClient, logger)

	handoff, err := appbootstrap.BuildHandoff(ctx, cfg, appbootstrap.HandoffDeps{
		Directory: directory,
		Renderer:  renderer,
		Metrics:   workflowMetrics,
		LoadAWS: func(ctx context.Context) (aws.Config, error) {
			return mainconfig.LoadAWSConfig(ctx, cfg)
		},
		Logger: logger,
	})
	if err != nil {
		stopLimiter()
		if redisClient != nil {
			_ = redisClient.Close()
		}
		return nil, err
	}

	registry := appointments.NewRegistry(appointments.Deps{
		Presenter:   notifications.Hub,
		Directory:   directory,
		Validator:   validator,
		Submitter:   handoff.Fanout,
		Renderer:    renderer,
		Metrics:     workflowMetrics,
		Logger:      logger,
		ClinicName:  cfg.ClinicName,
		SubmitDelay: cfg.SubmitDelay,
	})

	sweeper := sweeperworker.New(registry, logger).
		WithIdleTTL(cfg.SessionIdleTTL).
		WithInterval(cfg.SweepInterval)
	if notifications.Memory != nil {
		sweeper.WithFeed(notifications.Memory)
	}

	var intake *intakeworker.Consumer
	if handoff.Queue != nil {
		intake = intakeworker.NewConsumer(handoff.Queue, logger)
	}

	handler := appointments.NewHandler(appointments.HandlerConfig{
		Registry:      registry,
		Validator:     validator,
		Directory:     directory,
		Contact:       appointments.NewContact(cfg.ClinicPhone, cfg.WhatsAppNumber, cfg.WhatsAppGreeting),
		Notifications: notifications.Hub,
		Stream:        http.HandlerFunc(notifications.Hub.ServeStream),
		Logger:        logger,
	})

	return &application{
		handler: router.New(&router.Config{
			Logger:             logger,
			Appointments:       handler,
			Gatherer:           reg,
			CORSAllowedOrigins: cfg.CORSAllowedOrigins,
			Limiter:            limiter,
			ServiceName:        cfg.OTELServiceName,
		}),
		registry:    registry,
		handoff:     handoff,
		sweeper:     sweeper,
		intake:      intake,
		redis:       redisClient,
		logger:      logger,
		stopLimiter: stopLimiter,
	}, nil
}

// start launches background workers. They outlive ctx and stop in close,
// after pending hand-offs have reached the queue.
func (a *application) start(ctx context.Context) error {
	workerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.cancelWorkers = cancel
	if a.intake != nil {
		a.intakeDone = make(chan struct{})
		go func() {
			defer close(a.intakeDone)
			a.intake.Run(workerCtx)
		}()
	}
	return a.sweeper.Start()
}

func (a *application) close(ctx context.Context) {
	a.sweeper.Stop()
	a.registry.Close()
	if err := a.handoff.Fanout.Wait(ctx); err != nil {
		a.logger.Warn("pending hand-offs abandoned", "error", err)
	}
	if a.handoff.Queue != nil {
		if err := a.handoff.Queue.WaitEmpty(ctx); err != nil {
			a.logger.Warn("queued appointment requests abandoned", "pending", a.handoff.Queue.Len(), "error", err)
		}
	}
	if a.cancelWorkers != nil {
		a.cancelWorkers()
	}
	if a.intakeDone != nil {
		select {
		case <-a.intakeDone:
		case <-ctx.Done():
		}
	}
	if err := a.handoff.Close(); err != nil {
		a.logger.Warn("hand-off transport close failed", "error", err)
	}
	a.stopLimiter()
	if a.redis != nil {
		_ = a.redis.Close()
	}
}
