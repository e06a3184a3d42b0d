package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"careslot/backend/internal/config"
	"careslot/backend/internal/events"
	"careslot/backend/internal/observability/metrics"
	"careslot/backend/internal/service/appointments"
	"careslot/backend/internal/store"
	"careslot/backend/internal/store/postgres"
	"careslot/backend/internal/store/rediscache"
	grpcTransport "careslot/backend/internal/transport/grpc"
	"careslot/backend/internal/transport/rest"
)

const serviceName = "careslot-server"

func main() {
	rootCmd := &cobra.Command{
		Use:           serviceName,
		Short:         "Healthcare appointment booking API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", slog.Any("err", err))
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and gRPC servers and the outbox publisher",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func newLogger(level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(level)})).With(
		slog.String("service", serviceName),
	)
}

func runServer() error {
	log := newLogger("info")
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", slog.Any("err", err))
		return err
	}

	log = newLogger(cfg.LogLevel)
	slog.SetDefault(log)

	log.Info("starting",
		slog.String("http_addr", cfg.HTTPAddr),
		slog.String("grpc_addr", cfg.GRPCAddr),
		slog.String("log_level", cfg.LogLevel),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("connecting to database", databaseLogArgs(cfg.DatabaseURL)...)
	db, err := postgres.Open(ctx, cfg.DatabaseURL, postgres.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	})
	if err != nil {
		args := append([]any{slog.Any("err", err)}, databaseLogArgs(cfg.DatabaseURL)...)
		log.Error("database connection failed", args...)
		return err
	}
	defer func() {
		if err := postgres.Close(db); err != nil {
			log.Warn("database close failed", slog.Any("err", err))
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewBookingMetrics(registry)

	var professionals store.ProfessionalDirectory = postgres.NewProfessionalRepo(db)
	if cfg.RedisURL != "" {
		client, err := rediscache.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Warn("redis not available; professional cache disabled", slog.Any("err", err))
		} else {
			defer func() { _ = client.Close() }()
			professionals = rediscache.NewProfessionalDirectory(client, professionals, cfg.RedisProfessionalTTL, log)
			log.Info("professional cache enabled", slog.Duration("ttl", cfg.RedisProfessionalTTL))
		}
	}

	svc := appointments.NewService(
		postgres.NewAppointmentRepo(db),
		professionals,
		appointments.WithCancellationLockout(cfg.CancellationLockout),
		appointments.WithMetrics(m),
	)

	if cfg.JWTSecret == "" {
		log.Warn("auth.jwt_secret not set; authenticated routes will reject every request")
	}
	httpServer := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: rest.NewRouter(rest.RouterConfig{
			Logger:         log.With(slog.String("component", "http")),
			Appointments:   rest.NewAppointmentsHandler(svc, cfg.CancellationLockout, log),
			JWTSecret:      cfg.JWTSecret,
			RequestTimeout: cfg.HTTPRequestTimeout,
			MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
			Metrics:        m,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			defaultRequestTimeoutInterceptor(cfg.GRPCRequestTimeout),
			grpcTransport.AuthUnaryInterceptor(cfg.JWTSecret),
		),
	)
	grpcTransport.RegisterAppointmentsServiceServer(grpcServer, grpcTransport.NewAppointmentsServer(svc, log))

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Error("grpc listen failed", slog.Any("err", err), slog.String("grpc_addr", cfg.GRPCAddr))
		return err
	}

	publisher := events.NewPublisher(postgres.NewOutboxRepo(db), log, events.PublisherConfig{
		Brokers:      cfg.KafkaBrokers,
		PollEvery:    cfg.OutboxPollEvery,
		BatchSize:    cfg.OutboxBatchSize,
		WriteTimeout: cfg.OutboxWriteTimeout,
	}, m)

	var wg sync.WaitGroup
	pubCtx, stopPublisher := context.WithCancel(context.Background())
	defer stopPublisher()
	wg.Add(1)
	go func() {
		defer wg.Done()
		publisher.Run(pubCtx)
	}()

	errCh := make(chan error, 2)
	go func() {
		errCh <- grpcServer.Serve(lis)
	}()
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	log.Info("servers started", slog.String("http_addr", cfg.HTTPAddr), slog.String("grpc_addr", cfg.GRPCAddr))

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped with error", slog.Any("err", err))
			runErr = err
		}
	}

	shutdown(log, httpServer, grpcServer, cfg.ShutdownTimeout)
	stopPublisher()
	wg.Wait()
	return runErr
}

func defaultRequestTimeoutInterceptor(timeout time.Duration) grpc.UnaryServerInterceptor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if _, ok := ctx.Deadline(); ok {
			return handler(ctx, req)
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		return handler(ctx, req)
	}
}

func shutdown(log *slog.Logger, h *http.Server, s *grpc.Server, timeout time.Duration) {
	log.Info("shutting down servers", slog.Duration("timeout", timeout))

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := h.Shutdown(ctx); err != nil {
		log.Warn("http graceful shutdown failed", slog.Any("err", err))
	}

	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		log.Info("grpc server stopped")
	case <-ctx.Done():
		log.Warn("grpc graceful shutdown timed out; forcing stop")
		s.Stop()
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func databaseLogArgs(databaseURL string) []any {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return []any{slog.String("db_url", "invalid")}
	}
	name := strings.TrimPrefix(u.Path, "/")
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "default"
	}
	if host == "" {
		host = "unknown"
	}
	if name == "" {
		name = "unknown"
	}
	return []any{
		slog.String("db_host", host),
		slog.String("db_port", port),
		slog.String("db_name", name),
	}
}
