package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/viper"

	"github.com/cheildo/nexus-duel-matchmaker/internal/auth"
	"github.com/cheildo/nexus-duel-matchmaker/internal/matchmaking"
	"github.com/cheildo/nexus-duel-matchmaker/internal/orchestration"
	"github.com/cheildo/nexus-duel-matchmaker/internal/pkg/database"
	"github.com/cheildo/nexus-duel-matchmaker/internal/pkg/kafka"
	"github.com/cheildo/nexus-duel-matchmaker/internal/pkg/logging"
	"github.com/cheildo/nexus-duel-matchmaker/internal/playerprofile"
)

func loadConfig() error {
	viper.SetConfigName("matchmaking-service")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs/development")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("http_server.port", "8080")
	viper.SetDefault("diagnostics.port", "6061")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("jwt.token_duration_minutes", 60)
	viper.SetDefault("services.provisioner_addr", "localhost:50053")
	viper.SetDefault("kafka.match_outcome_topic", "match_outcomes")
	viper.SetDefault("matchmaking.poll_interval_ms", 100)
	viper.SetDefault("matchmaking.provision_timeout_seconds", 10)
	viper.SetDefault("matchmaking.notify_timeout_seconds", 5)
	viper.SetDefault("matchmaking.requeue_on_failure", false)
	viper.SetDefault("profiles.default_rating", 1000)

	return viper.ReadInConfig()
}

func main() {
	// --- Configuration Loading ---
	if err := loadConfig(); err != nil {
		slog.Error("Failed to read configuration file", "error", err)
		os.Exit(1)
	}
	logging.Setup(viper.GetString("log.level"), viper.GetString("log.format"))

	// --- Database Connection ---
	db, err := database.NewPostgresDB(database.Config{
		Host:     viper.GetString("database.host"),
		Port:     viper.GetString("database.port"),
		User:     viper.GetString("database.user"),
		Password: viper.GetString("database.password"),
		DBName:   viper.GetString("database.db_name"),
		SSLMode:  viper.GetString("database.ssl_mode"),
		MaxConns: viper.GetInt("database.max_conns"),
	})
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("Database connection successful.")

	// --- Provisioner Client ---
	provisionerConn, err := orchestration.Dial(viper.GetString("services.provisioner_addr"))
	if err != nil {
		os.Exit(1)
	}
	defer provisionerConn.Close()

	// --- Kafka Producer ---
	producer := kafka.NewProducer(
		viper.GetStringSlice("kafka.brokers"),
		viper.GetString("kafka.match_outcome_topic"),
	)
	defer producer.Close()

	// --- Metrics ---
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// --- Dependency Injection ---
	authSvc := auth.NewService(auth.NewRepository(db), auth.Config{
		JWTSecret:     viper.GetString("jwt.secret_key"),
		TokenDuration: time.Duration(viper.GetInt("jwt.token_duration_minutes")) * time.Minute,
	})
	verifier := auth.NewVerifier(viper.GetString("jwt.secret_key"))
	profileSvc := playerprofile.NewService(playerprofile.NewRepository(db), viper.GetInt("profiles.default_rating"))

	mm := matchmaking.NewMatchMaker(
		orchestration.NewClient(provisionerConn),
		matchmaking.Config{
			PollInterval:     time.Duration(viper.GetInt("matchmaking.poll_interval_ms")) * time.Millisecond,
			ProvisionTimeout: time.Duration(viper.GetInt("matchmaking.provision_timeout_seconds")) * time.Second,
			NotifyTimeout:    time.Duration(viper.GetInt("matchmaking.notify_timeout_seconds")) * time.Second,
			RequeueOnFailure: viper.GetBool("matchmaking.requeue_on_failure"),
		},
		matchmaking.WithMetrics(matchmaking.NewMetrics(registry)),
		matchmaking.WithEventPublisher(matchmaking.NewKafkaPublisher(producer)),
	)

	// --- Start Matchmaking Loop ---
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := mm.StartMatchmaking(ctx); err != nil {
		slog.Error("Failed to start matchmaking", "error", err)
		os.Exit(1)
	}

	// --- HTTP Router and Middleware Setup ---
	authHandler := auth.NewHTTPHandler(authSvc)
	profileHandler := playerprofile.NewHTTPHandler(profileSvc)
	wsHandler := matchmaking.NewWebsocketHandler(mm, verifier, profileSvc)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Post("/auth/register", authHandler.HandleRegister)
		r.Post("/auth/login", authHandler.HandleLogin)
		r.Get("/profiles/{username}", profileHandler.HandleGetProfile)
	})
	// No timeout middleware here: the socket lives until the player leaves.
	r.Handle("/ws/matchmaking", wsHandler)

	startDiagnosticsServer(viper.GetString("diagnostics.port"), registry)

	httpPort := viper.GetString("http_server.port")
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", httpPort),
		Handler: r,
	}

	go func() {
		slog.Info("Matchmaking service starting...", "port", httpPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Could not start server", "error", err)
			os.Exit(1)
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down matchmaking service...")
	mm.Stop() // Finish or abandon the in-flight match attempt.

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	slog.Info("Matchmaking service stopped.")
}

// startDiagnosticsServer serves pprof (registered by import) and Prometheus metrics.
func startDiagnosticsServer(port string, registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/debug/pprof/", http.DefaultServeMux)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	go func() {
		slog.Info("Starting diagnostics server", "port", port)
		if err := http.ListenAndServe(fmt.Sprintf(":%s", port), mux); err != nil {
			slog.Error("Diagnostics server failed to start", "error", err)
		}
	}()
}
