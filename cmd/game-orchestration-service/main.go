package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/viper"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/cheildo/nexus-duel-matchmaker/internal/orchestration"
	"github.com/cheildo/nexus-duel-matchmaker/internal/pkg/kafka"
	"github.com/cheildo/nexus-duel-matchmaker/internal/pkg/logging"
	"github.com/cheildo/nexus-duel-matchmaker/internal/pkg/redis"
)

// Main application struct to hold dependencies.
type application struct {
	grpcServer *grpc.Server
	listener   *orchestration.Listener
}

func loadConfig() error {
	viper.SetConfigName("game-orchestration-service")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs/development")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("grpc_server.port", "50053")
	viper.SetDefault("diagnostics.port", "6062")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
	viper.SetDefault("kafka.match_outcome_topic", "match_outcomes")
	viper.SetDefault("kafka.consumer_group_id", "game-orchestration")
	viper.SetDefault("fleet.id", "fleet-local")
	viper.SetDefault("fleet.host", "127.0.0.1")
	viper.SetDefault("fleet.port_min", 7777)
	viper.SetDefault("fleet.port_max", 7876)
	viper.SetDefault("sessions.unbound_ttl_seconds", 60)
	viper.SetDefault("sessions.max_lifetime_minutes", 120)

	return viper.ReadInConfig()
}

func main() {
	// --- Configuration ---
	if err := loadConfig(); err != nil {
		slog.Error("Failed to read configuration file", "error", err)
		os.Exit(1)
	}
	logging.Setup(viper.GetString("log.level"), viper.GetString("log.format"))

	// --- Redis Connection ---
	rdb, err := redis.NewClient(redis.Config{
		Addr:     viper.GetString("redis.addr"),
		Password: viper.GetString("redis.password"),
		DB:       viper.GetInt("redis.db"),
	})
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()
	slog.Info("Redis connection successful.")

	// --- Kafka Initialization ---
	consumer := kafka.NewConsumer(
		viper.GetStringSlice("kafka.brokers"),
		viper.GetString("kafka.match_outcome_topic"),
		viper.GetString("kafka.consumer_group_id"),
	)

	// --- Dependency Injection ---
	svc := orchestration.NewService(orchestration.NewRedisStore(rdb), orchestration.Config{
		FleetID:     viper.GetString("fleet.id"),
		Host:        viper.GetString("fleet.host"),
		PortMin:     viper.GetInt("fleet.port_min"),
		PortMax:     viper.GetInt("fleet.port_max"),
		UnboundTTL:  time.Duration(viper.GetInt("sessions.unbound_ttl_seconds")) * time.Second,
		MaxLifetime: time.Duration(viper.GetInt("sessions.max_lifetime_minutes")) * time.Minute,
	})
	listener := orchestration.NewListener(consumer, svc)
	grpcHandler := orchestration.NewGRPCHandler(svc, listener)

	registry := prometheus.NewRegistry()
	orchestration.RegisterMetrics(registry, svc, listener)

	app := &application{
		grpcServer: grpc.NewServer(),
		listener:   listener,
	}

	// --- Start Servers ---
	ctx, cancel := context.WithCancel(context.Background())

	go app.startGRPCServer(grpcHandler, viper.GetString("grpc_server.port"))
	go app.listener.Run(ctx)

	startDiagnosticsServer(viper.GetString("diagnostics.port"), registry)

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down servers...")
	cancel() // Signal goroutines to stop
	app.grpcServer.GracefulStop()
	slog.Info("Servers shut down gracefully.")
}

func (app *application) startGRPCServer(handler *orchestration.GRPCHandler, port string) {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%s", port))
	if err != nil {
		slog.Error("Failed to listen on gRPC port", "port", port, "error", err)
		os.Exit(1)
	}

	orchestration.RegisterProvisionerServer(app.grpcServer, handler)
	reflection.Register(app.grpcServer)

	slog.Info("Provisioner gRPC server listening", "address", lis.Addr().String())
	if err := app.grpcServer.Serve(lis); err != nil {
		slog.Error("gRPC server failed to serve", "error", err)
	}
}

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
