package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/illmade-knight/go-pubsubbridge/pkg/bridge"
	"github.com/illmade-knight/go-pubsubbridge/pkg/config"
	"github.com/illmade-knight/go-pubsubbridge/pkg/kafkasource"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func main() {
	configFile := flag.String("c", "bridge.yaml", "Configuration file to use (optional, BRIDGE_ env vars override it)")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Str("log_level", cfg.LogLevel).Msg("Invalid log level")
	}
	logger := log.Logger.Level(level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := bridge.NewMetrics(reg)
	metricsServer := serveMetrics(cfg.MetricsAddr, reg, logger)

	publisher, err := bridge.NewGooglePublisher(ctx, bridge.GooglePublisherConfig{
		ProjectID:      cfg.PubSub.ProjectID,
		TopicID:        cfg.PubSub.TopicID,
		PublishTimeout: cfg.PubSub.PublishTimeout,
		ClientOptions:  clientOptions(cfg.PubSub),
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create Pub/Sub publisher")
	}

	taskCfg := bridge.SinkTaskConfig{MinBatchSize: cfg.PubSub.MinBatchSize}
	runner, err := kafkasource.NewRunner(kafkasource.Config{
		Brokers:       cfg.Kafka.Brokers,
		GroupID:       cfg.Kafka.GroupID,
		Topics:        cfg.Kafka.Topics,
		Version:       cfg.Kafka.Version,
		StartFrom:     cfg.Kafka.StartFrom,
		FlushInterval: cfg.Kafka.FlushInterval,
	}, func() (*bridge.SinkTask, error) {
		return bridge.NewSinkTask(publisher, taskCfg, metrics, logger)
	}, logger)
	if err != nil {
		publisher.Stop()
		logger.Fatal().Err(err).Msg("Failed to start Kafka consumer group")
	}

	logger.Info().Str("project_id", cfg.PubSub.ProjectID).Str("topic_id", cfg.PubSub.TopicID).
		Strs("kafka_topics", cfg.Kafka.Topics).Int("min_batch_size", cfg.PubSub.MinBatchSize).
		Msg("Bridge started")

	runErr := runner.Run(ctx)
	if runErr != nil {
		logger.Error().Err(runErr).Msg("Kafka runner failed")
	}

	logger.Info().Msg("Shutting down")
	if err := runner.Close(); err != nil {
		logger.Error().Err(err).Msg("Failed to close Kafka consumer group")
	}
	publisher.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Failed to stop metrics server")
	}
	if runErr != nil {
		os.Exit(1)
	}
}

func clientOptions(cfg config.PubSubConfig) []option.ClientOption {
	if cfg.EmulatorHost != "" {
		return []option.ClientOption{
			option.WithEndpoint(cfg.EmulatorHost),
			option.WithoutAuthentication(),
			option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		}
	}
	if cfg.CredentialsFile != "" {
		return []option.ClientOption{option.WithCredentialsFile(cfg.CredentialsFile)}
	}
	return nil
}

func serveMetrics(addr string, reg *prometheus.Registry, logger zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("addr", addr).Msg("Metrics server failed")
		}
	}()
	logger.Info().Str("addr", addr).Msg("Serving metrics")
	return srv
}
