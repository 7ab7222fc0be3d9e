package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/illmade-knight/go-pubsubbridge/pkg/loadgen"
	"github.com/illmade-knight/go-pubsubbridge/pkg/verifier"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	brokers := flag.String("brokers", "localhost:9092", "Comma separated Kafka brokers.")
	topics := flag.String("topics", "", "Comma separated topics, written round-robin.")
	numMessages := flag.Int("n", 1000, "Number of messages to produce.")
	messageSize := flag.Int("size", 100, "Size of the payload prefix in bytes.")
	rate := flag.Float64("rate", 0, "Messages per second, 0 for unthrottled.")
	version := flag.String("version", "2.8.0", "Kafka protocol version.")
	recordFile := flag.String("o", "", "Optional file recording the messages the bridge should publish.")
	flag.Parse()

	if *topics == "" {
		log.Fatal().Msg("At least one topic is required (-topics)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// recorder stays a nil interface unless a file was requested.
	var (
		writer   *verifier.Writer
		recorder loadgen.Recorder
	)
	if *recordFile != "" {
		w, err := verifier.CreateFile(*recordFile)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create record file")
		}
		writer, recorder = w, w
	}

	client := loadgen.NewSaramaClient(loadgen.SaramaClientConfig{
		Brokers: strings.Split(*brokers, ","),
		Version: *version,
	}, log.Logger)
	cfg := loadgen.Config{
		Topics:      strings.Split(*topics, ","),
		NumMessages: *numMessages,
		MessageSize: *messageSize,
		Rate:        *rate,
	}

	gen, err := loadgen.NewGenerator(client, cfg, recorder, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid load configuration")
	}

	start := time.Now()
	sent, runErr := gen.Run(ctx)
	if writer != nil {
		if err := writer.Close(); err != nil {
			log.Error().Err(err).Str("file", *recordFile).Msg("Failed to close record file")
		} else {
			log.Info().Str("file", *recordFile).Int("message_count", writer.Count()).Msg("Recorded expected messages")
		}
	}
	if runErr != nil {
		log.Fatal().Err(runErr).Int("sent", sent).Msg("Load generation failed")
	}
	log.Info().Int("sent", sent).Dur("elapsed", time.Since(start)).Str("run_id", gen.RunID()).Msg("Load generation complete")
}
