package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/illmade-knight/go-pubsubbridge/pkg/verifier"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const usage = `usage:
  verify compare -a <file> -b <file>
  verify capture -project <id> -sub <subscription> -o <file> [-n <count>] [-emulator <host:port>]`

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	switch os.Args[1] {
	case "compare":
		os.Exit(runCompare(os.Args[2:]))
	case "capture":
		os.Exit(runCapture(os.Args[2:]))
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
}

func runCompare(args []string) int {
	fs := flag.NewFlagSet("compare", flag.ExitOnError)
	fileA := fs.String("a", "", "First message file.")
	fileB := fs.String("b", "", "Second message file.")
	_ = fs.Parse(args)
	if *fileA == "" || *fileB == "" {
		fmt.Fprintln(os.Stderr, usage)
		return 2
	}

	res, err := verifier.CompareFiles(*fileA, *fileB, log.Logger)
	if err != nil {
		log.Error().Err(err).Msg("Comparison could not be completed")
		return 1
	}
	if res.Verdict != verifier.Pass {
		return 1
	}
	return 0
}

func runCapture(args []string) int {
	fs := flag.NewFlagSet("capture", flag.ExitOnError)
	projectID := fs.String("project", "", "Google Cloud project ID.")
	subID := fs.String("sub", "", "Subscription to capture from.")
	outputFile := fs.String("o", "captured.bin", "Output file for the captured messages.")
	numMessages := fs.Int("n", 0, "Number of messages to capture before exiting, 0 to run until interrupted.")
	emulatorHost := fs.String("emulator", "", "Pub/Sub emulator host:port.")
	_ = fs.Parse(args)
	if *projectID == "" || *subID == "" {
		fmt.Fprintln(os.Stderr, usage)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *emulatorHost != "" {
		// the client switches to an insecure emulator connection when this is set
		_ = os.Setenv("PUBSUB_EMULATOR_HOST", *emulatorHost)
	}
	client, err := pubsub.NewClient(ctx, *projectID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create Pub/Sub client")
		return 1
	}
	defer client.Close()

	w, err := verifier.CreateFile(*outputFile)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create output file")
		return 1
	}
	n, err := verifier.Capture(ctx, client.Subscription(*subID), w, *numMessages, log.Logger)
	if cerr := w.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		log.Error().Err(err).Int("captured", n).Msg("Capture failed")
		return 1
	}
	log.Info().Str("file", *outputFile).Int("message_count", n).Msg("Successfully saved captured messages.")
	return 0
}
