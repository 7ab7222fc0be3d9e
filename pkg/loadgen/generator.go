package loadgen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/illmade-knight/go-pubsubbridge/pkg/bridge"
	"github.com/illmade-knight/go-pubsubbridge/pkg/types"
	"github.com/rs/zerolog"
)

// Config describes one load run.
type Config struct {
	Topics      []string
	NumMessages int
	// MessageSize is the size of the fixed payload prefix; each value is the
	// prefix followed by the message number.
	MessageSize int
	// Rate limits sends per second. Zero sends as fast as the client accepts.
	Rate float64
	// RunID prefixes every key. A random one is chosen when empty.
	RunID string
}

// Generator produces a numbered sequence of messages round-robin over the
// configured topics.
type Generator struct {
	client   Client
	cfg      Config
	recorder Recorder
	logger   zerolog.Logger
}

// NewGenerator creates a generator. recorder may be nil.
func NewGenerator(client Client, cfg Config, recorder Recorder, logger zerolog.Logger) (*Generator, error) {
	if client == nil {
		return nil, errors.New("client cannot be nil")
	}
	if len(cfg.Topics) == 0 {
		return nil, errors.New("at least one topic is required")
	}
	if cfg.NumMessages < 0 || cfg.MessageSize < 0 {
		return nil, fmt.Errorf("invalid load: %d messages of %d bytes", cfg.NumMessages, cfg.MessageSize)
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	return &Generator{
		client:   client,
		cfg:      cfg,
		recorder: recorder,
		logger:   logger.With().Str("component", "LoadGenerator").Str("run_id", cfg.RunID).Logger(),
	}, nil
}

// RunID returns the key prefix used by this generator.
func (g *Generator) RunID() string {
	return g.cfg.RunID
}

// Run publishes the configured messages and waits for their acks. It returns
// the number of messages handed to the client and the first send failure.
// Cancelling ctx stops production early without an error.
func (g *Generator) Run(ctx context.Context) (int, error) {
	g.logger.Info().Int("num_messages", g.cfg.NumMessages).Int("message_size", g.cfg.MessageSize).
		Strs("topics", g.cfg.Topics).Msg("Starting load generator")

	if err := g.client.Connect(); err != nil {
		g.logger.Error().Err(err).Msg("Failed to connect client")
		return 0, err
	}
	defer g.client.Disconnect()

	var tick <-chan time.Time
	if g.cfg.Rate > 0 {
		ticker := time.NewTicker(time.Duration(float64(time.Second) / g.cfg.Rate))
		defer ticker.Stop()
		tick = ticker.C
	}

	token := &StopToken{}
	onDone := g.completion(token)
	base := bytes.Repeat([]byte("A"), g.cfg.MessageSize)
	progressStep := max(g.cfg.NumMessages/10, 1)

	sent := 0
produce:
	for n := 0; n < g.cfg.NumMessages; n++ {
		if token.Stopped() {
			break
		}
		if tick != nil {
			select {
			case <-ctx.Done():
				break produce
			case <-tick:
			}
		} else if ctx.Err() != nil {
			break
		}

		msg := Message{
			Topic: g.cfg.Topics[n%len(g.cfg.Topics)],
			Key:   g.cfg.RunID + "-" + strconv.Itoa(n),
			Value: append(append(make([]byte, 0, len(base)+8), base...), strconv.Itoa(n)...),
		}
		if err := g.client.Publish(ctx, msg, onDone); err != nil {
			if ctx.Err() != nil {
				break
			}
			token.Stop(fmt.Errorf("failed to enqueue message %d: %w", n, err))
			break
		}
		sent++
		if sent%progressStep == 0 {
			g.logger.Info().Int("sent", sent).Int("total", g.cfg.NumMessages).Msg("Progress")
		}
	}

	if token.Stopped() {
		g.logger.Error().Err(token.Err()).Int("sent", sent).Msg("Load generator stopped on failure")
		return sent, token.Err()
	}

	g.logger.Info().Int("sent", sent).Msg("Waiting for all acks to arrive")
	if err := g.client.Flush(ctx); err != nil && ctx.Err() == nil {
		return sent, fmt.Errorf("flush failed: %w", err)
	}
	if token.Stopped() {
		return sent, token.Err()
	}
	g.logger.Info().Int("sent", sent).Msg("Load generator finished")
	return sent, nil
}

// completion returns the handler shared by every send of one run. After the
// token trips, later completions are ignored.
func (g *Generator) completion(token *StopToken) CompletionFunc {
	return func(res Result) {
		if token.Stopped() {
			return
		}
		if res.Err != nil {
			if token.Stop(res.Err) {
				g.logger.Error().Err(res.Err).Str("key", res.Message.Key).Msg("Send failed, stopping")
			}
			return
		}
		if g.recorder == nil {
			return
		}
		out, err := bridge.Translate(types.InboundRecord{
			Topic:       res.Message.Topic,
			Partition:   res.Partition,
			Offset:      res.Offset,
			Key:         types.StringKey(res.Message.Key),
			ValueSchema: types.ByteStringSchema(),
			Value:       res.Message.Value,
		})
		if err == nil {
			err = g.recorder.Write(out)
		}
		if err != nil {
			token.Stop(fmt.Errorf("failed to record message %s: %w", res.Message.Key, err))
		}
	}
}
