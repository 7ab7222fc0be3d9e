package loadgen

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"
)

// SaramaClientConfig holds the producer settings.
type SaramaClientConfig struct {
	Brokers []string
	Version string
}

type pendingSend struct {
	msg    Message
	onDone CompletionFunc
}

// SaramaClient is a Client backed by a sarama AsyncProducer.
type SaramaClient struct {
	cfg      SaramaClientConfig
	producer sarama.AsyncProducer
	inflight sync.WaitGroup
	loops    sync.WaitGroup
	logger   zerolog.Logger
}

// NewSaramaClient creates a client that connects on Connect.
func NewSaramaClient(cfg SaramaClientConfig, logger zerolog.Logger) *SaramaClient {
	return &SaramaClient{
		cfg:    cfg,
		logger: logger.With().Str("component", "SaramaClient").Logger(),
	}
}

// NewSaramaClientWithProducer wraps an existing producer. The producer must
// return both successes and errors.
func NewSaramaClientWithProducer(producer sarama.AsyncProducer, logger zerolog.Logger) *SaramaClient {
	c := NewSaramaClient(SaramaClientConfig{}, logger)
	c.producer = producer
	return c
}

// ProducerConfig returns the sarama configuration used by Connect.
func ProducerConfig(version string) (*sarama.Config, error) {
	sc := sarama.NewConfig()
	if version != "" {
		ver, err := sarama.ParseKafkaVersion(version)
		if err != nil {
			return nil, fmt.Errorf("invalid kafka version %q: %w", version, err)
		}
		sc.Version = ver
	}
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Return.Successes = true
	sc.Producer.Return.Errors = true
	return sc, nil
}

func (c *SaramaClient) Connect() error {
	if c.producer == nil {
		sc, err := ProducerConfig(c.cfg.Version)
		if err != nil {
			return err
		}
		producer, err := sarama.NewAsyncProducer(c.cfg.Brokers, sc)
		if err != nil {
			return fmt.Errorf("sarama.NewAsyncProducer: %w", err)
		}
		c.producer = producer
	}

	c.loops.Add(2)
	go func() {
		defer c.loops.Done()
		for pm := range c.producer.Successes() {
			c.complete(pm, nil)
		}
	}()
	go func() {
		defer c.loops.Done()
		for perr := range c.producer.Errors() {
			c.complete(perr.Msg, perr.Err)
		}
	}()
	c.logger.Info().Strs("brokers", c.cfg.Brokers).Msg("Kafka producer connected")
	return nil
}

func (c *SaramaClient) complete(pm *sarama.ProducerMessage, err error) {
	defer c.inflight.Done()
	p, ok := pm.Metadata.(pendingSend)
	if !ok {
		c.logger.Error().Str("topic", pm.Topic).Msg("Producer returned a message without send metadata")
		return
	}
	p.onDone(Result{Message: p.msg, Partition: pm.Partition, Offset: pm.Offset, Err: err})
}

func (c *SaramaClient) Publish(ctx context.Context, msg Message, onDone CompletionFunc) error {
	if c.producer == nil {
		return errors.New("producer is not connected")
	}
	pm := &sarama.ProducerMessage{
		Topic:    msg.Topic,
		Key:      sarama.StringEncoder(msg.Key),
		Value:    sarama.ByteEncoder(msg.Value),
		Metadata: pendingSend{msg: msg, onDone: onDone},
	}
	c.inflight.Add(1)
	select {
	case c.producer.Input() <- pm:
		return nil
	case <-ctx.Done():
		c.inflight.Done()
		return ctx.Err()
	}
}

func (c *SaramaClient) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *SaramaClient) Disconnect() {
	if c.producer == nil {
		return
	}
	c.producer.AsyncClose()
	c.loops.Wait()
	c.logger.Info().Msg("Kafka producer closed")
}
