package kafkasource

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/illmade-knight/go-pubsubbridge/pkg/bridge"
	"github.com/illmade-knight/go-pubsubbridge/pkg/types"
	"github.com/rs/zerolog"
)

// finalFlushTimeout bounds the flush attempted when a claim ends.
const finalFlushTimeout = 30 * time.Second

// Config holds consumer group settings for the runner.
type Config struct {
	Brokers       []string
	GroupID       string
	Topics        []string
	Version       string
	StartFrom     string // oldest|newest
	FlushInterval time.Duration
}

// TaskFactory creates one sink task per claimed partition.
type TaskFactory func() (*bridge.SinkTask, error)

// Runner consumes the source topics as a consumer group and feeds every
// claimed partition into its own sink task. Offsets are committed only after
// the task's flush succeeds, giving at-least-once delivery.
type Runner struct {
	cfg     Config
	client  sarama.Client
	group   sarama.ConsumerGroup
	handler *claimHandler
	logger  zerolog.Logger
}

// NewRunner connects to the brokers and joins the consumer group.
func NewRunner(cfg Config, newTask TaskFactory, logger zerolog.Logger) (*Runner, error) {
	sc, err := saramaConfig(cfg)
	if err != nil {
		return nil, err
	}
	client, err := sarama.NewClient(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("sarama.NewClient: %w", err)
	}
	group, err := sarama.NewConsumerGroupFromClient(cfg.GroupID, client)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("sarama.NewConsumerGroup %s: %w", cfg.GroupID, err)
	}
	r := NewRunnerWithGroup(group, cfg, newTask, logger)
	r.client = client
	return r, nil
}

// NewRunnerWithGroup uses an existing consumer group.
func NewRunnerWithGroup(group sarama.ConsumerGroup, cfg Config, newTask TaskFactory, logger zerolog.Logger) *Runner {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 10 * time.Second
	}
	logger = logger.With().Str("component", "KafkaRunner").Str("group_id", cfg.GroupID).Logger()
	return &Runner{
		cfg:   cfg,
		group: group,
		handler: &claimHandler{
			newTask:       newTask,
			flushInterval: cfg.FlushInterval,
			logger:        logger,
		},
		logger: logger,
	}
}

func saramaConfig(cfg Config) (*sarama.Config, error) {
	sc := sarama.NewConfig()
	if cfg.Version != "" {
		ver, err := sarama.ParseKafkaVersion(cfg.Version)
		if err != nil {
			return nil, fmt.Errorf("invalid kafka version %q: %w", cfg.Version, err)
		}
		sc.Version = ver
	}
	sc.Consumer.Return.Errors = true
	sc.Consumer.Offsets.AutoCommit.Enable = false
	switch cfg.StartFrom {
	case "newest":
		sc.Consumer.Offsets.Initial = sarama.OffsetNewest
	default:
		sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	}
	return sc, nil
}

// Run consumes until ctx is cancelled. A failed flush ends the current group
// session without committing, so the partition is redelivered from the last
// committed offset when the session is re-established.
func (r *Runner) Run(ctx context.Context) error {
	go func() {
		for err := range r.group.Errors() {
			r.logger.Error().Err(err).Msg("Consumer group error.")
		}
	}()

	r.logger.Info().Strs("topics", r.cfg.Topics).Dur("flush_interval", r.cfg.FlushInterval).
		Msg("Starting Kafka consumer group.")
	for {
		if err := r.group.Consume(ctx, r.cfg.Topics, r.handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return fmt.Errorf("consumer group session: %w", err)
		}
		if ctx.Err() != nil {
			r.logger.Info().Msg("Kafka runner stopping.")
			return nil
		}
		r.logger.Info().Msg("Consumer group session ended, rejoining.")
	}
}

// Close leaves the consumer group.
func (r *Runner) Close() error {
	err := r.group.Close()
	if r.client != nil {
		if cerr := r.client.Close(); cerr != nil && !errors.Is(cerr, sarama.ErrClosedClient) && err == nil {
			err = cerr
		}
	}
	return err
}

// claimHandler implements sarama.ConsumerGroupHandler.
type claimHandler struct {
	newTask       TaskFactory
	flushInterval time.Duration
	logger        zerolog.Logger
}

func (h *claimHandler) Setup(sess sarama.ConsumerGroupSession) error {
	h.logger.Info().Int32("generation", sess.GenerationID()).Interface("claims", sess.Claims()).
		Msg("Consumer group session started.")
	return nil
}

func (h *claimHandler) Cleanup(sess sarama.ConsumerGroupSession) error {
	h.logger.Info().Int32("generation", sess.GenerationID()).Msg("Consumer group session cleaned up.")
	return nil
}

// ConsumeClaim drives one sink task from one partition.
func (h *claimHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	logger := h.logger.With().Str("topic", claim.Topic()).Int32("partition", claim.Partition()).Logger()
	task, err := h.newTask()
	if err != nil {
		return fmt.Errorf("failed to create sink task: %w", err)
	}
	defer task.Stop()

	tp := types.TopicPartition{Topic: claim.Topic(), Partition: claim.Partition()}
	var last *sarama.ConsumerMessage

	checkpoint := func(ctx context.Context) error {
		if last == nil && task.Buffered() == 0 && task.Outstanding() == 0 {
			return nil
		}
		var offsets map[types.TopicPartition]int64
		if last != nil {
			offsets = map[types.TopicPartition]int64{tp: last.Offset}
		}
		if err := task.Flush(ctx, offsets); err != nil {
			return err
		}
		if last != nil {
			sess.MarkMessage(last, "")
			sess.Commit()
			logger.Debug().Int64("offset", last.Offset).Msg("Committed offset.")
			last = nil
		}
		return nil
	}

	ticker := time.NewTicker(h.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				ctx, cancel := context.WithTimeout(context.WithoutCancel(sess.Context()), finalFlushTimeout)
				defer cancel()
				return checkpoint(ctx)
			}
			if err := task.Put(sess.Context(), []types.InboundRecord{RecordFromMessage(msg)}); err != nil {
				var vErr *bridge.ValidationError
				if !errors.As(err, &vErr) {
					return err
				}
				logger.Error().Err(err).Int64("offset", msg.Offset).Msg("Skipping record that can never be published.")
			}
			last = msg

		case <-ticker.C:
			if err := checkpoint(sess.Context()); err != nil {
				logger.Error().Err(err).Msg("Checkpoint failed, offsets not committed.")
				return err
			}

		case <-sess.Context().Done():
			return nil
		}
	}
}
