package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	pubsubapi "cloud.google.com/go/pubsub/apiv1"
	"cloud.google.com/go/pubsub/apiv1/pubsubpb"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
)

// GooglePublisherConfig holds configuration for the Pub/Sub transport.
type GooglePublisherConfig struct {
	ProjectID      string
	TopicID        string
	PublishTimeout time.Duration
	// StopTimeout bounds how long Stop drains in-flight publishes before
	// cancelling them.
	StopTimeout time.Duration
	// MaxRequestMessages and MaxRequestBytes split a batch into several
	// PublishRequests when it exceeds the service's per-request limits.
	MaxRequestMessages int
	MaxRequestBytes    int
	ClientOptions      []option.ClientOption
}

const (
	// DefaultPublishTimeout bounds one batch publish, retries included.
	DefaultPublishTimeout = 60 * time.Second
	DefaultStopTimeout    = 10 * time.Second
	// MaxRequestMessages is the Pub/Sub limit on messages per PublishRequest.
	MaxRequestMessages = 1000
	// DefaultMaxRequestBytes stays under the 10 MB request limit with room
	// for the request envelope.
	DefaultMaxRequestBytes = 9_500_000
)

// ErrPublisherStopped resolves publishes handed to a stopped publisher.
var ErrPublisherStopped = errors.New("pubsub publisher is stopped")

// GooglePublisher publishes each batch as one Pub/Sub PublishRequest, split
// into consecutive requests only when the batch exceeds the per-request
// limits, so the order of messages within a batch is preserved by the
// service. Retries of transient failures are left to the generated client's
// call options.
type GooglePublisher struct {
	client      *pubsubapi.PublisherClient
	ownClient   bool
	topicName   string
	timeout     time.Duration
	stopTimeout time.Duration
	maxMessages int
	maxBytes    int
	logger      zerolog.Logger

	mu           sync.Mutex
	stopped      bool
	wg           sync.WaitGroup
	shutdownCtx  context.Context
	shutdownFunc context.CancelFunc
	stopOnce     sync.Once
}

// NewGooglePublisher dials Pub/Sub and confirms that the topic exists.
func NewGooglePublisher(ctx context.Context, cfg GooglePublisherConfig, logger zerolog.Logger) (*GooglePublisher, error) {
	client, err := pubsubapi.NewPublisherClient(ctx, cfg.ClientOptions...)
	if err != nil {
		return nil, fmt.Errorf("pubsub.NewPublisherClient: %w", err)
	}
	p, err := NewGooglePublisherWithClient(ctx, client, cfg, logger)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	p.ownClient = true
	return p, nil
}

// NewGooglePublisherWithClient uses an existing client, which the publisher
// will not close.
func NewGooglePublisherWithClient(ctx context.Context, client *pubsubapi.PublisherClient, cfg GooglePublisherConfig, logger zerolog.Logger) (*GooglePublisher, error) {
	if client == nil {
		return nil, errors.New("pubsub publisher client cannot be nil")
	}
	if cfg.ProjectID == "" || cfg.TopicID == "" {
		return nil, errors.New("pubsub project and topic must be set")
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = DefaultPublishTimeout
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = DefaultStopTimeout
	}
	if cfg.MaxRequestMessages <= 0 || cfg.MaxRequestMessages > MaxRequestMessages {
		cfg.MaxRequestMessages = MaxRequestMessages
	}
	if cfg.MaxRequestBytes <= 0 || cfg.MaxRequestBytes > DefaultMaxRequestBytes {
		cfg.MaxRequestBytes = DefaultMaxRequestBytes
	}
	topicName := fmt.Sprintf("projects/%s/topics/%s", cfg.ProjectID, cfg.TopicID)

	maxRetries := 3
	retryDelay := 100 * time.Millisecond
	var existsErr error
	for i := 0; i < maxRetries; i++ {
		checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_, existsErr = client.GetTopic(checkCtx, &pubsubpb.GetTopicRequest{Topic: topicName})
		cancel()

		if existsErr == nil {
			logger.Debug().Str("topic", topicName).Int("attempt", i+1).Msg("Topic confirmed to exist.")
			break
		}
		if status.Code(existsErr) == codes.NotFound {
			return nil, fmt.Errorf("pubsub topic %s does not exist", topicName)
		}
		logger.Warn().Err(existsErr).Str("topic", topicName).Int("attempt", i+1).
			Msg("Failed to check existence of topic, retrying...")
		time.Sleep(retryDelay)
		retryDelay *= 2
	}
	if existsErr != nil {
		return nil, fmt.Errorf("failed to check existence of topic %s after %d retries: %w", topicName, maxRetries, existsErr)
	}

	shutdownCtx, shutdownFunc := context.WithCancel(context.Background())
	logger.Info().Str("topic", topicName).Msg("GooglePublisher initialized successfully.")

	return &GooglePublisher{
		client:       client,
		topicName:    topicName,
		timeout:      cfg.PublishTimeout,
		stopTimeout:  cfg.StopTimeout,
		maxMessages:  cfg.MaxRequestMessages,
		maxBytes:     cfg.MaxRequestBytes,
		logger:       logger.With().Str("component", "GooglePublisher").Str("topic", topicName).Logger(),
		shutdownCtx:  shutdownCtx,
		shutdownFunc: shutdownFunc,
	}, nil
}

// PublishAsync sends the batch on a separate goroutine and reports the result
// through onDone exactly once. When the batch needs several requests they are
// sent in order and the first failure stops the rest; messages already
// accepted by then will be published again when the batch is redelivered.
func (p *GooglePublisher) PublishAsync(batch Batch, onDone func(messageIDs []string, err error)) {
	messages := make([]*pubsubpb.PubsubMessage, len(batch))
	for i, msg := range batch {
		messages[i] = msg.ToPubsub()
	}
	chunks := splitRequest(messages, p.maxMessages, p.maxBytes)

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		onDone(nil, ErrPublisherStopped)
		return
	}
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(p.shutdownCtx, p.timeout)
		defer cancel()

		ids := make([]string, 0, len(messages))
		for i, chunk := range chunks {
			resp, err := p.client.Publish(ctx, &pubsubpb.PublishRequest{Topic: p.topicName, Messages: chunk})
			if err != nil {
				p.logger.Error().Err(err).Int("batch_size", len(messages)).Int("request", i+1).Int("requests", len(chunks)).
					Msg("Publish request failed.")
				onDone(nil, err)
				return
			}
			ids = append(ids, resp.GetMessageIds()...)
		}
		p.logger.Debug().Int("batch_size", len(messages)).Int("requests", len(chunks)).Int("message_ids", len(ids)).
			Msg("Batch published.")
		onDone(ids, nil)
	}()
}

// splitRequest cuts messages into consecutive chunks of at most maxMessages
// messages and roughly maxBytes encoded bytes. A single message larger than
// maxBytes gets a chunk of its own; the service will reject it.
func splitRequest(messages []*pubsubpb.PubsubMessage, maxMessages, maxBytes int) [][]*pubsubpb.PubsubMessage {
	var (
		chunks [][]*pubsubpb.PubsubMessage
		start  int
		size   int
	)
	for i, msg := range messages {
		// field tag plus length prefix
		n := proto.Size(msg)
		msgSize := n + 1 + protowire.SizeVarint(uint64(n))
		if i > start && (i-start >= maxMessages || size+msgSize > maxBytes) {
			chunks = append(chunks, messages[start:i])
			start, size = i, 0
		}
		size += msgSize
	}
	if start < len(messages) {
		chunks = append(chunks, messages[start:])
	}
	return chunks
}

// Stop rejects new publishes, then waits up to StopTimeout for in-flight
// publishes before cancelling them. It closes the client if the publisher
// created it.
func (p *GooglePublisher) Stop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.stopped = true
		p.mu.Unlock()

		p.logger.Info().Msg("Stopping GooglePublisher, waiting for in-flight publishes...")
		drained := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(drained)
		}()
		select {
		case <-drained:
		case <-time.After(p.stopTimeout):
			p.logger.Warn().Dur("stop_timeout", p.stopTimeout).Msg("In-flight publishes did not finish, cancelling them.")
			p.shutdownFunc()
			<-drained
		}
		p.shutdownFunc()

		if p.ownClient {
			if err := p.client.Close(); err != nil {
				p.logger.Error().Err(err).Msg("Error closing Pub/Sub publisher client.")
			}
		}
		p.logger.Info().Msg("GooglePublisher stopped.")
	})
}
