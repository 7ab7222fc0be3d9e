package kafkasource

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/illmade-knight/go-pubsubbridge/pkg/bridge"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSession records marks and commits made by the handler.
type fakeSession struct {
	ctx     context.Context
	mu      sync.Mutex
	marked  []*sarama.ConsumerMessage
	commits int
}

func (s *fakeSession) Claims() map[string][]int32               { return nil }
func (s *fakeSession) MemberID() string                         { return "member-1" }
func (s *fakeSession) GenerationID() int32                      { return 1 }
func (s *fakeSession) MarkOffset(string, int32, int64, string)  {}
func (s *fakeSession) ResetOffset(string, int32, int64, string) {}
func (s *fakeSession) Context() context.Context                 { return s.ctx }
func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked = append(s.marked, msg)
}
func (s *fakeSession) Commit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commits++
}

func (s *fakeSession) snapshot() ([]*sarama.ConsumerMessage, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*sarama.ConsumerMessage(nil), s.marked...), s.commits
}

type fakeClaim struct {
	topic     string
	partition int32
	messages  chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Topic() string                            { return c.topic }
func (c *fakeClaim) Partition() int32                         { return c.partition }
func (c *fakeClaim) InitialOffset() int64                     { return 0 }
func (c *fakeClaim) HighWaterMarkOffset() int64               { return 0 }
func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.messages }

// autoPublisher completes every publish immediately with err.
type autoPublisher struct {
	mu      sync.Mutex
	batches []bridge.Batch
	err     error
}

func (p *autoPublisher) PublishAsync(batch bridge.Batch, onDone func([]string, error)) {
	p.mu.Lock()
	p.batches = append(p.batches, batch)
	p.mu.Unlock()
	if p.err != nil {
		onDone(nil, p.err)
		return
	}
	onDone(make([]string, len(batch)), nil)
}

func (p *autoPublisher) Stop() {}

func (p *autoPublisher) published() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, b := range p.batches {
		n += len(b)
	}
	return n
}

func newTestHandler(pub bridge.Publisher, minBatch int, interval time.Duration) *claimHandler {
	return &claimHandler{
		newTask: func() (*bridge.SinkTask, error) {
			return bridge.NewSinkTask(pub, bridge.SinkTaskConfig{MinBatchSize: minBatch}, nil, zerolog.Nop())
		},
		flushInterval: interval,
		logger:        zerolog.Nop(),
	}
}

func message(offset int64, value []byte) *sarama.ConsumerMessage {
	return &sarama.ConsumerMessage{Topic: "orders", Partition: 1, Offset: offset, Key: []byte("k"), Value: value}
}

func TestConsumeClaim_CommitsAfterFinalFlush(t *testing.T) {
	pub := &autoPublisher{}
	h := newTestHandler(pub, 2, time.Hour)
	sess := &fakeSession{ctx: context.Background()}
	claim := &fakeClaim{topic: "orders", partition: 1, messages: make(chan *sarama.ConsumerMessage, 3)}

	claim.messages <- message(10, []byte("a"))
	claim.messages <- message(11, []byte("b"))
	claim.messages <- message(12, []byte("c"))
	close(claim.messages)

	err := h.ConsumeClaim(sess, claim)
	require.NoError(t, err)

	// one full batch of two, plus the partial batch published by the flush
	assert.Equal(t, 3, pub.published())
	marked, commits := sess.snapshot()
	require.Len(t, marked, 1)
	assert.Equal(t, int64(12), marked[0].Offset)
	assert.Equal(t, 1, commits)
}

func TestConsumeClaim_PeriodicCheckpoint(t *testing.T) {
	pub := &autoPublisher{}
	h := newTestHandler(pub, 100, 20*time.Millisecond)
	sess := &fakeSession{ctx: context.Background()}
	claim := &fakeClaim{topic: "orders", partition: 1, messages: make(chan *sarama.ConsumerMessage, 1)}

	done := make(chan error, 1)
	go func() { done <- h.ConsumeClaim(sess, claim) }()

	claim.messages <- message(5, []byte("a"))
	require.Eventually(t, func() bool {
		_, commits := sess.snapshot()
		return commits == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, pub.published())

	close(claim.messages)
	require.NoError(t, <-done)
	// nothing new was consumed, so the final flush has nothing to commit
	_, commits := sess.snapshot()
	assert.Equal(t, 1, commits)
}

func TestConsumeClaim_DeliveryFailureDoesNotCommit(t *testing.T) {
	pub := &autoPublisher{err: errors.New("publish rejected")}
	h := newTestHandler(pub, 5, time.Hour)
	sess := &fakeSession{ctx: context.Background()}
	claim := &fakeClaim{topic: "orders", partition: 1, messages: make(chan *sarama.ConsumerMessage, 1)}

	claim.messages <- message(0, []byte("a"))
	close(claim.messages)

	err := h.ConsumeClaim(sess, claim)
	var dErr *bridge.DeliveryError
	require.ErrorAs(t, err, &dErr)

	marked, commits := sess.snapshot()
	assert.Empty(t, marked)
	assert.Zero(t, commits)
}

func TestConsumeClaim_SkipsTombstones(t *testing.T) {
	pub := &autoPublisher{}
	h := newTestHandler(pub, 5, time.Hour)
	sess := &fakeSession{ctx: context.Background()}
	claim := &fakeClaim{topic: "orders", partition: 1, messages: make(chan *sarama.ConsumerMessage, 3)}

	claim.messages <- message(0, []byte("a"))
	claim.messages <- message(1, nil)
	claim.messages <- message(2, []byte("c"))
	close(claim.messages)

	require.NoError(t, h.ConsumeClaim(sess, claim))

	assert.Equal(t, 2, pub.published())
	marked, _ := sess.snapshot()
	require.Len(t, marked, 1)
	assert.Equal(t, int64(2), marked[0].Offset)
}

func TestConsumeClaim_SessionEndWithoutCommit(t *testing.T) {
	pub := &autoPublisher{}
	h := newTestHandler(pub, 5, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	sess := &fakeSession{ctx: ctx}
	claim := &fakeClaim{topic: "orders", partition: 1, messages: make(chan *sarama.ConsumerMessage)}

	cancel()
	require.NoError(t, h.ConsumeClaim(sess, claim))

	marked, commits := sess.snapshot()
	assert.Empty(t, marked)
	assert.Zero(t, commits)
}

func TestSaramaConfig(t *testing.T) {
	sc, err := saramaConfig(Config{Version: "2.8.0", StartFrom: "newest"})
	require.NoError(t, err)
	assert.False(t, sc.Consumer.Offsets.AutoCommit.Enable)
	assert.Equal(t, sarama.OffsetNewest, sc.Consumer.Offsets.Initial)
	assert.Equal(t, sarama.V2_8_0_0, sc.Version)

	sc, err = saramaConfig(Config{})
	require.NoError(t, err)
	assert.Equal(t, sarama.OffsetOldest, sc.Consumer.Offsets.Initial)

	_, err = saramaConfig(Config{Version: "not-a-version"})
	assert.Error(t, err)
}
