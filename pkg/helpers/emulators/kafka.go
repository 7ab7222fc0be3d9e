package emulators

import (
	"context"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
)

const testKafkaImage = "confluentinc/confluent-local:7.8.0"

// KafkaConfig describes the broker and the topics to create in it.
type KafkaConfig struct {
	Image      string
	ClusterID  string
	Partitions int32
	Topics     []string
}

func GetDefaultKafkaConfig(topics ...string) KafkaConfig {
	return KafkaConfig{
		Image:      testKafkaImage,
		ClusterID:  "test-cluster",
		Partitions: 3,
		Topics:     topics,
	}
}

// SetupKafka starts a single-node KRaft broker, creates the configured topics
// and returns the broker addresses. The container is terminated when the test
// ends.
func SetupKafka(t *testing.T, ctx context.Context, cfg KafkaConfig) []string {
	t.Helper()
	container, err := kafka.Run(ctx, cfg.Image, kafka.WithClusterID(cfg.ClusterID))
	require.NoError(t, err, "Failed to start Kafka container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Failed to terminate Kafka container: %v", err)
		}
	})

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers, "No Kafka brokers available")
	t.Logf("Kafka broker available at: %v", brokers)

	admin := waitForKafka(t, brokers)
	defer admin.Close()

	for _, topic := range cfg.Topics {
		err := admin.CreateTopic(topic, &sarama.TopicDetail{NumPartitions: cfg.Partitions, ReplicationFactor: 1}, false)
		require.NoError(t, err, "Failed to create Kafka topic %s", topic)
	}
	return brokers
}

// waitForKafka retries until the broker accepts an admin connection.
func waitForKafka(t *testing.T, brokers []string) sarama.ClusterAdmin {
	t.Helper()
	sc := sarama.NewConfig()
	sc.Version = sarama.V2_8_0_0

	var admin sarama.ClusterAdmin
	require.Eventually(t, func() bool {
		var err error
		admin, err = sarama.NewClusterAdmin(brokers, sc)
		if err != nil {
			t.Logf("Kafka not ready yet: %v", err)
			return false
		}
		return true
	}, 30*time.Second, time.Second)
	return admin
}
