package bridge_test

import (
	"fmt"
	"testing"

	"github.com/illmade-knight/go-pubsubbridge/pkg/bridge"
	"github.com/illmade-knight/go-pubsubbridge/pkg/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccumulator_ReadyExactlyAtThreshold(t *testing.T) {
	for _, threshold := range []int{1, 2, 3, 7} {
		t.Run(fmt.Sprintf("threshold %d", threshold), func(t *testing.T) {
			acc := bridge.NewAccumulator(threshold, zerolog.Nop())

			// Two full cycles to check that readiness resets after a drain.
			for cycle := 0; cycle < 2; cycle++ {
				for i := 1; i <= threshold; i++ {
					assert.False(t, acc.IsReady(), "ready before offer %d", i)
					require.NoError(t, acc.Offer(validRecord(int64(i), fmt.Sprintf("v-%d", i))))
				}
				assert.True(t, acc.IsReady())
				assert.Len(t, acc.Drain(), threshold)
			}
		})
	}
}

func TestAccumulator_DrainReturnsOfferOrderAndEmpties(t *testing.T) {
	acc := bridge.NewAccumulator(10, zerolog.Nop())
	for i := 0; i < 4; i++ {
		require.NoError(t, acc.Offer(validRecord(int64(i), fmt.Sprintf("v-%d", i))))
	}

	batch := acc.Drain()
	require.Len(t, batch, 4)
	for i, msg := range batch {
		assert.Equal(t, fmt.Sprintf("v-%d", i), string(msg.Data))
	}
	assert.Equal(t, 0, acc.Len())
	assert.Empty(t, acc.Drain(), "second drain should be empty")

	// The drained batch must not be affected by later offers.
	require.NoError(t, acc.Offer(validRecord(9, "later")))
	assert.Equal(t, "v-0", string(batch[0].Data))
	assert.Len(t, batch, 4)
}

func TestAccumulator_InvalidRecordDoesNotMutateBatch(t *testing.T) {
	acc := bridge.NewAccumulator(2, zerolog.Nop())
	require.NoError(t, acc.Offer(validRecord(0, "ok")))

	bad := types.InboundRecord{Topic: kafkaTopic, ValueSchema: types.Schema{Type: types.SchemaBoolean}}
	err := acc.Offer(bad)

	var vErr *bridge.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, 1, acc.Len())
	assert.False(t, acc.IsReady())
}

func TestAccumulator_DefaultsNonPositiveThreshold(t *testing.T) {
	acc := bridge.NewAccumulator(0, zerolog.Nop())
	assert.Equal(t, bridge.DefaultMinBatchSize, acc.MinBatchSize())
}
