package verifier

import (
	"context"
	"errors"
	"sync"

	"cloud.google.com/go/pubsub"
	"github.com/illmade-knight/go-pubsubbridge/pkg/types"
	"github.com/rs/zerolog"
)

// Capture receives messages from sub and writes them to w until ctx is done
// or limit messages have been written (limit <= 0 means no limit). Messages
// are acked only after they have been written. It returns the number of
// messages captured.
func Capture(ctx context.Context, sub *pubsub.Subscription, w *Writer, limit int, logger zerolog.Logger) (int, error) {
	logger = logger.With().Str("component", "Capture").Str("subscription_id", sub.ID()).Logger()
	receiveCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu       sync.Mutex
		captured int
		writeErr error
	)
	err := sub.Receive(receiveCtx, func(_ context.Context, msg *pubsub.Message) {
		mu.Lock()
		defer mu.Unlock()
		if writeErr != nil || (limit > 0 && captured >= limit) {
			msg.Nack()
			return
		}
		out := types.OutboundMessage{Data: msg.Data, Attributes: msg.Attributes}
		if err := w.Write(out); err != nil {
			writeErr = err
			msg.Nack()
			cancel()
			return
		}
		msg.Ack()
		captured++
		if captured%1000 == 0 {
			logger.Info().Int("captured", captured).Msg("Capture progress.")
		}
		if limit > 0 && captured >= limit {
			cancel()
		}
	})

	mu.Lock()
	defer mu.Unlock()
	if writeErr != nil {
		return captured, writeErr
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return captured, err
	}
	logger.Info().Int("captured", captured).Msg("Capture finished.")
	return captured, nil
}
