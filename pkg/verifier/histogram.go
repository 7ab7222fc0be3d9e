package verifier

import (
	"errors"
	"fmt"
	"io"

	"github.com/illmade-knight/go-pubsubbridge/pkg/types"
	"google.golang.org/protobuf/proto"
)

// Source is a finite, read-once sequence of recorded messages. Next returns
// io.EOF once the sequence is exhausted.
type Source interface {
	Next() (types.OutboundMessage, error)
}

// SliceSource serves messages from memory.
type SliceSource struct {
	messages []types.OutboundMessage
	pos      int
}

// NewSliceSource returns a Source over msgs.
func NewSliceSource(msgs ...types.OutboundMessage) *SliceSource {
	return &SliceSource{messages: msgs}
}

func (s *SliceSource) Next() (types.OutboundMessage, error) {
	if s.pos >= len(s.messages) {
		return types.OutboundMessage{}, io.EOF
	}
	msg := s.messages[s.pos]
	s.pos++
	return msg, nil
}

var identityOptions = proto.MarshalOptions{Deterministic: true}

// Identity returns the full-content identity of a message: its deterministic
// protobuf encoding. Two messages have the same identity exactly when their
// data and attribute sets are equal.
func Identity(msg types.OutboundMessage) (string, error) {
	b, err := identityOptions.Marshal(msg.ToPubsub())
	if err != nil {
		return "", fmt.Errorf("failed to encode message identity: %w", err)
	}
	return string(b), nil
}

// Histogram counts occurrences of each distinct message.
type Histogram struct {
	counts  map[string]int
	samples map[string]types.OutboundMessage
	order   []string
	total   int
}

func newHistogram() *Histogram {
	return &Histogram{
		counts:  make(map[string]int),
		samples: make(map[string]types.OutboundMessage),
	}
}

// BuildHistogram reads src to exhaustion.
func BuildHistogram(src Source) (*Histogram, error) {
	h := newHistogram()
	for {
		msg, err := src.Next()
		if errors.Is(err, io.EOF) {
			return h, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read message %d: %w", h.total+1, err)
		}
		if err := h.add(msg); err != nil {
			return nil, err
		}
	}
}

func (h *Histogram) add(msg types.OutboundMessage) error {
	id, err := Identity(msg)
	if err != nil {
		return err
	}
	if _, seen := h.counts[id]; !seen {
		h.order = append(h.order, id)
		h.samples[id] = msg
	}
	h.counts[id]++
	h.total++
	return nil
}

// Distinct is the number of distinct messages.
func (h *Histogram) Distinct() int {
	return len(h.counts)
}

// Total is the number of messages read.
func (h *Histogram) Total() int {
	return h.total
}

// Count returns how often msg occurred.
func (h *Histogram) Count(msg types.OutboundMessage) int {
	id, err := Identity(msg)
	if err != nil {
		return 0
	}
	return h.counts[id]
}
