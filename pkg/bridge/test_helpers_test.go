package bridge_test

import (
	"fmt"
	"sync"

	"github.com/illmade-knight/go-pubsubbridge/pkg/bridge"
	"github.com/illmade-knight/go-pubsubbridge/pkg/types"
)

const (
	kafkaTopic = "brown"
	messageKey = "over"
)

// sampleRecords returns two valid records on partition 0 of kafkaTopic.
func sampleRecords() []types.InboundRecord {
	return []types.InboundRecord{
		{Topic: kafkaTopic, Partition: 0, Offset: 0, Key: types.StringKey(messageKey), ValueSchema: types.ByteStringSchema(), Value: []byte("fox")},
		{Topic: kafkaTopic, Partition: 0, Offset: 1, Key: types.StringKey(messageKey), ValueSchema: types.ByteStringSchema(), Value: []byte("jumped")},
	}
}

// sampleMessages are the messages the bridge should produce for sampleRecords.
func sampleMessages() bridge.Batch {
	attrs := func() map[string]string {
		return map[string]string{
			bridge.AttributeKey:       messageKey,
			bridge.AttributeTopic:     kafkaTopic,
			bridge.AttributePartition: "0",
		}
	}
	return bridge.Batch{
		{Data: []byte("fox"), Attributes: attrs()},
		{Data: []byte("jumped"), Attributes: attrs()},
	}
}

type publishCall struct {
	batch  bridge.Batch
	onDone func(messageIDs []string, err error)
}

// fakePublisher records every PublishAsync call. With autoResolve set it
// completes each publish immediately with autoErr; otherwise the test
// resolves calls explicitly with Resolve.
type fakePublisher struct {
	mu          sync.Mutex
	calls       []publishCall
	autoResolve bool
	autoErr     error
	stopped     bool
}

func (f *fakePublisher) PublishAsync(batch bridge.Batch, onDone func(messageIDs []string, err error)) {
	f.mu.Lock()
	f.calls = append(f.calls, publishCall{batch: batch, onDone: onDone})
	auto, autoErr := f.autoResolve, f.autoErr
	f.mu.Unlock()

	if auto {
		if autoErr != nil {
			onDone(nil, autoErr)
			return
		}
		onDone(messageIDs(len(batch)), nil)
	}
}

func (f *fakePublisher) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func (f *fakePublisher) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakePublisher) Batch(i int) bridge.Batch {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[i].batch
}

// Resolve completes the i-th publish call.
func (f *fakePublisher) Resolve(i int, err error) {
	f.mu.Lock()
	call := f.calls[i]
	f.mu.Unlock()
	if err != nil {
		call.onDone(nil, err)
		return
	}
	call.onDone(messageIDs(len(call.batch)), nil)
}

func messageIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("msg-%d", i)
	}
	return ids
}

func validRecord(offset int64, value string) types.InboundRecord {
	return types.InboundRecord{
		Topic:       kafkaTopic,
		Partition:   3,
		Offset:      offset,
		ValueSchema: types.ByteStringSchema(),
		Value:       []byte(value),
	}
}
