package verifier

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"cloud.google.com/go/pubsub/apiv1/pubsubpb"
	"github.com/illmade-knight/go-pubsubbridge/pkg/types"
	"google.golang.org/protobuf/encoding/protodelim"
	"google.golang.org/protobuf/proto"
)

// MaxRecordSize bounds one encoded record in a message file. It leaves room
// for a 10 MB Pub/Sub message plus its attributes.
const MaxRecordSize = 16 << 20

var unmarshalOptions = protodelim.UnmarshalOptions{MaxSize: MaxRecordSize}

// FileSource reads a file of length-delimited PubsubMessage records.
type FileSource struct {
	f *os.File
	r *bufio.Reader
}

// OpenFile opens a captured message file for reading.
func OpenFile(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open message file '%s': %w", path, err)
	}
	return &FileSource{f: f, r: bufio.NewReader(f)}, nil
}

// Next returns the next message, or io.EOF at the end of the file.
func (s *FileSource) Next() (types.OutboundMessage, error) {
	var msg pubsubpb.PubsubMessage
	if err := unmarshalOptions.UnmarshalFrom(s.r, &msg); err != nil {
		if errors.Is(err, io.EOF) {
			return types.OutboundMessage{}, io.EOF
		}
		return types.OutboundMessage{}, err
	}
	return types.OutboundMessageFromPubsub(&msg), nil
}

func (s *FileSource) Close() error {
	return s.f.Close()
}

// Writer appends length-delimited PubsubMessage records to a file. It is
// safe for concurrent use.
type Writer struct {
	mu    sync.Mutex
	f     *os.File
	w     *bufio.Writer
	count int
}

// CreateFile creates (or truncates) a message file for writing.
func CreateFile(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create message file '%s': %w", path, err)
	}
	return &Writer{f: f, w: bufio.NewWriter(f)}, nil
}

// Write appends one message.
func (w *Writer) Write(msg types.OutboundMessage) error {
	pm := msg.ToPubsub()
	if size := proto.Size(pm); size > MaxRecordSize {
		return fmt.Errorf("message of %d bytes exceeds the %d byte record limit", size, MaxRecordSize)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := protodelim.MarshalTo(w.w, pm); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	w.count++
	return nil
}

// Count returns the number of messages written.
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Close flushes buffered records and closes the file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.w.Flush(); err != nil {
		_ = w.f.Close()
		return err
	}
	return w.f.Close()
}
