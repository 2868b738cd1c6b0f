package sink

import (
	"context"
	"encoding/json"
	"io"

	"github.com/Sternrassler/igdump/pkg/client"
)

// StreamSink writes profiles as one JSON array.
type StreamSink struct {
	W io.Writer
}

// NewStreamSink creates a sink writing to w.
func NewStreamSink(w io.Writer) *StreamSink {
	return &StreamSink{W: w}
}

// Emit marshals all profiles and writes them with a single call, followed by
// a newline. An empty slice writes [].
func (s *StreamSink) Emit(ctx context.Context, profiles []client.Profile) error {
	if err := ctx.Err(); err != nil {
		return &StorageError{Op: "stream", Err: err}
	}
	if profiles == nil {
		profiles = []client.Profile{}
	}

	data, err := json.Marshal(profiles)
	if err != nil {
		return &StorageError{Op: "encode", Err: err}
	}
	data = append(data, '\n')

	if _, err := s.W.Write(data); err != nil {
		return &StorageError{Op: "write", Err: err}
	}

	rowsWrittenTotal.WithLabelValues(string(KindStream)).Add(float64(len(profiles)))
	return nil
}
