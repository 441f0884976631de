package receipts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
)

// Sink is an append-only destination for emitted receipts.
type Sink interface {
	Write(ctx context.Context, r *Receipt) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, r *Receipt) error

func (f SinkFunc) Write(ctx context.Context, r *Receipt) error { return f(ctx, r) }

type flusher interface {
	Flush() error
}

// WriterSink writes one JSON line per receipt. Buffered writers are flushed
// after every line so a crash never leaves a receipt half written.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) Write(_ context.Context, r *Receipt) error {
	line, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal receipt: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(line); err != nil {
		return err
	}
	if f, ok := s.w.(flusher); ok {
		return f.Flush()
	}
	return nil
}

// MemorySink keeps the stream in process, in emission order.
type MemorySink struct {
	mu       sync.RWMutex
	receipts []*Receipt
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Write(_ context.Context, r *Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receipts = append(s.receipts, r)
	return nil
}

// Receipts returns a snapshot of the stream.
func (s *MemorySink) Receipts() []*Receipt {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Receipt, len(s.receipts))
	copy(out, s.receipts)
	return out
}

// Len returns the number of receipts written.
func (s *MemorySink) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.receipts)
}

// MultiSink fans a receipt out to every sink in order. All sinks are
// attempted; their errors are joined.
type MultiSink []Sink

func (m MultiSink) Write(ctx context.Context, r *Receipt) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard accepts and drops every receipt.
var Discard Sink = SinkFunc(func(context.Context, *Receipt) error { return nil })
