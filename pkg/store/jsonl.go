package store

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/northstaraokeystone/trumpproof/pkg/receipts"
)

// maxLine bounds a single JSONL record.
const maxLine = 16 << 20

// ReadJSONL decodes one receipt per line. Blank lines are skipped.
func ReadJSONL(r io.Reader) ([]*receipts.Receipt, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxLine)
	var out []*receipts.Receipt
	line := 0
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		rec, err := decode(string(b))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadJSONLFile reads a receipts file.
func ReadJSONLFile(path string) ([]*receipts.Receipt, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return ReadJSONL(f)
}

// FileSink appends JSON lines to a file and syncs after each one.
type FileSink struct {
	*receipts.WriterSink
	f *os.File
}

// OpenFileSink opens path for appending, creating parent directories.
func OpenFileSink(path string) (*FileSink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileSink{WriterSink: receipts.NewWriterSink(f), f: f}, nil
}

func (s *FileSink) Write(ctx context.Context, r *receipts.Receipt) error {
	if err := s.WriterSink.Write(ctx, r); err != nil {
		return err
	}
	return s.f.Sync()
}

func (s *FileSink) Close() error { return s.f.Close() }
