package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// registry holds one mutex per absolute output path, so callers may
// construct multiple Appender values for the same path (e.g. across
// goroutines) and still get file-path-scoped serialization.
var registry sync.Map // map[string]*sync.Mutex

func pathMutex(path string) *sync.Mutex {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	v, _ := registry.LoadOrStore(abs, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// Appender appends a batch of records to a single output file. Writes
// are append-only; Appender never rewrites or truncates its file.
type Appender interface {
	Append(batch []any) error
	Close() error
}

// jsonlAppender is the one-output-path implementation of Appender: a
// JSON encoder over an append-mode file, guarded by a path-scoped
// mutex so batches from concurrent callers never interleave.
type jsonlAppender struct {
	mu   *sync.Mutex
	f    *os.File
	enc  *json.Encoder
	path string
}

// NewAppender opens path in append mode, creating parent directories
// and the file itself if necessary. Prior content is preserved so
// resume can rebuild state from it.
func NewAppender(path string) (Appender, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpenOutput, err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpenOutput, err)
	}
	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	return &jsonlAppender{mu: pathMutex(path), f: f, enc: enc, path: path}, nil
}

// Append writes each element of batch as one JSON line under the
// path's lock. An empty batch is a no-op. Flush is implicit: each
// Encode call is an unbuffered write to the underlying file.
func (a *jsonlAppender) Append(batch []any) error {
	if len(batch) == 0 {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, record := range batch {
		if err := a.enc.Encode(record); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrWriteOutput, a.path, err)
		}
	}
	return nil
}

func (a *jsonlAppender) Close() error {
	return a.f.Close()
}
