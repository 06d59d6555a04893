// Package audit writes one JSON object per line to standard output: the
// proxy core's audit trail. Grounded on the teacher's
// internal/adapter/outbound/audit.FileAuditStore shape (config struct,
// constructor, mutex-serialized writes) but without rotation, retention, or
// an in-memory cache — the proxy keeps no durable state of its own.
package audit

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"sync"
	"time"

	"github.com/sentinelgate/egressproxy/internal/domain/audit"
)

// StdoutStore implements audit.Sink by writing newline-terminated JSON
// objects to an io.Writer (os.Stdout in production). Writes are serialized
// under mu so concurrent connection handlers never interleave records.
type StdoutStore struct {
	mu sync.Mutex
	w  io.Writer
}

// New creates a StdoutStore writing to w.
func New(w io.Writer) *StdoutStore {
	return &StdoutStore{w: w}
}

// Log emits r as one JSON line, stamping Timestamp with "now" if the caller
// left it zero.
func (s *StdoutStore) Log(r audit.Record) {
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
	s.write(r)
}

// LogError emits an audit.ErrorRecord. When err is non-nil, its type name,
// message, and (if it implements an interface exposing one) a stack trace
// are included — full detail that never reaches the client.
func (s *StdoutStore) LogError(message string, err error) {
	rec := audit.ErrorRecord{
		Timestamp: time.Now().UTC(),
		Level:     "error",
		Message:   message,
	}
	if err != nil {
		rec.ErrorName = reflect.TypeOf(err).String()
		rec.ErrorMessage = err.Error()
		if se, ok := err.(interface{ Stack() string }); ok {
			rec.Stack = se.Stack()
		}
	}
	s.write(rec)
}

func (s *StdoutStore) write(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		// Marshaling an audit record should never fail; if it does, there is
		// nowhere safer to report it than stderr-style fallback text.
		data = []byte(fmt.Sprintf(`{"level":"error","message":"audit: marshal failed: %s"}`, err.Error()))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.w.Write(data)
	_, _ = s.w.Write([]byte("\n"))
}
