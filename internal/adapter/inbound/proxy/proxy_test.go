package proxy

import (
	"context"
	"sync"
	"time"

	"github.com/sentinelgate/egressproxy/internal/domain/allowlist"
	"github.com/sentinelgate/egressproxy/internal/domain/audit"
	"github.com/sentinelgate/egressproxy/internal/domain/ratelimit"
	"github.com/sentinelgate/egressproxy/internal/domain/sanitize"
	"github.com/sentinelgate/egressproxy/internal/domain/schema"
	"github.com/sentinelgate/egressproxy/internal/domain/store"
)

// fakeAudit collects every record and error logged during a test.
type fakeAudit struct {
	mu      sync.Mutex
	records []audit.Record
	errors  []string
}

func (f *fakeAudit) Log(r audit.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, r)
}

func (f *fakeAudit) LogError(message string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, message)
}

func (f *fakeAudit) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

func (f *fakeAudit) last() audit.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records[len(f.records)-1]
}

// fakeUpstream is a stub ActionUpstream that always succeeds unless told
// otherwise.
type fakeUpstream struct {
	mu        sync.Mutex
	failErr   error
	status    int
	calls     int
	lastThread string
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{status: 200}
}

func (f *fakeUpstream) CreatePost(ctx context.Context, req schema.PostRequest) (int, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failErr != nil {
		return 0, nil, f.failErr
	}
	return f.status, []byte(`{"id":"p1"}`), nil
}

func (f *fakeUpstream) CreateComment(ctx context.Context, threadID string, req schema.PostRequest) (int, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastThread = threadID
	if f.failErr != nil {
		return 0, nil, f.failErr
	}
	return f.status, []byte(`{"id":"c1"}`), nil
}

func (f *fakeUpstream) Vote(ctx context.Context, postID string) (int, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failErr != nil {
		return 0, nil, f.failErr
	}
	return f.status, []byte(`{"ok":true}`), nil
}

// fakeStore is an in-memory store.Store for the memory-store endpoints.
type fakeStore struct {
	mu   sync.Mutex
	data map[string][]byte
	meta map[string]store.Metadata
	mod  map[string]time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		data: make(map[string][]byte),
		meta: make(map[string]store.Metadata),
		mod:  make(map[string]time.Time),
	}
}

func (f *fakeStore) Put(ctx context.Context, key string, data []byte, contentType string, meta store.Metadata) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.data[key]; exists {
		return store.ErrBlobExists
	}
	f.data[key] = data
	f.meta[key] = meta
	f.mod[key] = time.Now()
	return nil
}

func (f *fakeStore) Get(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data[key], nil
}

func (f *fakeStore) ListByPrefix(ctx context.Context, prefix string, includeMetadata bool) ([]store.ListedBlob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.ListedBlob
	for k := range f.data {
		out = append(out, store.ListedBlob{Name: k, LastModified: f.mod[k], Metadata: f.meta[k]})
	}
	return out, nil
}

func (f *fakeStore) SetMetadata(ctx context.Context, key string, meta store.Metadata) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.data[key]; !exists {
		return nil
	}
	f.meta[key] = meta
	return nil
}

// testDeps builds a Deps wired with an allowlist config, fresh limiter,
// fake audit sink, fake upstream, and fake store — enough to drive the
// local-endpoint and dispatch-layer tests without any network I/O.
func testDeps(cfg *allowlist.Config) (Deps, *fakeAudit, *fakeUpstream, *fakeStore, *ratelimit.Limiter) {
	holder := allowlist.NewHolder(cfg, nil)
	limiter := ratelimit.New()
	auditSink := &fakeAudit{}
	upstream := newFakeUpstream()
	st := newFakeStore()

	deps := Deps{
		Allowlist:   holder,
		Sanitizer:   sanitize.New(),
		RateLimiter: limiter,
		Audit:       auditSink,
		Store:       st,
		Upstream:    upstream,
		StartTime:   time.Now(),
	}
	return deps, auditSink, upstream, st, limiter
}
