package proxy

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sentinelgate/egressproxy/internal/domain/audit"
	"github.com/sentinelgate/egressproxy/internal/domain/ratelimit"
	"github.com/sentinelgate/egressproxy/internal/domain/schema"
	"github.com/sentinelgate/egressproxy/internal/domain/store"
)

const armLocal = "local"

// maxLocalBodyBytes bounds the /post and /vote request bodies read off the
// wire before JSON decoding, "a sane cap (>=1 MiB)" per the spec.
const maxLocalBodyBytes = schema.MaxMemoryBytes

// maxMemoryReadBytes bounds how much of a /memory body is ever read off the
// wire, well above schema.MaxMemoryBytes so a body anywhere near the 1 MiB
// limit is read in full and classified by the explicit size check below —
// only a body that blows far past the limit hits this read cap directly.
const maxMemoryReadBytes = 4 * schema.MaxMemoryBytes

// handleLocal dispatches an origin-form request to one of the proxy's own
// endpoints. Unrecognized paths return 404, matching the local-endpoint
// arm's own not-found behavior (the dispatch layer never 404s itself —
// every origin-form request lands here).
func (s *Server) handleLocal(conn net.Conn, req *http.Request) {
	switch {
	case req.Method == http.MethodGet && req.URL.Path == "/health":
		s.handleHealth(conn, req)
	case req.Method == http.MethodPost && req.URL.Path == "/post":
		s.handlePost(conn, req)
	case req.Method == http.MethodPost && req.URL.Path == "/vote":
		s.handleVote(conn, req)
	case req.Method == http.MethodPost && req.URL.Path == "/memory":
		s.handleMemoryWrite(conn, req)
	case req.Method == http.MethodGet && req.URL.Path == "/memory/latest":
		s.handleMemoryLatest(conn, req)
	default:
		s.deps.Audit.Log(audit.Record{
			RequestID:      requestIDFrom(req.Context()),
			Method:         req.Method,
			Path:           req.URL.Path,
			Allowed:        false,
			BlockedReason:  "Not Found",
			ResponseStatus: http.StatusNotFound,
		})
		writeJSONRaw(conn, http.StatusNotFound, map[string]any{"error": "Not Found"})
	}
}

func (s *Server) handleHealth(conn net.Conn, req *http.Request) {
	cfg := s.deps.Allowlist.Snapshot()
	s.deps.Audit.Log(audit.Record{
		RequestID:      requestIDFrom(req.Context()),
		Method:         req.Method,
		Path:           req.URL.Path,
		Allowed:        true,
		ResponseStatus: http.StatusOK,
	})
	writeJSONRaw(conn, http.StatusOK, map[string]any{
		"status":            "healthy",
		"uptime_seconds":    int64(time.Since(s.deps.StartTime).Seconds()),
		"allowlist_domains": cfg.DomainCount(),
	})
}

// handlePost implements POST /post: validate, rate-limit, scan, forward,
// record quota only on upstream success.
func (s *Server) handlePost(conn net.Conn, req *http.Request) {
	start := time.Now()
	record := audit.Record{RequestID: requestIDFrom(req.Context()), Method: req.Method, Path: req.URL.Path}
	defer func() { record.DurationMS = time.Since(start).Milliseconds() }()

	body, err := readCapped(req.Body, maxLocalBodyBytes)
	if err != nil {
		record.Allowed = false
		record.ResponseStatus = http.StatusBadRequest
		record.BlockedReason = "Invalid JSON"
		s.deps.Audit.Log(record)
		writeJSONRaw(conn, http.StatusBadRequest, map[string]any{"error": "Invalid JSON"})
		return
	}

	result := schema.ValidatePostRequest(body)
	if !result.OK {
		record.Allowed = false
		record.ResponseStatus = http.StatusBadRequest
		record.BlockedReason = result.Error
		s.deps.Audit.Log(record)
		writeJSONRaw(conn, http.StatusBadRequest, map[string]any{"error": "Invalid request", "details": result.Error})
		return
	}

	if rl := s.deps.RateLimiter.CheckPost(); !rl.Allowed {
		s.deps.Metrics.observeRateLimitRejection(string(ratelimit.PostHourly))
		record.Allowed = false
		record.ResponseStatus = http.StatusTooManyRequests
		record.BlockedReason = rl.Reason
		s.deps.Audit.Log(record)
		writeJSONRaw(conn, http.StatusTooManyRequests, map[string]any{"error": rl.Reason})
		return
	}

	if s.deps.Sanitizer.ContainsPattern(result.Value.Content) {
		scan := s.deps.Sanitizer.Sanitize(result.Value.Content)
		s.deps.Metrics.observeSanitization()
		record.Allowed = false
		record.Sanitized = true
		record.InjectionPatterns = scan.Patterns
		record.ResponseStatus = http.StatusBadRequest
		record.BlockedReason = "Content contains disallowed patterns"
		s.deps.Audit.Log(record)
		writeJSONRaw(conn, http.StatusBadRequest, map[string]any{
			"error":    "Content contains disallowed patterns",
			"patterns": scan.Patterns,
		})
		return
	}

	ctx, cancel := s.timeoutContext(req.Context())
	defer cancel()

	var status int
	var respBody []byte
	if result.Value.ThreadID != "" {
		status, respBody, err = s.deps.Upstream.CreateComment(ctx, result.Value.ThreadID, result.Value)
	} else {
		status, respBody, err = s.deps.Upstream.CreatePost(ctx, result.Value)
	}
	if err != nil {
		record.Allowed = true
		record.ResponseStatus = http.StatusBadGateway
		s.deps.Audit.Log(record)
		s.deps.Audit.LogError("post: upstream call failed", err)
		writeJSONRaw(conn, http.StatusBadGateway, map[string]any{"error": "Failed to reach upstream", "message": err.Error()})
		return
	}

	if status < 200 || status >= 300 {
		record.Allowed = true
		record.ResponseStatus = http.StatusBadGateway
		s.deps.Audit.Log(record)
		writeJSONRaw(conn, http.StatusBadGateway, map[string]any{"moltbook_status": status, "data": rawOrString(respBody)})
		return
	}

	s.deps.RateLimiter.RecordPost()

	record.Allowed = true
	record.ResponseStatus = status
	s.deps.Audit.Log(record)
	s.deps.Metrics.observeRequest(armLocal, time.Since(start).Seconds())
	writeJSONRaw(conn, http.StatusOK, map[string]any{"ok": true, "moltbook_status": status, "data": rawOrString(respBody)})
}

// handleVote implements POST /vote: validate, consult+record only the vote
// window, forward.
func (s *Server) handleVote(conn net.Conn, req *http.Request) {
	start := time.Now()
	record := audit.Record{RequestID: requestIDFrom(req.Context()), Method: req.Method, Path: req.URL.Path}
	defer func() { record.DurationMS = time.Since(start).Milliseconds() }()

	body, err := readCapped(req.Body, maxLocalBodyBytes)
	if err != nil {
		record.Allowed = false
		record.ResponseStatus = http.StatusBadRequest
		s.deps.Audit.Log(record)
		writeJSONRaw(conn, http.StatusBadRequest, map[string]any{"error": "Invalid JSON"})
		return
	}

	result := schema.ValidateVoteRequest(body)
	if !result.OK {
		record.Allowed = false
		record.ResponseStatus = http.StatusBadRequest
		record.BlockedReason = result.Error
		s.deps.Audit.Log(record)
		writeJSONRaw(conn, http.StatusBadRequest, map[string]any{"error": "Invalid request", "details": result.Error})
		return
	}

	if rl := s.deps.RateLimiter.CheckVote(); !rl.Allowed {
		s.deps.Metrics.observeRateLimitRejection(string(ratelimit.VoteHourly))
		record.Allowed = false
		record.ResponseStatus = http.StatusTooManyRequests
		record.BlockedReason = rl.Reason
		s.deps.Audit.Log(record)
		writeJSONRaw(conn, http.StatusTooManyRequests, map[string]any{"error": rl.Reason})
		return
	}

	ctx, cancel := s.timeoutContext(req.Context())
	defer cancel()

	status, respBody, err := s.deps.Upstream.Vote(ctx, result.Value.PostID)
	if err != nil {
		record.Allowed = true
		record.ResponseStatus = http.StatusBadGateway
		s.deps.Audit.Log(record)
		s.deps.Audit.LogError("vote: upstream call failed", err)
		writeJSONRaw(conn, http.StatusBadGateway, map[string]any{"error": "Failed to reach upstream", "message": err.Error()})
		return
	}

	if status < 200 || status >= 300 {
		record.Allowed = true
		record.ResponseStatus = http.StatusBadGateway
		s.deps.Audit.Log(record)
		writeJSONRaw(conn, http.StatusBadGateway, map[string]any{"moltbook_status": status, "data": rawOrString(respBody)})
		return
	}

	s.deps.RateLimiter.RecordVote()

	record.Allowed = true
	record.ResponseStatus = status
	s.deps.Audit.Log(record)
	s.deps.Metrics.observeRequest(armLocal, time.Since(start).Seconds())
	writeJSONRaw(conn, http.StatusOK, map[string]any{"ok": true, "moltbook_status": status})
}

// handleMemoryWrite implements POST /memory: size/shape validation, then an
// append-only write keyed by run_id.
func (s *Server) handleMemoryWrite(conn net.Conn, req *http.Request) {
	start := time.Now()
	record := audit.Record{RequestID: requestIDFrom(req.Context()), Method: req.Method, Path: req.URL.Path}
	defer func() { record.DurationMS = time.Since(start).Milliseconds() }()

	body, err := readCapped(req.Body, maxMemoryReadBytes)
	if err != nil {
		record.Allowed = false
		record.ResponseStatus = http.StatusRequestEntityTooLarge
		s.deps.Audit.Log(record)
		writeJSONRaw(conn, http.StatusRequestEntityTooLarge, map[string]any{
			"error": "Memory document exceeds maximum size",
			"max":   schema.MaxMemoryBytes,
		})
		return
	}

	if len(body) == 0 {
		record.Allowed = false
		record.ResponseStatus = http.StatusBadRequest
		s.deps.Audit.Log(record)
		writeJSONRaw(conn, http.StatusBadRequest, map[string]any{"error": "Empty body"})
		return
	}

	if len(body) > schema.MaxMemoryBytes {
		record.Allowed = false
		record.ResponseStatus = http.StatusRequestEntityTooLarge
		s.deps.Audit.Log(record)
		writeJSONRaw(conn, http.StatusRequestEntityTooLarge, map[string]any{
			"error": "Memory document exceeds maximum size",
			"size":  len(body),
			"max":   schema.MaxMemoryBytes,
		})
		return
	}

	result := schema.ValidateMemory(body)
	if !result.OK {
		record.Allowed = false
		record.ResponseStatus = http.StatusBadRequest
		record.BlockedReason = result.Error
		s.deps.Audit.Log(record)
		writeJSONRaw(conn, http.StatusBadRequest, map[string]any{"error": "Invalid memory document", "details": result.Error})
		return
	}

	key := "memory/" + result.Value.RunID + ".json"
	meta := store.Metadata{
		"run_id":    result.Value.RunID,
		"run_start": result.Value.RunStart.UTC().Format(time.RFC3339),
		"analyzed":  "false",
		"approved":  "false",
	}

	ctx, cancel := s.timeoutContext(req.Context())
	defer cancel()

	if err := s.deps.Store.Put(ctx, key, body, "application/json", meta); err != nil {
		if errors.Is(err, store.ErrBlobExists) {
			record.Allowed = false
			record.ResponseStatus = http.StatusConflict
			s.deps.Audit.Log(record)
			writeJSONRaw(conn, http.StatusConflict, map[string]any{
				"error":  "Memory blob already exists for this run_id",
				"run_id": result.Value.RunID,
			})
			return
		}
		record.Allowed = true
		record.ResponseStatus = http.StatusInternalServerError
		s.deps.Audit.Log(record)
		s.deps.Audit.LogError("memory: store put failed", err)
		writeJSONRaw(conn, http.StatusInternalServerError, map[string]any{"error": "Internal error", "message": err.Error()})
		return
	}

	record.Allowed = true
	record.ResponseStatus = http.StatusOK
	s.deps.Audit.Log(record)
	s.deps.Metrics.observeRequest(armLocal, time.Since(start).Seconds())
	writeJSONRaw(conn, http.StatusOK, map[string]any{"ok": true, "blob": key, "run_id": result.Value.RunID})
}

// handleMemoryLatest implements GET /memory/latest: the newest memory/
// blob whose metadata carries approved=="true" — the coordination channel
// with the external analyzer.
func (s *Server) handleMemoryLatest(conn net.Conn, req *http.Request) {
	start := time.Now()
	record := audit.Record{RequestID: requestIDFrom(req.Context()), Method: req.Method, Path: req.URL.Path}
	defer func() { record.DurationMS = time.Since(start).Milliseconds() }()

	ctx, cancel := s.timeoutContext(req.Context())
	defer cancel()

	blobs, err := s.deps.Store.ListByPrefix(ctx, "memory/", true)
	if err != nil {
		record.Allowed = true
		record.ResponseStatus = http.StatusInternalServerError
		s.deps.Audit.Log(record)
		s.deps.Audit.LogError("memory/latest: list failed", err)
		writeJSONRaw(conn, http.StatusInternalServerError, map[string]any{"error": "Internal error", "message": err.Error()})
		return
	}

	var newest *store.ListedBlob
	for i := range blobs {
		b := &blobs[i]
		if b.Metadata["approved"] != "true" {
			continue
		}
		if newest == nil || b.LastModified.After(newest.LastModified) {
			newest = b
		}
	}

	if newest == nil {
		record.Allowed = true
		record.ResponseStatus = http.StatusOK
		s.deps.Audit.Log(record)
		writeJSONRaw(conn, http.StatusOK, map[string]any{"ok": true, "data": nil, "message": "No approved memory found"})
		return
	}

	data, err := s.deps.Store.Get(ctx, newest.Name)
	if err != nil {
		record.Allowed = true
		record.ResponseStatus = http.StatusInternalServerError
		s.deps.Audit.Log(record)
		s.deps.Audit.LogError("memory/latest: get failed", err)
		writeJSONRaw(conn, http.StatusInternalServerError, map[string]any{"error": "Internal error", "message": err.Error()})
		return
	}

	var parsed any
	if err := json.Unmarshal(data, &parsed); err != nil {
		record.Allowed = true
		record.ResponseStatus = http.StatusInternalServerError
		s.deps.Audit.Log(record)
		s.deps.Audit.LogError("memory/latest: stored blob is not valid JSON", err)
		writeJSONRaw(conn, http.StatusInternalServerError, map[string]any{"error": "Internal error"})
		return
	}

	record.Allowed = true
	record.ResponseStatus = http.StatusOK
	s.deps.Audit.Log(record)
	s.deps.Metrics.observeRequest(armLocal, time.Since(start).Seconds())
	writeJSONRaw(conn, http.StatusOK, map[string]any{"ok": true, "data": parsed})
}

// readCapped reads r up to max+1 bytes, erroring if that bound is exceeded
// so callers never buffer an unbounded body.
func readCapped(r io.Reader, max int) ([]byte, error) {
	limited := io.LimitReader(r, int64(max)+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if len(data) > max {
		return nil, errors.New("proxy: request body exceeds maximum size")
	}
	return data, nil
}

// rawOrString returns body as a json.RawMessage when it is valid JSON, or
// as a plain string otherwise — upstream error bodies are not guaranteed
// to be JSON.
func rawOrString(body []byte) any {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return nil
	}
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	return trimmed
}
