package proxy

import (
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sentinelgate/egressproxy/internal/domain/allowlist"
	"github.com/sentinelgate/egressproxy/internal/domain/audit"
)

const armForward = "forward"

// hopByHopHeaders are stripped from the upstream request; they are
// meaningful only between the agent and this proxy, never beyond it.
var hopByHopHeaders = []string{"Proxy-Connection", "Proxy-Authorization"}

// handleForward implements the HTTP forwarding arm: an absolute-form
// request is relayed to its target, its response body sanitized, and
// returned with Connection: close. Origin-form requests never reach this
// arm, whatever their Host header names; handleConn sends them to
// handleLocal.
func (s *Server) handleForward(conn net.Conn, req *http.Request) {
	start := time.Now()

	host := req.URL.Hostname()
	port := req.URL.Port()
	if port == "" {
		if req.URL.Scheme == "https" {
			port = "443"
		} else {
			port = "80"
		}
	}

	record := audit.Record{RequestID: requestIDFrom(req.Context()), Method: req.Method, Hostname: host, Path: req.URL.Path}
	if p, err := strconv.Atoi(port); err == nil {
		record.Port = p
	}

	decision := s.deps.Allowlist.Check(allowlist.RequestVars{
		Method: req.Method,
		Host:   host,
		Path:   req.URL.Path,
	})
	if !decision.Allowed {
		s.deps.Metrics.observeDenial(armForward)
		record.Allowed = false
		record.BlockedReason = decision.Reason
		record.ResponseStatus = http.StatusForbidden
		record.DurationMS = time.Since(start).Milliseconds()
		s.deps.Audit.Log(record)
		writeJSONRaw(conn, http.StatusForbidden, map[string]any{"error": "Forbidden", "reason": decision.Reason})
		return
	}

	for _, h := range hopByHopHeaders {
		req.Header.Del(h)
	}

	body, err := io.ReadAll(req.Body)
	if err != nil {
		record.Allowed = true
		record.ResponseStatus = http.StatusBadGateway
		record.DurationMS = time.Since(start).Milliseconds()
		s.deps.Audit.Log(record)
		writeJSONRaw(conn, http.StatusBadGateway, map[string]any{"error": "Failed to reach upstream", "message": "could not read request body"})
		return
	}

	transport := &http.Transport{DialContext: s.dial}
	client := &http.Client{
		Transport: transport,
		Timeout:   s.deps.upstreamTimeout(),
	}

	upstreamReq, err := http.NewRequestWithContext(req.Context(), req.Method, req.URL.String(), newBodyReader(req.Method, body))
	if err != nil {
		record.Allowed = true
		record.ResponseStatus = http.StatusBadGateway
		record.DurationMS = time.Since(start).Milliseconds()
		s.deps.Audit.Log(record)
		writeJSONRaw(conn, http.StatusBadGateway, map[string]any{"error": "Failed to reach upstream", "message": err.Error()})
		return
	}
	upstreamReq.Header = req.Header.Clone()

	resp, err := client.Do(upstreamReq)
	if err != nil {
		record.Allowed = true
		record.ResponseStatus = http.StatusBadGateway
		record.DurationMS = time.Since(start).Milliseconds()
		s.deps.Audit.Log(record)
		s.deps.Audit.LogError("forward: upstream request failed", err)
		writeJSONRaw(conn, http.StatusBadGateway, map[string]any{"error": "Failed to reach upstream", "message": err.Error()})
		return
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		record.Allowed = true
		record.ResponseStatus = http.StatusBadGateway
		record.DurationMS = time.Since(start).Milliseconds()
		s.deps.Audit.Log(record)
		writeJSONRaw(conn, http.StatusBadGateway, map[string]any{"error": "Failed to reach upstream", "message": "could not read response body"})
		return
	}

	result := s.deps.Sanitizer.Sanitize(string(respBody))
	if result.Sanitized {
		s.deps.Metrics.observeSanitization()
		record.Sanitized = true
		record.InjectionPatterns = result.Patterns
	}

	record.Allowed = true
	record.ResponseStatus = resp.StatusCode
	record.DurationMS = time.Since(start).Milliseconds()
	s.deps.Audit.Log(record)
	s.deps.Metrics.observeRequest(armForward, time.Since(start).Seconds())

	writeUpstreamResponse(conn, resp, []byte(result.Content))
}

// newBodyReader returns nil for methods without a body, matching the
// spec's "for non-GET/HEAD, the already-buffered body" rule.
func newBodyReader(method string, body []byte) io.Reader {
	if method == http.MethodGet || method == http.MethodHead || len(body) == 0 {
		return nil
	}
	return strings.NewReader(string(body))
}

// writeUpstreamResponse relays resp's status and headers (excluding
// Transfer-Encoding and the original Content-Length, which no longer apply
// to the sanitized body) with the sanitized body and Connection: close.
func writeUpstreamResponse(conn net.Conn, resp *http.Response, body []byte) {
	var b strings.Builder
	b.WriteString("HTTP/1.1 " + strconv.Itoa(resp.StatusCode) + " " + http.StatusText(resp.StatusCode) + "\r\n")
	for key, values := range resp.Header {
		if strings.EqualFold(key, "Transfer-Encoding") || strings.EqualFold(key, "Content-Length") {
			continue
		}
		for _, v := range values {
			b.WriteString(key + ": " + v + "\r\n")
		}
	}
	b.WriteString("Content-Length: " + strconv.Itoa(len(body)) + "\r\n")
	b.WriteString("Connection: close\r\n\r\n")
	conn.Write([]byte(b.String()))
	conn.Write(body)
}
