package audit

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	domainaudit "github.com/sentinelgate/egressproxy/internal/domain/audit"
)

func TestLogStampsTimestampWhenAbsent(t *testing.T) {
	var buf bytes.Buffer
	s := New(&buf)

	s.Log(domainaudit.Record{Method: "GET", Hostname: "api.example.com", Allowed: true})

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON line: %v", err)
	}
	if got["timestamp"] == nil || got["timestamp"] == "" {
		t.Errorf("expected timestamp to be stamped")
	}
}

func TestWritesDoNotInterleave(t *testing.T) {
	var buf bytes.Buffer
	s := New(&buf)

	done := make(chan struct{})
	for i := 0; i < 20; i++ {
		go func(n int) {
			s.Log(domainaudit.Record{Method: "GET", Hostname: "host", Allowed: true})
			done <- struct{}{}
		}(i)
	}
	for i := 0; i < 20; i++ {
		<-done
	}

	scanner := bufio.NewScanner(strings.NewReader(buf.String()))
	lines := 0
	for scanner.Scan() {
		var r map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			t.Fatalf("line %d is not valid JSON: %v", lines, err)
		}
		lines++
	}
	if lines != 20 {
		t.Errorf("got %d lines, want 20", lines)
	}
}

func TestLogErrorIncludesDetail(t *testing.T) {
	var buf bytes.Buffer
	s := New(&buf)

	s.LogError("upstream call failed", errors.New("dial tcp: timeout"))

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON line: %v", err)
	}
	if got["level"] != "error" {
		t.Errorf("expected level=error, got %v", got["level"])
	}
	if got["error_message"] != "dial tcp: timeout" {
		t.Errorf("expected error_message, got %v", got["error_message"])
	}
}
