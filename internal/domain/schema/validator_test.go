package schema

import (
	"fmt"
	"strings"
	"testing"
)

func TestValidatePostRequestOK(t *testing.T) {
	r := ValidatePostRequest([]byte(`{"content":"hello world"}`))
	if !r.OK {
		t.Fatalf("expected ok, got error: %s", r.Error)
	}
}

func TestValidatePostRequestEmptyContent(t *testing.T) {
	r := ValidatePostRequest([]byte(`{"content":""}`))
	if r.OK {
		t.Fatalf("expected rejection of empty content")
	}
}

func TestValidatePostRequestContentBoundary(t *testing.T) {
	content500 := make([]byte, 500)
	for i := range content500 {
		content500[i] = 'a'
	}
	r := ValidatePostRequest([]byte(`{"content":"` + string(content500) + `"}`))
	if !r.OK {
		t.Fatalf("500-char content should be accepted: %s", r.Error)
	}

	content501 := append(content500, 'a')
	r = ValidatePostRequest([]byte(`{"content":"` + string(content501) + `"}`))
	if r.OK {
		t.Fatalf("501-char content should be rejected")
	}
}

func TestValidatePostRequestUnknownField(t *testing.T) {
	r := ValidatePostRequest([]byte(`{"content":"hi","bogus":"x"}`))
	if r.OK {
		t.Fatalf("expected rejection of unknown top-level field")
	}
}

func TestValidateVoteRequest(t *testing.T) {
	if r := ValidateVoteRequest([]byte(`{"post_id":"abc-123"}`)); !r.OK {
		t.Fatalf("expected ok: %s", r.Error)
	}
	if r := ValidateVoteRequest([]byte(`{"post_id":"has spaces!"}`)); r.OK {
		t.Fatalf("expected rejection of invalid post_id")
	}
}

func TestValidateMemoryRunIDBoundary(t *testing.T) {
	base := `{"version":1,"run_start":"2024-01-01T00:00:00Z","run_end":"2024-01-01T01:00:00Z","entries":[],"stats":{"posts_read":0,"posts_made":0,"upvotes":0,"threads_tracked":0},"run_id":"%s"}`

	cases := []struct {
		runID string
		ok    bool
	}{
		{"abc-123", true},
		{"550e8400-e29b-41d4-a716-446655440000", true},
		{"550e8400-e29b-41d4-a716-446655440000-cp3", true},
		{"has spaces!", false},
	}
	for _, c := range cases {
		r := ValidateMemory([]byte(fmt.Sprintf(base, c.runID)))
		if r.OK != c.ok {
			t.Errorf("run_id %q: ok=%v, want %v (err=%s)", c.runID, r.OK, c.ok, r.Error)
		}
	}

	longID := make([]byte, 129)
	for i := range longID {
		longID[i] = 'a'
	}
	r := ValidateMemory([]byte(fmt.Sprintf(base, string(longID))))
	if r.OK {
		t.Errorf("129-char run_id should be rejected")
	}
}

func TestValidateMemoryEntriesBoundary(t *testing.T) {
	entry := `{"type":"post_seen","post_id":"p1","timestamp":"2024-01-01T00:00:00Z","topic_label":"ai_safety","sentiment":"neutral"}`
	entries10000 := buildEntries(entry, 10000)
	entries10001 := buildEntries(entry, 10001)

	base := `{"version":1,"run_id":"abc-123","run_start":"2024-01-01T00:00:00Z","run_end":"2024-01-01T01:00:00Z","stats":{"posts_read":0,"posts_made":0,"upvotes":0,"threads_tracked":0},"entries":[%s]}`

	r := ValidateMemory([]byte(fmt.Sprintf(base, entries10000)))
	if !r.OK {
		t.Errorf("10000 entries should be accepted: %s", r.Error)
	}

	r = ValidateMemory([]byte(fmt.Sprintf(base, entries10001)))
	if r.OK {
		t.Errorf("10001 entries should be rejected")
	}
}

func TestValidateMemoryUnknownVariantTag(t *testing.T) {
	body := `{"version":1,"run_id":"abc-123","run_start":"2024-01-01T00:00:00Z","run_end":"2024-01-01T01:00:00Z","stats":{"posts_read":0,"posts_made":0,"upvotes":0,"threads_tracked":0},"entries":[{"type":"mystery"}]}`
	r := ValidateMemory([]byte(body))
	if r.OK {
		t.Fatalf("expected rejection of unknown variant tag")
	}
}

func buildEntries(entry string, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = entry
	}
	return strings.Join(parts, ",")
}
