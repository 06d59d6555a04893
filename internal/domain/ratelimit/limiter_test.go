package ratelimit

import (
	"testing"

	"go.uber.org/goleak"
)

func TestPostSaturation(t *testing.T) {
	defer goleak.VerifyNone(t)
	l := New()
	defer l.Stop()

	for i := 0; i < 3; i++ {
		r := l.CheckPost()
		if !r.Allowed {
			t.Fatalf("attempt %d should be allowed, got: %s", i, r.Reason)
		}
		l.RecordPost()
	}

	r := l.CheckPost()
	if r.Allowed {
		t.Fatalf("fourth attempt should be denied")
	}
	if r.Reason == "" {
		t.Errorf("expected a non-empty deny reason")
	}
}

func TestVoteWindowIndependent(t *testing.T) {
	l := New()
	defer l.Stop()

	for i := 0; i < 3; i++ {
		l.RecordPost()
	}
	if r := l.CheckVote(); !r.Allowed {
		t.Fatalf("vote window should be independent of post windows: %s", r.Reason)
	}
}

func TestDeniedCheckDoesNotConsumeQuota(t *testing.T) {
	l := New()
	defer l.Stop()

	for i := 0; i < 3; i++ {
		l.RecordPost()
	}

	// Checking (without recording) repeatedly must not change the outcome.
	for i := 0; i < 5; i++ {
		if r := l.CheckPost(); r.Allowed {
			t.Fatalf("window should remain saturated")
		}
	}
	if got := l.Size(PostHourly); got != 3 {
		t.Errorf("Size(PostHourly) = %d, want 3", got)
	}
}

func TestWindowNeverExceedsCapOnAdmission(t *testing.T) {
	l := New()
	defer l.Stop()

	admitted := 0
	for i := 0; i < 10; i++ {
		if r := l.CheckVote(); r.Allowed {
			l.RecordVote()
			admitted++
		}
	}
	if admitted != 10 {
		t.Errorf("admitted = %d, want 10 (under cap of 20)", admitted)
	}
	if got := l.Size(VoteHourly); got > 20 {
		t.Errorf("Size(VoteHourly) = %d, exceeds cap", got)
	}
}

func TestLimiterStopLeavesNoGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t)

	l := New()
	l.RecordPost()
	l.RecordVote()
	l.Stop()
}
