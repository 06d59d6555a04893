// Package ratelimit provides in-memory sliding-window rate limiting keyed by
// action class.
package ratelimit

import (
	"fmt"
	"time"
)

// Key names the rate-limit window an action class consults.
type Key string

const (
	PostHourly Key = "post_hourly"
	PostDaily  Key = "post_daily"
	VoteHourly Key = "vote_hourly"
)

// Cap pairs a window's acceptance ceiling with its horizon.
type Cap struct {
	Limit   int
	Horizon time.Duration
}

// caps are the per-key limits: post_hourly=3/1h, post_daily=10/24h,
// vote_hourly=20/1h.
var caps = map[Key]Cap{
	PostHourly: {Limit: 3, Horizon: time.Hour},
	PostDaily:  {Limit: 10, Horizon: 24 * time.Hour},
	VoteHourly: {Limit: 20, Horizon: time.Hour},
}

// Result is the outcome of a Check call.
type Result struct {
	Allowed bool
	Reason  string
}

func denyReason(key Key, cap Cap) string {
	return fmt.Sprintf("Rate limit exceeded: %s (%d per %dh)", key, cap.Limit, int(cap.Horizon.Hours()))
}
