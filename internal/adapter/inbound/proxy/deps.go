// Package proxy implements the egress proxy's single-port listener: it
// dispatches each accepted connection to one of three arms (CONNECT
// tunneling, HTTP forwarding, or a small set of local write/read
// endpoints), orchestrating the allowlist, sanitizer, schema validator,
// rate limiter, audit sink, and object-store client on every decision.
package proxy

import (
	"time"

	"github.com/sentinelgate/egressproxy/internal/domain/allowlist"
	"github.com/sentinelgate/egressproxy/internal/domain/audit"
	"github.com/sentinelgate/egressproxy/internal/domain/ratelimit"
	"github.com/sentinelgate/egressproxy/internal/domain/sanitize"
	"github.com/sentinelgate/egressproxy/internal/domain/store"
	"github.com/sentinelgate/egressproxy/internal/service"
)

// Deps bundles every component (C1-C6) and service the proxy core
// orchestrates. None of these are global singletons: each connection
// handler closes over the same Deps passed to NewServer, matching the
// "ambient singletons re-architected as explicit context" design note.
type Deps struct {
	Allowlist   *allowlist.Holder
	Sanitizer   *sanitize.Sanitizer
	RateLimiter *ratelimit.Limiter
	Audit       audit.Sink
	Store       store.Store
	Upstream    service.ActionUpstream
	Metrics     *Metrics

	// StartTime is used by GET /health to report uptime.
	StartTime time.Time

	// MaxHeadBytes bounds how much of a connection's head the proxy will
	// buffer before giving up (default 64 KiB if zero).
	MaxHeadBytes int

	// UpstreamTimeout bounds the forwarding arm's upstream HTTPS fetch and
	// object-store calls made from the local-endpoint arm.
	UpstreamTimeout time.Duration
}

const defaultMaxHeadBytes = 64 * 1024

func (d Deps) maxHeadBytes() int {
	if d.MaxHeadBytes <= 0 {
		return defaultMaxHeadBytes
	}
	return d.MaxHeadBytes
}

func (d Deps) upstreamTimeout() time.Duration {
	if d.UpstreamTimeout <= 0 {
		return 10 * time.Second
	}
	return d.UpstreamTimeout
}
