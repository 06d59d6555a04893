package allowlist

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
)

// GuardEvaluator evaluates an entry's optional CEL guard expression against
// a request. It is satisfied by the outbound CEL adapter; kept as an
// interface here so the domain package stays free of the CEL dependency.
type GuardEvaluator interface {
	EvaluateGuard(expr string, vars map[string]any) (bool, error)
}

// Holder is a reload-aware container for the active Config. Reads return the
// current snapshot by value (a pointer to an immutable Config); writers swap
// the pointer atomically so a concurrent reader never observes a torn read.
type Holder struct {
	current atomic.Pointer[Config]
	guard   GuardEvaluator
}

// NewHolder creates a Holder seeded with cfg. guard may be nil, in which case
// per-entry Guard expressions are never evaluated (treated as always-true).
func NewHolder(cfg *Config, guard GuardEvaluator) *Holder {
	h := &Holder{guard: guard}
	h.current.Store(cfg)
	return h
}

// Snapshot returns the currently active Config.
func (h *Holder) Snapshot() *Config {
	return h.current.Load()
}

// Swap atomically replaces the active Config.
func (h *Holder) Swap(cfg *Config) {
	h.current.Store(cfg)
}

// Load reads and parses an allowlist file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("allowlist: read %s: %w", path, err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("allowlist: parse %s: %w", path, err)
	}
	return &cfg, nil
}

// Reload re-reads the allowlist file at path and swaps it in on success. On
// parse or read failure it returns the error and leaves the previously
// loaded config in place — enforcement is never abandoned.
func (h *Holder) Reload(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	h.Swap(cfg)
	return nil
}

// RequestVars is the set of fields the optional CEL guard expression can see.
type RequestVars struct {
	Method string
	Host   string
	Path   string
}

// toMap converts RequestVars into the activation map handed to GuardEvaluator.
func (r RequestVars) toMap() map[string]any {
	return map[string]any{
		"method": r.Method,
		"host":   r.Host,
		"path":   r.Path,
	}
}

// Check answers "is this request permitted?" against the holder's current
// snapshot. The method may be in any case; Check uppercases it.
func (h *Holder) Check(req RequestVars) Decision {
	return Check(h.Snapshot(), req, h.guard)
}

// Check matches req against cfg. The first entry whose Domain equals
// req.Host (case-insensitive) is used; if it exists but the method or path
// fails, the request is denied with no fall-through to a later entry of the
// same domain.
func Check(cfg *Config, req RequestVars, guard GuardEvaluator) Decision {
	host := strings.ToLower(req.Host)
	method := strings.ToUpper(req.Method)

	for _, entry := range cfg.AllowedDomains {
		if entry.normalizedDomain() != host {
			continue
		}

		if !entry.allowsMethod(method) {
			return denied(fmt.Sprintf("Method %s not allowed for %s", method, req.Host))
		}

		if !entry.allowsPath(req.Path) {
			return denied(fmt.Sprintf("Path %s not in allowed paths for %s", req.Path, req.Host))
		}

		if entry.Guard != "" && guard != nil {
			ok, err := guard.EvaluateGuard(entry.Guard, req.toMap())
			if err != nil || !ok {
				return denied(fmt.Sprintf("Guard expression denied request for %s", req.Host))
			}
		}

		return allowed
	}

	return denied(fmt.Sprintf("Domain not in allowlist: %s", req.Host))
}

// DomainCount returns the number of entries in cfg, used by the /health
// endpoint's allowlist_domains field. Entries repeating a domain are each
// counted.
func (c *Config) DomainCount() int {
	return len(c.AllowedDomains)
}
