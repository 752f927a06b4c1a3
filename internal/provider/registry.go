package provider

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/wonny/macrolens/backend/internal/analysisconfig"
	"github.com/wonny/macrolens/backend/internal/contracts"
	"github.com/wonny/macrolens/backend/pkg/logger"
)

// Registry maps logical needs onto ordered adapter chains
// ⭐ SSOT: need → 어댑터 우선순위는 이 레지스트리에서만 결정
type Registry struct {
	needs  map[string]needEntry
	logger *logger.Logger
}

type needEntry struct {
	adapters []Adapter // priority order, first is primary
	optional bool
	attempts int // per-adapter attempts for transient failures
}

// NewRegistry creates an empty registry
func NewRegistry(log *logger.Logger) *Registry {
	return &Registry{
		needs:  make(map[string]needEntry),
		logger: log,
	}
}

// Register binds a need to an ordered adapter chain
func (r *Registry) Register(need string, optional bool, adapters ...Adapter) {
	r.needs[need] = needEntry{adapters: adapters, optional: optional, attempts: 1}
}

// FromConfig builds a registry from the analysis config, using named
// adapter instances. Unknown adapter names are a wiring bug and fail loudly.
func FromConfig(cfg *analysisconfig.Config, adapters map[string]Adapter, log *logger.Logger) (*Registry, error) {
	r := NewRegistry(log)

	for need, spec := range cfg.Providers {
		chain := make([]Adapter, 0, len(spec.Adapters))
		for _, name := range spec.Adapters {
			a, ok := adapters[name]
			if !ok {
				return nil, fmt.Errorf("need %s references unknown adapter %q", need, name)
			}
			chain = append(chain, a)
		}
		attempts := spec.Attempts
		if attempts < 1 {
			attempts = 1
		}
		r.needs[need] = needEntry{adapters: chain, optional: spec.Optional, attempts: attempts}
	}

	return r, nil
}

// Optional reports whether a need may degrade silently
func (r *Registry) Optional(need string) bool {
	return r.needs[need].optional
}

// Resolve walks the need's adapter chain in priority order and returns the
// first successful outcome. Transient failures are retried on the same
// adapter up to the need's attempt budget before moving on; permanent
// failures move on immediately. Fallback results are marked so downstream
// consumers can tell primary data from degraded data. When every adapter
// fails the last failure is returned.
func (r *Registry) Resolve(ctx context.Context, req Request) contracts.Outcome {
	entry, ok := r.needs[req.Need]
	if !ok || len(entry.adapters) == 0 {
		return contracts.Fail("registry", contracts.ClassUnavailable,
			fmt.Sprintf("no adapters registered for need %q", req.Need), 0)
	}

	var last contracts.Outcome
	for i, a := range entry.adapters {
		if err := ctx.Err(); err != nil {
			return contracts.Fail(a.Name(), contracts.ClassTimeout, err.Error(), 0)
		}

		out := r.fetchWithAttempts(ctx, a, req, entry.attempts)
		if out.Success {
			out.FromFallback = i > 0
			if out.FromFallback {
				r.logger.WithFields(map[string]interface{}{
					"need":    req.Need,
					"adapter": a.Name(),
					"rank":    i,
				}).Warn("Need served by fallback adapter")
			}
			return out
		}

		last = out
		if i < len(entry.adapters)-1 {
			r.logger.WithFields(map[string]interface{}{
				"need":    req.Need,
				"adapter": a.Name(),
				"class":   string(out.Class),
				"next":    entry.adapters[i+1].Name(),
			}).Warn("Adapter failed, trying fallback")
		}
	}

	return last
}

// fetchWithAttempts retries one adapter for transient failures only.
// Cached hits and permanent failures return immediately.
func (r *Registry) fetchWithAttempts(ctx context.Context, a Adapter, req Request, attempts int) contracts.Outcome {
	var out contracts.Outcome
	for n := 0; n < attempts; n++ {
		if err := ctx.Err(); err != nil {
			return contracts.Fail(a.Name(), contracts.ClassTimeout, err.Error(), 0)
		}

		out = a.Fetch(ctx, req)
		if out.Success || !out.Class.Transient() {
			return out
		}

		if n < attempts-1 {
			r.logger.WithFields(map[string]interface{}{
				"need":    req.Need,
				"adapter": a.Name(),
				"class":   string(out.Class),
				"attempt": n + 1,
			}).Warn("Transient adapter failure, retrying")
		}
	}
	return out
}

// HealthStatus is one adapter's health snapshot
type HealthStatus struct {
	Adapter string        `json:"adapter"`
	Healthy bool          `json:"healthy"`
	Latency time.Duration `json:"latency_ms"`
}

// Healthchecks probes every distinct registered adapter
func (r *Registry) Healthchecks(ctx context.Context) []HealthStatus {
	seen := make(map[string]bool)
	var statuses []HealthStatus

	for _, entry := range r.needs {
		for _, a := range entry.adapters {
			if seen[a.Name()] {
				continue
			}
			seen[a.Name()] = true

			start := time.Now()
			healthy := a.Healthcheck(ctx)
			statuses = append(statuses, HealthStatus{
				Adapter: a.Name(),
				Healthy: healthy,
				Latency: time.Since(start),
			})
		}
	}

	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Adapter < statuses[j].Adapter
	})
	return statuses
}

// Needs returns the registered need names, sorted
func (r *Registry) Needs() []string {
	names := make([]string, 0, len(r.needs))
	for need := range r.needs {
		names = append(names, need)
	}
	sort.Strings(names)
	return names
}
