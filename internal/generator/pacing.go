// internal/generator/pacing.go
package generator

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/voidwalk/webgen/api/schemas"
	"github.com/voidwalk/webgen/internal/orchestrator"
)

// PacedRunner decorates an attempt runner with per-provider rate limiting.
// Free hosted apps throttle or ban aggressive callers; spacing attempts to
// the same provider keeps the profiles usable for everyone sharing them.
type PacedRunner struct {
	inner  orchestrator.AttemptRunner
	logger *zap.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

// NewPacedRunner wraps inner. A non-positive rps disables pacing.
func NewPacedRunner(inner orchestrator.AttemptRunner, rps float64, burst int, logger *zap.Logger) *PacedRunner {
	if burst < 1 {
		burst = 1
	}
	return &PacedRunner{
		inner:    inner,
		logger:   logger.Named("pacing"),
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

// Run waits for the provider's pacing token, then delegates. A context that
// dies while waiting surfaces as a canceled attempt rather than hitting the
// provider at all.
func (p *PacedRunner) Run(ctx context.Context, prof schemas.SelectorProfile, req *schemas.GenerationRequest) schemas.AttemptOutcome {
	if p.rps > 0 {
		if err := p.limiter(prof.URL).Wait(ctx); err != nil {
			return schemas.AttemptOutcome{
				Task:     req.Task,
				Provider: prof.Provider,
				URL:      prof.URL,
				Err:      schemas.NewAttemptError(schemas.ErrKindCanceled, err, "canceled while pacing provider %s", prof.Provider),
			}
		}
	}
	return p.inner.Run(ctx, prof, req)
}

func (p *PacedRunner) limiter(url string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	lim, ok := p.limiters[url]
	if !ok {
		lim = rate.NewLimiter(p.rps, p.burst)
		p.limiters[url] = lim
	}
	return lim
}
