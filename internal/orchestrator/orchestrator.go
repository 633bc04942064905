// internal/orchestrator/orchestrator.go
// The fallback orchestrator walks an ordered candidate list for a task,
// running one attempt per candidate until one succeeds. Every candidate
// gets its own full deadline; a slow failure on an early candidate does
// not eat into the budget of later ones.
package orchestrator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/voidwalk/webgen/api/schemas"
)

// AttemptRunner executes a single attempt against a single candidate.
type AttemptRunner interface {
	Run(ctx context.Context, prof schemas.SelectorProfile, req *schemas.GenerationRequest) schemas.AttemptOutcome
}

// Orchestrator owns the candidate walk for one generation request.
type Orchestrator struct {
	runner AttemptRunner
	logger *zap.Logger
}

// New creates an orchestrator. Both dependencies are required.
func New(runner AttemptRunner, logger *zap.Logger) (*Orchestrator, error) {
	if runner == nil || logger == nil {
		return nil, fmt.Errorf("cannot initialize orchestrator with nil dependencies")
	}
	return &Orchestrator{runner: runner, logger: logger.Named("orchestrator")}, nil
}

// Run tries each candidate in list order. On the first success it returns
// immediately, carrying the failed attempts that preceded it; when all
// candidates fail it returns the full ordered failure record. Run never
// reorders or skips candidates, and a canceled parent context stops the
// walk without starting further attempts.
func (o *Orchestrator) Run(ctx context.Context, candidates schemas.CandidateList, req *schemas.GenerationRequest) schemas.GenerationResult {
	result := schemas.GenerationResult{
		Task:     req.Task,
		Attempts: make([]schemas.AttemptOutcome, 0, len(candidates)),
	}
	log := o.logger.With(zap.String("task", string(req.Task)))

	if len(candidates) == 0 {
		log.Warn("No candidates registered for task.")
		return result
	}

	for i, prof := range candidates {
		if err := ctx.Err(); err != nil {
			log.Info("Candidate walk stopped by caller.", zap.Error(err))
			return result
		}

		log.Info("Trying candidate.",
			zap.Int("rank", i+1),
			zap.Int("of", len(candidates)),
			zap.String("provider", prof.Provider))

		attemptCtx, cancel := context.WithTimeout(ctx, req.Timeout)
		outcome := o.runner.Run(attemptCtx, prof, req)
		cancel()

		result.Attempts = append(result.Attempts, outcome)
		if outcome.OK() {
			result.Success = true
			result.Provider = outcome.Provider
			result.Artifact = outcome.Artifact
			log.Info("Candidate succeeded.",
				zap.String("provider", outcome.Provider),
				zap.Duration("elapsed", outcome.Elapsed))
			return result
		}

		kind := schemas.ErrorKind("")
		if outcome.Err != nil {
			kind = outcome.Err.Kind
		}
		log.Warn("Candidate failed, falling through.",
			zap.String("provider", prof.Provider),
			zap.String("kind", string(kind)))

		// Cancellation is the caller's signal, not a provider fault.
		// Do not burn the remaining candidates on a dead request.
		if kind == schemas.ErrKindCanceled && ctx.Err() != nil {
			return result
		}
	}

	log.Warn("All candidates exhausted.", zap.Int("attempts", len(result.Attempts)))
	return result
}
