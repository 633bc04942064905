// internal/generator/generator.go
// The public entry point. One method per capability; all six funnel into a
// single generate path that validates the request before any browser work,
// holds a slot in the global session limiter for the duration of the walk,
// and records every attempt outcome for later analysis.
package generator

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/voidwalk/webgen/api/schemas"
	"github.com/voidwalk/webgen/internal/config"
	"github.com/voidwalk/webgen/internal/profile"
)

// Runner walks a candidate list for a request. Satisfied by the fallback
// orchestrator.
type Runner interface {
	Run(ctx context.Context, candidates schemas.CandidateList, req *schemas.GenerationRequest) schemas.GenerationResult
}

// Recorder receives every finished attempt, success or failure.
type Recorder interface {
	Record(ctx context.Context, outcome schemas.AttemptOutcome)
}

// NopRecorder discards outcomes.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, schemas.AttemptOutcome) {}

// Generator is the unified facade over all six capabilities.
type Generator struct {
	runner   Runner
	library  *profile.Library
	sem      *semaphore.Weighted
	cfg      config.GeneratorConfig
	logger   *zap.Logger
	recorder Recorder
}

// Option customizes a Generator at construction time.
type Option func(*Generator)

// WithRecorder attaches an attempt recorder.
func WithRecorder(r Recorder) Option {
	return func(g *Generator) {
		if r != nil {
			g.recorder = r
		}
	}
}

// New creates the facade. Runner, library and logger are required.
func New(runner Runner, library *profile.Library, cfg config.GeneratorConfig, logger *zap.Logger, opts ...Option) (*Generator, error) {
	if runner == nil || library == nil || logger == nil {
		return nil, fmt.Errorf("cannot initialize generator with nil dependencies")
	}
	if cfg.MaxSessions <= 0 {
		return nil, fmt.Errorf("max_sessions must be positive, got %d", cfg.MaxSessions)
	}
	g := &Generator{
		runner:   runner,
		library:  library,
		sem:      semaphore.NewWeighted(cfg.MaxSessions),
		cfg:      cfg,
		logger:   logger.Named("generator"),
		recorder: NopRecorder{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// TextToImage generates an image from a text prompt.
func (g *Generator) TextToImage(ctx context.Context, req *schemas.GenerationRequest) (*schemas.GenerationResult, error) {
	return g.generate(ctx, schemas.TaskTextToImage, req)
}

// ImageToImage transforms a source image guided by a prompt.
func (g *Generator) ImageToImage(ctx context.Context, req *schemas.GenerationRequest) (*schemas.GenerationResult, error) {
	return g.generate(ctx, schemas.TaskImageToImage, req)
}

// Inpaint regenerates the masked region of a source image.
func (g *Generator) Inpaint(ctx context.Context, req *schemas.GenerationRequest) (*schemas.GenerationResult, error) {
	return g.generate(ctx, schemas.TaskInpaint, req)
}

// Upscale enlarges a source image.
func (g *Generator) Upscale(ctx context.Context, req *schemas.GenerationRequest) (*schemas.GenerationResult, error) {
	return g.generate(ctx, schemas.TaskUpscale, req)
}

// TextToVideo generates a video clip from a text prompt.
func (g *Generator) TextToVideo(ctx context.Context, req *schemas.GenerationRequest) (*schemas.GenerationResult, error) {
	return g.generate(ctx, schemas.TaskTextToVideo, req)
}

// ImageToVideo animates a source image.
func (g *Generator) ImageToVideo(ctx context.Context, req *schemas.GenerationRequest) (*schemas.GenerationResult, error) {
	return g.generate(ctx, schemas.TaskImageToVideo, req)
}

func (g *Generator) generate(ctx context.Context, task schemas.TaskType, req *schemas.GenerationRequest) (*schemas.GenerationResult, error) {
	if req == nil {
		return nil, errors.New("nil generation request")
	}
	req.Task = task
	if req.Timeout <= 0 {
		req.Timeout = g.cfg.DefaultTimeout
	}

	// Validation happens before any session is consumed. A malformed
	// request must never cost a browser tab.
	if err := req.Validate(); err != nil {
		return nil, err
	}

	candidates, err := g.library.Candidates(task)
	if err != nil {
		return nil, err
	}

	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for session slot: %w", err)
	}
	defer g.sem.Release(1)

	g.logger.Info("Generation started.",
		zap.String("task", string(task)),
		zap.Int("candidates", len(candidates)),
		zap.Duration("timeout", req.Timeout))

	result := g.runner.Run(ctx, candidates, req)
	for _, attempt := range result.Attempts {
		g.recorder.Record(ctx, attempt)
	}

	if result.Success && req.OutputPath != "" {
		if err := g.writeArtifact(req.OutputPath, &result); err != nil {
			return &result, fmt.Errorf("artifact generated but not written: %w", err)
		}
	}

	if !result.Success {
		g.logger.Warn("Generation failed on all candidates.",
			zap.String("task", string(task)),
			zap.Int("attempts", len(result.Attempts)))
	}
	return &result, nil
}

// writeArtifact persists the artifact to the requested path and drops the
// in-memory copy so large videos do not linger on the heap.
func (g *Generator) writeArtifact(path string, result *schemas.GenerationResult) error {
	if result.Artifact == nil {
		return errors.New("no artifact present")
	}
	if err := os.WriteFile(path, result.Artifact.Bytes, 0o644); err != nil {
		return err
	}
	result.WrittenPath = path
	result.Artifact.Bytes = nil
	g.logger.Info("Artifact written.",
		zap.String("path", path),
		zap.String("content_type", result.Artifact.ContentType))
	return nil
}
