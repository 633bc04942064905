// internal/machine/machine.go
// The capability state machine: one generation attempt against one
// candidate provider. Transitions are strictly forward; any failure in any
// state goes directly to FAILED with a typed error and the session is
// released. Retries happen one layer up, against a different candidate.
package machine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/voidwalk/webgen/api/schemas"
	"github.com/voidwalk/webgen/internal/browser"
	"github.com/voidwalk/webgen/internal/config"
)

// State names one phase of an attempt.
type State string

const (
	StateNavigating         State = "NAVIGATING"
	StateMounting           State = "MOUNTING"
	StateDismissingPopups   State = "DISMISSING_POPUPS"
	StateFillingInputs      State = "FILLING_INPUTS"
	StateSubmitting         State = "SUBMITTING"
	StateAwaitingCompletion State = "AWAITING_COMPLETION"
	StateExtracting         State = "EXTRACTING"
	StateSucceeded          State = "SUCCEEDED"
	StateFailed             State = "FAILED"
)

// Extractor pulls the finished artifact off a completed page.
type Extractor interface {
	Extract(ctx context.Context, pg browser.Page, prof schemas.SelectorProfile) (*schemas.Artifact, error)
}

// Machine drives one attempt. A single skeleton serves all six
// capabilities; what varies per task type is the request's field set and
// the profile's locators, not the lifecycle.
type Machine struct {
	factory   browser.Factory
	extractor Extractor
	logger    *zap.Logger
	cfg       config.BrowserConfig
	diagDir   string
}

// New wires a machine. All dependencies are required.
func New(factory browser.Factory, extractor Extractor, cfg config.BrowserConfig, diagDir string, logger *zap.Logger) (*Machine, error) {
	if factory == nil || extractor == nil || logger == nil {
		return nil, fmt.Errorf("cannot initialize machine with nil dependencies")
	}
	return &Machine{
		factory:   factory,
		extractor: extractor,
		logger:    logger.Named("machine"),
		cfg:       cfg,
		diagDir:   diagDir,
	}, nil
}

// Run executes one attempt. The session acquired for it is released on
// every exit path, including cancellation, before Run returns.
func (m *Machine) Run(ctx context.Context, prof schemas.SelectorProfile, req *schemas.GenerationRequest) schemas.AttemptOutcome {
	out := schemas.AttemptOutcome{
		Task:      req.Task,
		Provider:  prof.Provider,
		URL:       prof.URL,
		StartedAt: time.Now(),
	}
	log := m.logger.With(
		zap.String("task", string(req.Task)),
		zap.String("provider", prof.Provider),
	)

	fail := func(state State, err *schemas.AttemptError) schemas.AttemptOutcome {
		out.Err = err
		out.Elapsed = time.Since(out.StartedAt)
		log.Warn("Attempt failed.",
			zap.String("state", string(state)),
			zap.String("kind", string(err.Kind)),
			zap.Error(err))
		return out
	}

	pg, err := m.factory.Acquire(ctx)
	if err != nil {
		return fail(StateNavigating, schemas.NewAttemptError(
			m.classify(ctx, schemas.ErrKindSessionAcquisition), err, "failed to acquire browser session"))
	}
	defer pg.Close()

	// NAVIGATING: bounded by the navigation timeout, independent of the
	// generation deadline.
	navCtx, navCancel := context.WithTimeout(ctx, m.cfg.NavigationTimeout)
	err = pg.Navigate(navCtx, prof.URL)
	navCancel()
	if err != nil {
		return fail(StateNavigating, schemas.NewAttemptError(
			m.classify(ctx, schemas.ErrKindSessionAcquisition), err, "navigation to %s failed", prof.URL))
	}

	// MOUNTING
	if err := pg.WaitAppReady(ctx); err != nil {
		return fail(StateMounting, schemas.NewAttemptError(
			m.classify(ctx, schemas.ErrKindMountTimeout), err, "application did not mount"))
	}

	// DISMISSING_POPUPS: best-effort, never fails the attempt.
	pg.DismissPopups(ctx, prof.Popups)

	// FILLING_INPUTS
	cleanup, aerr := m.fill(ctx, pg, prof, req, log)
	defer cleanup()
	if aerr != nil {
		return fail(StateFillingInputs, aerr)
	}

	// SUBMITTING
	present, err := pg.Exists(ctx, prof.Submit)
	if err != nil || !present {
		return fail(StateSubmitting, schemas.NewAttemptError(
			m.classify(ctx, schemas.ErrKindSubmitNotFound), err, "submit control %q not found", prof.Submit))
	}
	if err := pg.Click(ctx, prof.Submit); err != nil {
		return fail(StateSubmitting, schemas.NewAttemptError(
			m.classify(ctx, schemas.ErrKindSubmitNotFound), err, "submit control %q could not be clicked", prof.Submit))
	}
	log.Debug("Submitted generation request.")

	// AWAITING_COMPLETION
	if aerr := m.awaitCompletion(ctx, pg, prof); aerr != nil {
		out.ScreenshotPath = m.captureDiagnostic(pg, req.Task, prof.Provider, log)
		return fail(StateAwaitingCompletion, aerr)
	}

	// EXTRACTING
	art, err := m.extractor.Extract(ctx, pg, prof)
	if err != nil {
		out.ScreenshotPath = m.captureDiagnostic(pg, req.Task, prof.Provider, log)
		return fail(StateExtracting, schemas.NewAttemptError(
			m.classify(ctx, schemas.ErrKindArtifactExtraction), err, "artifact extraction failed"))
	}

	out.Artifact = art
	out.Elapsed = time.Since(out.StartedAt)
	log.Info("Attempt succeeded.",
		zap.Duration("elapsed", out.Elapsed),
		zap.String("strategy", art.Source),
		zap.Int("size", len(art.Bytes)))
	return out
}

// classify downgrades a state-specific error kind to CANCELED when the
// owning context was canceled (not timed out): cancellation must propagate
// as cancellation, not masquerade as a provider failure.
func (m *Machine) classify(ctx context.Context, kind schemas.ErrorKind) schemas.ErrorKind {
	if errors.Is(ctx.Err(), context.Canceled) {
		return schemas.ErrKindCanceled
	}
	return kind
}

// awaitCompletion polls for either terminal condition: the busy indicator
// transitioning present -> absent, or an output locator becoming populated,
// whichever occurs first. Bounded by the attempt deadline on ctx.
func (m *Machine) awaitCompletion(ctx context.Context, pg browser.Page, prof schemas.SelectorProfile) *schemas.AttemptError {
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	busySeen := false
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return schemas.NewAttemptError(schemas.ErrKindCanceled, ctx.Err(), "attempt canceled while awaiting completion")
			}
			return schemas.NewAttemptError(schemas.ErrKindGenerationTimeout, ctx.Err(), "deadline exceeded while awaiting completion")
		case <-ticker.C:
		}

		if prof.Busy != "" {
			busy, err := pg.Exists(ctx, prof.Busy)
			if err == nil {
				if busy {
					busySeen = true
				} else if busySeen {
					// Busy indicator came and went: generation finished.
					// Give the DOM a short grace window to render the
					// output before extraction runs.
					m.awaitOutputGrace(ctx, pg, prof)
					return nil
				}
			}
		}

		for _, sel := range prof.Outputs {
			populated, err := pg.HasResult(ctx, sel)
			if err == nil && populated {
				return nil
			}
		}
	}
}

// awaitOutputGrace re-checks the output locators for a short window after
// the busy indicator clears. Gradio renders the result a beat after the
// queue reports done; failing extraction inside that gap would be noise.
func (m *Machine) awaitOutputGrace(ctx context.Context, pg browser.Page, prof schemas.SelectorProfile) {
	if m.cfg.GracePeriod <= 0 {
		return
	}
	graceCtx, cancel := context.WithTimeout(ctx, m.cfg.GracePeriod)
	defer cancel()

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		for _, sel := range prof.Outputs {
			populated, err := pg.HasResult(graceCtx, sel)
			if err == nil && populated {
				return
			}
		}
		select {
		case <-graceCtx.Done():
			return
		case <-ticker.C:
		}
	}
}

// captureDiagnostic writes a screenshot of the page at failure time, named
// per task type and timestamp, so provider UI drift can be investigated
// offline. The capture runs on a fresh context because the attempt's own
// deadline is typically already spent.
func (m *Machine) captureDiagnostic(pg browser.Page, task schemas.TaskType, provider string, log *zap.Logger) string {
	if m.diagDir == "" {
		return ""
	}
	shotCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	data, err := pg.Screenshot(shotCtx)
	if err != nil {
		log.Debug("Diagnostic screenshot failed.", zap.Error(err))
		return ""
	}
	if err := os.MkdirAll(m.diagDir, 0o755); err != nil {
		log.Debug("Cannot create diagnostics dir.", zap.Error(err))
		return ""
	}
	name := fmt.Sprintf("%s_%s_%s.png", task, sanitizeName(provider), time.Now().UTC().Format("20060102T150405.000"))
	path := filepath.Join(m.diagDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Debug("Cannot write diagnostic screenshot.", zap.Error(err))
		return ""
	}
	log.Info("Diagnostic screenshot written.", zap.String("path", path))
	return path
}

func sanitizeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '-'
	}, s)
}
