// internal/browser/readiness.go
package browser

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// appReadyExpr detects a mounted Gradio application. Every target provider
// runs the same framework, so the structural marker is generic: the custom
// element (or its rendered container) present and the document settled.
const appReadyExpr = `(function() {
	if (document.readyState !== 'complete') return false;
	const app = document.querySelector('gradio-app');
	if (app) {
		return !!(app.querySelector('.gradio-container') || (app.shadowRoot && app.shadowRoot.querySelector('.gradio-container')));
	}
	return !!document.querySelector('.gradio-container');
})()`

const (
	readinessPollInterval = 200 * time.Millisecond
	popupActionTimeout    = 3 * time.Second
)

// WaitAppReady blocks until the application reports mounted, bounded by the
// configured mount timeout.
func (s *Session) WaitAppReady(ctx context.Context) error {
	mountCtx, cancel := context.WithTimeout(ctx, s.cfg.MountTimeout)
	defer cancel()

	ticker := time.NewTicker(readinessPollInterval)
	defer ticker.Stop()

	for {
		var ready bool
		// Evaluation errors during load (frame swaps, transient contexts)
		// are treated as "not yet", not as failures.
		if err := s.Eval(mountCtx, appReadyExpr, &ready); err == nil && ready {
			s.logger.Debug("Application mounted.")
			return nil
		}

		select {
		case <-mountCtx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("application did not mount within %v", s.cfg.MountTimeout)
		case <-ticker.C:
		}
	}
}

// DismissPopups clicks each known interstitial dismiss control that is
// present. Not every provider shows every popup, so absence is tolerated
// and nothing here ever fails the attempt.
func (s *Session) DismissPopups(ctx context.Context, selectors []string) {
	for _, sel := range selectors {
		popupCtx, cancel := context.WithTimeout(ctx, popupActionTimeout)

		present, err := s.Exists(popupCtx, sel)
		if err != nil || !present {
			cancel()
			continue
		}
		if err := s.Click(popupCtx, sel); err != nil {
			s.logger.Debug("Popup dismissal click failed; continuing.",
				zap.String("selector", sel), zap.Error(err))
		} else {
			s.logger.Debug("Dismissed popup.", zap.String("selector", sel))
		}
		cancel()
	}
}
