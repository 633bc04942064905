// internal/browser/context.go
package browser

import "context"

// combineContext derives a context canceled when either the session
// lifecycle context or the operational context ends. chromedp actions need
// the session context's tab association, while deadlines belong to the
// operation, so both must be honored.
func combineContext(sessionCtx, opCtx context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(sessionCtx)

	go func() {
		select {
		case <-opCtx.Done():
			cancel()
		case <-combined.Done():
		}
	}()

	return combined, cancel
}
