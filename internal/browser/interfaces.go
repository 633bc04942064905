// internal/browser/interfaces.go
package browser

import "context"

// Page is the surface the capability state machine and the artifact
// extractor drive. It abstracts one live browser tab so the machine can be
// exercised against fakes without Chrome.
type Page interface {
	// ID returns the session identifier.
	ID() string

	// Navigate loads the provider URL. Bounded by ctx.
	Navigate(ctx context.Context, url string) error

	// WaitAppReady blocks until the page's UI framework reports mounted,
	// or the timeout elapses.
	WaitAppReady(ctx context.Context) error

	// DismissPopups clicks each selector that matches an element on the
	// page, tolerating absence. Best-effort: it never fails the attempt.
	DismissPopups(ctx context.Context, selectors []string)

	// Exists reports whether the selector matches at least one element.
	Exists(ctx context.Context, selector string) (bool, error)

	// Click clicks the first element matching the selector.
	Click(ctx context.Context, selector string) error

	// SetText sets a text control's value through its native input path,
	// dispatching the events frameworks listen for.
	SetText(ctx context.Context, selector, value string) error

	// SetFile attaches a local file to a file-input control.
	SetFile(ctx context.Context, selector, path string) error

	// SetNumber sets a slider or numeric control's value.
	SetNumber(ctx context.Context, selector string, value float64) error

	// HasResult reports whether the output selector holds a populated
	// artifact (media element with a source, link, or drawn canvas).
	HasResult(ctx context.Context, selector string) (bool, error)

	// OuterHTML returns the serialized HTML of the first matching element.
	OuterHTML(ctx context.Context, selector string) (string, error)

	// Eval evaluates a JS expression in the page and decodes the result
	// into out. Promises are awaited.
	Eval(ctx context.Context, expr string, out any) error

	// FetchData retrieves a resource through the page's own network
	// context. Required for session-scoped blob: and relative URLs.
	FetchData(ctx context.Context, url string) ([]byte, error)

	// Screenshot captures the current viewport as PNG.
	Screenshot(ctx context.Context) ([]byte, error)

	// DownloadDir is where this session's browser downloads land.
	DownloadDir() string

	// Close releases the tab. Idempotent; safe on every exit path.
	Close() error
}

// Factory produces one Page per attempt. Pages are never reused across
// attempts or candidates.
type Factory interface {
	Acquire(ctx context.Context) (Page, error)
}
