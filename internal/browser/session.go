// internal/browser/session.go
package browser

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/voidwalk/webgen/internal/config"
)

// Session is one isolated browser tab, created fresh for each attempt and
// owned by exactly one state machine. Never reused.
type Session struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
	cfg    config.BrowserConfig

	downloadDir string
	onClose     func()
	closeOnce   sync.Once
}

var _ Page = (*Session)(nil)

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// DownloadDir is where this session's browser downloads land.
func (s *Session) DownloadDir() string { return s.downloadDir }

// Close releases the tab. Idempotent: every exit path of an attempt may
// call it without coordination.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.logger.Debug("Closing session.")
		s.cancel()
		if s.onClose != nil {
			s.onClose()
		}
	})
	return nil
}

// run executes chromedp actions tied to both the session lifetime and the
// caller's operational context.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	opCtx, opCancel := combineContext(s.ctx, ctx)
	defer opCancel()
	return chromedp.Run(opCtx, actions...)
}

// Navigate loads the provider URL. A navigation failure fails the attempt
// without retry at this layer; retries happen against a different
// candidate, one layer up.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Debug("Navigating.", zap.String("url", url))
	if err := s.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

// Eval evaluates a JS expression in the page and decodes the result into
// out. Promises are awaited, exceptions surface silently as errors.
func (s *Session) Eval(ctx context.Context, expr string, out any) error {
	var raw json.RawMessage
	err := s.run(ctx, chromedp.Evaluate(expr, &raw, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithReturnByValue(true).WithAwaitPromise(true).WithSilent(true)
	}))
	if err != nil {
		return fmt.Errorf("script evaluation failed: %w", err)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := jsoniter.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode evaluation result: %w (payload: %s)", err, string(raw))
	}
	return nil
}

// Exists reports whether the selector matches at least one element.
func (s *Session) Exists(ctx context.Context, selector string) (bool, error) {
	var found bool
	expr := fmt.Sprintf(`document.querySelector(%s) !== null`, jsonEncode(selector))
	if err := s.Eval(ctx, expr, &found); err != nil {
		return false, err
	}
	return found, nil
}

// Click clicks the first element matching the selector.
func (s *Session) Click(ctx context.Context, selector string) error {
	if err := s.run(ctx, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("click on %q failed: %w", selector, err)
	}
	return nil
}

// SetText writes a value into a text control through the native value
// setter and dispatches input/change events. Frameworks driving these pages
// only commit values on events; setting the attribute alone is the silent
// no-op this engine must never produce.
func (s *Session) SetText(ctx context.Context, selector, value string) error {
	expr := fmt.Sprintf(`(function(q, v) {
		const el = document.querySelector(q);
		if (!el) return false;
		const target = el.matches('input, textarea') ? el : el.querySelector('input, textarea');
		if (!target) return false;
		const proto = target.tagName === 'TEXTAREA' ? HTMLTextAreaElement.prototype : HTMLInputElement.prototype;
		Object.getOwnPropertyDescriptor(proto, 'value').set.call(target, v);
		target.dispatchEvent(new Event('input', { bubbles: true }));
		target.dispatchEvent(new Event('change', { bubbles: true }));
		return true;
	})(%s, %s)`, jsonEncode(selector), jsonEncode(value))

	var ok bool
	if err := s.Eval(ctx, expr, &ok); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no text control matches %q", selector)
	}
	return nil
}

// SetNumber sets a slider or numeric input, with the same event dispatch as
// SetText.
func (s *Session) SetNumber(ctx context.Context, selector string, value float64) error {
	expr := fmt.Sprintf(`(function(q, v) {
		const el = document.querySelector(q);
		if (!el) return false;
		const target = el.matches('input') ? el : el.querySelector('input[type="range"], input[type="number"], input');
		if (!target) return false;
		Object.getOwnPropertyDescriptor(HTMLInputElement.prototype, 'value').set.call(target, String(v));
		target.dispatchEvent(new Event('input', { bubbles: true }));
		target.dispatchEvent(new Event('change', { bubbles: true }));
		return true;
	})(%s, %v)`, jsonEncode(selector), value)

	var ok bool
	if err := s.Eval(ctx, expr, &ok); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no numeric control matches %q", selector)
	}
	return nil
}

// SetFile attaches a local file to a file-input control. The locator must
// point at the input element itself, not a styled wrapper.
func (s *Session) SetFile(ctx context.Context, selector, path string) error {
	if err := s.run(ctx, chromedp.SetUploadFiles(selector, []string{path}, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("file upload into %q failed: %w", selector, err)
	}
	return nil
}

// HasResult reports whether the output selector holds a populated artifact:
// a media element with a source, a link with an href, or a drawn canvas.
func (s *Session) HasResult(ctx context.Context, selector string) (bool, error) {
	expr := fmt.Sprintf(`(function(q) {
		const el = document.querySelector(q);
		if (!el) return false;
		const media = el.matches('img, video, audio, source, a') ? el : el.querySelector('img, video, audio, source, a[href]');
		if (media) {
			const src = media.currentSrc || media.src || media.href || '';
			if (src) return true;
		}
		const canvas = el.matches('canvas') ? el : el.querySelector('canvas');
		if (canvas && canvas.width > 0 && canvas.height > 0) return true;
		return false;
	})(%s)`, jsonEncode(selector))

	var populated bool
	if err := s.Eval(ctx, expr, &populated); err != nil {
		return false, err
	}
	return populated, nil
}

// OuterHTML returns the serialized HTML of the first matching element.
func (s *Session) OuterHTML(ctx context.Context, selector string) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML(selector, &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to read element %q: %w", selector, err)
	}
	return html, nil
}

// FetchData retrieves a resource through the page's own fetch, so
// session-scoped blob: URLs and cookie-gated resources resolve the same way
// they would for the page itself. The payload comes back base64-encoded to
// survive the JSON transport.
func (s *Session) FetchData(ctx context.Context, url string) ([]byte, error) {
	expr := fmt.Sprintf(`(async function(u) {
		const resp = await fetch(u);
		if (!resp.ok) throw new Error('fetch failed with status ' + resp.status);
		const buf = await resp.arrayBuffer();
		const bytes = new Uint8Array(buf);
		let binary = '';
		for (let i = 0; i < bytes.length; i += 0x8000) {
			binary += String.fromCharCode.apply(null, bytes.subarray(i, i + 0x8000));
		}
		return btoa(binary);
	})(%s)`, jsonEncode(url))

	var encoded string
	if err := s.Eval(ctx, expr, &encoded); err != nil {
		return nil, fmt.Errorf("in-page fetch of %s failed: %w", url, err)
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode fetched payload: %w", err)
	}
	return data, nil
}

// Screenshot captures the current viewport as PNG.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("screenshot capture failed: %w", err)
	}
	return buf, nil
}

// jsonEncode safely encodes a value for injection into a JS expression.
func jsonEncode(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return `""`
	}
	return string(b)
}
