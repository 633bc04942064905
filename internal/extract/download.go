// internal/extract/download.go
package extract

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/voidwalk/webgen/api/schemas"
	"github.com/voidwalk/webgen/internal/browser"
)

const (
	downloadPollInterval = 500 * time.Millisecond
	// downloadSettle is how long a file's size must hold steady before it
	// is considered fully written.
	downloadSettle = 1 * time.Second
	// downloadCap bounds the wait even when the attempt deadline is far
	// away; a download that hasn't started producing bytes by then never
	// will.
	downloadCap = 60 * time.Second
)

// downloadStrategy clicks an explicit download control and observes the
// session's download directory for the resulting file. It needs an extra
// interaction plus filesystem settling, which is why it runs last.
type downloadStrategy struct{}

func (*downloadStrategy) Name() string { return "download" }

// downloadControlExpr reports whether the selector resolves to something
// clickable that plausibly triggers a download.
func downloadControlExpr(selector string) string {
	return fmt.Sprintf(`(function(q) {
		const el = document.querySelector(q);
		if (!el) return false;
		if (el.matches('a[download], a[href], button')) return true;
		return !!el.querySelector('a[download], button');
	})(%s)`, jsQuote(selector))
}

func (st *downloadStrategy) Extract(ctx context.Context, pg browser.Page, selector string, _ *url.URL) (*schemas.Artifact, bool, error) {
	var clickable bool
	if err := pg.Eval(ctx, downloadControlExpr(selector), &clickable); err != nil {
		return nil, false, err
	}
	if !clickable {
		return nil, false, nil
	}

	dir := pg.DownloadDir()
	before, err := snapshotDir(dir)
	if err != nil {
		return nil, true, fmt.Errorf("cannot observe download dir: %w", err)
	}

	if err := pg.Click(ctx, selector); err != nil {
		return nil, true, err
	}

	path, err := awaitNewFile(ctx, dir, before)
	if err != nil {
		return nil, true, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, true, fmt.Errorf("failed to read downloaded file %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil, true, fmt.Errorf("downloaded file %s is empty", path)
	}
	return &schemas.Artifact{Bytes: data, ContentType: http.DetectContentType(data)}, true, nil
}

func snapshotDir(dir string) (map[string]struct{}, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		seen[e.Name()] = struct{}{}
	}
	return seen, nil
}

// awaitNewFile polls the download directory for a file that was not present
// before the click and whose size has stopped growing. Chrome's in-progress
// markers are skipped.
func awaitNewFile(ctx context.Context, dir string, before map[string]struct{}) (string, error) {
	waitCtx, cancel := context.WithTimeout(ctx, downloadCap)
	defer cancel()

	ticker := time.NewTicker(downloadPollInterval)
	defer ticker.Stop()

	var candidate string
	var lastSize int64 = -1
	var stableSince time.Time

	for {
		select {
		case <-waitCtx.Done():
			return "", fmt.Errorf("no download appeared: %w", waitCtx.Err())
		case <-ticker.C:
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			return "", err
		}
		for _, e := range entries {
			name := e.Name()
			if _, existed := before[name]; existed || e.IsDir() {
				continue
			}
			if strings.HasSuffix(name, ".crdownload") || strings.HasSuffix(name, ".tmp") {
				continue
			}
			candidate = filepath.Join(dir, name)
		}
		if candidate == "" {
			continue
		}

		info, err := os.Stat(candidate)
		if err != nil {
			continue
		}
		if info.Size() != lastSize {
			lastSize = info.Size()
			stableSince = time.Now()
			continue
		}
		if lastSize > 0 && time.Since(stableSince) >= downloadSettle {
			return candidate, nil
		}
	}
}
