// internal/browser/manager.go
package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voidwalk/webgen/internal/config"
)

// Manager owns the Chrome process (via an exec allocator) and hands out one
// isolated tab per attempt. Initialization is deferred until the first
// session is requested.
type Manager struct {
	logger *zap.Logger
	cfg    config.BrowserConfig

	allocCtx     context.Context
	allocCancel  context.CancelFunc
	downloadRoot string

	initOnce sync.Once
	initErr  error

	mu     sync.Mutex
	closed bool
	// wg tracks open sessions so Shutdown can wait for in-flight attempts.
	wg sync.WaitGroup
}

// Ensure Manager satisfies the factory contract used by the state machine.
var _ Factory = (*Manager)(nil)

// NewManager creates a browser manager. The Chrome process is not launched
// until the first Acquire.
func NewManager(cfg config.BrowserConfig, logger *zap.Logger) *Manager {
	return &Manager{
		logger: logger.Named("browser_manager"),
		cfg:    cfg,
	}
}

// initialize builds the exec allocator that will own the Chrome process.
func (m *Manager) initialize() error {
	m.initOnce.Do(func() {
		root := m.cfg.DownloadDir
		if root == "" {
			root = filepath.Join(os.TempDir(), "webgen-downloads")
		}
		if err := os.MkdirAll(root, 0o755); err != nil {
			m.initErr = fmt.Errorf("failed to create download root %s: %w", root, err)
			return
		}
		m.downloadRoot = root

		opts := execAllocatorOptions(m.cfg)
		m.allocCtx, m.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
		m.logger.Info("Browser allocator initialized.",
			zap.Bool("headless", m.cfg.Headless),
			zap.String("download_root", root))
	})
	return m.initErr
}

// execAllocatorOptions merges stability defaults with user-provided args.
func execAllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("hide-scrollbars", true),
	)
	for _, arg := range cfg.Args {
		arg = strings.TrimPrefix(arg, "--")
		if k, v, ok := strings.Cut(arg, "="); ok {
			opts = append(opts, chromedp.Flag(k, v))
		} else {
			opts = append(opts, chromedp.Flag(arg, true))
		}
	}
	return opts
}

// trackSession registers one open session so Shutdown can wait for it, and
// returns the release func the session must call exactly once on Close.
func (m *Manager) trackSession() (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, fmt.Errorf("browser manager is shut down")
	}
	m.wg.Add(1)
	return m.wg.Done, nil
}

// Acquire creates a fresh, isolated tab for one attempt. The returned Page
// is exclusively owned by the caller, which must Close it on every exit
// path before the attempt is considered finished.
func (m *Manager) Acquire(ctx context.Context) (Page, error) {
	if err := m.initialize(); err != nil {
		return nil, err
	}

	release, err := m.trackSession()
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	downloadDir := filepath.Join(m.downloadRoot, id)
	if err := os.MkdirAll(downloadDir, 0o755); err != nil {
		release()
		return nil, fmt.Errorf("failed to create session download dir: %w", err)
	}

	tabCtx, tabCancel := chromedp.NewContext(m.allocCtx)
	s := &Session{
		id:          id,
		ctx:         tabCtx,
		cancel:      tabCancel,
		logger:      m.logger.With(zap.String("session_id", id)),
		cfg:         m.cfg,
		downloadDir: downloadDir,
		onClose:     release,
	}

	// The first Run materializes the tab (and, for the first session, the
	// Chrome process). Route downloads into the session's own directory so
	// the download extraction strategy can observe them.
	startCtx, startCancel := combineContext(tabCtx, ctx)
	defer startCancel()
	err = chromedp.Run(startCtx,
		cdpbrowser.SetDownloadBehavior(cdpbrowser.SetDownloadBehaviorBehaviorAllow).
			WithDownloadPath(downloadDir).
			WithEventsEnabled(true),
	)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to start browser session: %w", err)
	}

	m.logger.Debug("Session acquired.", zap.String("session_id", id))
	return s, nil
}

// Shutdown waits for in-flight sessions to close, bounded by ctx, then
// tears down the Chrome process.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("All sessions closed gracefully.")
	case <-ctx.Done():
		m.logger.Warn("Timeout waiting for sessions to close. Forcing browser shutdown.", zap.Error(ctx.Err()))
	}

	if m.allocCancel != nil {
		m.allocCancel()
	}
	m.logger.Info("Browser manager shutdown complete.")
	return nil
}
