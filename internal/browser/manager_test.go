package browser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/voidwalk/webgen/internal/config"
)

func TestCombineContextCancelsWithOperation(t *testing.T) {
	sessionCtx, sessionCancel := context.WithCancel(context.Background())
	defer sessionCancel()

	opCtx, opCancel := context.WithCancel(context.Background())
	combined, cancel := combineContext(sessionCtx, opCtx)
	defer cancel()

	opCancel()

	select {
	case <-combined.Done():
	case <-time.After(time.Second):
		t.Fatal("combined context did not cancel with the operation context")
	}
	assert.NoError(t, sessionCtx.Err(), "the session context must outlive the operation")
}

func TestCombineContextCancelsWithSession(t *testing.T) {
	sessionCtx, sessionCancel := context.WithCancel(context.Background())
	combined, cancel := combineContext(sessionCtx, context.Background())
	defer cancel()

	sessionCancel()

	select {
	case <-combined.Done():
	case <-time.After(time.Second):
		t.Fatal("combined context did not cancel with the session context")
	}
}

func TestExecAllocatorOptionsMergeUserArgs(t *testing.T) {
	cfg := config.BrowserConfig{
		Headless: true,
		Args:     []string{"--lang=en-US", "disable-extensions"},
	}
	opts := execAllocatorOptions(cfg)

	// Defaults plus stability flags plus the two user args.
	assert.Greater(t, len(opts), len(cfg.Args),
		"user args must be appended to the default option set")
}

func TestManagerShutdownBeforeFirstAcquire(t *testing.T) {
	m := NewManager(config.BrowserConfig{}, zap.NewNop())

	// Shutdown without any session must not launch Chrome or block.
	require.NoError(t, m.Shutdown(context.Background()))

	_, err := m.Acquire(context.Background())
	assert.Error(t, err, "acquire after shutdown must be refused")
}

// Tab creation needs a Chrome binary, so these tests exercise the shutdown
// wait through the same session bookkeeping Acquire uses.
func TestManagerShutdownWaitsForOpenSessions(t *testing.T) {
	m := NewManager(config.BrowserConfig{}, zap.NewNop())

	release, err := m.trackSession()
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- m.Shutdown(context.Background()) }()

	select {
	case <-done:
		t.Fatal("shutdown returned while a session was still open")
	case <-time.After(50 * time.Millisecond):
	}

	_, err = m.trackSession()
	assert.Error(t, err, "no new session may open once shutdown has begun")

	release()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("shutdown did not return after the last session closed")
	}
}

func TestManagerShutdownForcedWhenSessionLingers(t *testing.T) {
	m := NewManager(config.BrowserConfig{}, zap.NewNop())

	release, err := m.trackSession()
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx), "a stuck session must not block shutdown past its bound")
}
