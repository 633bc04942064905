package machine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/voidwalk/webgen/api/schemas"
	"github.com/voidwalk/webgen/internal/browser"
	"github.com/voidwalk/webgen/internal/config"
)

// fakePage is a hand-rolled Page double. Behavior hooks default to benign
// answers; tests override only what they exercise.
type fakePage struct {
	mu sync.Mutex

	navigateFn  func(url string) error
	waitReadyFn func() error
	existsFn    func(sel string) (bool, error)
	hasResultFn func(sel string) (bool, error)
	setTextFn   func(sel, value string) error
	setFileFn   func(sel, path string) error
	setNumberFn func(sel string, value float64) error

	calls      []string
	clicks     []string
	closeCount int
	screenshot []byte
}

func (f *fakePage) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakePage) ID() string { return "fake-session" }

func (f *fakePage) Navigate(_ context.Context, url string) error {
	f.record("navigate")
	if f.navigateFn != nil {
		return f.navigateFn(url)
	}
	return nil
}

func (f *fakePage) WaitAppReady(context.Context) error {
	f.record("ready")
	if f.waitReadyFn != nil {
		return f.waitReadyFn()
	}
	return nil
}

func (f *fakePage) DismissPopups(_ context.Context, selectors []string) {
	f.record("popups")
}

func (f *fakePage) Exists(_ context.Context, sel string) (bool, error) {
	if f.existsFn != nil {
		return f.existsFn(sel)
	}
	return true, nil
}

func (f *fakePage) Click(_ context.Context, sel string) error {
	f.mu.Lock()
	f.clicks = append(f.clicks, sel)
	f.mu.Unlock()
	f.record("click:" + sel)
	return nil
}

func (f *fakePage) SetText(_ context.Context, sel, value string) error {
	f.record("text:" + sel)
	if f.setTextFn != nil {
		return f.setTextFn(sel, value)
	}
	return nil
}

func (f *fakePage) SetFile(_ context.Context, sel, path string) error {
	f.record("file:" + sel)
	if f.setFileFn != nil {
		return f.setFileFn(sel, path)
	}
	return nil
}

func (f *fakePage) SetNumber(_ context.Context, sel string, value float64) error {
	f.record("number:" + sel)
	if f.setNumberFn != nil {
		return f.setNumberFn(sel, value)
	}
	return nil
}

func (f *fakePage) HasResult(_ context.Context, sel string) (bool, error) {
	if f.hasResultFn != nil {
		return f.hasResultFn(sel)
	}
	return false, nil
}

func (f *fakePage) OuterHTML(context.Context, string) (string, error) { return "", nil }

func (f *fakePage) Eval(context.Context, string, any) error { return nil }

func (f *fakePage) FetchData(context.Context, string) ([]byte, error) { return nil, nil }

func (f *fakePage) Screenshot(context.Context) ([]byte, error) {
	if f.screenshot != nil {
		return f.screenshot, nil
	}
	return nil, errors.New("no screenshot configured")
}

func (f *fakePage) DownloadDir() string { return "" }

func (f *fakePage) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCount++
	return nil
}

type fakeFactory struct {
	page       *fakePage
	acquireErr error
	acquired   int
}

func (f *fakeFactory) Acquire(context.Context) (browser.Page, error) {
	f.acquired++
	if f.acquireErr != nil {
		return nil, f.acquireErr
	}
	return f.page, nil
}

type fakeExtractor struct {
	art *schemas.Artifact
	err error
	fn  func(ctx context.Context, pg browser.Page, prof schemas.SelectorProfile) (*schemas.Artifact, error)
}

func (f *fakeExtractor) Extract(ctx context.Context, pg browser.Page, prof schemas.SelectorProfile) (*schemas.Artifact, error) {
	if f.fn != nil {
		return f.fn(ctx, pg, prof)
	}
	return f.art, f.err
}

func testBrowserConfig() config.BrowserConfig {
	return config.BrowserConfig{
		NavigationTimeout: time.Second,
		MountTimeout:      time.Second,
		PollInterval:      5 * time.Millisecond,
		GracePeriod:       0,
	}
}

func testProfile() schemas.SelectorProfile {
	return schemas.SelectorProfile{
		Provider: "demo",
		URL:      "https://demo.example/app",
		Inputs: map[schemas.FieldRole]string{
			schemas.RolePrompt:      "#prompt textarea",
			schemas.RoleSourceImage: "#source input[type=file]",
		},
		Submit:  "#generate",
		Outputs: []string{"#result img"},
		Busy:    ".progress",
	}
}

func newTestMachine(t *testing.T, factory browser.Factory, ext Extractor, diagDir string) *Machine {
	t.Helper()
	m, err := New(factory, ext, testBrowserConfig(), diagDir, zap.NewNop())
	require.NoError(t, err)
	return m
}

func TestNewRejectsNilDependencies(t *testing.T) {
	_, err := New(nil, &fakeExtractor{}, testBrowserConfig(), "", zap.NewNop())
	assert.Error(t, err)

	_, err = New(&fakeFactory{}, nil, testBrowserConfig(), "", zap.NewNop())
	assert.Error(t, err)
}

func TestRunHappyPath(t *testing.T) {
	pg := &fakePage{
		hasResultFn: func(string) (bool, error) { return true, nil },
	}
	factory := &fakeFactory{page: pg}
	ext := &fakeExtractor{art: &schemas.Artifact{Bytes: []byte("png"), ContentType: "image/png", Source: "embedded"}}
	m := newTestMachine(t, factory, ext, "")

	req := &schemas.GenerationRequest{Task: schemas.TaskTextToImage, Prompt: "a lighthouse"}
	out := m.Run(context.Background(), testProfile(), req)

	require.True(t, out.OK(), "expected success, got %v", out.Err)
	assert.Equal(t, "demo", out.Provider)
	assert.Equal(t, "embedded", out.Artifact.Source)
	assert.Equal(t, []string{"#generate"}, pg.clicks)
	assert.Equal(t, 1, pg.closeCount, "session must be released exactly once")
}

func TestRunSessionAcquisitionFailure(t *testing.T) {
	factory := &fakeFactory{acquireErr: errors.New("pool exhausted")}
	m := newTestMachine(t, factory, &fakeExtractor{}, "")

	out := m.Run(context.Background(), testProfile(), &schemas.GenerationRequest{
		Task: schemas.TaskTextToImage, Prompt: "x",
	})

	require.NotNil(t, out.Err)
	assert.Equal(t, schemas.ErrKindSessionAcquisition, out.Err.Kind)
}

func TestRunMountTimeout(t *testing.T) {
	pg := &fakePage{waitReadyFn: func() error { return errors.New("application did not mount within 1s") }}
	m := newTestMachine(t, &fakeFactory{page: pg}, &fakeExtractor{}, "")

	out := m.Run(context.Background(), testProfile(), &schemas.GenerationRequest{
		Task: schemas.TaskTextToImage, Prompt: "x",
	})

	require.NotNil(t, out.Err)
	assert.Equal(t, schemas.ErrKindMountTimeout, out.Err.Kind)
	assert.Equal(t, 1, pg.closeCount)
	assert.Empty(t, pg.clicks, "nothing may be submitted after a mount failure")
}

func TestRunRequiredFieldWithoutLocator(t *testing.T) {
	pg := &fakePage{}
	m := newTestMachine(t, &fakeFactory{page: pg}, &fakeExtractor{}, "")

	prof := testProfile()
	delete(prof.Inputs, schemas.RolePrompt)

	out := m.Run(context.Background(), prof, &schemas.GenerationRequest{
		Task: schemas.TaskTextToImage, Prompt: "a lighthouse",
	})

	require.NotNil(t, out.Err)
	assert.Equal(t, schemas.ErrKindUnsupportedField, out.Err.Kind)
	assert.Empty(t, pg.clicks, "submit must never fire with an unfillable required field")
	assert.Equal(t, 1, pg.closeCount)
}

func TestRunOptionalFieldWithoutLocatorIsSkipped(t *testing.T) {
	pg := &fakePage{hasResultFn: func(string) (bool, error) { return true, nil }}
	ext := &fakeExtractor{art: &schemas.Artifact{Bytes: []byte("x"), ContentType: "image/png"}}
	m := newTestMachine(t, &fakeFactory{page: pg}, ext, "")

	// Profile has no negative-prompt locator; request supplies one.
	out := m.Run(context.Background(), testProfile(), &schemas.GenerationRequest{
		Task:           schemas.TaskTextToImage,
		Prompt:         "a lighthouse",
		NegativePrompt: "blurry",
	})

	require.True(t, out.OK(), "optional field without locator must not fail the attempt: %v", out.Err)
}

func TestRunSubmitControlNotFound(t *testing.T) {
	pg := &fakePage{
		existsFn: func(sel string) (bool, error) { return sel != "#generate", nil },
	}
	m := newTestMachine(t, &fakeFactory{page: pg}, &fakeExtractor{}, "")

	out := m.Run(context.Background(), testProfile(), &schemas.GenerationRequest{
		Task: schemas.TaskTextToImage, Prompt: "x",
	})

	require.NotNil(t, out.Err)
	assert.Equal(t, schemas.ErrKindSubmitNotFound, out.Err.Kind)
	assert.Empty(t, pg.clicks)
}

func TestRunGenerationTimeoutWritesScreenshot(t *testing.T) {
	diagDir := t.TempDir()
	pg := &fakePage{
		screenshot: []byte("png-bytes"),
		existsFn: func(sel string) (bool, error) {
			// Busy indicator never appears, outputs never populate.
			return sel == "#generate", nil
		},
	}
	m := newTestMachine(t, &fakeFactory{page: pg}, &fakeExtractor{}, diagDir)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	out := m.Run(ctx, testProfile(), &schemas.GenerationRequest{
		Task: schemas.TaskTextToImage, Prompt: "x",
	})

	require.NotNil(t, out.Err)
	assert.Equal(t, schemas.ErrKindGenerationTimeout, out.Err.Kind)
	require.NotEmpty(t, out.ScreenshotPath)
	assert.Equal(t, diagDir, filepath.Dir(out.ScreenshotPath))

	data, err := os.ReadFile(out.ScreenshotPath)
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), data)
	assert.Equal(t, 1, pg.closeCount)
}

func TestRunCanceledIsNotATimeout(t *testing.T) {
	pg := &fakePage{
		existsFn: func(sel string) (bool, error) { return sel == "#generate", nil },
	}
	m := newTestMachine(t, &fakeFactory{page: pg}, &fakeExtractor{}, "")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	out := m.Run(ctx, testProfile(), &schemas.GenerationRequest{
		Task: schemas.TaskTextToImage, Prompt: "x",
	})

	require.NotNil(t, out.Err)
	assert.Equal(t, schemas.ErrKindCanceled, out.Err.Kind)
	assert.Equal(t, 1, pg.closeCount)
}

func TestRunBusyTransitionTriggersExtraction(t *testing.T) {
	var polls int
	var mu sync.Mutex
	pg := &fakePage{
		existsFn: func(sel string) (bool, error) {
			if sel == "#generate" {
				return true, nil
			}
			// Busy for the first three polls, then done.
			mu.Lock()
			defer mu.Unlock()
			polls++
			return polls <= 3, nil
		},
	}
	ext := &fakeExtractor{art: &schemas.Artifact{Bytes: []byte("x"), ContentType: "image/png"}}
	m := newTestMachine(t, &fakeFactory{page: pg}, ext, "")

	out := m.Run(context.Background(), testProfile(), &schemas.GenerationRequest{
		Task: schemas.TaskTextToImage, Prompt: "x",
	})

	require.True(t, out.OK(), "busy present->absent must complete the wait: %v", out.Err)
}

func TestRunGracePeriodCoversLateOutputRender(t *testing.T) {
	var mu sync.Mutex
	busyPolls := 0
	var busyClearedAt time.Time

	pg := &fakePage{}
	pg.existsFn = func(sel string) (bool, error) {
		if sel == "#generate" {
			return true, nil
		}
		mu.Lock()
		defer mu.Unlock()
		busyPolls++
		if busyPolls <= 2 {
			return true, nil
		}
		if busyClearedAt.IsZero() {
			busyClearedAt = time.Now()
		}
		return false, nil
	}
	pg.hasResultFn = func(string) (bool, error) {
		mu.Lock()
		defer mu.Unlock()
		// Output renders a beat after the busy indicator clears.
		if busyClearedAt.IsZero() || time.Since(busyClearedAt) < 30*time.Millisecond {
			return false, nil
		}
		return true, nil
	}

	// Extraction only succeeds once the output locator is actually populated,
	// so skipping the grace window would fail this attempt.
	ext := &fakeExtractor{fn: func(ctx context.Context, p browser.Page, prof schemas.SelectorProfile) (*schemas.Artifact, error) {
		populated, err := p.HasResult(ctx, prof.Outputs[0])
		require.NoError(t, err)
		if !populated {
			return nil, errors.New("output locator is still empty")
		}
		return &schemas.Artifact{Bytes: []byte("x"), ContentType: "image/png", Source: "embedded"}, nil
	}}

	cfg := testBrowserConfig()
	cfg.GracePeriod = 200 * time.Millisecond
	m, err := New(&fakeFactory{page: pg}, ext, cfg, "", zap.NewNop())
	require.NoError(t, err)

	out := m.Run(context.Background(), testProfile(), &schemas.GenerationRequest{
		Task: schemas.TaskTextToImage, Prompt: "x",
	})
	require.True(t, out.OK(), "output appearing inside the grace window must still succeed: %v", out.Err)
}

func TestRunExtractionFailure(t *testing.T) {
	diagDir := t.TempDir()
	pg := &fakePage{
		screenshot:  []byte("shot"),
		hasResultFn: func(string) (bool, error) { return true, nil },
	}
	ext := &fakeExtractor{err: errors.New("no artifact matched any strategy")}
	m := newTestMachine(t, &fakeFactory{page: pg}, ext, diagDir)

	out := m.Run(context.Background(), testProfile(), &schemas.GenerationRequest{
		Task: schemas.TaskTextToImage, Prompt: "x",
	})

	require.NotNil(t, out.Err)
	assert.Equal(t, schemas.ErrKindArtifactExtraction, out.Err.Kind)
	assert.NotEmpty(t, out.ScreenshotPath)
	assert.Equal(t, 1, pg.closeCount)
}

func TestFillSetsImagesBeforeText(t *testing.T) {
	pg := &fakePage{hasResultFn: func(string) (bool, error) { return true, nil }}
	ext := &fakeExtractor{art: &schemas.Artifact{Bytes: []byte("x"), ContentType: "image/png"}}
	m := newTestMachine(t, &fakeFactory{page: pg}, ext, "")

	prof := testProfile()
	out := m.Run(context.Background(), prof, &schemas.GenerationRequest{
		Task:            schemas.TaskImageToImage,
		Prompt:          "watercolor style",
		SourceImagePath: "/tmp/in.png",
	})
	require.True(t, out.OK(), "unexpected failure: %v", out.Err)

	fileIdx, textIdx := -1, -1
	for i, call := range pg.calls {
		switch call {
		case "file:#source input[type=file]":
			fileIdx = i
		case "text:#prompt textarea":
			textIdx = i
		}
	}
	require.GreaterOrEqual(t, fileIdx, 0)
	require.GreaterOrEqual(t, textIdx, 0)
	assert.Less(t, fileIdx, textIdx, "image upload must precede prompt entry")
}

func TestFillMaterializesBytesToTempFile(t *testing.T) {
	var uploaded string
	pg := &fakePage{
		hasResultFn: func(string) (bool, error) { return true, nil },
		setFileFn: func(sel, path string) error {
			uploaded = path
			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, data)
			return nil
		},
	}
	ext := &fakeExtractor{art: &schemas.Artifact{Bytes: []byte("x"), ContentType: "image/png"}}
	m := newTestMachine(t, &fakeFactory{page: pg}, ext, "")

	out := m.Run(context.Background(), testProfile(), &schemas.GenerationRequest{
		Task:        schemas.TaskImageToImage,
		Prompt:      "x",
		SourceImage: []byte{0x89, 'P', 'N', 'G'},
	})
	require.True(t, out.OK(), "unexpected failure: %v", out.Err)
	require.NotEmpty(t, uploaded)

	_, err := os.Stat(uploaded)
	assert.True(t, os.IsNotExist(err), "temp upload file must be removed after the attempt")
}
