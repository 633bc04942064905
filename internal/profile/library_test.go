package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voidwalk/webgen/api/schemas"
)

const validLibraryYAML = `
version: "2026-08"
tasks:
  text_to_image:
    - provider: flux-demo
      url: https://flux.example/app
      inputs:
        prompt: "#prompt textarea"
        negative_prompt: "#negative textarea"
      submit: "button#generate"
      outputs:
        - "#gallery img"
      busy: ".progress-bar"
      popups:
        - "button.close-modal"
    - provider: sdxl-mirror
      url: https://sdxl.example
      inputs:
        prompt: ".prompt-box input"
      submit: ".run-button"
      outputs:
        - ".output img"
  image_to_video:
    - provider: animator
      url: https://animator.example
      inputs:
        source_image: "input[type=file]"
        duration: "#duration input"
      submit: "#go"
      outputs:
        - "video"
`

func TestParseValidLibrary(t *testing.T) {
	lib, err := Parse([]byte(validLibraryYAML))
	require.NoError(t, err)

	assert.Equal(t, "2026-08", lib.Version)
	assert.ElementsMatch(t,
		[]schemas.TaskType{schemas.TaskTextToImage, schemas.TaskImageToVideo},
		lib.TaskTypes())

	candidates, err := lib.Candidates(schemas.TaskTextToImage)
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	want := schemas.SelectorProfile{
		Provider: "flux-demo",
		URL:      "https://flux.example/app",
		Inputs: map[schemas.FieldRole]string{
			schemas.RolePrompt:         "#prompt textarea",
			schemas.RoleNegativePrompt: "#negative textarea",
		},
		Submit:  "button#generate",
		Outputs: []string{"#gallery img"},
		Busy:    ".progress-bar",
		Popups:  []string{"button.close-modal"},
	}
	if diff := cmp.Diff(want, candidates[0]); diff != "" {
		t.Errorf("first candidate mismatch (-want +got):\n%s", diff)
	}
}

func TestParsePreservesCandidateOrder(t *testing.T) {
	lib, err := Parse([]byte(validLibraryYAML))
	require.NoError(t, err)

	candidates, err := lib.Candidates(schemas.TaskTextToImage)
	require.NoError(t, err)
	assert.Equal(t, "flux-demo", candidates[0].Provider)
	assert.Equal(t, "sdxl-mirror", candidates[1].Provider)
}

func TestParseRejectsBadInput(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"not yaml", `{{{{`},
		{"no tasks", `version: "1"`},
		{"unknown task type", `
version: "1"
tasks:
  text_to_hologram:
    - provider: x
      url: https://x.example
      submit: "#go"
      outputs: ["#out"]
`},
		{"empty candidate list", `
version: "1"
tasks:
  text_to_image: []
`},
		{"candidate missing submit", `
version: "1"
tasks:
  text_to_image:
    - provider: x
      url: https://x.example
      outputs: ["#out"]
`},
		{"candidate missing outputs", `
version: "1"
tasks:
  text_to_image:
    - provider: x
      url: https://x.example
      submit: "#go"
`},
		{"unknown field role", `
version: "1"
tasks:
  text_to_image:
    - provider: x
      url: https://x.example
      inputs:
        seed: "#seed"
      submit: "#go"
      outputs: ["#out"]
`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			assert.Error(t, err)
		})
	}
}

func TestCandidatesUnknownTask(t *testing.T) {
	lib, err := Parse([]byte(validLibraryYAML))
	require.NoError(t, err)

	_, err = lib.Candidates(schemas.TaskUpscale)
	assert.Error(t, err)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validLibraryYAML), 0o644))

	lib, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "2026-08", lib.Version)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
