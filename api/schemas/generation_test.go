package schemas

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePerTask(t *testing.T) {
	cases := []struct {
		name    string
		req     GenerationRequest
		missing []FieldRole
	}{
		{
			name: "text_to_image ok",
			req:  GenerationRequest{Task: TaskTextToImage, Prompt: "a lighthouse"},
		},
		{
			name:    "text_to_image missing prompt",
			req:     GenerationRequest{Task: TaskTextToImage},
			missing: []FieldRole{RolePrompt},
		},
		{
			name: "image_to_image ok",
			req:  GenerationRequest{Task: TaskImageToImage, Prompt: "x", SourceImagePath: "/tmp/a.png"},
		},
		{
			name:    "image_to_image missing source",
			req:     GenerationRequest{Task: TaskImageToImage, Prompt: "x"},
			missing: []FieldRole{RoleSourceImage},
		},
		{
			name: "inpaint ok",
			req:  GenerationRequest{Task: TaskInpaint, Prompt: "x", SourceImage: []byte{1}, MaskImage: []byte{2}},
		},
		{
			name:    "inpaint missing mask",
			req:     GenerationRequest{Task: TaskInpaint, Prompt: "x", SourceImagePath: "/tmp/a.png"},
			missing: []FieldRole{RoleMaskImage},
		},
		{
			name: "upscale needs no prompt",
			req:  GenerationRequest{Task: TaskUpscale, SourceImagePath: "/tmp/a.png"},
		},
		{
			name:    "upscale missing source",
			req:     GenerationRequest{Task: TaskUpscale},
			missing: []FieldRole{RoleSourceImage},
		},
		{
			name: "text_to_video ok",
			req:  GenerationRequest{Task: TaskTextToVideo, Prompt: "x"},
		},
		{
			name:    "image_to_video missing source",
			req:     GenerationRequest{Task: TaskImageToVideo},
			missing: []FieldRole{RoleSourceImage},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			if tc.missing == nil {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.ElementsMatch(t, tc.missing, verr.Missing)
		})
	}
}

func TestValidateUnknownTask(t *testing.T) {
	req := GenerationRequest{Task: TaskType("text_to_hologram"), Prompt: "x"}
	var verr *ValidationError
	require.ErrorAs(t, req.Validate(), &verr)
	assert.Equal(t, "unknown task type", verr.Reason)
}

func TestHasFieldBytesWinOverPath(t *testing.T) {
	req := GenerationRequest{SourceImage: []byte{1}}
	assert.True(t, req.HasField(RoleSourceImage))

	req = GenerationRequest{SourceImagePath: "/tmp/a.png"}
	assert.True(t, req.HasField(RoleSourceImage))

	req = GenerationRequest{}
	assert.False(t, req.HasField(RoleSourceImage))
}

func TestAttemptErrorUnwrap(t *testing.T) {
	cause := errors.New("tab crashed")
	err := NewAttemptError(ErrKindSessionAcquisition, cause, "acquire failed for %s", "demo")

	assert.Equal(t, ErrKindSessionAcquisition, err.Kind)
	assert.Contains(t, err.Error(), "SESSION_ACQUISITION")
	assert.ErrorIs(t, err, cause)
}

func TestFillOrderPutsImagesFirst(t *testing.T) {
	idx := make(map[FieldRole]int, len(FillOrder))
	for i, role := range FillOrder {
		idx[role] = i
	}
	assert.Less(t, idx[RoleSourceImage], idx[RolePrompt])
	assert.Less(t, idx[RoleMaskImage], idx[RolePrompt])
}
