// api/schemas/generation.go
package schemas

import (
	"strings"
	"time"
)

// GenerationRequest carries the caller-supplied parameters for one task.
// It is validated against the task's required-field set before any browser
// work begins and treated as immutable once dispatched.
type GenerationRequest struct {
	Task TaskType

	Prompt         string
	NegativePrompt string

	// Source and mask images may arrive as raw bytes or as a path; bytes
	// win when both are set. The engine materializes bytes to a temp file
	// for upload controls.
	SourceImage     []byte
	SourceImagePath string
	MaskImage       []byte
	MaskImagePath   string

	// Numeric controls. Zero means "not supplied" and the control is left
	// at the provider default.
	Strength float64
	Scale    float64
	Duration float64

	// OutputPath, when set, asks the facade to write the artifact to disk
	// and omit the bytes from the result. Empty returns bytes in-memory.
	OutputPath string

	// Timeout bounds each candidate attempt independently. Zero picks the
	// configured default.
	Timeout time.Duration
}

// HasField reports whether the request supplies a value for the given role.
func (r *GenerationRequest) HasField(role FieldRole) bool {
	switch role {
	case RolePrompt:
		return strings.TrimSpace(r.Prompt) != ""
	case RoleNegativePrompt:
		return strings.TrimSpace(r.NegativePrompt) != ""
	case RoleSourceImage:
		return len(r.SourceImage) > 0 || r.SourceImagePath != ""
	case RoleMaskImage:
		return len(r.MaskImage) > 0 || r.MaskImagePath != ""
	case RoleStrength:
		return r.Strength != 0
	case RoleScale:
		return r.Scale != 0
	case RoleDuration:
		return r.Duration != 0
	}
	return false
}

// NumericValue returns the value for a numeric role.
func (r *GenerationRequest) NumericValue(role FieldRole) float64 {
	switch role {
	case RoleStrength:
		return r.Strength
	case RoleScale:
		return r.Scale
	case RoleDuration:
		return r.Duration
	}
	return 0
}

// Validate checks the request against its task's required-field set.
func (r *GenerationRequest) Validate() error {
	if !r.Task.Valid() {
		return &ValidationError{Task: r.Task, Reason: "unknown task type"}
	}
	var missing []FieldRole
	for _, role := range RequiredFields(r.Task) {
		if !r.HasField(role) {
			missing = append(missing, role)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Task: r.Task, Missing: missing}
	}
	return nil
}

// Artifact is the generated binary output of one successful attempt.
type Artifact struct {
	Bytes       []byte
	ContentType string
	// Source names the extraction strategy that produced the bytes, for
	// diagnostics ("embedded", "blob", "link", "download").
	Source string
}

// AttemptOutcome records one state-machine run against one candidate.
// Exactly one of Artifact and Err is set.
type AttemptOutcome struct {
	Task     TaskType
	Provider string
	URL      string

	Artifact *Artifact
	Err      *AttemptError

	Elapsed time.Duration
	// ScreenshotPath holds the diagnostic capture taken on completion-wait
	// or extraction failures; empty otherwise.
	ScreenshotPath string
	StartedAt      time.Time
}

// OK reports whether the attempt produced an artifact.
func (o *AttemptOutcome) OK() bool { return o.Err == nil && o.Artifact != nil }

// GenerationResult is the caller-facing outcome of one request. On success
// it carries the artifact and the provider that satisfied it; on failure it
// carries every per-candidate outcome so callers can see what was tried and
// why each attempt failed.
type GenerationResult struct {
	Success  bool
	Task     TaskType
	Provider string

	Artifact *Artifact
	// WrittenPath is set instead of Artifact.Bytes when the request asked
	// for a file destination.
	WrittenPath string

	// Attempts holds every per-candidate outcome in candidate order. On
	// success the winning attempt is the last entry; candidates ranked
	// after the winner were never tried.
	Attempts []AttemptOutcome
}
