// api/schemas/errors.go
package schemas

import "fmt"

// ErrorKind is a string type used for structured error reporting from
// attempt execution. Using a custom type ensures that only predefined
// constants can appear where an ErrorKind is expected.
type ErrorKind string

const (
	// ErrKindSessionAcquisition covers failures to obtain a browser tab or
	// to navigate to the provider URL (DNS, TLS, HTTP error, nav timeout).
	ErrKindSessionAcquisition ErrorKind = "SESSION_ACQUISITION"
	// ErrKindMountTimeout means the provider page never finished mounting
	// its UI framework within the mount timeout.
	ErrKindMountTimeout ErrorKind = "MOUNT_TIMEOUT"
	// ErrKindUnsupportedField means the request needs a control the
	// provider's profile does not declare.
	ErrKindUnsupportedField ErrorKind = "UNSUPPORTED_FIELD"
	// ErrKindSubmitNotFound means the submit locator matched nothing.
	ErrKindSubmitNotFound ErrorKind = "SUBMIT_CONTROL_NOT_FOUND"
	// ErrKindGenerationTimeout means the attempt deadline expired while
	// waiting for the provider to finish generating.
	ErrKindGenerationTimeout ErrorKind = "GENERATION_TIMEOUT"
	// ErrKindArtifactExtraction means generation appeared to complete but
	// no extraction strategy produced an artifact.
	ErrKindArtifactExtraction ErrorKind = "ARTIFACT_EXTRACTION"
	// ErrKindCanceled means the owning context was canceled mid-attempt.
	ErrKindCanceled ErrorKind = "CANCELED"
)

// AttemptError is the typed failure of one attempt against one candidate.
type AttemptError struct {
	Kind   ErrorKind
	Detail string
	Cause  error
}

func (e *AttemptError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *AttemptError) Unwrap() error { return e.Cause }

// NewAttemptError builds an AttemptError with a formatted detail message.
func NewAttemptError(kind ErrorKind, cause error, format string, args ...any) *AttemptError {
	return &AttemptError{Kind: kind, Detail: fmt.Sprintf(format, args...), Cause: cause}
}

// ValidationError reports a defective request. It is never retried against
// fallback candidates because the defect is in the request, not a provider.
type ValidationError struct {
	Task    TaskType
	Missing []FieldRole
	Reason  string
}

func (e *ValidationError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("invalid %s request: missing required fields %v", e.Task, e.Missing)
	}
	return fmt.Sprintf("invalid %s request: %s", e.Task, e.Reason)
}
