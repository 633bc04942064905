// api/schemas/tasks.go
package schemas

// TaskType identifies one generation capability.
type TaskType string

const (
	TaskTextToImage  TaskType = "text_to_image"
	TaskImageToImage TaskType = "image_to_image"
	TaskInpaint      TaskType = "inpaint"
	TaskUpscale      TaskType = "upscale"
	TaskTextToVideo  TaskType = "text_to_video"
	TaskImageToVideo TaskType = "image_to_video"
)

// AllTasks lists every supported task type, in a stable order.
var AllTasks = []TaskType{
	TaskTextToImage,
	TaskImageToImage,
	TaskInpaint,
	TaskUpscale,
	TaskTextToVideo,
	TaskImageToVideo,
}

// Valid reports whether t is one of the known task types.
func (t TaskType) Valid() bool {
	switch t {
	case TaskTextToImage, TaskImageToImage, TaskInpaint, TaskUpscale, TaskTextToVideo, TaskImageToVideo:
		return true
	}
	return false
}

// FieldRole names one logical form control on a provider page. Profiles map
// roles to concrete locators; requests carry values keyed by the same roles.
type FieldRole string

const (
	RolePrompt         FieldRole = "prompt"
	RoleNegativePrompt FieldRole = "negative_prompt"
	RoleSourceImage    FieldRole = "source_image"
	RoleMaskImage      FieldRole = "mask_image"
	RoleStrength       FieldRole = "strength"
	RoleScale          FieldRole = "scale"
	RoleDuration       FieldRole = "duration"
)

// FillOrder is the order in which controls are filled. Image uploads go
// first because some providers only reveal dependent controls (strength,
// mask canvas) after a source image lands.
var FillOrder = []FieldRole{
	RoleSourceImage,
	RoleMaskImage,
	RolePrompt,
	RoleNegativePrompt,
	RoleStrength,
	RoleScale,
	RoleDuration,
}

// requiredFields is the per-task validation contract. A request missing one
// of these fails before any browser work starts.
var requiredFields = map[TaskType][]FieldRole{
	TaskTextToImage:  {RolePrompt},
	TaskImageToImage: {RolePrompt, RoleSourceImage},
	TaskInpaint:      {RolePrompt, RoleSourceImage, RoleMaskImage},
	TaskUpscale:      {RoleSourceImage},
	TaskTextToVideo:  {RolePrompt},
	TaskImageToVideo: {RoleSourceImage},
}

// optionalFields are filled when both the request supplies a value and the
// profile exposes a locator; absent either, they are skipped.
var optionalFields = map[TaskType][]FieldRole{
	TaskTextToImage:  {RoleNegativePrompt},
	TaskImageToImage: {RoleNegativePrompt, RoleStrength},
	TaskInpaint:      {RoleNegativePrompt, RoleStrength},
	TaskUpscale:      {RoleScale},
	TaskTextToVideo:  {RoleNegativePrompt, RoleDuration},
	TaskImageToVideo: {RolePrompt, RoleDuration},
}

// RequiredFields returns the roles a request for t must populate.
func RequiredFields(t TaskType) []FieldRole { return requiredFields[t] }

// OptionalFields returns the roles a request for t may populate.
func OptionalFields(t TaskType) []FieldRole { return optionalFields[t] }
