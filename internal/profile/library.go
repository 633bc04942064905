// File: internal/profile/library.go
// Loading and validation of the selector-profile library. Profiles are
// versioned external configuration shipped separately from the app config;
// the engine never computes or mutates them at runtime.
package profile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/voidwalk/webgen/api/schemas"
)

// Library holds the candidate lists for every configured task type.
type Library struct {
	// Version identifies the profile revision, so drift investigations can
	// tell which selector set a diagnostic screenshot belongs to.
	Version string                                     `yaml:"version"`
	Tasks   map[schemas.TaskType]schemas.CandidateList `yaml:"tasks"`
}

// Load reads and validates a profile library from a YAML file.
func Load(path string) (*Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile library %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a profile library from YAML bytes.
func Parse(data []byte) (*Library, error) {
	var lib Library
	if err := yaml.Unmarshal(data, &lib); err != nil {
		return nil, fmt.Errorf("failed to parse profile library: %w", err)
	}
	if err := lib.Validate(); err != nil {
		return nil, err
	}
	return &lib, nil
}

// Validate checks every candidate list for structural completeness.
func (l *Library) Validate() error {
	if len(l.Tasks) == 0 {
		return fmt.Errorf("profile library declares no tasks")
	}
	for task, candidates := range l.Tasks {
		if !task.Valid() {
			return fmt.Errorf("profile library declares unknown task type %q", task)
		}
		if len(candidates) == 0 {
			return fmt.Errorf("task %s has an empty candidate list", task)
		}
		for i := range candidates {
			if err := candidates[i].Validate(); err != nil {
				return fmt.Errorf("task %s candidate %d: %w", task, i, err)
			}
		}
	}
	return nil
}

// Candidates returns the ordered candidate list for a task type.
func (l *Library) Candidates(task schemas.TaskType) (schemas.CandidateList, error) {
	candidates, ok := l.Tasks[task]
	if !ok || len(candidates) == 0 {
		return nil, fmt.Errorf("no providers configured for task %s", task)
	}
	return candidates, nil
}

// TaskTypes returns the task types the library covers, in the canonical
// task order.
func (l *Library) TaskTypes() []schemas.TaskType {
	var tasks []schemas.TaskType
	for _, t := range schemas.AllTasks {
		if _, ok := l.Tasks[t]; ok {
			tasks = append(tasks, t)
		}
	}
	return tasks
}
