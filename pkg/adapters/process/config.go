package process

import (
	"fmt"
	"time"
)

// ProcessConfig declares an external command exposed to the model as a tool.
type ProcessConfig struct {
	Name        string            `yaml:"name" json:"name"`
	Description string            `yaml:"description" json:"description"`
	Command     string            `yaml:"command" json:"command"`
	Args        []string          `yaml:"args" json:"args"`
	Environment map[string]string `yaml:"env" json:"env"`

	// Parameters is the JSON Schema advertised to the model.
	Parameters map[string]any `yaml:"parameters" json:"parameters"`

	// Timeout bounds one execution. Zero means the step deadline applies.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// Validate checks the declaration is runnable.
func (c ProcessConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("process tool: name is required")
	}
	if c.Command == "" {
		return fmt.Errorf("process tool '%s': command is required", c.Name)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("process tool '%s': negative timeout", c.Name)
	}
	return nil
}
