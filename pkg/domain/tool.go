package domain

// Tool describes a tool exposed to the model.
// Parameters is a JSON Schema object.
type Tool struct {
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description" yaml:"description"`
	Parameters  map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}
