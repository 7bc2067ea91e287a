package config

import (
	"fmt"

	"gopkg.in/yaml.v3"

	embedded "github.com/hatsuki-dev/vispanel/internal/embed"
)

// systemPromptTemplate mirrors the single top-level key of
// templates/system_prompt.yaml.
type systemPromptTemplate struct {
	SystemPrompt string `yaml:"system_prompt"`
}

// LoadSystemPromptTemplate parses the embedded system_prompt.yaml asset.
// The returned template still carries its {tools}/{coord_max} placeholders;
// engine.ExpandSystemPrompt resolves them against the live allowlist.
func LoadSystemPromptTemplate() (string, error) {
	data, err := embedded.SystemPromptYAML()
	if err != nil {
		return "", err
	}

	var tmpl systemPromptTemplate
	if err := yaml.Unmarshal(data, &tmpl); err != nil {
		return "", fmt.Errorf("parse system_prompt.yaml: %w", err)
	}
	if tmpl.SystemPrompt == "" {
		return "", fmt.Errorf("system_prompt.yaml: system_prompt key is empty")
	}
	return tmpl.SystemPrompt, nil
}
