// Package embed carries the static assets baked into the vispanel binary:
// the operator panel page served at GET / and the VLM system-prompt
// template consulted by the config loader.
package embed

import (
	"embed"
	"fmt"
)

//go:embed templates/panel.html templates/system_prompt.yaml
var templatesFS embed.FS

// PanelHTML returns the operator panel page served at GET /.
func PanelHTML() ([]byte, error) {
	data, err := templatesFS.ReadFile("templates/panel.html")
	if err != nil {
		return nil, fmt.Errorf("read panel.html: %w", err)
	}
	return data, nil
}

// SystemPromptYAML returns the raw system_prompt.yaml template, before
// placeholder expansion. Callers parse it with yaml.v3 and expand
// {tools}/{coord_max} against the live ToolPolicy allowlist.
func SystemPromptYAML() ([]byte, error) {
	data, err := templatesFS.ReadFile("templates/system_prompt.yaml")
	if err != nil {
		return nil, fmt.Errorf("read system_prompt.yaml: %w", err)
	}
	return data, nil
}
