package engine

import (
	"strings"
	"testing"
)

func TestExpandSystemPrompt(t *testing.T) {
	tests := []struct {
		name  string
		tools []string
		want  []string
	}{
		{
			name:  "known tools get call signatures",
			tools: []string{"click", "drag"},
			want:  []string{"click(x, y)", "drag(x1, y1, x2, y2)"},
		},
		{
			name:  "full default allowlist",
			tools: []string{"click", "right_click", "double_click", "drag", "write", "remember", "recall"},
			want: []string{
				"click(x, y)", "right_click(x, y)", "double_click(x, y)",
				"drag(x1, y1, x2, y2)", "write(text)", "remember(text)", "recall()",
			},
		},
		{
			name:  "unknown tool listed by name",
			tools: []string{"scroll"},
			want:  []string{"scroll"},
		},
		{
			name:  "empty allowlist yields empty tool block",
			tools: nil,
			want:  nil,
		},
	}

	template := "Functions:\n\n{tools}\n\nCoordinates {coord_max}."

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExpandSystemPrompt(template, tt.tools)
			if !strings.Contains(got, "Coordinates 0-1000.") {
				t.Errorf("ExpandSystemPrompt() = %q, want coord_max expanded to 0-1000", got)
			}
			if strings.Contains(got, "{tools}") || strings.Contains(got, "{coord_max}") {
				t.Errorf("ExpandSystemPrompt() = %q, want no remaining placeholders", got)
			}
			for _, sig := range tt.want {
				if !strings.Contains(got, sig) {
					t.Errorf("ExpandSystemPrompt() = %q, want it to contain %q", got, sig)
				}
			}
		})
	}
}
