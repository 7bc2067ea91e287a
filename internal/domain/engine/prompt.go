package engine

import "strings"

// coordMax describes the virtual coordinate axis every tool call's
// arguments are expressed on; it is never the screen's real pixel bounds.
const coordMax = "0-1000"

// toolSignatures gives each known tool name its call signature as shown to
// the VLM. A tool outside this map still appears in the allowlist enforced
// by the executor, but the prompt can only advertise a signature it knows.
var toolSignatures = map[string]string{
	"click":        "click(x, y)",
	"right_click":  "right_click(x, y)",
	"double_click": "double_click(x, y)",
	"drag":         "drag(x1, y1, x2, y2)",
	"write":        "write(text)",
	"remember":     "remember(text)",
	"recall":       "recall()",
}

// ExpandSystemPrompt renders template against the live tool allowlist, so
// the VLM is never told about a tool the executor would reject (spec.md §9's
// tool-set-consistency open question). Unknown tool names are listed by name
// alone, without a call signature.
func ExpandSystemPrompt(template string, tools []string) string {
	lines := make([]string, 0, len(tools))
	for _, name := range tools {
		if sig, ok := toolSignatures[name]; ok {
			lines = append(lines, sig)
		} else {
			lines = append(lines, name)
		}
	}

	out := strings.ReplaceAll(template, "{tools}", strings.Join(lines, "\n\n"))
	out = strings.ReplaceAll(out, "{coord_max}", coordMax)
	return out
}
