package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hatsuki-dev/vispanel/internal/domain/model"
)

// parseVLMCalls extracts well-formed tool calls from raw VLM output text,
// keeping only lines that parse as `name(args)` with name in allowed.
func parseVLMCalls(text string, allowed []string) []model.ToolCall {
	allowedSet := make(map[string]bool, len(allowed))
	for _, t := range allowed {
		allowedSet[t] = true
	}

	var calls []model.ToolCall
	for _, line := range strings.Split(text, "\n") {
		call, ok := parseCallLine(strings.TrimSpace(line))
		if !ok || !allowedSet[call.Name] {
			continue
		}
		calls = append(calls, call)
	}
	return calls
}

// parseCallLine parses a single "name(arg, arg, ...)" line into a ToolCall.
func parseCallLine(s string) (model.ToolCall, bool) {
	if !strings.Contains(s, "(") || !strings.HasSuffix(s, ")") {
		return model.ToolCall{}, false
	}
	idx := strings.Index(s, "(")
	name := strings.TrimSpace(s[:idx])
	if name == "" {
		return model.ToolCall{}, false
	}
	return model.ToolCall{Name: name, Args: parseArgs(s[idx+1 : len(s)-1])}, true
}

// parseArgs splits a comma-separated argument list, stripping a single
// layer of matching quotes from quoted string arguments. Numeric and bare
// arguments pass through as their literal text (ToolCall.Args is textual).
func parseArgs(argStr string) []string {
	argStr = strings.TrimSpace(argStr)
	if argStr == "" {
		return nil
	}
	parts := strings.Split(argStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if len(p) >= 2 && isQuotePair(p[0], p[len(p)-1]) {
			p = p[1 : len(p)-1]
		}
		out = append(out, p)
	}
	return out
}

func isQuotePair(open, close byte) bool {
	return (open == '"' && close == '"') || (open == '\'' && close == '\'')
}

// padCalls tops calls up to exactly minWellFormedCalls entries using the
// policy-defined underflow fallback, truncating any surplus from the
// padding itself (never truncating calls the VLM actually produced).
func padCalls(calls []model.ToolCall, fallback []model.ToolCall) []model.ToolCall {
	padded := append(append([]model.ToolCall{}, calls...), fallback...)
	if len(padded) < minWellFormedCalls {
		return padded
	}
	return padded[:minWellFormedCalls]
}

// renderCall reconstructs the "name(args)" text form of a ToolCall so it
// can be woven back into the next turn's story text.
func renderCall(tc model.ToolCall) string {
	parts := make([]string, len(tc.Args))
	for i, a := range tc.Args {
		if _, err := strconv.Atoi(a); err == nil {
			parts[i] = a
			continue
		}
		parts[i] = fmt.Sprintf("%q", a)
	}
	return fmt.Sprintf("%s(%s)", tc.Name, strings.Join(parts, ", "))
}

// composeStory builds the next turn's story_in from the tool calls parsed
// out of this turn's vlm_text.
func composeStory(calls []model.ToolCall) string {
	lines := make([]string, len(calls))
	for i, c := range calls {
		lines[i] = renderCall(c)
	}
	return "I see the screen with previous actions marked.\n\n" + strings.Join(lines, "\n") + "\n"
}
