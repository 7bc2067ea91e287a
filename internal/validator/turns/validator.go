// Package turns offline-validates a run's turns.jsonl journal, the same
// schema turnstore.TurnStore.Append writes turn by turn (spec.md §5).
package turns

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/hatsuki-dev/vispanel/internal/validator/common"
)

// ValidateTurnsFile validates every line of a turns.jsonl journal.
func ValidateTurnsFile(filePath string) (*common.ValidationResult, error) {
	result := common.NewValidationResult()

	f, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			result.AddFileResult(common.FileResult{
				File: filePath,
				Issues: []common.ValidationIssue{
					{Type: "warn", Message: "file not found"},
				},
			})
			return result, nil
		}
		return nil, fmt.Errorf("error reading file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	lineNum := 0
	lastSeq := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var turn map[string]interface{}
		if err := json.Unmarshal(line, &turn); err != nil {
			result.AddFileResult(common.FileResult{
				File: fmt.Sprintf("%s:%d", filePath, lineNum),
				Issues: []common.ValidationIssue{
					{Type: "error", Message: fmt.Sprintf("invalid JSON: %v", err)},
				},
			})
			continue
		}

		issues := validateTurnSchema(turn, &lastSeq)
		result.AddFileResult(common.FileResult{
			File:   fmt.Sprintf("%s:%d", filePath, lineNum),
			Issues: issues,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error scanning file: %w", err)
	}

	return result, nil
}

func validateTurnSchema(data map[string]interface{}, lastSeq *int) []common.ValidationIssue {
	var issues []common.ValidationIssue

	common.ValidateRequiredKeys(data, []string{"seq", "story_in", "ts_start", "ts_end"}, nil, &issues)

	if seqVal, exists := data["seq"]; exists {
		minValue := 1
		common.ValidateIntValue(seqVal, "seq", nil, &minValue, &issues)
		if seqFloat, ok := seqVal.(float64); ok {
			seq := int(seqFloat)
			if seq <= *lastSeq {
				issues = append(issues, common.ValidationIssue{
					Type:    "error",
					Field:   "seq",
					Message: fmt.Sprintf("seq %d does not strictly increase over previous seq %d", seq, *lastSeq),
				})
			}
			*lastSeq = seq
		}
	}

	if tsStart, exists := data["ts_start"]; exists {
		if s, ok := tsStart.(string); ok {
			common.ValidateRFC3339NanoUTC(s, "ts_start", &issues)
		} else {
			issues = append(issues, common.ValidationIssue{Type: "error", Field: "ts_start", Message: "must be a string"})
		}
	}

	if errs, exists := data["errors"]; exists {
		if _, ok := errs.([]interface{}); !ok {
			issues = append(issues, common.ValidationIssue{Type: "error", Field: "errors", Message: "must be an array"})
		}
	}

	return issues
}
