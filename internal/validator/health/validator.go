package health

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/hatsuki-dev/vispanel/internal/validator/common"
)

// ValidateHealthFile validates a health.json snapshot file.
func ValidateHealthFile(filePath string) (*common.ValidationResult, error) {
	result := common.NewValidationResult()

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			fileResult := common.FileResult{
				File: filePath,
				Issues: []common.ValidationIssue{
					{
						Type:    "warn",
						Message: "file not found",
					},
				},
			}
			result.AddFileResult(fileResult)
			return result, nil
		}
		return nil, fmt.Errorf("error reading file: %w", err)
	}

	var healthData map[string]interface{}
	if err := json.Unmarshal(data, &healthData); err != nil {
		fileResult := common.FileResult{
			File: filePath,
			Issues: []common.ValidationIssue{
				{
					Type:    "error",
					Message: fmt.Sprintf("invalid JSON: %v", err),
				},
			},
		}
		result.AddFileResult(fileResult)
		return result, nil
	}

	issues := validateHealthSchema(healthData)
	fileResult := common.FileResult{
		File:   filePath,
		Issues: issues,
	}
	result.AddFileResult(fileResult)

	return result, nil
}

// validateHealthSchema validates the health.json schema: ok, paused, run_dir, ts, last_seq, total_tokens.
func validateHealthSchema(data map[string]interface{}) []common.ValidationIssue {
	var issues []common.ValidationIssue

	requiredKeys := []string{"ok", "paused", "run_dir", "ts", "last_seq", "total_tokens"}
	common.ValidateRequiredKeys(data, requiredKeys, nil, &issues)

	if ts, exists := data["ts"]; exists {
		if tsString, ok := ts.(string); ok {
			common.ValidateRFC3339NanoUTC(tsString, "ts", &issues)
		} else {
			issues = append(issues, common.ValidationIssue{
				Type:    "error",
				Field:   "ts",
				Message: "must be a string",
			})
		}
	}

	if lastSeq, exists := data["last_seq"]; exists {
		minValue := 0
		common.ValidateIntValue(lastSeq, "last_seq", nil, &minValue, &issues)
	}

	if totalTokens, exists := data["total_tokens"]; exists {
		minValue := 0
		common.ValidateIntValue(totalTokens, "total_tokens", nil, &minValue, &issues)
	}

	if ok, exists := data["ok"]; exists {
		common.ValidateBoolValue(ok, "ok", &issues)
	}

	if paused, exists := data["paused"]; exists {
		common.ValidateBoolValue(paused, "paused", &issues)
	}

	if runDir, exists := data["run_dir"]; exists {
		common.ValidateStringValue(runDir, "run_dir", &issues)
	}

	validateOkRunDirConsistency(data, &issues)

	return issues
}

// validateOkRunDirConsistency flags a healthy snapshot with no active run directory.
func validateOkRunDirConsistency(data map[string]interface{}, issues *[]common.ValidationIssue) {
	okVal, hasOk := data["ok"]
	runDirVal, hasRunDir := data["run_dir"]
	if !hasOk || !hasRunDir {
		return
	}

	ok, okIsBool := okVal.(bool)
	runDir, runDirIsString := runDirVal.(string)
	if !okIsBool || !runDirIsString {
		return
	}

	if ok && runDir == "" {
		*issues = append(*issues, common.ValidationIssue{
			Type:    "warn",
			Field:   "run_dir",
			Message: "ok=true but run_dir is empty",
		})
	}
}
