package health

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidateHealthFile(t *testing.T) {
	tests := []struct {
		name           string
		content        string
		expectedErrors int
		expectedWarns  int
		expectedOK     int
		checkMessages  []string
	}{
		{
			name: "valid health.json",
			content: `{
				"ok": true,
				"paused": false,
				"run_dir": "panel_log/run_20260101_000000",
				"ts": "2026-01-01T00:00:00.123456789Z",
				"last_seq": 3,
				"total_tokens": 512
			}`,
			expectedErrors: 0,
			expectedWarns:  0,
			expectedOK:     1,
		},
		{
			name: "missing required key",
			content: `{
				"ok": true,
				"paused": false,
				"ts": "2026-01-01T00:00:00.123456789Z",
				"last_seq": 3,
				"total_tokens": 512
			}`,
			expectedErrors: 1,
			expectedWarns:  0,
			expectedOK:     0,
			checkMessages:  []string{"missing required key: run_dir"},
		},
		{
			name: "invalid timestamp format",
			content: `{
				"ok": true,
				"paused": false,
				"run_dir": "panel_log/run_1",
				"ts": "2026-01-01T00:00:00.123456789+09:00",
				"last_seq": 0,
				"total_tokens": 0
			}`,
			expectedErrors: 1,
			expectedWarns:  0,
			expectedOK:     0,
			checkMessages:  []string{"not RFC3339Nano UTC Z"},
		},
		{
			name: "negative last_seq",
			content: `{
				"ok": true,
				"paused": false,
				"run_dir": "panel_log/run_1",
				"ts": "2026-01-01T00:00:00.123456789Z",
				"last_seq": -1,
				"total_tokens": 0
			}`,
			expectedErrors: 1,
			expectedWarns:  0,
			expectedOK:     0,
			checkMessages:  []string{"must be >= 0"},
		},
		{
			name: "invalid ok type",
			content: `{
				"ok": "yes",
				"paused": false,
				"run_dir": "panel_log/run_1",
				"ts": "2026-01-01T00:00:00.123456789Z",
				"last_seq": 0,
				"total_tokens": 0
			}`,
			expectedErrors: 1,
			expectedWarns:  0,
			expectedOK:     0,
			checkMessages:  []string{"must be a boolean"},
		},
		{
			name: "invalid run_dir type",
			content: `{
				"ok": true,
				"paused": false,
				"run_dir": 123,
				"ts": "2026-01-01T00:00:00.123456789Z",
				"last_seq": 0,
				"total_tokens": 0
			}`,
			expectedErrors: 1,
			expectedWarns:  0,
			expectedOK:     0,
			checkMessages:  []string{"must be a string"},
		},
		{
			name: "ok true with empty run_dir warns",
			content: `{
				"ok": true,
				"paused": false,
				"run_dir": "",
				"ts": "2026-01-01T00:00:00.123456789Z",
				"last_seq": 0,
				"total_tokens": 0
			}`,
			expectedErrors: 0,
			expectedWarns:  1,
			expectedOK:     0,
			checkMessages:  []string{"ok=true but run_dir is empty"},
		},
		{
			name: "multiple errors",
			content: `{
				"ok": "maybe",
				"paused": false,
				"run_dir": 5,
				"ts": "invalid",
				"last_seq": -1,
				"total_tokens": -1
			}`,
			expectedErrors: 1,
			expectedWarns:  0,
			expectedOK:     0,
			checkMessages: []string{
				"invalid RFC3339Nano format",
				"must be >= 0",
				"must be a boolean",
				"must be a string",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			tmpFile := filepath.Join(tmpDir, "health.json")
			if err := os.WriteFile(tmpFile, []byte(tt.content), 0644); err != nil {
				t.Fatalf("failed to create temp file: %v", err)
			}

			result, err := ValidateHealthFile(tmpFile)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if result.Summary.Error != tt.expectedErrors {
				t.Errorf("expected %d errors, got %d", tt.expectedErrors, result.Summary.Error)
			}
			if result.Summary.Warn != tt.expectedWarns {
				t.Errorf("expected %d warnings, got %d", tt.expectedWarns, result.Summary.Warn)
			}
			if result.Summary.OK != tt.expectedOK {
				t.Errorf("expected %d OK, got %d", tt.expectedOK, result.Summary.OK)
			}

			var allMessages []string
			for _, file := range result.Files {
				for _, issue := range file.Issues {
					allMessages = append(allMessages, issue.Message)
				}
			}

			for _, expectedMsg := range tt.checkMessages {
				found := false
				for _, msg := range allMessages {
					if strings.Contains(msg, expectedMsg) {
						found = true
						break
					}
				}
				if !found {
					t.Errorf("expected message containing '%s' not found in: %v", expectedMsg, allMessages)
				}
			}
		})
	}
}

func TestValidateHealthFile_NotFound(t *testing.T) {
	result, err := ValidateHealthFile(filepath.Join(t.TempDir(), "missing", "health.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Summary.Files != 1 {
		t.Errorf("expected 1 file, got %d", result.Summary.Files)
	}
	if result.Summary.Warn != 1 {
		t.Errorf("expected 1 warning for missing file, got %d", result.Summary.Warn)
	}
	if result.Summary.Error != 0 {
		t.Errorf("expected 0 errors for missing file, got %d", result.Summary.Error)
	}
	if len(result.Files) != 1 || result.Files[0].Issues[0].Message != "file not found" {
		t.Errorf("expected 'file not found' warning")
	}
}
