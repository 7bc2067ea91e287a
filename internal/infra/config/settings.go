package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hatsuki-dev/vispanel/internal/app/config"
)

// RawSettings represents the structure of setting.json. Pointer fields
// distinguish "unset" from a zero value so defaults can be layered on top
// of a partial file.
type RawSettings struct {
	ListenAddr *string `json:"listen_addr"`

	ExecutorBin *string `json:"executor_bin"`
	VLMBin      *string `json:"vlm_bin"`

	ExecuteTimeoutSec    *int `json:"execute_timeout_sec"`
	AnnotationTimeoutSec *int `json:"annotation_timeout_sec"`
	VLMTimeoutSec        *int `json:"vlm_timeout_sec"`

	RunBase         *string `json:"run_base"`
	AutoOpenBrowser *bool   `json:"auto_open_browser"`

	ArchiveS3Bucket *string `json:"archive_s3_bucket"`
	ArchiveS3Prefix *string `json:"archive_s3_prefix"`

	RunIndexDB *string `json:"run_index_db"`

	StderrLevel *string `json:"stderr_level"`
}

// LoadSettings loads configuration from setting.json under baseDir.
// Priority: setting.json > defaults.
func LoadSettings(baseDir string) (*config.AppConfig, error) {
	settings := &RawSettings{}
	configSource := "default"
	settingPath := ""

	jsonPath := filepath.Join(baseDir, "setting.json")
	if data, err := os.ReadFile(jsonPath); err == nil {
		if err := json.Unmarshal(data, settings); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", jsonPath, err)
		}
		configSource = "json"
		settingPath = jsonPath
	}

	applyDefaults(settings)

	return buildAppConfig(settings, configSource, settingPath), nil
}

// applyDefaults fills in default values for any nil fields.
func applyDefaults(settings *RawSettings) {
	strDefault := func(p **string, v string) {
		if *p == nil {
			*p = &v
		}
	}
	intDefault := func(p **int, v int) {
		if *p == nil {
			*p = &v
		}
	}
	boolDefault := func(p **bool, v bool) {
		if *p == nil {
			*p = &v
		}
	}

	strDefault(&settings.ListenAddr, "127.0.0.1:1234")
	strDefault(&settings.ExecutorBin, "executor")
	strDefault(&settings.VLMBin, "vlm_client")
	intDefault(&settings.ExecuteTimeoutSec, 20)
	intDefault(&settings.AnnotationTimeoutSec, 30)
	intDefault(&settings.VLMTimeoutSec, 90)
	strDefault(&settings.RunBase, "panel_log")
	boolDefault(&settings.AutoOpenBrowser, true)
	strDefault(&settings.ArchiveS3Bucket, "")
	strDefault(&settings.ArchiveS3Prefix, "")
	strDefault(&settings.RunIndexDB, filepath.Join(*settings.RunBase, "runs.db"))
	strDefault(&settings.StderrLevel, "info")
}

// buildAppConfig converts RawSettings to AppConfig.
func buildAppConfig(settings *RawSettings, configSource, settingPath string) *config.AppConfig {
	return config.NewAppConfig(
		*settings.ListenAddr,
		*settings.ExecutorBin,
		*settings.VLMBin,
		*settings.ExecuteTimeoutSec,
		*settings.AnnotationTimeoutSec,
		*settings.VLMTimeoutSec,
		*settings.RunBase,
		*settings.AutoOpenBrowser,
		*settings.ArchiveS3Bucket,
		*settings.ArchiveS3Prefix,
		*settings.RunIndexDB,
		*settings.StderrLevel,
		configSource,
		settingPath,
	)
}

// CreateDefaultSettings creates the default setting.json content.
func CreateDefaultSettings() []byte {
	settings := &RawSettings{}
	applyDefaults(settings)

	data, _ := json.MarshalIndent(settings, "", "  ")
	return data
}
