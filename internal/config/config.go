// Package config loads the minimal JSON configuration document the job
// controller consumes. It deliberately does not support includes,
// templating or environment overlays: richer configuration grammar is an
// external collaborator's concern, not this package's.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// SourceConfig describes one configured source tree.
type SourceConfig struct {
	Name         string   `json:"name"`
	Dir          string   `json:"dir"`
	ExcludePaths []string `json:"exclude_paths"`
}

// Config is the normalized, in-memory configuration consumed by the job
// controller.
type Config struct {
	Sources                 []SourceConfig `json:"sources"`
	BackupRootDir           string         `json:"backup_root_dir"`
	Mode                    string         `json:"mode"`
	Versioned               bool           `json:"versioned"`
	VersionName             string         `json:"version_name"`
	CompareWithLastBackup   bool           `json:"compare_with_last_backup"`
	CopyEmptyDirs           bool           `json:"copy_empty_dirs"`
	CompareMethod           []string       `json:"compare_method"`
	MaxScanningErrors       int            `json:"max_scanning_errors"`
	MaxBackupErrors         int            `json:"max_backup_errors"`
	TargetDriveFullAction   string         `json:"target_drive_full_action"`
	SourceUnavailableAction string         `json:"source_unavailable_action"`
	SaveActionFile          bool           `json:"save_actionfile"`
	SaveActionHTML          bool           `json:"save_actionhtml"`
	ApplyActions            bool           `json:"apply_actions"`
	OpenActionFile          bool           `json:"open_actionfile"`
	OpenActionHTML          bool           `json:"open_actionhtml"`
}

// Load reads and normalizes the JSON document at path into a Config.
// Schema richness (includes, defaults cascades, cross-field validation
// messages) is explicitly out of scope; this does only the minimum
// type/enum checking needed to hand the job controller a usable value.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := normalize(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func normalize(cfg *Config) error {
	if len(cfg.Sources) == 0 {
		return fmt.Errorf("at least one source is required")
	}
	switch cfg.Mode {
	case "hardlink":
		cfg.Versioned = true
	case "mirror", "save":
		// versioned is whatever the document said.
	default:
		return fmt.Errorf("unknown mode %q", cfg.Mode)
	}
	if cfg.Versioned {
		cfg.CompareWithLastBackup = true
	}
	if cfg.VersionName == "" {
		cfg.VersionName = "%Y-%m-%d_%H-%M-%S"
	}
	if len(cfg.CompareMethod) == 0 {
		cfg.CompareMethod = []string{"moddate", "size"}
	}
	if cfg.MaxScanningErrors == 0 {
		cfg.MaxScanningErrors = -1
	}
	if cfg.MaxBackupErrors == 0 {
		cfg.MaxBackupErrors = -1
	}
	for _, action := range []string{cfg.TargetDriveFullAction, cfg.SourceUnavailableAction} {
		switch action {
		case "", "prompt", "abort", "proceed":
		default:
			return fmt.Errorf("unknown action %q", action)
		}
	}
	if cfg.TargetDriveFullAction == "" {
		cfg.TargetDriveFullAction = "abort"
	}
	if cfg.SourceUnavailableAction == "" {
		cfg.SourceUnavailableAction = "abort"
	}
	for i, s := range cfg.Sources {
		if s.Name == "" {
			return fmt.Errorf("source %d: name is required", i)
		}
		if s.Dir == "" {
			return fmt.Errorf("source %q: dir is required", s.Name)
		}
	}
	return nil
}
