package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
)

// Config holds all flowt daemon configuration.
// Priority: env vars > settings.json > defaults.
type Config struct {
	BaseDir        string `json:"base_dir"`
	WorkflowsDir   string `json:"workflows_dir"`
	RunsDir        string `json:"runs_dir"`
	DBPath         string `json:"db_path"`
	LogLevel       string `json:"log_level"`
	PoolSize       int    `json:"pool_size"`
	StepTimeoutSec int    `json:"step_timeout_sec"`
}

func defaultConfig() Config {
	return Config{
		BaseDir:        flowtDir(),
		LogLevel:       "info",
		PoolSize:       10,
		StepTimeoutSec: 300,
	}
}

func flowtDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".flowt"
	}
	return filepath.Join(home, ".flowt")
}

func settingsPath() string {
	return filepath.Join(flowtDir(), "settings.json")
}

func loadConfig() Config {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(settingsPath()); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	// Layer 3: env vars override.
	if v := os.Getenv("FLOWT_BASE_DIR"); v != "" {
		cfg.BaseDir = v
	}
	if v := os.Getenv("FLOWT_WORKFLOWS_DIR"); v != "" {
		cfg.WorkflowsDir = v
	}
	if v := os.Getenv("FLOWT_RUNS_DIR"); v != "" {
		cfg.RunsDir = v
	}
	if v := os.Getenv("FLOWT_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("FLOWT_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("FLOWT_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PoolSize = n
		}
	}
	if v := os.Getenv("FLOWT_STEP_TIMEOUT_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.StepTimeoutSec = n
		}
	}

	// Derive the per-concern paths from base_dir when unset.
	if cfg.WorkflowsDir == "" {
		cfg.WorkflowsDir = filepath.Join(cfg.BaseDir, "workflows")
	}
	if cfg.RunsDir == "" {
		cfg.RunsDir = filepath.Join(cfg.BaseDir, "runs")
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.BaseDir, "flowt.db")
	}

	return cfg
}
