package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type APIConfig struct {
	Addr          string
	DatabaseURL   string
	SaveDir       string
	AutosaveCheck time.Duration
	LogLevel      slog.Level
}

type WorkerConfig struct {
	DatabaseURL string
	TickEvery   time.Duration
	RunOnce     bool
	LogLevel    slog.Level
}

type CLIConfig struct {
	APIBaseURL string
	SaveDir    string
}

// File is the optional YAML config named by CLICKER_CONFIG. Environment
// variables override anything set here.
type File struct {
	Addr          string `yaml:"addr"`
	DatabaseURL   string `yaml:"database_url"`
	SaveDir       string `yaml:"save_dir"`
	AutosaveCheck string `yaml:"autosave_check"`
	WorkerTick    string `yaml:"worker_tick"`
	APIBaseURL    string `yaml:"api_base_url"`
	LogLevel      string `yaml:"log_level"`
}

func LoadFile(path string) (File, error) {
	var f File
	raw, err := os.ReadFile(path)
	if err != nil {
		return f, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return f, fmt.Errorf("parse config %s: %w", path, err)
	}
	return f, nil
}

func loadOptionalFile() (File, error) {
	path := strings.TrimSpace(os.Getenv("CLICKER_CONFIG"))
	if path == "" {
		return File{}, nil
	}
	return LoadFile(path)
}

func LoadAPIFromEnv() (APIConfig, error) {
	f, err := loadOptionalFile()
	if err != nil {
		return APIConfig{}, err
	}
	addr := os.Getenv("PORT")
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = envDefault("CLICKER_API_ADDR", orDefault(f.Addr, ":8080"))
	}

	cfg := APIConfig{
		Addr:          addr,
		DatabaseURL:   envDefault("DATABASE_URL", f.DatabaseURL),
		SaveDir:       envDefault("CLICKER_SAVE_DIR", f.SaveDir),
		AutosaveCheck: envDurationDefault("CLICKER_AUTOSAVE_CHECK", parseDuration(f.AutosaveCheck, 5*time.Second)),
		LogLevel:      parseLevel(envDefault("CLICKER_LOG_LEVEL", f.LogLevel)),
	}
	if cfg.AutosaveCheck <= 0 {
		return cfg, fmt.Errorf("CLICKER_AUTOSAVE_CHECK must be positive")
	}
	return cfg, nil
}

func LoadWorkerFromEnv() (WorkerConfig, error) {
	f, err := loadOptionalFile()
	if err != nil {
		return WorkerConfig{}, err
	}
	cfg := WorkerConfig{
		DatabaseURL: envDefault("DATABASE_URL", f.DatabaseURL),
		TickEvery:   envDurationDefault("CLICKER_WORKER_TICK_EVERY", parseDuration(f.WorkerTick, time.Minute)),
		RunOnce:     envBoolDefault("CLICKER_WORKER_RUN_ONCE", false),
		LogLevel:    parseLevel(envDefault("CLICKER_LOG_LEVEL", f.LogLevel)),
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.TickEvery <= 0 {
		return cfg, fmt.Errorf("CLICKER_WORKER_TICK_EVERY must be positive")
	}
	return cfg, nil
}

func LoadCLIFromEnv() CLIConfig {
	f, err := loadOptionalFile()
	if err != nil {
		f = File{}
	}
	return CLIConfig{
		APIBaseURL: strings.TrimRight(envDefault("CLK_API_BASE_URL", orDefault(f.APIBaseURL, "http://localhost:8080")), "/"),
		SaveDir:    envDefault("CLICKER_SAVE_DIR", f.SaveDir),
	}
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return strings.TrimSpace(v)
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return strings.TrimSpace(fallback)
	}
	return v
}

func parseDuration(v string, fallback time.Duration) time.Duration {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return d
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	return parseDuration(os.Getenv(key), fallback)
}

func envBoolDefault(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func parseLevel(v string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
