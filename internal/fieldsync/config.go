package fieldsync

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration lets the YAML config carry values like "30s" or "2m".
// yaml.v3 would otherwise want raw nanosecond integers.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// AgentConfig configures the field agent. It loads from a YAML file
// (the agent runs on crew laptops, where a config file beats a pile of
// environment variables) with env overrides on top for the few values
// that differ per machine.
type AgentConfig struct {
	BackendAddr string `yaml:"backend_addr"`
	UserID      string `yaml:"user_id"`

	DataDir  string `yaml:"data_dir"`
	SpoolDir string `yaml:"spool_dir"`

	SyncInterval     Duration `yaml:"sync_interval"`
	ProbeInterval    Duration `yaml:"probe_interval"`
	UploadsPerSecond float64  `yaml:"uploads_per_second"`

	PhotoMaxEdge int `yaml:"photo_max_edge"`
	PhotoQuality int `yaml:"photo_quality"`

	Storage AgentStorageConfig `yaml:"storage"`
}

type AgentStorageConfig struct {
	BaseURL string `yaml:"base_url"`
	Bucket  string `yaml:"bucket"`
	Token   string `yaml:"token"`
}

// LoadAgentConfig reads path if it exists, then applies environment
// overrides and defaults. A missing file is not an error; env plus
// defaults can carry a whole setup.
func LoadAgentConfig(path string) (*AgentConfig, error) {
	cfg := &AgentConfig{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.BackendAddr = envOr("RUGFLOW_BACKEND_ADDR", cfg.BackendAddr)
	cfg.UserID = envOr("RUGFLOW_USER_ID", cfg.UserID)
	cfg.DataDir = envOr("RUGFLOW_DATA_DIR", cfg.DataDir)
	cfg.SpoolDir = envOr("RUGFLOW_SPOOL_DIR", cfg.SpoolDir)
	cfg.Storage.BaseURL = envOr("RUGFLOW_STORAGE_BASE_URL", cfg.Storage.BaseURL)
	cfg.Storage.Bucket = envOr("RUGFLOW_STORAGE_BUCKET", cfg.Storage.Bucket)
	cfg.Storage.Token = envOr("RUGFLOW_STORAGE_TOKEN", cfg.Storage.Token)
	cfg.UploadsPerSecond = envOrFloat("RUGFLOW_UPLOADS_PER_SECOND", cfg.UploadsPerSecond)

	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		cfg.DataDir = filepath.Join(home, ".rugflow")
	}
	if cfg.SpoolDir == "" {
		cfg.SpoolDir = filepath.Join(cfg.DataDir, "spool")
	}
	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = Duration(30 * time.Second)
	}
	if cfg.ProbeInterval <= 0 {
		cfg.ProbeInterval = Duration(15 * time.Second)
	}
	if cfg.UploadsPerSecond <= 0 {
		cfg.UploadsPerSecond = 4
	}
	if cfg.PhotoMaxEdge <= 0 {
		cfg.PhotoMaxEdge = DefaultMaxEdge
	}
	if cfg.PhotoQuality <= 0 {
		cfg.PhotoQuality = DefaultJPEGQuality
	}
	if cfg.Storage.Bucket == "" {
		cfg.Storage.Bucket = "rug-photos"
	}

	return cfg, nil
}

// Validate checks the fields the sync daemon cannot run without. The
// CLI's local queue commands work without a reachable backend, so they
// skip this.
func (c *AgentConfig) Validate() error {
	if c.BackendAddr == "" {
		return fmt.Errorf("backend_addr is required")
	}
	if c.Storage.BaseURL == "" {
		return fmt.Errorf("storage.base_url is required")
	}
	return nil
}

// StorePath is where the queue database lives.
func (c *AgentConfig) StorePath() string {
	return filepath.Join(c.DataDir, "queue.db")
}

// EnsureDirs creates the data and spool directories.
func (c *AgentConfig) EnsureDirs() error {
	if err := os.MkdirAll(c.DataDir, 0o755); err != nil {
		return err
	}
	return os.MkdirAll(c.SpoolDir, 0o755)
}

func envOr(key, current string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return current
}

func envOrFloat(key string, current float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return current
}
