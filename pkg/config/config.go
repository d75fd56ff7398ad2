package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/brightwire/knxlogic/pkg/ioworker"
	"github.com/brightwire/knxlogic/pkg/remanent"
	"github.com/brightwire/knxlogic/pkg/scheduler"
)

// Config is the daemon's top-level configuration file.
type Config struct {
	// DataDir holds the SQLite address store and the bbolt config store.
	DataDir string `yaml:"dataDir"`

	// CustomBlocksDir is scanned for compiled plugin block types at startup
	// and on reload-custom-blocks.
	CustomBlocksDir string `yaml:"customBlocksDir"`

	// CheckpointInterval overrides remanent.DefaultInterval.
	CheckpointInterval time.Duration `yaml:"checkpointInterval"`

	// SoftExecuteTimeout overrides scheduler.DefaultSoftTimeout.
	SoftExecuteTimeout time.Duration `yaml:"softExecuteTimeout"`

	// KNX holds the outbound driver connection settings.
	KNX KNXConfig `yaml:"knx"`

	// IOWorkers sizes the I/O worker pool.
	IOWorkers   int `yaml:"ioWorkers"`
	IOQueueSize int `yaml:"ioQueueSize"`

	// HTTPAddr is the listen address for the operational surface.
	HTTPAddr string `yaml:"httpAddr"`
}

// KNXConfig describes how to reach the real KNX/IP bus. "simulate" runs an
// in-memory knxdriver.Simulator; any other Driver value, blank included,
// wires no outbound driver, so external sends fail with io-failure.
type KNXConfig struct {
	Driver     string `yaml:"driver"` // only "simulate" is recognised
	Gateway    string `yaml:"gateway"`
	LocalAddr  string `yaml:"localAddr"`
	PhysicalID string `yaml:"physicalId"`
}

const (
	DefaultHTTPAddr = ":8081"
)

// Load reads and parses path, applying defaults for anything left zero.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		c.DataDir = "./data"
	}
	if c.CheckpointInterval <= 0 {
		c.CheckpointInterval = remanent.DefaultInterval
	}
	if c.SoftExecuteTimeout <= 0 {
		c.SoftExecuteTimeout = scheduler.DefaultSoftTimeout
	}
	if c.IOWorkers <= 0 {
		c.IOWorkers = ioworker.DefaultWorkers
	}
	if c.IOQueueSize <= 0 {
		c.IOQueueSize = ioworker.DefaultQueueSize
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = DefaultHTTPAddr
	}
}
