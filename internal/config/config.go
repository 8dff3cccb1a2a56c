// Package config loads entityserver settings from YAML. Absent keys keep
// their defaults, so a config file only states what it changes.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/RyanDowne/hifi/internal/protocol"
)

type Config struct {
	Listen   string `yaml:"listen"`
	DataDir  string `yaml:"data_dir"`
	DomainID string `yaml:"domain_id"`

	TickRateHz        uint64 `yaml:"tick_rate_hz"`
	PacketBudget      int    `yaml:"packet_budget"`
	ArchiveEveryTicks uint64 `yaml:"archive_every_ticks"`

	// SendPhysicsUpdates streams integrator motion to clients each tick;
	// off, clients only hear explicit edits.
	SendPhysicsUpdates bool `yaml:"send_physics_updates"`

	Journal JournalConfig `yaml:"journal"`
	EditLog EditLogConfig `yaml:"edit_log"`
}

type JournalConfig struct {
	Enabled bool `yaml:"enabled"`
}

type EditLogConfig struct {
	Enabled bool `yaml:"enabled"`
}

func Defaults() Config {
	return Config{
		Listen:             ":8447",
		DataDir:            "data",
		DomainID:           "local",
		TickRateHz:         30,
		PacketBudget:       1200,
		ArchiveEveryTicks:  30 * 60, // once a minute at the default rate
		SendPhysicsUpdates: true,
		Journal:            JournalConfig{Enabled: true},
		EditLog:            EditLogConfig{Enabled: true},
	}
}

// Load reads path over the defaults. A missing file is an error; callers that
// treat the file as optional check os.IsNotExist.
func Load(path string) (Config, error) {
	c := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return c, fmt.Errorf("%s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func (c Config) Validate() error {
	if c.TickRateHz == 0 {
		return fmt.Errorf("tick_rate_hz must be positive")
	}
	if c.PacketBudget < protocol.HeaderSize+1 {
		return fmt.Errorf("packet_budget %d below the wire minimum %d", c.PacketBudget, protocol.HeaderSize+1)
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must be set")
	}
	return nil
}
