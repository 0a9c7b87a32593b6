package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RoomConfig is one watched room entry: which platform/room to resolve,
// at what quality/line, with what cookie, and whether to also subscribe
// to its danmaku.
type RoomConfig struct {
	Platform string `yaml:"platform" json:"platform"`
	RoomID   string `yaml:"room_id" json:"room_id"`
	Quality  string `yaml:"quality" json:"quality"`
	Line     string `yaml:"line" json:"line"`
	Cookie   string `yaml:"cookie" json:"cookie"`
	Danmaku  bool   `yaml:"danmaku" json:"danmaku"`
}

// Config is the top-level hot-reloadable document.
type Config struct {
	Rooms         []RoomConfig `yaml:"rooms" json:"rooms"`
	ProxyPort     int          `yaml:"proxy_port" json:"proxy_port"`
	ImagePort     int          `yaml:"image_port" json:"image_port"`
	Debug         bool         `yaml:"debug" json:"debug"`
	DouyinSignTTL int          `yaml:"douyin_sign_ttl_seconds" json:"douyin_sign_ttl_seconds"`
}

const (
	defaultProxyPort     = 34719
	defaultImagePort     = 34721
	defaultDouyinSignTTL = 30
)

// Load reads and validates a YAML config file, filling in the fixed
// default ports (spec §9: kept as spec'd, idempotent bind-or-reuse) and
// DouyinSignTTL (30) when unset. No code in this module reads
// DouyinSignTTL; a_bogus is computed on every Douyin request.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &Config{
		ProxyPort:     defaultProxyPort,
		ImagePort:     defaultImagePort,
		DouyinSignTTL: defaultDouyinSignTTL,
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	for i := range cfg.Rooms {
		r := &cfg.Rooms[i]
		if r.Quality == "" {
			r.Quality = "原画"
		}
	}

	return cfg, nil
}

// Save writes cfg back to path, used by tooling that edits rooms at
// runtime and wants the change to survive a restart.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// FindRoom returns the first room config matching (platform, room id), or
// nil if unwatched.
func (c *Config) FindRoom(platform, roomID string) *RoomConfig {
	for i := range c.Rooms {
		if c.Rooms[i].Platform == platform && c.Rooms[i].RoomID == roomID {
			return &c.Rooms[i]
		}
	}
	return nil
}
