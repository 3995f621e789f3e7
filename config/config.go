package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// TomlSync holds the feed processing policies
type TomlSync struct {
	Timezone    string `toml:"timezone"`
	Concurrency int    `toml:"concurrency"`
}

// TomlNotify holds the webhook delivery policies
type TomlNotify struct {
	ChunkSize      int `toml:"chunk_size"`
	ChunkDelaySecs int `toml:"chunk_delay_seconds"`
	RetryMax       int `toml:"retry_max"`
	RetryDelaySecs int `toml:"retry_delay_seconds"`
	TimeoutSecs    int `toml:"timeout_seconds"`
}

// TomlImage holds the illustration transcoding policies
type TomlImage struct {
	Width        int    `toml:"width"`
	Folder       string `toml:"folder"`
	CacheControl string `toml:"cache_control"`
}

// TomlConfig represents the top-level configuration
type TomlConfig struct {
	Sync   TomlSync   `toml:"sync"`
	Notify TomlNotify `toml:"notify"`
	Image  TomlImage  `toml:"image"`
}

// DefaultConfig returns the built-in policies used when no config file
// is given. These mirror the downstream rate limits we have to respect.
func DefaultConfig() *TomlConfig {
	return &TomlConfig{
		Sync: TomlSync{
			Timezone:    "Asia/Tokyo",
			Concurrency: 5,
		},
		Notify: TomlNotify{
			ChunkSize:      15,
			ChunkDelaySecs: 1,
			RetryMax:       2,
			RetryDelaySecs: 1,
			TimeoutSecs:    30,
		},
		Image: TomlImage{
			Width:        400,
			Folder:       "thumbs",
			CacheControl: "31536000",
		},
	}
}

func LoadConfig(path string) (*TomlConfig, error) {
	config := DefaultConfig()
	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return config, nil
}
