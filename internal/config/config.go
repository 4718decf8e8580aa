// Package config loads runtime configuration from a config file and
// AUTONAJEM_-prefixed environment variables.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Remote struct {
		BaseURL string        `mapstructure:"base_url"`
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"remote"`

	Web struct {
		ListenAddr string `mapstructure:"listen_addr"`
	} `mapstructure:"web"`

	State struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"state"`

	Catalog struct {
		RowsPerPage int           `mapstructure:"rows_per_page"`
		Debounce    time.Duration `mapstructure:"debounce"`
	} `mapstructure:"catalog"`

	Upload struct {
		MaxBytes int `mapstructure:"max_bytes"`
	} `mapstructure:"upload"`

	Log struct {
		Level string `mapstructure:"level"`
		File  string `mapstructure:"file"`
	} `mapstructure:"log"`
}

// Load reads the configuration. A missing config file is fine; environment
// variables and defaults cover everything.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("remote.base_url", "http://localhost:3000")
	v.SetDefault("remote.timeout", "30s")
	v.SetDefault("web.listen_addr", ":8080")
	v.SetDefault("state.path", "autonajem.db")
	v.SetDefault("catalog.rows_per_page", 9)
	v.SetDefault("catalog.debounce", "350ms")
	v.SetDefault("upload.max_bytes", 5<<20)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")

	v.SetEnvPrefix("AUTONAJEM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/autonajem/")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
