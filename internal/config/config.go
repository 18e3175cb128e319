// Package config loads urconf configuration and builds the logger.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from the given file, or discovers urconf.yaml in
// the usual locations when configPath is empty. Environment variables with
// the URCONF_ prefix override file values (URCONF_API_KEY, etc).
func Load(configPath string) (*viper.Viper, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("api.base_url", "https://api.uptimerobot.com/v2")
	v.SetDefault("api.timeout", "30s")
	v.SetDefault("api.min_request_interval", "0s")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("defaults.interval", "5m")
	v.SetDefault("dry_run", false)
	v.SetDefault("journal.path", "")
	v.SetDefault("daemon.enabled", false)
	v.SetDefault("daemon.sync_interval", "15m")
	v.SetDefault("daemon.listen", ":9130")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("urconf")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/urconf")
		v.AddConfigPath("/etc/urconf")
	}

	// Environment variable support: URCONF_API_KEY=...
	v.SetEnvPrefix("URCONF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is fine -- use defaults
	}

	return v, nil
}
