// Package config loads the husk build tool's configuration file.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds settings for the husk build tool. Every field can be
// overridden by a command-line flag.
type Config struct {
	Source    string `mapstructure:"source"`
	Out       string `mapstructure:"out"`
	Stub      string `mapstructure:"stub"`
	Addr      string `mapstructure:"addr"`
	Compress  bool   `mapstructure:"compress"`
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// Load reads configuration from cfgFile, or from husk.yaml in the
// working directory when cfgFile is empty. A missing file is not an
// error; defaults apply.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("source", "public")
	v.SetDefault("out", "site")
	v.SetDefault("addr", ":8080")
	v.SetDefault("compress", true)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("husk")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}
