/*
   Copyright 2026 The labuh authors

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

// Package config loads and live-reloads process configuration
// (ambient stack, carried independent of spec.md's feature Non-goals).
package config

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config is the full set of settings labuhd needs to run. Fields
// grouped identity (DatabaseURL, ListenAddr) vs. non-identity (LogLevel,
// CollectorInterval) — only the latter group is safe to hot-reload.
type Config struct {
	ListenAddr           string `mapstructure:"listen_addr" validate:"required"`
	DatabaseURL          string `mapstructure:"database_url" validate:"required"`
	DockerHost           string `mapstructure:"docker_host"`
	LogLevel             string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	CollectorIntervalS   int    `mapstructure:"collector_interval_seconds" validate:"required,gt=0"`
	MetricsRetentionDays int    `mapstructure:"metrics_retention_days" validate:"required,gt=0"`

	// collectorIntervalSeconds backs CollectorInterval. It starts at
	// CollectorIntervalS and is the value watch() updates on reload;
	// callers that need the live interval must go through the method,
	// not the struct field above.
	collectorIntervalSeconds atomic.Int64
}

// CollectorInterval returns the current sweep interval for the Metrics
// Collector, reflecting any hot reload applied since Load returned.
func (c *Config) CollectorInterval() time.Duration {
	return time.Duration(c.collectorIntervalSeconds.Load()) * time.Second
}

// MetricsRetention returns the configured Metrics Store retention
// horizon. Unlike CollectorInterval this sizes the store once at
// construction and is not live-reloaded.
func (c *Config) MetricsRetention() time.Duration {
	return time.Duration(c.MetricsRetentionDays) * 24 * time.Hour
}

var validate = validator.New()

// Defaults applied before the config file / env are read.
func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("collector_interval_seconds", 60)
	v.SetDefault("metrics_retention_days", 7)
}

// Load reads configuration from path (if non-empty), environment
// variables prefixed LABUH_, and the defaults above, in that priority
// order, and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("labuh")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	cfg.collectorIntervalSeconds.Store(int64(cfg.CollectorIntervalS))

	if path != "" {
		watch(v, &cfg, path)
	}

	return &cfg, nil
}

// watch re-reads non-identity settings (log level, collector interval)
// whenever path changes on disk. DatabaseURL/ListenAddr/DockerHost are
// identity settings fixed at process start and are not touched here.
func watch(v *viper.Viper, cfg *Config, path string) {
	v.OnConfigChange(func(_ fsnotify.Event) {
		logLevel := v.GetString("log_level")
		if lvl, err := logrus.ParseLevel(logLevel); err == nil {
			logrus.SetLevel(lvl)
			cfg.LogLevel = logLevel
		} else {
			logrus.WithError(err).Warn("config: ignoring invalid log_level on reload")
		}

		if interval := v.GetInt("collector_interval_seconds"); interval > 0 {
			cfg.CollectorIntervalS = interval
			cfg.collectorIntervalSeconds.Store(int64(interval))
		}

		logrus.WithField("path", path).Info("config: reloaded")
	})
	v.WatchConfig()
}
