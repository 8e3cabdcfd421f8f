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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "labuh.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, "database_url: postgres://localhost/labuh\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 60, cfg.CollectorIntervalS)
	assert.Equal(t, 7, cfg.MetricsRetentionDays)
	assert.Equal(t, 60*time.Second, cfg.CollectorInterval())
	assert.Equal(t, 7*24*time.Hour, cfg.MetricsRetention())
}

func TestLoad_CollectorIntervalOverride(t *testing.T) {
	path := writeConfig(t, "database_url: postgres://localhost/labuh\ncollector_interval_seconds: 30\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.CollectorInterval())
}

func TestLoad_FailsValidationWithoutDatabaseURL(t *testing.T) {
	path := writeConfig(t, "listen_addr: ':9090'\n")

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_RejectsUnknownLogLevel(t *testing.T) {
	path := writeConfig(t, "database_url: postgres://localhost/labuh\nlog_level: verbose\n")

	_, err := Load(path)
	require.Error(t, err)
}
