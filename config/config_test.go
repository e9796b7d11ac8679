package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadJSONConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"app": {"AppPort": "9090", "JWTSecret": "s3cret", "InternalToken": "tok", "AdminUsernames": ["root", "ops"]},
		"gin": {"Mode": "debug"},
		"redis": {"RedisHost": "cache", "RedisPort": 6380},
		"points": {"Timezone": "Asia/Shanghai", "TaskCacheTTLSec": 60, "EventAwardCooldownSec": 30, "SeedTasksOnBoot": true}
	}`), 0o600))

	var c AppConfig
	require.NoError(t, loadJSONConfig(path, &c))
	applyDefaults(&c)

	assert.Equal(t, "9090", c.AppPort)
	assert.Equal(t, "s3cret", c.JWTSecret)
	assert.Equal(t, "tok", c.InternalToken)
	assert.Equal(t, []string{"root", "ops"}, c.AdminUsernames)
	assert.Equal(t, "debug", c.GinMode)
	assert.Equal(t, "cache", c.RedisHost)
	assert.Equal(t, 6380, c.RedisPort)
	assert.Equal(t, 60, c.TaskCacheTTLSec)
	assert.Equal(t, 30, c.EventAwardCooldownSec)
	assert.True(t, c.SeedTasksOnBoot)
	assert.Equal(t, 72, c.TokenTTLHours)
	assert.Equal(t, "jobpoints", c.DBName)
}

func TestLoadJSONConfig_MissingAndInvalid(t *testing.T) {
	var c AppConfig
	assert.NoError(t, loadJSONConfig(filepath.Join(t.TempDir(), "absent.json"), &c))

	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"app": `), 0o600))
	assert.Error(t, loadJSONConfig(path, &c))
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("INTERNAL_TOKEN", "internal")
	t.Setenv("POINTS_TIMEZONE", "UTC")
	t.Setenv("EVENT_AWARD_COOLDOWN_SEC", "120")
	t.Setenv("ADMIN_USERNAMES", " alice , ,bob")
	t.Setenv("SEED_TASKS_ON_BOOT", "true")

	c := AppConfig{JWTSecret: "from-file", SeedTasksOnBoot: false}
	applyEnvOverrides(&c)

	assert.Equal(t, "from-env", c.JWTSecret)
	assert.Equal(t, "internal", c.InternalToken)
	assert.Equal(t, "UTC", c.Timezone)
	assert.Equal(t, 120, c.EventAwardCooldownSec)
	assert.Equal(t, []string{"alice", "bob"}, c.AdminUsernames)
	assert.True(t, c.SeedTasksOnBoot)
}

func TestLocation(t *testing.T) {
	assert.Equal(t, time.Local, AppConfig{}.Location())
	assert.Equal(t, time.Local, AppConfig{Timezone: "Nowhere/Invalid"}.Location())
	assert.Equal(t, "UTC", AppConfig{Timezone: "UTC"}.Location().String())
}
