package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexuscrm/persist/internal/domain/schema"
)

func lookup(env map[string]string) func(string) string {
	return func(name string) string { return env[name] }
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(lookup(nil))
	require.NoError(t, err)

	assert.Equal(t, "4000", cfg.Credentials.Port)
	assert.Equal(t, 5*time.Second, cfg.Options.SlowQueryThreshold)
	assert.Equal(t, 60*time.Second, cfg.Options.TotalQueryThreshold)
	assert.Equal(t, 1000, cfg.Options.HistoryLimit)
	assert.Equal(t, schema.PolicyFail, cfg.Settings.DeleteColumnsPolicy)
	assert.Equal(t, schema.PolicyNo, cfg.Settings.ResizeColumnsPolicy)
	assert.Equal(t, 1, cfg.Settings.DeadlockRetries)
	assert.Empty(t, cfg.Settings.Locales)
}

func TestFromEnv_Values(t *testing.T) {
	cfg, err := FromEnv(lookup(map[string]string{
		EnvHost:              "gateway.example.com",
		EnvPort:              "3306",
		EnvUser:              "app",
		EnvPassword:          "secret",
		EnvDatabase:          "depot",
		EnvTablePrefix:       "td_",
		EnvDeleteColumns:     "YES",
		EnvResizeColumns:     "yes",
		EnvSlowQuerySeconds:  "0.5",
		EnvTotalQuerySeconds: "0",
		EnvHistoryLimit:      "10",
		EnvLocales:           "en_US, es",
		EnvDeadlockRetries:   "3",
	}))
	require.NoError(t, err)

	assert.Equal(t, "gateway.example.com", cfg.Credentials.Host)
	assert.Equal(t, "3306", cfg.Credentials.Port)
	assert.Equal(t, "depot", cfg.Credentials.Database)
	assert.Equal(t, "td_", cfg.Settings.TablePrefix)
	assert.Equal(t, schema.PolicyYes, cfg.Settings.DeleteColumnsPolicy)
	assert.Equal(t, schema.PolicyYes, cfg.Settings.ResizeColumnsPolicy)
	assert.Equal(t, 500*time.Millisecond, cfg.Options.SlowQueryThreshold)
	assert.Equal(t, time.Duration(0), cfg.Options.TotalQueryThreshold)
	assert.Equal(t, 10, cfg.Options.HistoryLimit)
	assert.Equal(t, []string{"en_US", "es"}, cfg.Settings.Locales)
	assert.Equal(t, 3, cfg.Settings.DeadlockRetries)
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := map[string]string{
		EnvDeleteColumns:    "sometimes",
		EnvResizeColumns:    "maybe",
		EnvSlowQuerySeconds: "-1",
		EnvHistoryLimit:     "zero",
		EnvDeadlockRetries:  "0",
		EnvLocales:          "en,en",
	}

	for name, value := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := FromEnv(lookup(map[string]string{name: value}))
			require.Error(t, err)
			assert.Contains(t, err.Error(), name)
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("PERSIST_TEST_ONLY_VAR=loaded\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("PERSIST_TEST_ONLY_VAR") })

	assert.Equal(t, "", LoadEnvFile(filepath.Join(dir, "missing.env")))
	assert.Equal(t, path, LoadEnvFile(filepath.Join(dir, "missing.env"), path))
	assert.Equal(t, "loaded", os.Getenv("PERSIST_TEST_ONLY_VAR"))
}

func TestLoadWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persist.yaml")
	content := `tidb:
  host: db.internal
  port: "4001"
  database: depot
persist:
  table_prefix: td_
  delete_columns: "no"
  history_limit: 50
  locales: [en_US, fr]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadWithFile(path, lookup(map[string]string{EnvDatabase: "override"}))
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Credentials.Host)
	assert.Equal(t, "4001", cfg.Credentials.Port)
	assert.Equal(t, "override", cfg.Credentials.Database)
	assert.Equal(t, "td_", cfg.Settings.TablePrefix)
	assert.Equal(t, schema.PolicyNo, cfg.Settings.DeleteColumnsPolicy)
	assert.Equal(t, 50, cfg.Options.HistoryLimit)
	assert.Equal(t, []string{"en_US", "fr"}, cfg.Settings.Locales)

	_, err = LoadWithFile(filepath.Join(t.TempDir(), "missing.yaml"), lookup(nil))
	assert.Error(t, err)
}
