package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, DriverSQLite, cfg.DBDriver)
	assert.Equal(t, "./data/kidpoints.db", cfg.DBPath)
	assert.False(t, cfg.RequireApproval)
	assert.Equal(t, time.Hour, cfg.AuditInterval)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, "UTC", cfg.DefaultTimezone)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("KIDPOINTS_PORT", "9000")
	t.Setenv("KIDPOINTS_DB_DRIVER", "memory")
	t.Setenv("KIDPOINTS_REQUIRE_APPROVAL", "true")
	t.Setenv("KIDPOINTS_AUDIT_INTERVAL", "15m")
	t.Setenv("KIDPOINTS_ALLOWED_ORIGINS", "http://localhost:3000,https://kids.example.com")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, DriverMemory, cfg.DBDriver)
	assert.True(t, cfg.RequireApproval)
	assert.Equal(t, 15*time.Minute, cfg.AuditInterval)
	assert.Equal(t, []string{"http://localhost:3000", "https://kids.example.com"}, cfg.AllowedOrigins)
}

func TestLoad_EnvFile(t *testing.T) {
	// GIVEN: a .env file setting the timezone and port, and port also in the environment
	// WHEN: loading
	// THEN: the file fills the gap, the environment wins on conflict

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("KIDPOINTS_DEFAULT_TIMEZONE=Europe/Paris\nKIDPOINTS_PORT=7000\n"), 0o600))
	t.Setenv("KIDPOINTS_PORT", "9100")
	t.Cleanup(func() { os.Unsetenv("KIDPOINTS_DEFAULT_TIMEZONE") })

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Europe/Paris", cfg.DefaultTimezone)
	assert.Equal(t, 9100, cfg.Port)
}

func TestLoad_MissingEnvFileIsFine(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.env"))
	assert.NoError(t, err)
}

func TestLoad_ParseError(t *testing.T) {
	t.Setenv("KIDPOINTS_PORT", "not-an-int")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env:")
}

func TestValidate(t *testing.T) {
	valid := Config{Port: 8080, DBDriver: DriverSQLite, DBPath: "x.db", DefaultTimezone: "UTC"}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name string
		mod  func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.DBDriver = "mongo" }},
		{"sqlite without path", func(c *Config) { c.DBPath = "" }},
		{"postgres without url", func(c *Config) { c.DBDriver = DriverPostgres }},
		{"bad port", func(c *Config) { c.Port = 0 }},
		{"negative audit", func(c *Config) { c.AuditInterval = -time.Second }},
		{"bad timezone", func(c *Config) { c.DefaultTimezone = "Mars/Olympus" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mod(&c)
			assert.Error(t, c.Validate())
		})
	}
}
