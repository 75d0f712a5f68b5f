package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("MAIL_FROM", "updates@example.org")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "notify_", cfg.Database.Prefix)
	assert.Equal(t, 15*time.Minute, cfg.Digest.Schedule)
	assert.Equal(t, 15*time.Minute, cfg.Digest.Window)
	assert.Equal(t, 1, cfg.Digest.Concurrency)
	assert.Empty(t, cfg.Search.URL)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite3")
	t.Setenv("DB_NAME", "/tmp/notify.db")
	t.Setenv("MAIL_PROVIDER", "mock")
	t.Setenv("DIGEST_WINDOW", "30")
	t.Setenv("DIGEST_SCHEDULE", "1h")
	t.Setenv("SEARCH_RPS", "2.5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/notify.db", cfg.Database.GetDSN())
	assert.Equal(t, 30*time.Minute, cfg.Digest.Window)
	assert.Equal(t, time.Hour, cfg.Digest.Schedule)
	assert.Equal(t, 2.5, cfg.Search.RequestsPerSecond)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing password", map[string]string{"MAIL_FROM": "a@example.org"}},
		{"missing sender", map[string]string{"DB_PASSWORD": "x"}},
		{"brevo without key", map[string]string{"DB_PASSWORD": "x", "MAIL_FROM": "a@example.org", "MAIL_PROVIDER": "brevo"}},
		{"unknown provider", map[string]string{"DB_PASSWORD": "x", "MAIL_FROM": "a@example.org", "MAIL_PROVIDER": "pigeon"}},
		{"zero concurrency", map[string]string{"DB_PASSWORD": "x", "MAIL_FROM": "a@example.org", "DIGEST_CONCURRENCY": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestDatabaseConfig_GetDSN(t *testing.T) {
	db := DatabaseConfig{Host: "db", Port: 3306, User: "u", Password: "p", Database: "civic"}

	db.Driver = "mysql"
	assert.Equal(t, "u:p@tcp(db:3306)/civic?parseTime=true", db.GetDSN())

	db.Driver = "postgres"
	assert.Equal(t, "host=db port=3306 user=u password=p dbname=civic sslmode=disable", db.GetDSN())

	db.Driver = "oracle"
	assert.Empty(t, db.GetDSN())
}
