package db

import (
	"testing"

	"github.com/smallbiznis/cargosettle/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigMapsApplicationSettings(t *testing.T) {
	cfg := NewConfig(config.Config{
		DBType:            "postgres",
		DBHost:            "db.internal",
		DBPort:            "5433",
		DBName:            "cargosettle",
		DBUser:            "svc",
		DBPassword:        "secret",
		DBSSLMode:         "require",
		DBMaxIdleConn:     5,
		DBMaxOpenConn:     25,
		DBConnMaxLifetime: 1800,
		DBConnMaxIdleTime: 300,
	})

	assert.Equal(t, "postgres", cfg.Type)
	assert.Equal(t, "db.internal", cfg.Host)
	assert.Equal(t, "5433", cfg.Port)
	assert.Equal(t, "cargosettle", cfg.Name)
	assert.Equal(t, "svc", cfg.User)
	assert.Equal(t, "require", cfg.SSLMode)
	assert.Equal(t, 25, cfg.MaxOpenConn)
}

func TestDialect(t *testing.T) {
	dialect, err := Dialect(Config{Type: "sqlite", Name: ":memory:"})
	require.NoError(t, err)
	assert.Equal(t, "sqlite", dialect.Name())

	_, err = Dialect(Config{Type: "oracle"})
	assert.Error(t, err)
}
