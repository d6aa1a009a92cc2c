package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	req := require.New(t)

	cfg, err := LoadConfig()
	req.NoError(err)

	req.Equal(uint16(8080), cfg.HttpServerPort)
	req.Equal("Main", cfg.DefaultRoom)
	req.Equal("", cfg.RedisHost)
	req.Equal(uint16(6379), cfg.RedisPort)
}

func TestLoadConfigFromEnv(t *testing.T) {
	req := require.New(t)
	t.Setenv("HTTP_SERVER_PORT", "9090")
	t.Setenv("DEFAULT_ROOM", "Lobby")
	t.Setenv("REDIS_HOST", "redis.internal")

	cfg, err := LoadConfig()
	req.NoError(err)

	req.Equal(uint16(9090), cfg.HttpServerPort)
	req.Equal("Lobby", cfg.DefaultRoom)
	req.Equal("redis.internal", cfg.RedisHost)
}

func TestLoadConfigRejectsPrivilegedPort(t *testing.T) {
	t.Setenv("HTTP_SERVER_PORT", "80")

	_, err := LoadConfig()
	require.Error(t, err)
}
