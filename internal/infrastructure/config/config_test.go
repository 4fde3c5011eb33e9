package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "http://localhost:3000/payment-result", cfg.Server.FrontendResultURL)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, "payment-events", cfg.Kafka.Topic)
	assert.Equal(t, "paypal", cfg.Gateway.Provider)
	assert.Equal(t, 5*time.Second, cfg.Gateway.VerifyTimeout)
	assert.Equal(t, 2*time.Second, cfg.Dispatcher.PollInterval)
	assert.Equal(t, 25, cfg.Dispatcher.BatchSize)
	assert.Equal(t, 15*time.Minute, cfg.Dispatcher.ReconcileAfter)
}

func TestValidate_RejectsBadValues(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"missing frontend url", func(c *Config) { c.Server.FrontendResultURL = "" }},
		{"missing db host", func(c *Config) { c.Database.Host = "" }},
		{"missing kafka topic", func(c *Config) { c.Kafka.Topic = "" }},
		{"zero verify timeout", func(c *Config) { c.Gateway.VerifyTimeout = 0 }},
		{"zero poll interval", func(c *Config) { c.Dispatcher.PollInterval = 0 }},
		{"zero batch size", func(c *Config) { c.Dispatcher.BatchSize = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bad := *cfg
			tt.mutate(&bad)
			assert.Error(t, bad.Validate())
		})
	}
}

func TestDatabaseDSN(t *testing.T) {
	c := DatabaseConfig{
		Host: "db", Port: 5432, User: "u", Password: "p", Database: "payments", SSLMode: "disable",
	}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=payments sslmode=disable", c.DatabaseDSN())
}

func TestRedisAddr(t *testing.T) {
	c := RedisConfig{Host: "cache", Port: 6379}
	assert.Equal(t, "cache:6379", c.RedisAddr())
}
