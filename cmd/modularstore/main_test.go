package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDSNFromEnv(t *testing.T) {
	for _, k := range []string{"DB_DSN", "DB_HOST", "DB_PORT", "DB_USER", "POSTGRES_USER", "DB_PASSWORD", "POSTGRES_PASSWORD", "DB_NAME", "POSTGRES_DB", "DB_SSLMODE"} {
		t.Setenv(k, "")
	}
	assert.Equal(t, "host=localhost user=postgres password=postgres dbname=modularstore port=5432 sslmode=disable", dsnFromEnv())

	t.Setenv("POSTGRES_USER", "shop")
	t.Setenv("DB_NAME", "store")
	t.Setenv("POSTGRES_DB", "ignored")
	assert.Equal(t, "host=localhost user=shop password=postgres dbname=store port=5432 sslmode=disable", dsnFromEnv())

	t.Setenv("DB_DSN", " postgres://u@h/db ")
	assert.Equal(t, "postgres://u@h/db", dsnFromEnv())
}

func TestEnvDuration(t *testing.T) {
	t.Setenv("FLOW_IDLE", "")
	assert.Equal(t, time.Hour, envDuration("FLOW_IDLE", time.Hour))
	t.Setenv("FLOW_IDLE", "15m")
	assert.Equal(t, 15*time.Minute, envDuration("FLOW_IDLE", time.Hour))
	t.Setenv("FLOW_IDLE", "-1s")
	assert.Equal(t, time.Hour, envDuration("FLOW_IDLE", time.Hour))
}
