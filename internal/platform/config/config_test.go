package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"kyc-service/pkg/testutil"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv()

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 900*time.Second, cfg.SessionTTL)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 4, cfg.WebhookWorkers)
	assert.False(t, cfg.UseS3())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("KYC_ADDR", ":9090")
	t.Setenv("KYC_SESSION_TTL", "5m")
	t.Setenv("KYC_WEBHOOK_WORKERS", "8")
	t.Setenv("KYC_S3_ENDPOINT", "minio:9000")

	cfg := FromEnv()

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, 5*time.Minute, cfg.SessionTTL)
	assert.Equal(t, 8, cfg.WebhookWorkers)
	assert.True(t, cfg.UseS3())
}

func TestSessionTTLAcceptsBareSeconds(t *testing.T) {
	testutil.Given(t, "a TTL configured as a bare integer", func(t *testing.T) {
		t.Setenv("KYC_SESSION_TTL", "600")

		testutil.Then(t, "it is read as seconds", func(t *testing.T) {
			assert.Equal(t, 600*time.Second, FromEnv().SessionTTL)
		})
	})
}

func TestInvalidValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("KYC_SESSION_TTL", "soon")
	t.Setenv("KYC_WEBHOOK_WORKERS", "many")

	cfg := FromEnv()

	assert.Equal(t, 900*time.Second, cfg.SessionTTL)
	assert.Equal(t, 4, cfg.WebhookWorkers)
}
