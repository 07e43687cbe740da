package gateway_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grasp-labs/ds-go-ws-gateway/gateway"
	"github.com/grasp-labs/ds-go-ws-gateway/internal/fakes"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*gateway.Config)
		wantErr string
	}{
		{
			name:   "defaults with secret are valid",
			mutate: func(c *gateway.Config) {},
		},
		{
			name:    "short secret",
			mutate:  func(c *gateway.Config) { c.TokenSecret = "short" },
			wantErr: "32",
		},
		{
			name:    "unsupported algorithm",
			mutate:  func(c *gateway.Config) { c.TokenAlgorithm = "RS256" },
			wantErr: "algorithm",
		},
		{
			name:    "blank allow-list entry",
			mutate:  func(c *gateway.Config) { c.AllowedOrigins = []string{"https://ok.dev", " "} },
			wantErr: "empty",
		},
		{
			name:    "zero quota window",
			mutate:  func(c *gateway.Config) { c.UserConnectionQuota.Window = 0 },
			wantErr: "window",
		},
		{
			name: "negative message quota",
			mutate: func(c *gateway.Config) {
				c.MessageQuotas["CHAT"] = gateway.RateLimitQuota{Window: time.Second, MaxRequests: -1}
			},
			wantErr: "max requests",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := fakes.NewConfig("https://app.example.dev")
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestLoadConfig_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	content := `
token_secret: "0123456789abcdef0123456789abcdef"
allowed_origins:
  - "https://app.example.dev"
user_connection_quota:
  window: 30s
  max_requests: 3
message_quotas:
  CHAT:
    window: 1s
    max_requests: 5
logging_enabled: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := gateway.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"https://app.example.dev"}, cfg.AllowedOrigins)
	assert.Equal(t, 30*time.Second, cfg.UserConnectionQuota.Window)
	assert.Equal(t, int64(3), cfg.UserConnectionQuota.MaxRequests)
	assert.Equal(t, int64(5), cfg.MessageQuotas["CHAT"].MaxRequests)
	assert.False(t, cfg.LoggingEnabled)

	// Untouched keys keep their defaults.
	assert.Equal(t, "HS256", cfg.TokenAlgorithm)
	assert.Equal(t, gateway.DefaultConfig().IPConnectionQuota, cfg.IPConnectionQuota)
}

func TestLoadConfig_RejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`token_secret: "short"`), 0o600))

	_, err := gateway.LoadConfig(path)
	require.Error(t, err)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := gateway.LoadConfig("/does/not/exist.yaml")
	require.Error(t, err)
}
