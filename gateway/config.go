package gateway

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// MinSecretLength is the minimum accepted token secret length.
	// Anything shorter makes HMAC brute-forcing too cheap.
	MinSecretLength = 32

	// DefaultMessageQuotaKey is the fallback entry in MessageQuotas used for
	// message types without an explicit quota.
	DefaultMessageQuotaKey = "default"

	envPrefix = "WS_GATEWAY"
)

// RateLimitQuota is one fixed-window budget: MaxRequests events per Window.
type RateLimitQuota struct {
	Window      time.Duration `mapstructure:"window" json:"window"`
	MaxRequests int64         `mapstructure:"max_requests" json:"max_requests"`
}

// Config is the full configuration surface of the security gateway.
type Config struct {
	// AllowedOrigins is the origin allow-list. Entries may carry an
	// http(s):// scheme; matching is case-insensitive and includes
	// subdomains of each entry.
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	// TokenSecret signs and verifies connection tokens. Must be at least
	// MinSecretLength characters.
	TokenSecret string `mapstructure:"token_secret"`

	// TokenAlgorithm selects the HMAC variant. Defaults to HS256.
	TokenAlgorithm string `mapstructure:"token_algorithm"`

	// TokenCacheTTL enables the verification cache when positive. Entries
	// are evicted after this duration regardless of token expiry.
	TokenCacheTTL time.Duration `mapstructure:"token_cache_ttl"`

	// Connection-admission quotas, evaluated per user and per IP.
	UserConnectionQuota RateLimitQuota `mapstructure:"user_connection_quota"`
	IPConnectionQuota   RateLimitQuota `mapstructure:"ip_connection_quota"`

	// MessageQuotas maps message types to their quota. The
	// DefaultMessageQuotaKey entry covers unconfigured types.
	MessageQuotas map[string]RateLimitQuota `mapstructure:"message_quotas"`

	// LoggingEnabled gates audit emission (logger and producer alike).
	LoggingEnabled bool `mapstructure:"logging_enabled"`

	// SweepInterval controls how often the in-memory store sweeps expired
	// counters. Ignored by the Redis backend.
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// DefaultConfig returns a Config with production-safe quota defaults.
// TokenSecret and AllowedOrigins must still be supplied by the caller.
func DefaultConfig() Config {
	return Config{
		TokenAlgorithm: "HS256",
		UserConnectionQuota: RateLimitQuota{
			Window:      time.Minute,
			MaxRequests: 10,
		},
		IPConnectionQuota: RateLimitQuota{
			Window:      time.Minute,
			MaxRequests: 20,
		},
		MessageQuotas: map[string]RateLimitQuota{
			DefaultMessageQuotaKey: {
				Window:      time.Minute,
				MaxRequests: 60,
			},
		},
		LoggingEnabled: true,
		SweepInterval:  30 * time.Second,
	}
}

// Validate reports configuration errors. A Config that fails validation must
// not be used to construct a gateway.
func (c Config) Validate() error {
	if len(c.TokenSecret) < MinSecretLength {
		return fmt.Errorf("token secret must be at least %d characters, got %d", MinSecretLength, len(c.TokenSecret))
	}

	switch c.TokenAlgorithm {
	case "", "HS256", "HS384", "HS512":
	default:
		return fmt.Errorf("unsupported token algorithm %q", c.TokenAlgorithm)
	}

	for i, origin := range c.AllowedOrigins {
		if strings.TrimSpace(origin) == "" {
			return fmt.Errorf("allowed origin at index %d is empty", i)
		}
	}

	if err := c.UserConnectionQuota.validate("user connection quota"); err != nil {
		return err
	}
	if err := c.IPConnectionQuota.validate("ip connection quota"); err != nil {
		return err
	}
	for messageType, quota := range c.MessageQuotas {
		if err := quota.validate("message quota " + messageType); err != nil {
			return err
		}
	}

	return nil
}

func (q RateLimitQuota) validate(name string) error {
	if q.Window <= 0 {
		return errors.New(name + ": window must be positive")
	}
	if q.MaxRequests <= 0 {
		return errors.New(name + ": max requests must be positive")
	}
	return nil
}

// messageQuota resolves the quota for a message type, falling back to the
// default entry. The lookup is case-insensitive: viper lowercases map keys
// when loading from file, so "CHAT" at runtime must still find a quota that
// arrived as "chat".
func (c Config) messageQuota(messageType string) RateLimitQuota {
	if quota, ok := c.MessageQuotas[messageType]; ok {
		return quota
	}
	folded := strings.ToLower(messageType)
	for key, quota := range c.MessageQuotas {
		if strings.ToLower(key) == folded {
			return quota
		}
	}
	if quota, ok := c.MessageQuotas[DefaultMessageQuotaKey]; ok {
		return quota
	}
	return DefaultConfig().MessageQuotas[DefaultMessageQuotaKey]
}

// LoadConfig reads configuration from an optional file plus WS_GATEWAY_*
// environment variables, layered over DefaultConfig.
func LoadConfig(path string) (Config, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("token_algorithm", defaults.TokenAlgorithm)
	v.SetDefault("user_connection_quota.window", defaults.UserConnectionQuota.Window)
	v.SetDefault("user_connection_quota.max_requests", defaults.UserConnectionQuota.MaxRequests)
	v.SetDefault("ip_connection_quota.window", defaults.IPConnectionQuota.Window)
	v.SetDefault("ip_connection_quota.max_requests", defaults.IPConnectionQuota.MaxRequests)
	v.SetDefault("message_quotas.default.window", defaults.MessageQuotas[DefaultMessageQuotaKey].Window)
	v.SetDefault("message_quotas.default.max_requests", defaults.MessageQuotas[DefaultMessageQuotaKey].MaxRequests)
	v.SetDefault("logging_enabled", defaults.LoggingEnabled)
	v.SetDefault("sweep_interval", defaults.SweepInterval)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %q: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
