package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"

	"github.com/grasp-labs/ds-go-ws-gateway/gateway/interfaces"
	"github.com/grasp-labs/ds-go-ws-gateway/gateway/models"
)

// tokenFormat is the cheap pre-check for a well-formed token: three
// dot-separated base64url segments.
var tokenFormat = regexp.MustCompile(`^[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+$`)

// TokenClaims is the expected token payload. Sub and Email are required;
// roles, permissions and session id are optional.
type TokenClaims struct {
	Iss string  `json:"iss"` // Issuer
	Sub string  `json:"sub"` // Subject
	Exp float64 `json:"exp"` // Expiration time timestamp
	Nbf float64 `json:"nbf"` // Not before timestamp
	Iat float64 `json:"iat"` // Issued At
	// Custom claims
	Email       string   `json:"email"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
	SessionID   string   `json:"session_id"`
}

func (c TokenClaims) Valid() error {
	now := time.Now().Unix()

	if exp := int64(c.Exp); exp != 0 && now > exp {
		return jwt.NewValidationError("token has expired", jwt.ValidationErrorExpired)
	}

	if nbf := int64(c.Nbf); nbf != 0 && now < nbf {
		return jwt.NewValidationError("token not yet valid", jwt.ValidationErrorNotValidYet)
	}

	if iat := int64(c.Iat); iat != 0 && now < iat {
		return jwt.NewValidationError("token issued in the future", jwt.ValidationErrorIssuedAt)
	}

	return nil
}

// cachedVerification is the bigcache entry for an already verified token.
// ExpiresAt mirrors the token's exp claim so a cache hit never outlives it.
type cachedVerification struct {
	User      models.AuthenticatedUser `json:"user"`
	ExpiresAt int64                    `json:"expires_at"`
}

// TokenAuthenticator verifies the signed bearer token carried on the
// connection URL and derives the authenticated identity from its claims.
type TokenAuthenticator struct {
	secret []byte
	method jwt.SigningMethod
	cache  *bigcache.BigCache
	logger interfaces.Logger
}

// NewTokenAuthenticator builds an authenticator from the gateway config.
// A secret shorter than MinSecretLength is a configuration error.
func NewTokenAuthenticator(cfg Config, logger interfaces.Logger) (*TokenAuthenticator, error) {
	if len(cfg.TokenSecret) < MinSecretLength {
		return nil, fmt.Errorf("token secret must be at least %d characters, got %d", MinSecretLength, len(cfg.TokenSecret))
	}

	algorithm := cfg.TokenAlgorithm
	if algorithm == "" {
		algorithm = "HS256"
	}
	method := jwt.GetSigningMethod(algorithm)
	if method == nil {
		return nil, fmt.Errorf("unknown token algorithm %q", algorithm)
	}
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("token algorithm %q is not an HMAC scheme", algorithm)
	}

	a := &TokenAuthenticator{
		secret: []byte(cfg.TokenSecret),
		method: method,
		logger: logger,
	}

	if cfg.TokenCacheTTL > 0 {
		cache, err := bigcache.New(context.Background(), bigcache.DefaultConfig(cfg.TokenCacheTTL))
		if err != nil {
			return nil, fmt.Errorf("create token cache: %w", err)
		}
		a.cache = cache
	}

	return a, nil
}

// IsWellFormedToken reports whether the token looks structurally valid,
// letting callers reject garbage before paying for verification.
func IsWellFormedToken(token string) bool {
	return tokenFormat.MatchString(token)
}

// ExtractToken pulls the token query parameter from a connection URL.
// The URL may be a relative path or an absolute ws:// / wss:// URL.
// Malformed URLs and missing parameters yield an empty string.
func ExtractToken(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Query().Get("token")
}

// Authenticate extracts and verifies the token on the request URL.
// Verification fails closed: any parse, signature, expiry or payload problem
// produces an unauthenticated result with status 401.
func (a *TokenAuthenticator) Authenticate(ctx context.Context, req models.ConnectionRequest) models.AuthResult {
	token := ExtractToken(req.URL)
	if token == "" {
		return models.AuthResult{
			Success:    false,
			Error:      "No authentication token provided",
			StatusCode: http.StatusUnauthorized,
		}
	}

	if user, ok := a.cachedUser(token); ok {
		return models.AuthResult{Success: true, User: user}
	}

	claims := &TokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != a.method.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	})

	if err != nil || !parsed.Valid {
		a.logger.Warning(ctx, "Token verification failed: %v", err)
		return models.AuthResult{
			Success:    false,
			Error:      verificationError(err),
			StatusCode: http.StatusUnauthorized,
		}
	}

	if claims.Sub == "" || claims.Email == "" {
		a.logger.Warning(ctx, "Token payload missing required claims (sub, email)")
		return models.AuthResult{
			Success:    false,
			Error:      "Invalid token payload",
			StatusCode: http.StatusUnauthorized,
		}
	}

	user := &models.AuthenticatedUser{
		ID:          claims.Sub,
		Email:       claims.Email,
		Roles:       claims.Roles,
		Permissions: claims.Permissions,
		SessionID:   claims.SessionID,
	}
	if user.Roles == nil {
		user.Roles = []string{}
	}
	if user.Permissions == nil {
		user.Permissions = []string{}
	}
	if user.SessionID == "" {
		user.SessionID = uuid.New().String()
	}

	a.cacheUser(token, user, int64(claims.Exp))

	return models.AuthResult{Success: true, User: user}
}

// verificationError maps a jwt parse error onto the caller-facing message,
// distinguishing expiry from a bad signature.
func verificationError(err error) string {
	var vErr *jwt.ValidationError
	if errors.As(err, &vErr) {
		switch {
		case vErr.Errors&jwt.ValidationErrorExpired != 0:
			return "Token has expired"
		case vErr.Errors&jwt.ValidationErrorSignatureInvalid != 0:
			return "Invalid token signature"
		case vErr.Errors&jwt.ValidationErrorMalformed != 0:
			return "Malformed authentication token"
		}
	}
	return "Invalid authentication token"
}

func (a *TokenAuthenticator) cachedUser(token string) (*models.AuthenticatedUser, bool) {
	if a.cache == nil {
		return nil, false
	}

	raw, err := a.cache.Get(token)
	if err != nil {
		return nil, false
	}

	var entry cachedVerification
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, false
	}
	if entry.ExpiresAt != 0 && time.Now().Unix() > entry.ExpiresAt {
		return nil, false
	}

	user := entry.User
	return &user, true
}

func (a *TokenAuthenticator) cacheUser(token string, user *models.AuthenticatedUser, expiresAt int64) {
	if a.cache == nil {
		return
	}

	raw, err := json.Marshal(cachedVerification{User: *user, ExpiresAt: expiresAt})
	if err != nil {
		return
	}
	_ = a.cache.Set(token, raw)
}
