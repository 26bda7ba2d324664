package middleware

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	gojwt "github.com/golang-jwt/jwt/v5"

	apperrors "github.com/kbukum/flowkit/errors"
)

// SubjectKey is the gin context key holding the authenticated token subject.
const SubjectKey = "auth_subject"

// JWTConfig configures HS256 bearer tokens for the admin API. An empty
// Secret disables authentication.
type JWTConfig struct {
	Secret   string        `yaml:"secret" mapstructure:"secret"`
	Issuer   string        `yaml:"issuer" mapstructure:"issuer"`
	Audience string        `yaml:"audience" mapstructure:"audience"`
	TokenTTL time.Duration `yaml:"token_ttl" mapstructure:"token_ttl"`
}

// Enabled reports whether tokens are required.
func (c JWTConfig) Enabled() bool { return c.Secret != "" }

// ApplyDefaults sets the token lifetime used by Issue.
func (c *JWTConfig) ApplyDefaults() {
	if c.TokenTTL <= 0 {
		c.TokenTTL = time.Hour
	}
}

// Validate rejects secrets too short for HS256.
func (c *JWTConfig) Validate() error {
	if c.Secret != "" && len(c.Secret) < 16 {
		return fmt.Errorf("auth.secret must be at least 16 bytes")
	}
	return nil
}

// Claims are the claims flowkit issues and accepts.
type Claims struct {
	gojwt.RegisteredClaims
}

// Issue signs a token for subject valid for the configured TTL from now.
func (c JWTConfig) Issue(subject string, now time.Time) (string, error) {
	if !c.Enabled() {
		return "", errors.New("jwt: secret is not configured")
	}
	ttl := c.TokenTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	claims := Claims{RegisteredClaims: gojwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    c.Issuer,
		IssuedAt:  gojwt.NewNumericDate(now),
		NotBefore: gojwt.NewNumericDate(now),
		ExpiresAt: gojwt.NewNumericDate(now.Add(ttl)),
	}}
	if c.Audience != "" {
		claims.Audience = gojwt.ClaimStrings{c.Audience}
	}
	return gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString([]byte(c.Secret))
}

// Parse verifies a token and returns its claims. Expired tokens yield
// TOKEN_EXPIRED, anything else invalid yields INVALID_TOKEN.
func (c JWTConfig) Parse(token string) (*Claims, error) {
	opts := []gojwt.ParserOption{
		gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}),
		gojwt.WithExpirationRequired(),
	}
	if c.Issuer != "" {
		opts = append(opts, gojwt.WithIssuer(c.Issuer))
	}
	if c.Audience != "" {
		opts = append(opts, gojwt.WithAudience(c.Audience))
	}

	claims := &Claims{}
	_, err := gojwt.ParseWithClaims(token, claims, func(*gojwt.Token) (any, error) {
		return []byte(c.Secret), nil
	}, opts...)
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, gojwt.ErrTokenExpired):
		return nil, apperrors.TokenExpired().WithCause(err)
	default:
		return nil, apperrors.InvalidToken().WithCause(err)
	}
}

// Auth requires a valid bearer token on every request, except paths with
// one of the skip prefixes. The token subject is stored under SubjectKey.
func Auth(cfg JWTConfig, skipPrefixes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, prefix := range skipPrefixes {
			if strings.HasPrefix(path, prefix) {
				c.Next()
				return
			}
		}

		scheme, token, ok := strings.Cut(c.GetHeader("Authorization"), " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			abort(c, apperrors.Unauthorized("Bearer token required."))
			return
		}
		claims, err := cfg.Parse(token)
		if err != nil {
			appErr, _ := apperrors.AsAppError(err)
			abort(c, appErr)
			return
		}
		c.Set(SubjectKey, claims.Subject)
		c.Next()
	}
}

func abort(c *gin.Context, err *apperrors.AppError) {
	c.AbortWithStatusJSON(err.HTTPStatus, err.ToResponse())
}
