package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// DefaultIssuer and DefaultAudience are fixed contract values embedded
	// into every session token and checked on every verification.
	DefaultIssuer   = "opencampus"
	DefaultAudience = "opencampus-web"

	// DefaultSessionTTL keeps sessions short-lived; the cookie max-age
	// mirrors this value.
	DefaultSessionTTL = 15 * time.Minute
)

// Claims are the session token claims. TokenVersion mirrors the principal's
// stored counter at issuance time and is what makes counter-based revocation
// possible without a denylist.
type Claims struct {
	Email        string `json:"email"`
	Role         string `json:"role"`
	TenantID     string `json:"tid"`
	BranchID     string `json:"bid"`
	TokenVersion int64  `json:"ver"`
	jwt.RegisteredClaims
}

// Codec signs and verifies compact session tokens with HS256.
type Codec struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

// CodecOption configures a Codec.
type CodecOption func(*Codec)

// WithIssuer overrides the issuer claim (tests only; production uses the
// fixed contract value).
func WithIssuer(issuer string) CodecOption {
	return func(c *Codec) {
		if strings.TrimSpace(issuer) != "" {
			c.issuer = issuer
		}
	}
}

// WithAudience overrides the audience claim.
func WithAudience(audience string) CodecOption {
	return func(c *Codec) {
		if strings.TrimSpace(audience) != "" {
			c.audience = audience
		}
	}
}

// WithSessionTTL overrides the token lifetime.
func WithSessionTTL(ttl time.Duration) CodecOption {
	return func(c *Codec) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithCodecClock overrides the time source (useful for tests).
func WithCodecClock(fn func() time.Time) CodecOption {
	return func(c *Codec) {
		if fn != nil {
			c.now = fn
		}
	}
}

// NewCodec constructs a Codec from a shared secret.
func NewCodec(secret []byte, opts ...CodecOption) (*Codec, error) {
	if len(secret) == 0 {
		return nil, errors.New("auth: signing secret is required")
	}
	c := &Codec{
		secret:   secret,
		issuer:   DefaultIssuer,
		audience: DefaultAudience,
		ttl:      DefaultSessionTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// TTL returns the configured token lifetime.
func (c *Codec) TTL() time.Duration { return c.ttl }

// Sign issues a token for user pinned to branchID. The embedded version is
// the user's counter as loaded by the caller.
func (c *Codec) Sign(user User, branchID string) (string, time.Time, error) {
	if strings.TrimSpace(user.ID) == "" {
		return "", time.Time{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	now := c.now().UTC()
	exp := now.Add(c.ttl)
	claims := Claims{
		Email:        user.Email,
		Role:         user.Role,
		TenantID:     user.TenantID,
		BranchID:     branchID,
		TokenVersion: user.TokenVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Audience:  jwt.ClaimStrings{c.audience},
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// VerifyLight checks signature, expiry, issuer and audience without touching
// the datastore. It is the hot-path check used by route middleware; callers
// with security consequences go through Service.VerifyFull.
func (c *Codec) VerifyLight(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidSignature
		}
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithAudience(c.audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(func() time.Time { return c.now().UTC() }),
	)
	if err != nil {
		return nil, classifyTokenError(err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// classifyTokenError maps the parser's joined errors onto the failure
// taxonomy. Signature wins over claim failures: a tampered token must never
// be reported as merely expired.
func classifyTokenError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrInvalidToken
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return ErrWrongIssuer
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return ErrWrongAudience
	default:
		return ErrInvalidToken
	}
}
