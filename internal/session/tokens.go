package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/celerix-dev/celerix-checkin/pkg/schema"
	"github.com/celerix-dev/celerix-checkin/pkg/sdk"
)

// ErrInvalidToken is returned for a token that is malformed, expired, revoked or signed
// with another secret.
var ErrInvalidToken = errors.New("invalid or expired token")

const revokedPrefix = "revoked:"

// Claims are the JWT claims of a session token. Subject is the user id and ID the
// token id used for revocation.
type Claims struct {
	Email string      `json:"email"`
	Role  schema.Role `json:"role"`
	jwt.RegisteredClaims
}

// Tokens issues and verifies HS256 session tokens. Revoked token ids are kept in the
// storage until the token would have expired anyway.
type Tokens struct {
	secret  []byte
	ttl     time.Duration
	storage sdk.Storage
	now     func() time.Time
}

// NewTokens creates a token issuer. now defaults to time.Now.
func NewTokens(secret string, ttl time.Duration, storage sdk.Storage, now func() time.Time) *Tokens {
	if now == nil {
		now = time.Now
	}
	return &Tokens{
		secret:  []byte(secret),
		ttl:     ttl,
		storage: storage,
		now:     now,
	}
}

// Issue signs a token for user.
func (t *Tokens) Issue(user schema.User) (string, error) {
	now := t.now()
	claims := Claims{
		Email: user.Email,
		Role:  user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Parse verifies token and returns its claims.
func (t *Tokens) Parse(token string) (*schema.TokenClaims, error) {
	claims, err := t.parse(token)
	if err != nil {
		return nil, err
	}

	if _, err := t.storage.Get(revokedPrefix + claims.ID); err == nil {
		return nil, ErrInvalidToken
	} else if !errors.Is(err, sdk.ErrKeyNotFound) {
		return nil, fmt.Errorf("failed to check revocation: %w", err)
	}

	out := &schema.TokenClaims{
		TokenID: claims.ID,
		UserID:  claims.Subject,
		Email:   claims.Email,
		Role:    claims.Role,
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

// Revoke invalidates token. Tokens that no longer verify are ignored.
func (t *Tokens) Revoke(token string) error {
	claims, err := t.parse(token)
	if err != nil {
		return nil
	}
	exp := t.now().Add(t.ttl)
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	return t.storage.Set(revokedPrefix+claims.ID, exp.UTC().Format(time.RFC3339))
}

func (t *Tokens) parse(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.ID == "" || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
