package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/fx"

	"github.com/Additional-Code/harvest/internal/config"
	"github.com/Additional-Code/harvest/internal/entity"
)

// ErrInvalidToken is returned for malformed, expired or forged tokens.
var ErrInvalidToken = errors.New("invalid token")

// Module provides the token issuer to Fx.
var Module = fx.Provide(NewIssuer)

// Claims is the JWT payload carried by bearer tokens.
type Claims struct {
	UserID int64       `json:"user_id"`
	Role   entity.Role `json:"role"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies HS256 bearer tokens.
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer builds an Issuer from the auth configuration.
func NewIssuer(cfg config.Config) *Issuer {
	return &Issuer{
		secret: []byte(cfg.Auth.JWTSecret),
		issuer: cfg.Auth.Issuer,
		ttl:    cfg.Auth.TokenTTL,
		now:    time.Now,
	}
}

// Issue mints a token for actor and returns it with its expiry.
func (i *Issuer) Issue(actor Actor) (string, time.Time, error) {
	if actor.UserID <= 0 || !actor.Role.Valid() {
		return "", time.Time{}, fmt.Errorf("issue token: invalid actor %d/%q", actor.UserID, actor.Role)
	}

	now := i.now()
	expires := now.Add(i.ttl)
	claims := Claims{
		UserID: actor.UserID,
		Role:   actor.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   fmt.Sprintf("%d", actor.UserID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}

// Parse verifies a token and returns the actor it names.
func (i *Issuer) Parse(raw string) (Actor, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}

	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(*jwt.Token) (any, error) {
		return i.secret, nil
	}, opts...)
	if err != nil {
		return Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID <= 0 || !claims.Role.Valid() {
		return Actor{}, ErrInvalidToken
	}
	return Actor{UserID: claims.UserID, Role: claims.Role}, nil
}
