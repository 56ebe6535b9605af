package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/harvest/internal/config"
	"github.com/Additional-Code/harvest/internal/entity"
)

func newTestIssuer(now time.Time) *Issuer {
	cfg := config.Config{Auth: config.Auth{JWTSecret: "s3cret", Issuer: "harvest", TokenTTL: time.Hour}}
	i := NewIssuer(cfg)
	i.now = func() time.Time { return now }
	return i
}

func TestIssueAndParse(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	i := newTestIssuer(now)

	token, expires, err := i.Issue(Actor{UserID: 9, Role: entity.RoleFarmer})
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), expires)

	actor, err := i.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, Actor{UserID: 9, Role: entity.RoleFarmer}, actor)
}

func TestIssueRejectsInvalidActor(t *testing.T) {
	i := newTestIssuer(time.Now())

	_, _, err := i.Issue(Actor{UserID: 0, Role: entity.RoleBuyer})
	assert.Error(t, err)
	_, _, err = i.Issue(Actor{UserID: 1, Role: "root"})
	assert.Error(t, err)
}

func TestParseRejects(t *testing.T) {
	now := time.Now()
	i := newTestIssuer(now)
	token, _, err := i.Issue(Actor{UserID: 1, Role: entity.RoleBuyer})
	require.NoError(t, err)

	t.Run("expired", func(t *testing.T) {
		later := newTestIssuer(now.Add(2 * time.Hour))
		_, err := later.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewIssuer(config.Config{Auth: config.Auth{JWTSecret: "other", Issuer: "harvest", TokenTTL: time.Hour}})
		_, err := other.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := NewIssuer(config.Config{Auth: config.Auth{JWTSecret: "s3cret", Issuer: "elsewhere", TokenTTL: time.Hour}})
		_, err := other.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("unsigned", func(t *testing.T) {
		raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: 1, Role: entity.RoleAdmin}).
			SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = i.Parse(raw)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := i.Parse("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)

	assert.NoError(t, CheckPassword(hash, "correct horse"))
	assert.ErrorIs(t, CheckPassword(hash, "wrong"), ErrPasswordMismatch)
}
