package service

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/akash-mondal/feed-alpha/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const botToken = "123456:test-bot-token"

func signedInitData(authDate time.Time, user string) string {
	v := url.Values{}
	v.Set("auth_date", strconv.FormatInt(authDate.Unix(), 10))
	v.Set("query_id", "AAH")
	v.Set("user", user)
	v.Set("hash", SignInitData(v, botToken))
	return v.Encode()
}

func TestValidateInitData(t *testing.T) {
	data := signedInitData(now.Add(-time.Minute), `{"id":42,"first_name":"Ada","username":"ada"}`)

	u, err := ValidateInitData(data, botToken, time.Hour, now)
	require.NoError(t, err)
	assert.Equal(t, int64(42), u.ID)
	assert.Equal(t, "Ada", u.FirstName)
	assert.Equal(t, "ada", u.Username)
}

func TestValidateInitDataRejects(t *testing.T) {
	fresh := signedInitData(now.Add(-time.Minute), `{"id":42}`)

	tests := []struct {
		name string
		data string
		want error
	}{
		{"wrong token", fresh, ErrInvalidInitData},
		{"tampered", strings.Replace(fresh, "query_id=AAH", "query_id=AAX", 1), ErrInvalidInitData},
		{"no hash", "auth_date=1&user=%7B%7D", ErrInvalidInitData},
		{"expired", signedInitData(now.Add(-2*time.Hour), `{"id":42}`), ErrInitDataExpired},
		{"no user id", signedInitData(now, `{"first_name":"x"}`), ErrInvalidInitData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := botToken
			if tt.name == "wrong token" {
				token = "999:other"
			}
			_, err := ValidateInitData(tt.data, token, time.Hour, now)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func newAuthService(t *testing.T) (*AuthService, repository.UserRepository) {
	t.Helper()
	users := repository.NewUserRepository(newDB(t), zap.NewNop())
	s := NewAuthService(users, botToken, "jwt-secret", time.Hour, time.Hour, zap.NewNop())
	s.now = func() time.Time { return now }
	return s, users
}

func TestLoginRegistersUserAndIssuesToken(t *testing.T) {
	s, users := newAuthService(t)

	token, expires, user, err := s.Login(context.Background(), signedInitData(now, `{"id":42,"first_name":"Ada"}`))
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), expires)
	assert.Equal(t, int64(42), user.ID)

	stored, err := users.Get(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "Ada", stored.FirstName)

	claims, err := s.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
}

func TestParseToken(t *testing.T) {
	s, _ := newAuthService(t)
	token, _, err := s.IssueToken(42, "ada")
	require.NoError(t, err)

	other := NewAuthService(nil, botToken, "different", time.Hour, 0, zap.NewNop())
	other.now = s.now
	_, err = other.ParseToken(token)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)

	s.now = func() time.Time { return now.Add(2 * time.Hour) }
	_, err = s.ParseToken(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	_, err = s.ParseToken("garbage")
	assert.Error(t, err)
}

func TestFeedback(t *testing.T) {
	users := repository.NewUserRepository(newDB(t), zap.NewNop())
	s := NewFeedbackService(users, zap.NewNop())
	ctx := context.Background()

	_, err := s.Submit(ctx, 42, 0, "")
	assert.ErrorIs(t, err, ErrInvalidRating)

	fb, err := s.Submit(ctx, 42, 5, "  "+strings.Repeat("é", 2500)+"  ")
	require.NoError(t, err)
	assert.NotZero(t, fb.ID)
	assert.Equal(t, 2000, len([]rune(fb.Comment)))

	consent, err := s.Consent(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, consent)

	assert.ErrorIs(t, s.SetConsent(ctx, 42, true), ErrNotFound)
}
