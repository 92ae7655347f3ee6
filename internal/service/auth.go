package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/akash-mondal/feed-alpha/internal/models"
	"github.com/akash-mondal/feed-alpha/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

var (
	ErrInvalidInitData = errors.New("invalid init data")
	ErrInitDataExpired = errors.New("init data expired")
	ErrInvalidToken    = errors.New("invalid token")
)

// TelegramUser is the user object embedded in Mini App init data.
type TelegramUser struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
}

// ValidateInitData verifies the Mini App launch parameters against the bot
// token and returns the user they describe.
func ValidateInitData(initData, botToken string, maxAge time.Duration, now time.Time) (*TelegramUser, error) {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInitData, err)
	}
	hash := values.Get("hash")
	if hash == "" {
		return nil, fmt.Errorf("%w: missing hash", ErrInvalidInitData)
	}

	if !hmac.Equal([]byte(hash), []byte(SignInitData(values, botToken))) {
		return nil, fmt.Errorf("%w: hash mismatch", ErrInvalidInitData)
	}

	authDate, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad auth_date", ErrInvalidInitData)
	}
	if maxAge > 0 && now.Sub(time.Unix(authDate, 0)) > maxAge {
		return nil, ErrInitDataExpired
	}

	var user TelegramUser
	if err := json.Unmarshal([]byte(values.Get("user")), &user); err != nil || user.ID == 0 {
		return nil, fmt.Errorf("%w: bad user", ErrInvalidInitData)
	}
	return &user, nil
}

// SignInitData computes the hex hash Telegram attaches to init data.
func SignInitData(values url.Values, botToken string) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		if k != "hash" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	lines := make([]string, len(keys))
	for i, k := range keys {
		lines[i] = k + "=" + values.Get(k)
	}

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))

	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(mac.Sum(nil))
}

type AuthService struct {
	users       repository.UserRepository
	botToken    string
	jwtSecret   []byte
	tokenTTL    time.Duration
	initDataTTL time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

func NewAuthService(users repository.UserRepository, botToken, jwtSecret string, tokenTTL, initDataTTL time.Duration, logger *zap.Logger) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &AuthService{
		users:       users,
		botToken:    botToken,
		jwtSecret:   []byte(jwtSecret),
		tokenTTL:    tokenTTL,
		initDataTTL: initDataTTL,
		logger:      logger,
		now:         time.Now,
	}
}

// Login exchanges Mini App init data for a session token, registering the
// user on first sight.
func (s *AuthService) Login(ctx context.Context, initData string) (string, time.Time, *models.User, error) {
	tgUser, err := ValidateInitData(initData, s.botToken, s.initDataTTL, s.now())
	if err != nil {
		s.logger.Warn("Rejected Mini App login", zap.Error(err))
		return "", time.Time{}, nil, err
	}

	user := &models.User{
		ID:        tgUser.ID,
		FirstName: tgUser.FirstName,
		LastName:  tgUser.LastName,
		Username:  tgUser.Username,
		CreatedAt: s.now(),
	}
	if err := s.users.Upsert(ctx, user); err != nil {
		s.logger.Error("Failed to upsert user", zap.Int64("user_id", user.ID), zap.Error(err))
		return "", time.Time{}, nil, fmt.Errorf("failed to register user: %w", err)
	}

	token, expires, err := s.IssueToken(user.ID, user.Username)
	if err != nil {
		return "", time.Time{}, nil, err
	}
	return token, expires, user, nil
}

func (s *AuthService) IssueToken(userID int64, username string) (string, time.Time, error) {
	expires := s.now().Add(s.tokenTTL)
	claims := &models.Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(s.now()),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return token, expires, nil
}

// ParseToken validates a bearer token and returns its claims.
func (s *AuthService) ParseToken(tokenString string) (*models.Claims, error) {
	claims := &models.Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.UserID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
