package checkout

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenSecretMissing = errors.New("session token secret missing")
	ErrTokenInvalid       = errors.New("session token invalid")
)

const defaultTokenTTL = 2 * time.Hour

// SessionClaims 结算会话令牌声明
type SessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// TokenIssuer 会话令牌签发与校验
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer 创建令牌签发器
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &TokenIssuer{secret: []byte(strings.TrimSpace(secret)), ttl: ttl, now: time.Now}
}

// Issue 为会话签发令牌
func (t *TokenIssuer) Issue(sessionID string) (string, time.Time, error) {
	if len(t.secret) == 0 {
		return "", time.Time{}, ErrTokenSecretMissing
	}
	now := t.now()
	expiresAt := now.Add(t.ttl)
	claims := SessionClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Parse 校验令牌并返回会话 ID
func (t *TokenIssuer) Parse(tokenString string) (string, error) {
	if len(t.secret) == 0 {
		return "", ErrTokenSecretMissing
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
	)
	claims := &SessionClaims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	})
	if err != nil || !token.Valid || strings.TrimSpace(claims.SessionID) == "" {
		return "", ErrTokenInvalid
	}
	return claims.SessionID, nil
}
