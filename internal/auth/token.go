package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenTTL はアクセストークンの有効期間。
const AccessTokenTTL = 24 * time.Hour

var (
	// ErrExpiredToken は署名は正しいが有効期限を過ぎたトークンを表す。
	ErrExpiredToken = errors.New("auth: token expired")
	// ErrMalformedToken は署名不正・アルゴリズム不一致・構造不正・ユーザーID欠落のトークンを表す。
	ErrMalformedToken = errors.New("auth: malformed token")
)

// Claims はアクセストークンのペイロード。
type Claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// TokenService はHS256で署名されたアクセストークンの発行と検証を行う。
// 検証はステートレスで、埋め込まれたユーザーIDの存在確認はしない。
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// TokenOption はTokenServiceの設定オプション。
type TokenOption func(*TokenService)

// WithClock は現在時刻の取得関数を差し替える（テスト用）。
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) {
		s.now = now
	}
}

// NewTokenService はTokenServiceを生成する。
func NewTokenService(secret string, opts ...TokenOption) *TokenService {
	s := &TokenService{
		secret: []byte(secret),
		ttl:    AccessTokenTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue は指定ユーザーIDのアクセストークンを発行する。
func (s *TokenService) Issue(userID string) (string, error) {
	now := s.now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify はトークンを検証し、埋め込まれたユーザーIDを返す。
func (s *TokenService) Verify(token string) (string, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	if claims.UserID == "" {
		return "", ErrMalformedToken
	}
	return claims.UserID, nil
}
