// Package auth はクライアントへ発行する署名付きトークンの生成と検証を提供する。
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL はトークンの有効期間。環境変数では変更できない。
const DefaultTokenTTL = time.Hour

var (
	// ErrUnauthenticated はトークンが欠落・不正・期限切れであることを表す。
	// 失敗理由は呼び出し元に区別させない。
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrMissingSecret は署名鍵が設定されていないことを表す。
	ErrMissingSecret = errors.New("token secret is not configured")
)

// 発行時にサーバーが設定する登録済み時刻クレーム。
var timeClaims = []string{"exp", "iat", "nbf"}

// TokenService はHS256で署名したトークンを発行・検証する。
// 状態を持たないため、発行済みトークンをサーバー側で失効させることはできない。
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService はTokenServiceを生成する。ttlが0以下の場合はDefaultTokenTTLを使用する。
func NewTokenService(secret string, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// TTL はトークンの有効期間を返す。
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue はクライアントが提示したペイロードを署名してトークンを生成する。
// ペイロード中の exp / iat / nbf はサーバーの値で上書きする。
func (s *TokenService) Issue(payload map[string]any) (string, error) {
	if len(s.secret) == 0 {
		return "", ErrMissingSecret
	}

	claims := make(jwt.MapClaims, len(payload)+2)
	for k, v := range payload {
		claims[k] = v
	}
	for _, k := range timeClaims {
		delete(claims, k)
	}
	issuedAt := s.now()
	claims["iat"] = issuedAt.Unix()
	claims["exp"] = issuedAt.Add(s.ttl).Unix()

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify はトークンの署名と有効期限を検証し、identityペイロードを返す。
// 返却するペイロードから時刻クレームは取り除く。
func (s *TokenService) Verify(token string) (map[string]any, error) {
	if len(s.secret) == 0 {
		return nil, ErrMissingSecret
	}
	if token == "" {
		return nil, ErrUnauthenticated
	}

	parsed, err := jwt.Parse(token,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrUnauthenticated
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrUnauthenticated
	}

	identity := make(map[string]any, len(claims))
	for k, v := range claims {
		identity[k] = v
	}
	for _, k := range timeClaims {
		delete(identity, k)
	}
	return identity, nil
}
