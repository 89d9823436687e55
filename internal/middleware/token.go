// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"net/http"

	"github.com/hitoshi/webtec/internal/model"
)

// TokenCookieName は署名付きトークンを保持するCookieの名前。
const TokenCookieName = "token"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// identityContextKey はリクエストコンテキストにidentityペイロードを格納するためのキー。
var identityContextKey = contextKey("identity")

// TokenVerifier はトークンの検証に必要なインターフェース。
type TokenVerifier interface {
	Verify(token string) (map[string]any, error)
}

// RejectionRecorder は認証拒否の記録先。
type RejectionRecorder interface {
	RecordAuthRejected()
}

// NewIdentityMiddleware はトークンCookieが有効な場合のみidentityをコンテキストに注入する。
// 未認証リクエストもそのまま通過させる。ログやレート制限のキーに利用する。
func NewIdentityMiddleware(verifier TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if identity, ok := verifyCookie(r, verifier); ok {
				r = r.WithContext(ContextWithIdentity(r.Context(), identity))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// NewTokenMiddleware はトークンCookieを検証し、未認証リクエストに401を返すミドルウェアを返す。
// Cookie欠落・署名不正・期限切れのいずれも同じレスポンスになる。
// recorderはnilでもよい。
func NewTokenMiddleware(verifier TokenVerifier, recorder RejectionRecorder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := IdentityFromContext(r.Context()); ok {
				next.ServeHTTP(w, r)
				return
			}

			identity, ok := verifyCookie(r, verifier)
			if !ok {
				if recorder != nil {
					recorder.RecordAuthRejected()
				}
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), identity)))
		})
	}
}

func verifyCookie(r *http.Request, verifier TokenVerifier) (map[string]any, bool) {
	cookie, err := r.Cookie(TokenCookieName)
	if err != nil || cookie.Value == "" {
		return nil, false
	}
	identity, err := verifier.Verify(cookie.Value)
	if err != nil {
		return nil, false
	}
	return identity, true
}

// IdentityFromContext はリクエストコンテキストからidentityペイロードを取得する。
func IdentityFromContext(ctx context.Context) (map[string]any, bool) {
	identity, ok := ctx.Value(identityContextKey).(map[string]any)
	return identity, ok && identity != nil
}

// EmailFromContext はidentityのemailクレームを返す。未認証または未設定の場合は空文字列。
func EmailFromContext(ctx context.Context) string {
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		return ""
	}
	email, _ := identity["email"].(string)
	return email
}

// ContextWithIdentity はコンテキストにidentityペイロードを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithIdentity(ctx context.Context, identity map[string]any) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}
