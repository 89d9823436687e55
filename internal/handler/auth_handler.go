package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/webtec/internal/middleware"
	"github.com/hitoshi/webtec/internal/model"
)

// TokenIssuerInterface は認証ハンドラーが必要とするトークン発行のインターフェース。
type TokenIssuerInterface interface {
	Issue(payload map[string]any) (string, error)
	TTL() time.Duration
}

// TokenIssuedRecorder はトークン発行のメトリクス記録先。
type TokenIssuedRecorder interface {
	RecordTokenIssued()
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	// Production がtrueの場合、Cookieを Secure + SameSite=None で発行する。
	// falseの場合は Secure なし + SameSite=Strict。
	Production bool
}

// AuthHandler はトークン発行・破棄のHTTPハンドラー。
type AuthHandler struct {
	issuer   TokenIssuerInterface
	recorder TokenIssuedRecorder
	config   AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(issuer TokenIssuerInterface, recorder TokenIssuedRecorder, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		issuer:   issuer,
		recorder: recorder,
		config:   config,
	}
}

// IssueToken はリクエストボディの識別情報を署名付きトークンにしてCookieに設定する。
// POST /jwt
func (h *AuthHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	payload, err := decodeObject(w, r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	token, err := h.issuer.Issue(payload)
	if err != nil {
		slog.Error("failed to issue token", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	sameSite := http.SameSiteStrictMode
	if h.config.Production {
		sameSite = http.SameSiteNoneMode
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.issuer.TTL().Seconds()),
		HttpOnly: true,
		Secure:   h.config.Production,
		SameSite: sameSite,
	})

	if h.recorder != nil {
		h.recorder.RecordTokenIssued()
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]bool{"auth": true})
}

// Logout はトークンCookieを削除する。
// サーバー側にトークンの失効リストは持たないため、
// 削除前に取得されたトークンは有効期限まで使用できる。
// POST /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})

	middleware.WriteJSON(w, http.StatusOK, map[string]bool{"clear": true})
}

// Me はトークンに含まれる識別情報を返す。
// TokenMiddleware配下で使用する。
// GET /me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		handleServiceError(w, model.NewUnauthorizedError())
		return
	}
	middleware.WriteJSON(w, http.StatusOK, identity)
}
