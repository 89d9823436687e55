package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/webtec/internal/middleware"
	"github.com/hitoshi/webtec/internal/model"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	CreateUser(ctx context.Context, email string, fields map[string]any) (*model.CreateUserResult, error)
	UpdateSubscriptionStatus(ctx context.Context, email, status string) (*model.UpdateResult, error)
	ListUsers(ctx context.Context) ([]model.User, error)
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{service: service}
}

// existingUserResponse は登録済みユーザーに対するレスポンス。
type existingUserResponse struct {
	Message    string  `json:"message"`
	InsertedID *string `json:"insertedId"`
}

// updateStatusRequest は購読状態更新リクエストのボディ。
type updateStatusRequest struct {
	Email  string `json:"email"`
	Status string `json:"status"`
}

// CreateUser はユーザーを登録する。
// 登録済みのemailの場合は200で {"message":"user already exists","insertedId":null} を返す。
// POST /users
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeObject(w, r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	email, _ := fields["email"].(string)
	result, err := h.service.CreateUser(r.Context(), email, fields)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if !result.Created {
		middleware.WriteJSON(w, http.StatusOK, existingUserResponse{Message: "user already exists"})
		return
	}
	middleware.WriteJSON(w, http.StatusOK, model.InsertResult{Acknowledged: true, InsertedID: result.ID})
}

// ListUsers は全ユーザーを返す。
// GET /users
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, users)
}

// UpdateStatus はemailをキーに購読状態を設定する。
// PUT /users
func (h *UserHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	result, err := h.service.UpdateSubscriptionStatus(r.Context(), req.Email, req.Status)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, result)
}
