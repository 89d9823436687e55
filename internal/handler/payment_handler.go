package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/webtec/internal/middleware"
	"github.com/hitoshi/webtec/internal/model"
)

// PaymentServiceInterface は決済ハンドラーが必要とするサービスインターフェース。
type PaymentServiceInterface interface {
	CreateIntent(ctx context.Context, price float64) (string, error)
}

// PaymentHandler は決済のHTTPハンドラー。
type PaymentHandler struct {
	service PaymentServiceInterface
}

// NewPaymentHandler はPaymentHandlerを生成する。
func NewPaymentHandler(service PaymentServiceInterface) *PaymentHandler {
	return &PaymentHandler{service: service}
}

type paymentIntentRequest struct {
	Price *float64 `json:"price"`
}

type paymentIntentResponse struct {
	ClientSecret string `json:"clientSecret"`
}

// CreatePaymentIntent は支払いインテントを作成しクライアントシークレットを返す。
// POST /create-payment-intent
func (h *PaymentHandler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	var req paymentIntentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	if req.Price == nil {
		handleServiceError(w, model.NewInvalidPriceError())
		return
	}

	secret, err := h.service.CreateIntent(r.Context(), *req.Price)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, paymentIntentResponse{ClientSecret: secret})
}
