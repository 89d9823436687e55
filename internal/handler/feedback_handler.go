package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/webtec/internal/middleware"
	"github.com/hitoshi/webtec/internal/model"
)

// FeedbackServiceInterface はレビュー・通報ハンドラーが必要とするサービスインターフェース。
type FeedbackServiceInterface interface {
	AddReview(ctx context.Context, fields map[string]any) (*model.InsertResult, error)
	AddReport(ctx context.Context, fields map[string]any) (*model.InsertResult, error)
	ListReviews(ctx context.Context, productID string) ([]model.Document, error)
}

// FeedbackHandler はレビュー・通報のHTTPハンドラー。
type FeedbackHandler struct {
	service FeedbackServiceInterface
}

// NewFeedbackHandler はFeedbackHandlerを生成する。
func NewFeedbackHandler(service FeedbackServiceInterface) *FeedbackHandler {
	return &FeedbackHandler{service: service}
}

// AddReview はレビューを登録する。
// POST /reviews
func (h *FeedbackHandler) AddReview(w http.ResponseWriter, r *http.Request) {
	h.insert(w, r, h.service.AddReview)
}

// AddReport は通報を登録する。
// POST /reports
func (h *FeedbackHandler) AddReport(w http.ResponseWriter, r *http.Request) {
	h.insert(w, r, h.service.AddReport)
}

func (h *FeedbackHandler) insert(
	w http.ResponseWriter,
	r *http.Request,
	add func(ctx context.Context, fields map[string]any) (*model.InsertResult, error),
) {
	fields, err := decodeObject(w, r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	result, err := add(r.Context(), fields)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, result)
}

// ListReviews はレビューを登録順に返す。
// GET /reviews?productId=xxx
func (h *FeedbackHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	docs, err := h.service.ListReviews(r.Context(), r.URL.Query().Get("productId"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, docs)
}
