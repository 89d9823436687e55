package handler

import (
	"context"
	"log/slog"
	"math"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/webtec/internal/listing"
	"github.com/hitoshi/webtec/internal/middleware"
	"github.com/hitoshi/webtec/internal/model"
)

// ListingServiceInterface はアイテム一覧ハンドラーが必要とするサービスインターフェース。
type ListingServiceInterface interface {
	ListItems(ctx context.Context, c model.Collection, page, size int, search string) (model.ItemCursor, error)
	CountItems(ctx context.Context, c model.Collection) (int64, error)
	CountFiltered(ctx context.Context, c model.Collection, search string) (int64, error)
	GetItem(ctx context.Context, c model.Collection, id string) (*model.Votable, error)
	CreateItem(ctx context.Context, c model.Collection, fields map[string]any) (*model.InsertResult, error)
}

// VoteServiceInterface は投票ハンドラーが必要とするサービスインターフェース。
type VoteServiceInterface interface {
	ApplyVote(ctx context.Context, c model.Collection, id string, votes int, votedBy []string) (*model.UpdateResult, error)
	ToggleVote(ctx context.Context, c model.Collection, id, voter string) (*model.VoteState, error)
}

// ListingHandler はアイテム一覧・登録・投票のHTTPハンドラー。
// コレクション名はURLパスから取り、3つのコレクションで同じハンドラーを共有する。
type ListingHandler struct {
	listing ListingServiceInterface
	votes   VoteServiceInterface
}

// NewListingHandler はListingHandlerを生成する。
func NewListingHandler(listingService ListingServiceInterface, voteService VoteServiceInterface) *ListingHandler {
	return &ListingHandler{
		listing: listingService,
		votes:   voteService,
	}
}

// voteRequest は投票更新リクエストのボディ。
type voteRequest struct {
	UpdatedVoteCount *int     `json:"updatedVoteCount"`
	VotedBy          []string `json:"votedBy"`
}

// countResponse は件数レスポンス。
type countResponse struct {
	ProductCount int64 `json:"productCount"`
}

// collectionParam はURLパスのコレクション名を検証する。
func collectionParam(r *http.Request) (model.Collection, error) {
	name := chi.URLParam(r, "collection")
	c, ok := model.ParseCollection(name)
	if !ok {
		return "", model.NewInvalidCollectionError(name)
	}
	return c, nil
}

// ListItems はアイテム一覧を新しい順に返す。
// GET /{collection}?page=0&size=10&search=tag
func (h *ListingHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	c, err := collectionParam(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	q := r.URL.Query()
	page, size, err := listing.ParsePagination(q.Get("page"), q.Get("size"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	cursor, err := h.listing.ListItems(r.Context(), c, page, size, q.Get("search"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	defer cursor.Close()

	items := []model.Votable{}
	for cursor.Next() {
		items = append(items, cursor.Item())
	}
	if err := cursor.Err(); err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, items)
}

// CreateItem はアイテムを登録する。
// POST /{collection}
func (h *ListingHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	c, err := collectionParam(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	fields, err := decodeObject(w, r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	result, err := h.listing.CreateItem(r.Context(), c, fields)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, result)
}

// GetItem は単一のアイテムを返す。存在しない場合はnullを返す。
// GET /{collection}/{id}
func (h *ListingHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	c, err := collectionParam(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	item, err := h.listing.GetItem(r.Context(), c, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if item == nil {
		middleware.WriteJSON(w, http.StatusOK, nil)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, item)
}

// CountProducts は全プロダクトの概算件数を返す。検索条件は使わない。
// GET /allproductcount
func (h *ListingHandler) CountProducts(w http.ResponseWriter, r *http.Request) {
	n, err := h.listing.CountItems(r.Context(), model.CollectionProducts)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, countResponse{ProductCount: n})
}

// CountFilteredProducts は検索タグで絞り込んだプロダクトの正確な件数を返す。
// GET /allproductcount/filtered?search=tag
func (h *ListingHandler) CountFilteredProducts(w http.ResponseWriter, r *http.Request) {
	n, err := h.listing.CountFiltered(r.Context(), model.CollectionProducts, r.URL.Query().Get("search"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, countResponse{ProductCount: n})
}

// ApplyVote はクライアントが計算した投票数と投票者リストで上書きする。
// PUT /upVotes/{collection}/{id}
func (h *ListingHandler) ApplyVote(w http.ResponseWriter, r *http.Request) {
	c, err := collectionParam(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	var req voteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	if req.UpdatedVoteCount == nil {
		handleServiceError(w, model.NewInvalidRequestError("updatedVoteCount は必須です"))
		return
	}
	// votesカラムは32ビット整数
	if n := *req.UpdatedVoteCount; n > math.MaxInt32 || n < math.MinInt32 {
		handleServiceError(w, model.NewInvalidRequestError("updatedVoteCount は32ビット整数の範囲で指定してください"))
		return
	}

	result, err := h.votes.ApplyVote(r.Context(), c, chi.URLParam(r, "id"), *req.UpdatedVoteCount, req.VotedBy)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, result)
}

// ToggleVote はトークンのemailを投票者として投票を切り替える。
// TokenMiddleware配下で使用する。
// POST /upVotes/{collection}/{id}/toggle
func (h *ListingHandler) ToggleVote(w http.ResponseWriter, r *http.Request) {
	c, err := collectionParam(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	id := chi.URLParam(r, "id")
	voter := middleware.EmailFromContext(r.Context())
	state, err := h.votes.ToggleVote(r.Context(), c, id, voter)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	slog.Debug("vote toggled",
		slog.String("collection", string(c)),
		slog.String("item_id", id),
		slog.Bool("voted", state.Voted),
	)
	middleware.WriteJSON(w, http.StatusOK, state)
}
