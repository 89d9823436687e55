// Package feedback はレビューと通報の受付を提供する。
// どちらも追記専用で、登録後に更新・削除されることはない。
package feedback

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/webtec/internal/model"
	"github.com/hitoshi/webtec/internal/repository"
	"github.com/hitoshi/webtec/internal/security"
)

// reviewProductField はレビューを対象アイテムで絞り込むためのフィールド名。
const reviewProductField = "productId"

// Service はレビュー・通報のサービス。
type Service struct {
	repo      repository.DocumentRepository
	sanitizer security.FieldSanitizer
	now       func() time.Time
	newID     func() string
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.DocumentRepository, sanitizer security.FieldSanitizer) *Service {
	return &Service{
		repo:      repo,
		sanitizer: sanitizer,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
}

// AddReview はレビューを登録する。
func (s *Service) AddReview(ctx context.Context, fields map[string]any) (*model.InsertResult, error) {
	return s.insert(ctx, model.DocumentReviews, fields)
}

// AddReport は通報を登録する。
func (s *Service) AddReport(ctx context.Context, fields map[string]any) (*model.InsertResult, error) {
	return s.insert(ctx, model.DocumentReports, fields)
}

// ListReviews はレビューを登録順に返す。
// productIDが空でない場合はそのアイテムへのレビューのみを返す。
func (s *Service) ListReviews(ctx context.Context, productID string) ([]model.Document, error) {
	field := ""
	if productID != "" {
		field = reviewProductField
	}
	docs, err := s.repo.List(ctx, model.DocumentReviews, field, productID)
	if err != nil {
		return nil, fmt.Errorf("レビュー一覧の取得に失敗しました: %w", err)
	}
	return docs, nil
}

func (s *Service) insert(ctx context.Context, kind model.DocumentKind, fields map[string]any) (*model.InsertResult, error) {
	rest := make(map[string]any, len(fields))
	for k, v := range fields {
		if k == "_id" {
			continue
		}
		rest[k] = v
	}

	doc := &model.Document{
		ID:        s.newID(),
		Fields:    s.sanitizer.SanitizeFields(rest),
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.Insert(ctx, kind, doc); err != nil {
		return nil, fmt.Errorf("%sの登録に失敗しました: %w", kind, err)
	}
	return &model.InsertResult{Acknowledged: true, InsertedID: doc.ID}, nil
}
