// Package user はユーザー登録と購読状態管理のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/webtec/internal/model"
	"github.com/hitoshi/webtec/internal/repository"
	"github.com/hitoshi/webtec/internal/security"
)

// Service はユーザー登録のサービス層。
// emailの一意性はデータベースの一意制約で保証し、事前の存在確認は行わない。
type Service struct {
	userRepo  repository.UserRepository
	sanitizer security.FieldSanitizer
	now       func() time.Time
	newID     func() string
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo repository.UserRepository, sanitizer security.FieldSanitizer) *Service {
	return &Service{
		userRepo:  userRepo,
		sanitizer: sanitizer,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
}

// CreateUser はユーザーを登録する。
// 同じemailのユーザーが既に存在する場合は何もせずCreated=falseを返す。
// 同時に同じemailで登録されても作成されるのは1件のみ。
func (s *Service) CreateUser(ctx context.Context, email string, fields map[string]any) (*model.CreateUserResult, error) {
	if strings.TrimSpace(email) == "" {
		return nil, model.NewInvalidEmailError()
	}

	rest := make(map[string]any, len(fields))
	for k, v := range fields {
		if k == "_id" || k == "email" || k == "status" {
			continue
		}
		rest[k] = v
	}

	now := s.now().UTC()
	u := &model.User{
		ID:        s.newID(),
		Email:     email,
		Fields:    s.sanitizer.SanitizeFields(rest),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if status, ok := fields["status"].(string); ok && status != "" {
		u.SubscriptionStatus = &status
	}

	if err := s.userRepo.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			slog.Info("登録済みのユーザーです", slog.String("email", email))
			return &model.CreateUserResult{Created: false}, nil
		}
		return nil, fmt.Errorf("ユーザーの登録に失敗しました: %w", err)
	}

	return &model.CreateUserResult{Created: true, ID: u.ID}, nil
}

// UpdateSubscriptionStatus はemailをキーに購読状態を設定する。
// ユーザーが存在しない場合はemailと購読状態のみのレコードを作成する。
func (s *Service) UpdateSubscriptionStatus(ctx context.Context, email, status string) (*model.UpdateResult, error) {
	if strings.TrimSpace(email) == "" {
		return nil, model.NewInvalidEmailError()
	}

	result, err := s.userRepo.UpsertStatus(ctx, email, status)
	if err != nil {
		return nil, fmt.Errorf("購読状態の更新に失敗しました: %w", err)
	}
	return result, nil
}

// ListUsers は全ユーザーを返す。
func (s *Service) ListUsers(ctx context.Context) ([]model.User, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}
	if users == nil {
		users = []model.User{}
	}
	return users, nil
}
