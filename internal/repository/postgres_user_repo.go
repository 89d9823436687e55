package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hitoshi/webtec/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// Create はユーザーを挿入する。
// emailの一意制約で重複を検出するため、同時に同じemailで作成されても1件しか残らない。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	data, err := marshalFields(user.Fields)
	if err != nil {
		return err
	}

	var status sql.NullString
	if user.SubscriptionStatus != nil {
		status = sql.NullString{String: *user.SubscriptionStatus, Valid: true}
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, data, subscription_status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		user.ID, user.Email, data, status, user.CreatedAt, user.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("user already exists: %s: %w", user.Email, ErrDuplicateKey)
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// FindByEmail は指定emailのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, email, data, subscription_status, created_at, updated_at
		 FROM users WHERE email = $1`,
		email,
	)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return user, nil
}

// List は全ユーザーを作成日時順に返す。
func (r *PostgresUserRepo) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, email, data, subscription_status, created_at, updated_at
		 FROM users ORDER BY created_at ASC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

// UpsertStatus はemailをキーに購読状態を設定する。
// 存在しない場合はemailと購読状態のみを持つレコードを作成する。
func (r *PostgresUserRepo) UpsertStatus(ctx context.Context, email, status string) (*model.UpdateResult, error) {
	var id string
	var inserted, unchanged bool
	err := r.db.QueryRowContext(ctx,
		`WITH prev AS (SELECT subscription_status FROM users WHERE email = $2)
		 INSERT INTO users (id, email, subscription_status) VALUES ($1, $2, $3)
		 ON CONFLICT (email) DO UPDATE SET subscription_status = EXCLUDED.subscription_status, updated_at = now()
		 RETURNING id, (xmax = 0) AS inserted,
		           COALESCE((SELECT subscription_status IS NOT DISTINCT FROM $3 FROM prev), false) AS unchanged`,
		uuid.New().String(), email, nullString(status),
	).Scan(&id, &inserted, &unchanged)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user status: %w", err)
	}

	result := &model.UpdateResult{Acknowledged: true}
	if inserted {
		result.UpsertedCount = 1
		result.UpsertedID = &id
		return result, nil
	}
	result.MatchedCount = 1
	if !unchanged {
		result.ModifiedCount = 1
	}
	return result, nil
}

func scanUser(row rowSource) (*model.User, error) {
	user := &model.User{}
	var data []byte
	var status sql.NullString
	if err := row.Scan(&user.ID, &user.Email, &data, &status, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return nil, err
	}
	fields, err := unmarshalFields(data)
	if err != nil {
		return nil, err
	}
	user.Fields = fields
	if status.Valid {
		s := status.String
		user.SubscriptionStatus = &s
	}
	return user, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
