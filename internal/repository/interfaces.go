// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/webtec/internal/model"
)

// ErrDuplicateKey は一意制約違反で挿入できなかったことを表す。
var ErrDuplicateKey = errors.New("duplicate key")

// VotableRepository は投票対象アイテムの永続化インターフェース。
// すべての書き込みは単一行・単一ステートメントで行い、トランザクションは使用しない。
type VotableRepository interface {
	// List はtimestamp降順（同時刻はID昇順）でアイテムを遅延取得するカーソルを返す。
	// q.Tagが空でない場合はタグ集合に完全一致で含むアイテムのみに絞り込む。
	List(ctx context.Context, c model.Collection, q model.ListQuery) (model.ItemCursor, error)
	// FindByID は指定IDのアイテムを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, c model.Collection, id string) (*model.Votable, error)
	// Create はアイテムを挿入する。IDが重複する場合はErrDuplicateKeyを返す。
	Create(ctx context.Context, c model.Collection, item *model.Votable) error
	// EstimatedCount はフィルタを無視したコレクション全体の概算件数を返す。
	EstimatedCount(ctx context.Context, c model.Collection) (int64, error)
	// CountByTag はタグで絞り込んだ正確な件数を返す。tagが空の場合は全件数を返す。
	CountByTag(ctx context.Context, c model.Collection, tag string) (int64, error)
	// SetVotes はvotesとvoted_byを丸ごと上書きする（加算ではない）。
	// upsertがtrueの場合、存在しないIDには投票フィールドのみを持つ行を作成する。
	SetVotes(ctx context.Context, c model.Collection, id string, votes int, votedBy []string, upsert bool) (*model.UpdateResult, error)
	// ToggleVoter はvoted_byにvoterが含まれていれば除去し、含まれていなければ追加する。
	// votesはvoted_byの要素数から導出する。アイテムが存在しない場合はnilを返す。
	ToggleVoter(ctx context.Context, c model.Collection, id, voter string) (*model.VoteState, error)
}

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// Create はユーザーを挿入する。emailが既に存在する場合はErrDuplicateKeyを返す。
	Create(ctx context.Context, user *model.User) error
	// FindByEmail は指定emailのユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	// List は全ユーザーを作成日時順に返す。
	List(ctx context.Context) ([]model.User, error)
	// UpsertStatus はemailをキーに購読状態を設定する。
	// 存在しない場合はemailと購読状態のみを持つレコードを作成する。
	UpsertStatus(ctx context.Context, email, status string) (*model.UpdateResult, error)
}

// DocumentRepository は追記専用ドキュメント（レビュー・通報）の永続化インターフェース。
type DocumentRepository interface {
	// Insert はドキュメントを挿入する。
	Insert(ctx context.Context, kind model.DocumentKind, doc *model.Document) error
	// List はドキュメントを作成日時順に返す。
	// fieldとvalueが空でない場合はトップレベルフィールドの完全一致で絞り込む。
	List(ctx context.Context, kind model.DocumentKind, field, value string) ([]model.Document, error)
}

// HealthChecker はデータベースの疎通確認インターフェース。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}
