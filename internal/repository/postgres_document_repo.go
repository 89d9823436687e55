package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/webtec/internal/model"
)

// PostgresDocumentRepo はPostgreSQLを使用した追記専用ドキュメントのリポジトリ。
type PostgresDocumentRepo struct {
	db *sql.DB
}

// NewPostgresDocumentRepo はPostgresDocumentRepoを生成する。
func NewPostgresDocumentRepo(db *sql.DB) *PostgresDocumentRepo {
	return &PostgresDocumentRepo{db: db}
}

func documentTable(kind model.DocumentKind) (string, error) {
	table := kind.Table()
	if table == "" {
		return "", fmt.Errorf("unknown document kind: %q", kind)
	}
	return table, nil
}

// Insert はドキュメントを挿入する。
func (r *PostgresDocumentRepo) Insert(ctx context.Context, kind model.DocumentKind, doc *model.Document) error {
	table, err := documentTable(kind)
	if err != nil {
		return err
	}
	data, err := marshalFields(doc.Fields)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, data, created_at) VALUES ($1, $2, $3)`, table),
		doc.ID, data, doc.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%sのIDが重複しています: %s: %w", kind, doc.ID, ErrDuplicateKey)
	}
	if err != nil {
		return fmt.Errorf("%sの作成に失敗しました: %w", kind, err)
	}
	return nil
}

// List はドキュメントを作成日時順に返す。
// fieldが空でない場合は data->>field = value で絞り込む。
func (r *PostgresDocumentRepo) List(ctx context.Context, kind model.DocumentKind, field, value string) ([]model.Document, error) {
	table, err := documentTable(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT id, data, created_at FROM %s`, table)
	var args []interface{}
	if field != "" {
		query += ` WHERE data->>$1 = $2`
		args = append(args, field, value)
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%sの一覧取得に失敗しました: %w", kind, err)
	}
	defer rows.Close()

	docs := []model.Document{}
	for rows.Next() {
		var doc model.Document
		var data []byte
		if err := rows.Scan(&doc.ID, &data, &doc.CreatedAt); err != nil {
			return nil, fmt.Errorf("%sの行読み取りに失敗しました: %w", kind, err)
		}
		fields, err := unmarshalFields(data)
		if err != nil {
			return nil, err
		}
		doc.Fields = fields
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%sの一覧走査に失敗しました: %w", kind, err)
	}
	return docs, nil
}

// compile-time interface check
var _ DocumentRepository = (*PostgresDocumentRepo)(nil)
