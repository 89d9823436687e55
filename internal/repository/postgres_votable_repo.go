package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/webtec/internal/model"
	"github.com/lib/pq"
)

// PostgresVotableRepo はPostgreSQLを使用した投票対象アイテムのリポジトリ。
// products / featured / trending の3テーブルを同一の実装で扱う。
type PostgresVotableRepo struct {
	db *sql.DB
}

// NewPostgresVotableRepo はPostgresVotableRepoを生成する。
func NewPostgresVotableRepo(db *sql.DB) *PostgresVotableRepo {
	return &PostgresVotableRepo{db: db}
}

const votableColumns = `id, data, tags, votes, voted_by, posted_at`

// tableFor はコレクションのテーブル名を返す。
// テーブル名はSQLに埋め込むため、ホワイトリスト外は必ずエラーにする。
func tableFor(c model.Collection) (string, error) {
	table := c.Table()
	if table == "" {
		return "", model.NewInvalidCollectionError(string(c))
	}
	return table, nil
}

// List はtimestamp降順でアイテムを遅延取得するカーソルを返す。
// 同時刻のアイテムはID昇順で並べ、1回のクエリ内での順序を安定させる。
func (r *PostgresVotableRepo) List(ctx context.Context, c model.Collection, q model.ListQuery) (model.ItemCursor, error) {
	table, err := tableFor(c)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM %s`, votableColumns, table)
	args := []interface{}{}
	argIndex := 1

	// タグは集合への完全一致（部分一致・前方一致ではない）
	if q.Tag != "" {
		query += fmt.Sprintf(" WHERE $%d = ANY(tags)", argIndex)
		args = append(args, q.Tag)
		argIndex++
	}

	query += " ORDER BY posted_at DESC NULLS LAST, id ASC"

	// limit 0 は件数制限なし
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, q.Limit)
		argIndex++
	}
	query += fmt.Sprintf(" OFFSET $%d", argIndex)
	args = append(args, q.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("アイテム一覧の取得に失敗しました: %w", err)
	}

	return &rowsCursor{rows: rows}, nil
}

// FindByID は指定IDのアイテムを取得する。見つからない場合はnilを返す。
func (r *PostgresVotableRepo) FindByID(ctx context.Context, c model.Collection, id string) (*model.Votable, error) {
	table, err := tableFor(c)
	if err != nil {
		return nil, err
	}

	row := r.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, votableColumns, table),
		id,
	)
	item, err := scanVotable(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("アイテムの取得に失敗しました: %w", err)
	}
	return item, nil
}

// Create はアイテムを挿入する。
func (r *PostgresVotableRepo) Create(ctx context.Context, c model.Collection, item *model.Votable) error {
	table, err := tableFor(c)
	if err != nil {
		return err
	}

	data, err := marshalFields(item.Fields)
	if err != nil {
		return err
	}
	votedBy := item.VotedBy
	if votedBy == nil {
		votedBy = []string{}
	}

	_, err = r.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (%s) VALUES ($1, $2, $3, $4, $5, $6)`, table, votableColumns),
		item.ID, data, pq.Array(item.Tags), item.Votes, pq.Array(votedBy), item.Timestamp,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("アイテムIDが重複しています: %s: %w", item.ID, ErrDuplicateKey)
	}
	if err != nil {
		return fmt.Errorf("アイテムの作成に失敗しました: %w", err)
	}
	return nil
}

// EstimatedCount はコレクション全体の概算件数を返す。
// 統計情報（pg_class.reltuples）が未収集の場合のみ正確な件数にフォールバックする。
func (r *PostgresVotableRepo) EstimatedCount(ctx context.Context, c model.Collection) (int64, error) {
	table, err := tableFor(c)
	if err != nil {
		return 0, err
	}

	var estimate sql.NullFloat64
	err = r.db.QueryRowContext(ctx,
		`SELECT reltuples FROM pg_class WHERE oid = to_regclass($1)`,
		table,
	).Scan(&estimate)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("概算件数の取得に失敗しました: %w", err)
	}
	if estimate.Valid && estimate.Float64 > 0 {
		return int64(estimate.Float64), nil
	}

	return r.CountByTag(ctx, c, "")
}

// CountByTag はタグで絞り込んだ正確な件数を返す。
func (r *PostgresVotableRepo) CountByTag(ctx context.Context, c model.Collection, tag string) (int64, error) {
	table, err := tableFor(c)
	if err != nil {
		return 0, err
	}

	var count int64
	if tag == "" {
		err = r.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT count(*) FROM %s`, table)).Scan(&count)
	} else {
		err = r.db.QueryRowContext(ctx,
			fmt.Sprintf(`SELECT count(*) FROM %s WHERE $1 = ANY(tags)`, table),
			tag,
		).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("件数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// SetVotes はvotesとvoted_byを丸ごと上書きする。
// 同一引数で繰り返し呼んでも結果の行は変わらない（後勝ち・非加算）。
// 書き込み前の値はCTEで同一ステートメント内に読み、modifiedCountの算出にのみ使う。
func (r *PostgresVotableRepo) SetVotes(
	ctx context.Context,
	c model.Collection,
	id string,
	votes int,
	votedBy []string,
	upsert bool,
) (*model.UpdateResult, error) {
	table, err := tableFor(c)
	if err != nil {
		return nil, err
	}
	if votedBy == nil {
		votedBy = []string{}
	}

	if upsert {
		return r.upsertVotes(ctx, table, id, votes, votedBy)
	}
	return r.updateVotes(ctx, table, id, votes, votedBy)
}

func (r *PostgresVotableRepo) upsertVotes(ctx context.Context, table, id string, votes int, votedBy []string) (*model.UpdateResult, error) {
	var inserted, unchanged bool
	err := r.db.QueryRowContext(ctx,
		fmt.Sprintf(`
		WITH prev AS (SELECT votes, voted_by FROM %[1]s WHERE id = $1)
		INSERT INTO %[1]s (id, votes, voted_by) VALUES ($1, $2::integer, $3::text[])
		ON CONFLICT (id) DO UPDATE SET votes = EXCLUDED.votes, voted_by = EXCLUDED.voted_by
		RETURNING (xmax = 0) AS inserted,
		          COALESCE((SELECT votes = $2::integer AND voted_by = $3::text[] FROM prev), false) AS unchanged`,
			table),
		id, votes, pq.Array(votedBy),
	).Scan(&inserted, &unchanged)
	if err != nil {
		return nil, fmt.Errorf("投票数の更新に失敗しました: %w", err)
	}

	result := &model.UpdateResult{Acknowledged: true}
	if inserted {
		upsertedID := id
		result.UpsertedCount = 1
		result.UpsertedID = &upsertedID
		return result, nil
	}
	result.MatchedCount = 1
	if !unchanged {
		result.ModifiedCount = 1
	}
	return result, nil
}

func (r *PostgresVotableRepo) updateVotes(ctx context.Context, table, id string, votes int, votedBy []string) (*model.UpdateResult, error) {
	var unchanged bool
	err := r.db.QueryRowContext(ctx,
		fmt.Sprintf(`
		WITH prev AS (SELECT votes, voted_by FROM %[1]s WHERE id = $1),
		     upd AS (UPDATE %[1]s SET votes = $2::integer, voted_by = $3::text[] WHERE id = $1 RETURNING id)
		SELECT (prev.votes = $2::integer AND prev.voted_by = $3::text[]) AS unchanged
		FROM prev, upd`,
			table),
		id, votes, pq.Array(votedBy),
	).Scan(&unchanged)

	result := &model.UpdateResult{Acknowledged: true}
	if errors.Is(err, sql.ErrNoRows) {
		// 対象なし: 何も作成しない
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("投票数の更新に失敗しました: %w", err)
	}

	result.MatchedCount = 1
	if !unchanged {
		result.ModifiedCount = 1
	}
	return result, nil
}

// ToggleVoter はvoted_byに対するvoterの追加・除去を1ステートメントで行う。
// votesはvoted_byの要素数から導出するため、クライアント申告値は使わない。
func (r *PostgresVotableRepo) ToggleVoter(ctx context.Context, c model.Collection, id, voter string) (*model.VoteState, error) {
	table, err := tableFor(c)
	if err != nil {
		return nil, err
	}

	state := &model.VoteState{}
	var votedBy []string
	err = r.db.QueryRowContext(ctx,
		fmt.Sprintf(`
		UPDATE %s SET
		    voted_by = CASE WHEN $2::text = ANY(voted_by)
		                    THEN array_remove(voted_by, $2::text)
		                    ELSE array_append(voted_by, $2::text) END,
		    votes = cardinality(CASE WHEN $2::text = ANY(voted_by)
		                             THEN array_remove(voted_by, $2::text)
		                             ELSE array_append(voted_by, $2::text) END)
		WHERE id = $1
		RETURNING votes, voted_by, $2::text = ANY(voted_by)`,
			table),
		id, voter,
	).Scan(&state.Votes, pq.Array(&votedBy), &state.Voted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("投票のトグルに失敗しました: %w", err)
	}

	if votedBy == nil {
		votedBy = []string{}
	}
	state.VotedBy = votedBy
	return state, nil
}

// rowSource は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowSource interface {
	Scan(dest ...any) error
}

// scanVotable は1行をVotableに変換する。
func scanVotable(row rowSource) (*model.Votable, error) {
	item := &model.Votable{}
	var data []byte
	var tags, votedBy []string
	var postedAt sql.NullTime

	if err := row.Scan(&item.ID, &data, pq.Array(&tags), &item.Votes, pq.Array(&votedBy), &postedAt); err != nil {
		return nil, err
	}

	fields, err := unmarshalFields(data)
	if err != nil {
		return nil, err
	}
	item.Fields = fields
	item.Tags = tags
	item.VotedBy = votedBy
	if item.VotedBy == nil {
		item.VotedBy = []string{}
	}
	if postedAt.Valid {
		t := postedAt.Time
		item.Timestamp = &t
	}
	return item, nil
}

// rowsCursor は*sql.Rowsを1件ずつVotableとして返すカーソル。
type rowsCursor struct {
	rows    *sql.Rows
	current model.Votable
	err     error
}

// Next は次の行を読み込む。行が無いか読み取りに失敗した場合はfalseを返し、行セットを閉じる。
func (c *rowsCursor) Next() bool {
	if c.err != nil {
		return false
	}
	if !c.rows.Next() {
		c.err = c.rows.Err()
		c.rows.Close()
		return false
	}
	item, err := scanVotable(c.rows)
	if err != nil {
		c.err = fmt.Errorf("アイテム行の読み取りに失敗しました: %w", err)
		c.rows.Close()
		return false
	}
	c.current = *item
	return true
}

func (c *rowsCursor) Item() model.Votable { return c.current }

func (c *rowsCursor) Err() error { return c.err }

func (c *rowsCursor) Close() error { return c.rows.Close() }

// compile-time interface check
var _ VotableRepository = (*PostgresVotableRepo)(nil)
