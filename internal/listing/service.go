// Package listing はアイテム一覧の取得と登録のドメインロジックを提供する。
package listing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/webtec/internal/model"
	"github.com/hitoshi/webtec/internal/repository"
	"github.com/hitoshi/webtec/internal/security"
)

// absenceMarkers はタグ未指定として扱う検索値。
// クライアントは未指定の変数をそのまま文字列化して送ってくる。
var absenceMarkers = map[string]bool{
	"":          true,
	"null":      true,
	"undefined": true,
}

// Service はアイテム一覧・件数・登録のサービス。
type Service struct {
	repo      repository.VotableRepository
	sanitizer security.FieldSanitizer
	now       func() time.Time
	newID     func() string
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.VotableRepository, sanitizer security.FieldSanitizer) *Service {
	return &Service{
		repo:      repo,
		sanitizer: sanitizer,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
}

// ParsePagination はクエリ文字列のpageとsizeを解釈する。
// 未指定は0として扱う。負数・非数値はINVALID_PAGINATIONを返す。
func ParsePagination(pageStr, sizeStr string) (page, size int, err error) {
	page, err = parseNonNegative("page", pageStr)
	if err != nil {
		return 0, 0, err
	}
	size, err = parseNonNegative("size", sizeStr)
	if err != nil {
		return 0, 0, err
	}
	return page, size, nil
}

func parseNonNegative(name, value string) (int, error) {
	if value == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, model.NewInvalidPaginationError(fmt.Sprintf("%s=%s", name, value))
	}
	return n, nil
}

// TagFilter は検索値をタグフィルタに変換する。
// 未指定マーカーの場合は空文字列（絞り込みなし）を返す。
func TagFilter(search string) string {
	if absenceMarkers[search] {
		return ""
	}
	return search
}

// tagFilter は検索値に保存時と同じサニタイズをかけ、保存済みのタグと比較できる形にする。
func (s *Service) tagFilter(search string) string {
	tag := TagFilter(search)
	if tag == "" {
		return ""
	}
	return s.sanitizer.SanitizeString(tag)
}

// ListItems はコレクションのアイテムをtimestamp降順で遅延取得するカーソルを返す。
// offset = page×size、limit = size。size が0の場合は件数制限なし。
// 呼び出し側はカーソルを必ずCloseする。
func (s *Service) ListItems(ctx context.Context, c model.Collection, page, size int, search string) (model.ItemCursor, error) {
	if _, ok := model.ParseCollection(string(c)); !ok {
		return nil, model.NewInvalidCollectionError(string(c))
	}
	if page < 0 || size < 0 {
		return nil, model.NewInvalidPaginationError(fmt.Sprintf("page=%d size=%d", page, size))
	}
	if size > 0 && page > math.MaxInt/size {
		return nil, model.NewInvalidPaginationError(fmt.Sprintf("page=%d size=%d", page, size))
	}

	cursor, err := s.repo.List(ctx, c, model.ListQuery{
		Offset: page * size,
		Limit:  size,
		Tag:    s.tagFilter(search),
	})
	if err != nil {
		return nil, fmt.Errorf("アイテム一覧の取得に失敗しました: %w", err)
	}
	return cursor, nil
}

// CountItems はコレクション全体の概算件数を返す。
// 一覧の絞り込み条件とは無関係に常に全体の件数を返す。
func (s *Service) CountItems(ctx context.Context, c model.Collection) (int64, error) {
	if _, ok := model.ParseCollection(string(c)); !ok {
		return 0, model.NewInvalidCollectionError(string(c))
	}
	n, err := s.repo.EstimatedCount(ctx, c)
	if err != nil {
		return 0, fmt.Errorf("件数の取得に失敗しました: %w", err)
	}
	return n, nil
}

// CountFiltered は検索値で絞り込んだ正確な件数を返す。
func (s *Service) CountFiltered(ctx context.Context, c model.Collection, search string) (int64, error) {
	if _, ok := model.ParseCollection(string(c)); !ok {
		return 0, model.NewInvalidCollectionError(string(c))
	}
	n, err := s.repo.CountByTag(ctx, c, s.tagFilter(search))
	if err != nil {
		return 0, fmt.Errorf("絞り込み件数の取得に失敗しました: %w", err)
	}
	return n, nil
}

// GetItem は指定IDのアイテムを返す。見つからない場合はnilを返す。
func (s *Service) GetItem(ctx context.Context, c model.Collection, id string) (*model.Votable, error) {
	if _, ok := model.ParseCollection(string(c)); !ok {
		return nil, model.NewInvalidCollectionError(string(c))
	}
	item, err := s.repo.FindByID(ctx, c, id)
	if err != nil {
		return nil, fmt.Errorf("アイテムの取得に失敗しました: %w", err)
	}
	return item, nil
}

// CreateItem は投稿されたドキュメントをアイテムとして登録する。
// _id, tags, votes, votedBy, timestamp は専用カラムに、それ以外は説明フィールドとして保存する。
func (s *Service) CreateItem(ctx context.Context, c model.Collection, fields map[string]any) (*model.InsertResult, error) {
	if _, ok := model.ParseCollection(string(c)); !ok {
		return nil, model.NewInvalidCollectionError(string(c))
	}

	item, err := s.buildItem(fields)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, c, item); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, model.NewDuplicateItemError(item.ID)
		}
		return nil, fmt.Errorf("アイテムの登録に失敗しました: %w", err)
	}

	return &model.InsertResult{Acknowledged: true, InsertedID: item.ID}, nil
}

// buildItem はドキュメントを既知キーと説明フィールドに分解する。
// _id はURLパスでそのまま指定されるキーなのでサニタイズしない。
func (s *Service) buildItem(fields map[string]any) (*model.Votable, error) {
	rest := make(map[string]any, len(fields))
	for k, v := range fields {
		rest[k] = v
	}

	item := &model.Votable{VotedBy: []string{}, Tags: []string{}}

	if raw, ok := rest["_id"]; ok {
		delete(rest, "_id")
		id, ok := raw.(string)
		if !ok || id == "" {
			return nil, model.NewInvalidRequestError("_id は空でない文字列で指定してください")
		}
		item.ID = id
	} else {
		item.ID = s.newID()
	}

	if raw, ok := rest["tags"]; ok {
		delete(rest, "tags")
		tags, err := stringList("tags", raw)
		if err != nil {
			return nil, err
		}
		item.Tags = s.sanitizeList(tags)
	}

	if raw, ok := rest["votedBy"]; ok {
		delete(rest, "votedBy")
		votedBy, err := stringList("votedBy", raw)
		if err != nil {
			return nil, err
		}
		item.VotedBy = votedBy
	}

	if raw, ok := rest["votes"]; ok {
		delete(rest, "votes")
		votes, err := integer("votes", raw)
		if err != nil {
			return nil, err
		}
		item.Votes = votes
	}

	ts := s.now().UTC()
	if raw, ok := rest["timestamp"]; ok {
		delete(rest, "timestamp")
		if raw != nil {
			parsed, err := parseTimestamp(raw)
			if err != nil {
				return nil, err
			}
			ts = parsed
		}
	}
	item.Timestamp = &ts

	item.Fields = s.sanitizer.SanitizeFields(rest)
	return item, nil
}

func (s *Service) sanitizeList(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = s.sanitizer.SanitizeString(v)
	}
	return out
}

// stringList はJSONの配列を文字列スライスに変換する。nullは空スライスとして扱う。
func stringList(name string, raw any) ([]string, error) {
	if raw == nil {
		return []string{}, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, model.NewInvalidRequestError(name + " は文字列の配列で指定してください")
	}
	out := make([]string, 0, len(list))
	for _, v := range list {
		str, ok := v.(string)
		if !ok {
			return nil, model.NewInvalidRequestError(name + " は文字列の配列で指定してください")
		}
		out = append(out, str)
	}
	return out, nil
}

// integer はJSONの数値を整数に変換する。小数部を持つ値は拒否する。
func integer(name string, raw any) (int, error) {
	f, ok := raw.(float64)
	if !ok || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, model.NewInvalidRequestError(name + " は整数で指定してください")
	}
	return int(f), nil
}

// parseTimestamp はRFC3339文字列またはエポックミリ秒を時刻に変換する。
func parseTimestamp(raw any) (time.Time, error) {
	switch v := raw.(type) {
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return time.Time{}, model.NewInvalidRequestError("timestamp の形式が不正です: " + v)
		}
		return t.UTC(), nil
	case float64:
		return time.UnixMilli(int64(v)).UTC(), nil
	default:
		return time.Time{}, model.NewInvalidRequestError("timestamp はRFC3339文字列またはエポックミリ秒で指定してください")
	}
}
