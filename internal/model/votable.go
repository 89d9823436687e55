package model

import (
	"encoding/json"
	"time"
)

// Collection は投票対象アイテムを保持するコレクションを表す。
// 3つのコレクションは互いに独立しており、同一のスキーマを持つ。
type Collection string

const (
	// CollectionProducts は全プロダクト一覧。
	CollectionProducts Collection = "allproducts"
	// CollectionFeatured は注目アイテム一覧。
	CollectionFeatured Collection = "featured"
	// CollectionTrending はトレンドアイテム一覧。
	CollectionTrending Collection = "trending"
)

// Collections は有効なコレクションの一覧を返す。
func Collections() []Collection {
	return []Collection{CollectionProducts, CollectionFeatured, CollectionTrending}
}

// ParseCollection はURLパス上のコレクション名を解釈する。
// 未知の名前の場合はfalseを返す。
func ParseCollection(name string) (Collection, bool) {
	switch Collection(name) {
	case CollectionProducts, CollectionFeatured, CollectionTrending:
		return Collection(name), true
	default:
		return "", false
	}
}

// Table はコレクションに対応するテーブル名を返す。
// SQLに埋め込まれるため、ホワイトリスト外の値に対しては空文字列を返す。
func (c Collection) Table() string {
	switch c {
	case CollectionProducts:
		return "products"
	case CollectionFeatured:
		return "featured"
	case CollectionTrending:
		return "trending"
	default:
		return ""
	}
}

// Votable は投票可能なアイテム（プロダクト・注目・トレンド）を表す。
//
// Fields は説明用の任意フィールド（name, image, description 等）を保持する。
// Tags が nil のアイテムは投票の upsert によってのみ作られたドキュメントで、
// タグ・タイムスタンプ・説明フィールドを持たない。
type Votable struct {
	ID        string
	Fields    map[string]any
	Tags      []string
	Votes     int
	VotedBy   []string
	Timestamp *time.Time
}

// MarshalJSON は説明フィールドをトップレベルに展開したドキュメント形式で出力する。
func (v Votable) MarshalJSON() ([]byte, error) {
	doc := make(map[string]any, len(v.Fields)+5)
	for k, val := range v.Fields {
		doc[k] = val
	}
	doc["_id"] = v.ID
	doc["votes"] = v.Votes
	votedBy := v.VotedBy
	if votedBy == nil {
		votedBy = []string{}
	}
	doc["votedBy"] = votedBy
	if v.Tags != nil {
		doc["tags"] = v.Tags
	}
	if v.Timestamp != nil {
		doc["timestamp"] = v.Timestamp.UTC().Format(time.RFC3339Nano)
	}
	return json.Marshal(doc)
}

// ListQuery は一覧取得の条件を表す。
// Limit が0の場合は件数制限なしとして扱う。
type ListQuery struct {
	Offset int
	Limit  int
	Tag    string
}

// ItemCursor は一覧取得結果を遅延評価で1件ずつ返すカーソル。
// 一度走査したカーソルは再利用できない。再取得には新たなクエリを発行する。
type ItemCursor interface {
	Next() bool
	Item() Votable
	Err() error
	Close() error
}

// UpdateResult はドキュメント更新の結果を表す。
// ドキュメントストアの更新応答と同じ形でクライアントに返す。
type UpdateResult struct {
	Acknowledged  bool    `json:"acknowledged"`
	MatchedCount  int     `json:"matchedCount"`
	ModifiedCount int     `json:"modifiedCount"`
	UpsertedCount int     `json:"upsertedCount"`
	UpsertedID    *string `json:"upsertedId"`
}

// InsertResult はドキュメント挿入の結果を表す。
type InsertResult struct {
	Acknowledged bool   `json:"acknowledged"`
	InsertedID   string `json:"insertedId"`
}

// VoteState はサーバー側でトグルした後の投票状態を表す。
type VoteState struct {
	Votes   int      `json:"votes"`
	VotedBy []string `json:"votedBy"`
	Voted   bool     `json:"voted"`
}
