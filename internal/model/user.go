package model

import (
	"encoding/json"
	"time"
)

// User はマーケットプレイスの利用ユーザーを表す。
// email が一意キーで、1つのemailに対してレコードは最大1件。
type User struct {
	ID                 string
	Email              string
	Fields             map[string]any
	SubscriptionStatus *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// MarshalJSON は任意フィールドをトップレベルに展開したドキュメント形式で出力する。
func (u User) MarshalJSON() ([]byte, error) {
	doc := make(map[string]any, len(u.Fields)+3)
	for k, v := range u.Fields {
		doc[k] = v
	}
	doc["_id"] = u.ID
	doc["email"] = u.Email
	if u.SubscriptionStatus != nil {
		doc["status"] = *u.SubscriptionStatus
	}
	return json.Marshal(doc)
}

// CreateUserResult はユーザー作成の結果を表す。
// Created が false の場合は既存ユーザーがいたため何も作成していない。
type CreateUserResult struct {
	Created bool
	ID      string
}

// Document はレビュー・通報などの追記専用ドキュメントを表す。
// 一度作成されたら更新・削除されない。
type Document struct {
	ID        string
	Fields    map[string]any
	CreatedAt time.Time
}

// MarshalJSON は任意フィールドをトップレベルに展開したドキュメント形式で出力する。
func (d Document) MarshalJSON() ([]byte, error) {
	doc := make(map[string]any, len(d.Fields)+1)
	for k, v := range d.Fields {
		doc[k] = v
	}
	doc["_id"] = d.ID
	return json.Marshal(doc)
}

// DocumentKind は追記専用ドキュメントの種類を表す。
type DocumentKind string

const (
	// DocumentReviews はレビュー。
	DocumentReviews DocumentKind = "reviews"
	// DocumentReports は通報。
	DocumentReports DocumentKind = "reports"
)

// Table はドキュメント種別に対応するテーブル名を返す。
func (k DocumentKind) Table() string {
	switch k {
	case DocumentReviews:
		return "reviews"
	case DocumentReports:
		return "reports"
	default:
		return ""
	}
}
