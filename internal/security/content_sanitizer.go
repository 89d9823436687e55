// Package security はアプリケーションのセキュリティ機能を提供する。
//
// クライアントから投稿されたドキュメント（アイテム・レビュー・通報）は
// 他のクライアントにそのまま返されるため、保存前に文字列値からHTMLを除去する。
package security

import (
	"html"

	"github.com/microcosm-cc/bluemonday"
)

// maxSanitizePasses は多重にエスケープされた入力を展開する最大回数。
const maxSanitizePasses = 8

// FieldSanitizer は投稿ドキュメントのサニタイズ機能のインターフェースを定義する。
type FieldSanitizer interface {
	// SanitizeString は文字列からHTMLタグを除去する。
	// 同一入力に対して常に同一出力を返す。
	SanitizeString(s string) string
	// SanitizeFields はドキュメントの全文字列値を再帰的にサニタイズした新しいmapを返す。
	// キー、数値、真偽値、nullは変更しない。元のmapは変更しない。
	SanitizeFields(fields map[string]any) map[string]any
}

// contentSanitizer はFieldSanitizerの実装。
// bluemondayのポリシーはスレッドセーフなので共有してよい。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はFieldSanitizerの新しいインスタンスを生成する。
// すべてのタグを許可しないStrictPolicyを使う。
// 保存値はエスケープしないプレーンテキストにする（R&D は R&D のまま）。
func NewContentSanitizer() *contentSanitizer {
	return &contentSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// SanitizeString は文字列からHTMLタグを除去し、エスケープを戻したテキストを返す。
// &lt;script&gt; のようなエスケープ済みのタグも展開後に除去されるよう、変化しなくなるまで繰り返す。
func (s *contentSanitizer) SanitizeString(str string) string {
	for i := 0; i < maxSanitizePasses && str != ""; i++ {
		next := html.UnescapeString(s.policy.Sanitize(str))
		if next == str {
			return str
		}
		str = next
	}
	if str == "" {
		return ""
	}
	// 展開しきれない入力はエスケープ済みの形で保存する
	return s.policy.Sanitize(str)
}

// SanitizeFields はドキュメントの全文字列値を再帰的にサニタイズする。
func (s *contentSanitizer) SanitizeFields(fields map[string]any) map[string]any {
	if fields == nil {
		return nil
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = s.sanitizeValue(v)
	}
	return out
}

func (s *contentSanitizer) sanitizeValue(v any) any {
	switch val := v.(type) {
	case string:
		return s.SanitizeString(val)
	case map[string]any:
		return s.SanitizeFields(val)
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = s.sanitizeValue(elem)
		}
		return out
	case []string:
		out := make([]string, len(val))
		for i, elem := range val {
			out[i] = s.SanitizeString(elem)
		}
		return out
	default:
		return v
	}
}

// compile-time interface check
var _ FieldSanitizer = (*contentSanitizer)(nil)
