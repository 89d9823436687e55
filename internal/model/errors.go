// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, listing, payment, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeInvalidRequest    = "INVALID_REQUEST"
	ErrCodeInvalidCollection = "INVALID_COLLECTION"
	ErrCodeInvalidPagination = "INVALID_PAGINATION"
	ErrCodeItemNotFound      = "ITEM_NOT_FOUND"
	ErrCodeDuplicateItem     = "DUPLICATE_ITEM"
	ErrCodeInvalidEmail      = "INVALID_EMAIL"
	ErrCodeInvalidPrice      = "INVALID_PRICE"
	ErrCodePaymentFailed     = "PAYMENT_FAILED"
	ErrCodeMissingVoter      = "MISSING_VOTER"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// NewUnauthorizedError は認証失敗エラーを生成する。
// どの検証で失敗したか（Cookie欠落・署名不正・期限切れ）は含めない。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "access denied",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewInvalidRequestError はリクエスト不正エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewInvalidCollectionError は未知のコレクション名に対するエラーを生成する。
func NewInvalidCollectionError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCollection,
		Message:  fmt.Sprintf("指定されたコレクションは存在しません: %s", name),
		Category: "validation",
		Action:   "allproducts、featured、trending のいずれかを指定してください。",
	}
}

// NewInvalidPaginationError はページネーション指定の不正エラーを生成する。
func NewInvalidPaginationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPagination,
		Message:  fmt.Sprintf("無効なページ指定です: %s", reason),
		Category: "validation",
		Action:   "page と size には0以上の整数を指定してください。",
	}
}

// NewItemNotFoundError は対象アイテム未検出エラーを生成する。
func NewItemNotFoundError(itemID string) *APIError {
	return &APIError{
		Code:     ErrCodeItemNotFound,
		Message:  fmt.Sprintf("指定されたアイテムが見つかりません: %s", itemID),
		Category: "listing",
		Action:   "アイテムIDを確認してください。",
	}
}

// NewDuplicateItemError は同一IDのアイテムが既に存在する場合のエラーを生成する。
func NewDuplicateItemError(itemID string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateItem,
		Message:  fmt.Sprintf("同じIDのアイテムが既に存在します: %s", itemID),
		Category: "listing",
		Action:   "_id を省略するか、別のIDを指定してください。",
	}
}

// NewInvalidEmailError はメールアドレス未指定エラーを生成する。
func NewInvalidEmailError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidEmail,
		Message:  "メールアドレスが指定されていません。",
		Category: "validation",
		Action:   "email フィールドを指定してください。",
	}
}

// NewInvalidPriceError は決済金額の不正エラーを生成する。
func NewInvalidPriceError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPrice,
		Message:  "金額は0より大きい数値で指定してください。",
		Category: "payment",
		Action:   "price フィールドを確認してください。",
	}
}

// NewPaymentFailedError は決済事業者の呼び出し失敗エラーを生成する。
func NewPaymentFailedError() *APIError {
	return &APIError{
		Code:     ErrCodePaymentFailed,
		Message:  "決済の準備に失敗しました。",
		Category: "payment",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewMissingVoterError はトークンに投票者を特定するクレームが無い場合のエラーを生成する。
func NewMissingVoterError() *APIError {
	return &APIError{
		Code:     ErrCodeMissingVoter,
		Message:  "トークンに email クレームが含まれていません。",
		Category: "auth",
		Action:   "email を含めて再ログインしてください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
