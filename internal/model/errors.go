package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, feed, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidParameter = "INVALID_PARAMETER"
	ErrCodeUnknownCategory  = "UNKNOWN_CATEGORY"
	ErrCodeNoData           = "NO_DATA"
	ErrCodeRateLimited      = "RATE_LIMITED"
)

// NewInvalidParameterError はクエリパラメータ不正エラーを生成する。
func NewInvalidParameterError(name, value string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidParameter,
		Message:  fmt.Sprintf("パラメータ %s の値が不正です: %s", name, value),
		Category: "validation",
		Action:   "since には 24h のような期間、limit には正の整数を指定してください。",
	}
}

// NewUnknownCategoryError は存在しないカテゴリを指定した場合のエラーを生成する。
func NewUnknownCategoryError(category string) *APIError {
	return &APIError{
		Code:     ErrCodeUnknownCategory,
		Message:  fmt.Sprintf("指定されたカテゴリは存在しません: %s", category),
		Category: "validation",
		Action:   "/api/categories で利用可能なカテゴリを確認してください。",
	}
}

// NewNoDataError は全ソースからデータを取得できなかった場合のエラーを生成する。
func NewNoDataError() *APIError {
	return &APIError{
		Code:     ErrCodeNoData,
		Message:  "表示できる記事がありません。",
		Category: "feed",
		Action:   "フィードソースの設定を確認し、しばらく待ってから再読み込みしてください。",
	}
}

// NewRateLimitedError はリフレッシュ要求のレート制限エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リフレッシュ要求が多すぎます。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
