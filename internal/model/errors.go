// Package model はAPIの応答モデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// 原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, upstream, cart, system
	Action   string // 利用者向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidCredentials  = "INVALID_CREDENTIALS"
	ErrCodeAuthFailed          = "AUTH_FAILED"
	ErrCodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	ErrCodeProductNotFound     = "PRODUCT_NOT_FOUND"
	ErrCodeInvalidRequest      = "INVALID_REQUEST"
	ErrCodeSnapshotNotReady    = "SNAPSHOT_NOT_READY"
	ErrCodeRateLimitExceeded   = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal            = "INTERNAL_ERROR"
)

// NewInvalidCredentialsError はショップがログイン情報を拒否した場合のエラーを生成する。
func NewInvalidCredentialsError(vendorMessage string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  fmt.Sprintf("ログイン情報が正しくありません: %s", vendorMessage),
		Category: "auth",
		Action:   "ROHLIK_EMAIL と ROHLIK_PASSWORD を確認してください。",
	}
}

// NewAuthFailedError はログイン中に不明なエラーが発生した場合のエラーを生成する。
func NewAuthFailedError(vendorMessage string) *APIError {
	return &APIError{
		Code:     ErrCodeAuthFailed,
		Message:  fmt.Sprintf("ログインに失敗しました: %s", vendorMessage),
		Category: "auth",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewUpstreamUnavailableError はショップとの通信に失敗した場合のエラーを生成する。
func NewUpstreamUnavailableError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamUnavailable,
		Message:  fmt.Sprintf("ショップとの通信に失敗しました: %s", reason),
		Category: "upstream",
		Action:   "ネットワーク接続を確認し、しばらく待ってから再度お試しください。",
	}
}

// NewProductNotFoundError は検索に一致する商品がない場合のエラーを生成する。
func NewProductNotFoundError(query string) *APIError {
	return &APIError{
		Code:     ErrCodeProductNotFound,
		Message:  fmt.Sprintf("商品が見つかりません: %s", query),
		Category: "cart",
		Action:   "商品名を変えて検索してください。",
	}
}

// NewInvalidRequestError はリクエストの内容が不正な場合のエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "リクエストのパラメータを確認してください。",
	}
}

// NewSnapshotNotReadyError はアカウント情報がまだ取得されていない場合のエラーを生成する。
func NewSnapshotNotReadyError() *APIError {
	return &APIError{
		Code:     ErrCodeSnapshotNotReady,
		Message:  "アカウント情報をまだ取得していません。",
		Category: "system",
		Action:   "しばらく待つか、POST /api/snapshot/refresh で取得してください。",
	}
}

// NewRateLimitError はリクエストがレート制限を超えた場合のエラーを生成する。
func NewRateLimitError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimitExceeded,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "Retry-After ヘッダーの秒数だけ待ってから再度お試しください。",
	}
}

// NewInternalError は予期しないエラーを生成する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
