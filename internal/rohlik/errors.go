package rohlik

import (
	"errors"
	"fmt"
)

var (
	// ErrRequestFailed はログイン以外の呼び出しがHTTPエラーで失敗したことを表す。
	// 自動リトライは行わないため、最初の失敗がその呼び出しの結果となる。
	ErrRequestFailed = errors.New("rohlik: リクエストが失敗しました")

	// ErrAddressNotSet はアカウントに配達先住所が登録されていないことを表す。
	// 住所が必要な機能はスキップされる。
	ErrAddressNotSet = errors.New("rohlik: 配達先住所が設定されていません")

	// ErrMissingShoppingListID は買い物リストIDが指定されていないことを表す。
	ErrMissingShoppingListID = errors.New("rohlik: 買い物リストIDが指定されていません")

	errInvalidJSON = errors.New("応答がJSONではありません")
)

// InvalidCredentialsError はベンダーがログイン情報の誤り（ステータス401）を返したことを表す。
type InvalidCredentialsError struct {
	Message string // ベンダーのメッセージ
}

// Error はerrorインターフェースを実装する。
func (e *InvalidCredentialsError) Error() string {
	return fmt.Sprintf("rohlik: ログイン情報が正しくありません: %s", e.Message)
}

// UnknownAuthError はベンダーが200/401以外のステータスでログインを拒否したことを表す。
type UnknownAuthError struct {
	Status  int    // ベンダーステータスコード（JSONボディ内）
	Message string // ベンダーのメッセージ
}

// Error はerrorインターフェースを実装する。
func (e *UnknownAuthError) Error() string {
	return fmt.Sprintf("rohlik: ログイン中に不明なエラーが発生しました (status=%d): %s", e.Status, e.Message)
}

// APIRequestFailedError は通信レベルの失敗（DNS、タイムアウト、接続拒否、応答の読み取り失敗）を表す。
// ベンダーが返す認証エラーとは区別される。
type APIRequestFailedError struct {
	Endpoint string
	Err      error
}

// Error はerrorインターフェースを実装する。
func (e *APIRequestFailedError) Error() string {
	return fmt.Sprintf("rohlik: サイトに接続できません (%s): %v", e.Endpoint, e.Err)
}

// Unwrap は原因となったエラーを返す。
func (e *APIRequestFailedError) Unwrap() error {
	return e.Err
}

// RequestError はベンダーがHTTPエラーステータスを返したことを表す。
// errors.Is(err, ErrRequestFailed) が true になる。
type RequestError struct {
	Endpoint   string
	StatusCode int
}

// Error はerrorインターフェースを実装する。
func (e *RequestError) Error() string {
	return fmt.Sprintf("rohlik: %s がステータス %d を返しました", e.Endpoint, e.StatusCode)
}

// Is はErrRequestFailedとの比較を可能にする。
func (e *RequestError) Is(target error) bool {
	return target == ErrRequestFailed
}

// IsAuthError はエラーがベンダーの認証失敗によるものかを判定する。
func IsAuthError(err error) bool {
	var invalid *InvalidCredentialsError
	var unknown *UnknownAuthError
	return errors.As(err, &invalid) || errors.As(err, &unknown)
}
