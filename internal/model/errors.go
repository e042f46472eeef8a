// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, identity, validation, reminder, system
	Action   string // ユーザー向け対処方法
	Cause    error  // 根本原因。診断用に保持し、レスポンスには含めない。
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap は根本原因を返す。errors.Is / errors.As での診断に使用する。
func (e *APIError) Unwrap() error {
	return e.Cause
}

// 定義済みエラーコード
const (
	ErrCodeIdentityUnavailable    = "IDENTITY_UNAVAILABLE"
	ErrCodeAccountCreationFailed  = "ACCOUNT_CREATION_FAILED"
	ErrCodeCredentialUpdateFailed = "CREDENTIAL_UPDATE_FAILED"
	ErrCodeInvalidCredentials     = "INVALID_CREDENTIALS"
	ErrCodeRegistrationFailed     = "REGISTRATION_FAILED"
	ErrCodeUserNotFound           = "USER_NOT_FOUND"
	ErrCodeReminderNotFound       = "REMINDER_NOT_FOUND"
	ErrCodeValidationFailed       = "VALIDATION_FAILED"
)

// NewIdentityUnavailableError はIdPへの管理者認証・通信失敗エラーを生成する。
func NewIdentityUnavailableError(cause error) *APIError {
	return &APIError{
		Code:     ErrCodeIdentityUnavailable,
		Message:  "認証基盤に接続できませんでした。",
		Category: "identity",
		Action:   "しばらく待ってから再度お試しください。",
		Cause:    cause,
	}
}

// NewAccountCreationFailedError はIdPアカウント作成失敗エラーを生成する。
func NewAccountCreationFailedError(cause error) *APIError {
	return &APIError{
		Code:     ErrCodeAccountCreationFailed,
		Message:  "アカウントの作成に失敗しました。",
		Category: "identity",
		Action:   "ユーザー名・メールアドレスが既に使用されていないか確認してください。",
		Cause:    cause,
	}
}

// NewCredentialUpdateFailedError はIdPパスワード設定失敗エラーを生成する。
func NewCredentialUpdateFailedError(cause error) *APIError {
	return &APIError{
		Code:     ErrCodeCredentialUpdateFailed,
		Message:  "パスワードの設定に失敗しました。",
		Category: "identity",
		Action:   "しばらく待ってから再度お試しください。",
		Cause:    cause,
	}
}

// NewInvalidCredentialsError はログイン失敗エラーを生成する。
func NewInvalidCredentialsError(cause error) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "ユーザー名またはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度ログインしてください。",
		Cause:    cause,
	}
}

// NewRegistrationFailedError はユーザー登録の多段オーケストレーション失敗を生成する。
// 各ステップの失敗は1つのエラーに集約し、根本原因をCauseに保持する。
func NewRegistrationFailedError(cause error) *APIError {
	return &APIError{
		Code:     ErrCodeRegistrationFailed,
		Message:  "ユーザー登録に失敗しました。",
		Category: "auth",
		Action:   "しばらく待ってから再度お試しください。",
		Cause:    cause,
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewReminderNotFoundError はリマインダーが見つからない場合のエラーを生成する。
// 他ユーザーのリマインダーIDを指定した場合も存在を漏らさないため同じエラーを返す。
func NewReminderNotFoundError(reminderID string) *APIError {
	return &APIError{
		Code:     ErrCodeReminderNotFound,
		Message:  fmt.Sprintf("指定されたリマインダーが見つかりません: %s", reminderID),
		Category: "reminder",
		Action:   "リマインダーIDを確認してください。",
	}
}

// NewValidationError は入力検証エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  fmt.Sprintf("入力内容が正しくありません: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}
