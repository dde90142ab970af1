// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// クライアントに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, registration, system
	Action   string // クライアント向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeEmailExists      = "EMAIL_EXISTS"
	ErrCodeLocationNotFound = "LOCATION_NOT_FOUND"
	ErrCodeRegionNotAllowed = "REGION_NOT_ALLOWED"
	ErrCodeGeocodingFailed  = "GEOCODING_FAILED"
	ErrCodeUserNotFound     = "USER_NOT_FOUND"
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
	ErrCodeValidationFailed = "VALIDATION_FAILED"
	ErrCodeRateLimited      = "RATE_LIMIT_EXCEEDED"
)

// NewEmailExistsError はメールアドレス重複エラーを生成する。
func NewEmailExistsError(email string) *APIError {
	return &APIError{
		Code:     ErrCodeEmailExists,
		Message:  "Email already exists",
		Category: "registration",
		Action:   "Use a different email address or sign in with the existing account.",
	}
}

// NewLocationNotFoundError はリゾルバが候補を返さなかった場合のエラーを生成する。
func NewLocationNotFoundError(latitude, longitude float64) *APIError {
	return &APIError{
		Code:     ErrCodeLocationNotFound,
		Message:  fmt.Sprintf("No location found for coordinates (%f, %f)", latitude, longitude),
		Category: "registration",
		Action:   "Check that the coordinates point to a real location and try again.",
	}
}

// NewRegionNotAllowedError は許可国以外からのサインアップエラーを生成する。
func NewRegionNotAllowedError(country string) *APIError {
	return &APIError{
		Code:     ErrCodeRegionNotAllowed,
		Message:  fmt.Sprintf("Sign-ups are only allowed from within %s", country),
		Category: "registration",
		Action:   "FunApp is currently available only in the permitted region.",
	}
}

// NewGeocodingFailedError はリゾルバ呼び出し自体の失敗エラーを生成する。
// タイムアウト・ネットワーク障害・プロバイダエラーのいずれもこのコードに集約する。
func NewGeocodingFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeGeocodingFailed,
		Message:  "Could not reverse geocode location",
		Category: "system",
		Action:   "Wait a moment and try again.",
	}
}

// NewUserNotFoundError はユーザー未検出エラーを生成する。
func NewUserNotFoundError(userID int64) *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  fmt.Sprintf("User not found: %d", userID),
		Category: "registration",
		Action:   "Check the user ID.",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "Too many requests",
		Category: "system",
		Action:   "Wait for the interval in the Retry-After header and try again.",
	}
}

// NewInvalidRequestError はリクエスト形式エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("Invalid request: %s", reason),
		Category: "validation",
		Action:   "Send a well-formed JSON request body.",
	}
}

// NewValidationFailedError は入力値バリデーションエラーを生成する。
func NewValidationFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  fmt.Sprintf("Validation failed: %s", reason),
		Category: "validation",
		Action:   "Provide name, a valid email, latitude and longitude.",
	}
}
