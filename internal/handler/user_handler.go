// Package handler はHTTP APIのハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/funapp/internal/model"
	"github.com/hitoshi/funapp/internal/user"
)

// UserServiceInterface はハンドラーが利用するユーザーサービスのインターフェース。
type UserServiceInterface interface {
	SignUp(ctx context.Context, input user.SignUpInput) (*model.User, error)
	FindByID(ctx context.Context, id int64) (*model.User, error)
}

// UserHandler はユーザー登録・取得のHTTPハンドラー。
type UserHandler struct {
	service  UserServiceInterface
	validate *validator.Validate
}

// NewUserHandler はUserHandlerの新しいインスタンスを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{
		service:  service,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// signUpRequest はサインアップのリクエストボディ。
// 緯度・経度はゼロ値（赤道・本初子午線）も正当な座標のためポインタで受ける。
type signUpRequest struct {
	Name      string   `json:"name" validate:"required,min=1,max=100"`
	Email     string   `json:"email" validate:"required,email"`
	Latitude  *float64 `json:"latitude" validate:"required,min=-90,max=90"`
	Longitude *float64 `json:"longitude" validate:"required,min=-180,max=180"`
}

// userResponse はユーザーのAPIレスポンス。
type userResponse struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Email     string  `json:"email"`
	City      string  `json:"city"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	CreatedAt string  `json:"created_at"`
}

// apiErrorResponse は統一エラーレスポンスのJSON形式。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		City:      u.City,
		Latitude:  u.Latitude,
		Longitude: u.Longitude,
		CreatedAt: u.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// SignUp はサインアップ処理を実行する。
// POST /users/signup
func (h *UserHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("request body must be valid JSON"))
		return
	}

	if err := h.validate.Struct(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationFailedError(validationReason(err)))
		return
	}

	u, err := h.service.SignUp(r.Context(), user.SignUpInput{
		Name:      req.Name,
		Email:     req.Email,
		Latitude:  *req.Latitude,
		Longitude: *req.Longitude,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toUserResponse(u))
}

// GetUser はユーザー詳細を取得する。
// GET /users/:userId
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	rawID := chi.URLParam(r, "userId")

	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("user ID must be an integer"))
		return
	}

	u, err := h.service.FindByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toUserResponse(u))
}

// validationReason はバリデーションエラーから人間可読な原因文字列を生成する。
func validationReason(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid input"
	}

	// 最初の違反フィールドのみを報告する
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be a valid email address"
	case "min", "max":
		return fe.Field() + " is out of range"
	default:
		return fe.Field() + " is invalid"
	}
}

// writeAPIErrorResponse は統一エラーフォーマットのレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "An internal error occurred",
		Category: "system",
		Action:   "Wait a moment and try again.",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeEmailExists:
		return http.StatusConflict
	case model.ErrCodeLocationNotFound:
		return http.StatusUnprocessableEntity
	case model.ErrCodeRegionNotAllowed:
		return http.StatusForbidden
	case model.ErrCodeGeocodingFailed:
		return http.StatusBadGateway
	case model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeInvalidRequest, model.ErrCodeValidationFailed:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
