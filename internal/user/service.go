// Package user はユーザー登録のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/funapp/internal/model"
	"github.com/hitoshi/funapp/internal/repository"
)

// LocationResolver は座標から地名を逆引きするインターフェース。
type LocationResolver interface {
	Reverse(ctx context.Context, latitude, longitude float64) ([]model.Location, error)
}

// NameSanitizer は表示名の無害化インターフェース。
type NameSanitizer interface {
	Sanitize(name string) string
}

// MetricsRecorder はサインアップ関連メトリクスの記録インターフェース。
type MetricsRecorder interface {
	RecordSignupSuccess()
	RecordSignupRejected(reason string)
	RecordGeocodeLatency(duration time.Duration)
}

// SignUpInput はサインアップの入力。
// Cityはクライアントからは受け取らず、逆ジオコーディング結果から設定する。
type SignUpInput struct {
	Name      string
	Email     string
	Latitude  float64
	Longitude float64
}

// Service はユーザー登録のサービス層。
// 地理的ゲート付きサインアップとID検索のビジネスロジックを提供する。
type Service struct {
	userRepo       repository.UserRepository
	resolver       LocationResolver
	sanitizer      NameSanitizer
	metrics        MetricsRecorder
	allowedCountry string
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	resolver LocationResolver,
	sanitizer NameSanitizer,
	metrics MetricsRecorder,
	allowedCountry string,
) *Service {
	return &Service{
		userRepo:       userRepo,
		resolver:       resolver,
		sanitizer:      sanitizer,
		metrics:        metrics,
		allowedCountry: allowedCountry,
	}
}

// SignUp はサインアップ処理を実行する。
// 処理順序: メール重複チェック → 逆ジオコーディング → 国ゲート → 永続化。
// 途中で拒否された場合、後続の副作用は発生しない。
func (s *Service) SignUp(ctx context.Context, input SignUpInput) (*model.User, error) {
	// 1. メール重複チェック
	existing, err := s.userRepo.FindByEmail(ctx, input.Email)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの検索に失敗しました: %w", err)
	}
	if existing != nil {
		s.recordRejected("email_exists")
		return nil, model.NewEmailExistsError(input.Email)
	}

	// 2. 逆ジオコーディング
	geocodeStart := time.Now()
	locations, err := s.resolver.Reverse(ctx, input.Latitude, input.Longitude)
	if s.metrics != nil {
		s.metrics.RecordGeocodeLatency(time.Since(geocodeStart))
	}
	if err != nil {
		slog.Error("逆ジオコーディングに失敗しました",
			slog.Float64("latitude", input.Latitude),
			slog.Float64("longitude", input.Longitude),
			slog.String("error", err.Error()),
		)
		s.recordRejected("geocoding_failed")
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			return nil, err
		}
		return nil, model.NewGeocodingFailedError()
	}
	if len(locations) == 0 {
		s.recordRejected("location_not_found")
		return nil, model.NewLocationNotFoundError(input.Latitude, input.Longitude)
	}

	// 先頭の結果のみを採用する
	location := locations[0]

	// 3. 国ゲート（大文字小文字を区別した完全一致）
	if location.Country != s.allowedCountry {
		slog.Info("許可地域外からのサインアップを拒否しました",
			slog.String("country", location.Country),
		)
		s.recordRejected("region_not_allowed")
		return nil, model.NewRegionNotAllowedError(s.allowedCountry)
	}

	// 4. 永続化。Cityはリゾルバー由来の値のみを使用する
	name := input.Name
	if s.sanitizer != nil {
		name = s.sanitizer.Sanitize(name)
	}
	// タグのみの入力はサニタイズ後に空になる。空の表示名は保存しない
	if name == "" {
		s.recordRejected("validation_failed")
		return nil, model.NewValidationFailedError("name must not be empty")
	}

	u := &model.User{
		Name:      name,
		Email:     input.Email,
		City:      location.City,
		Latitude:  input.Latitude,
		Longitude: input.Longitude,
	}

	if err := s.userRepo.Create(ctx, u); err != nil {
		// UNIQUE制約違反はリポジトリ層でEMAIL_EXISTSに変換済み
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeEmailExists {
			s.recordRejected("email_exists")
			return nil, err
		}
		return nil, fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}

	slog.Info("サインアップが完了しました",
		slog.Int64("user_id", u.ID),
		slog.String("city", u.City),
	)

	if s.metrics != nil {
		s.metrics.RecordSignupSuccess()
	}

	return u, nil
}

// FindByID はIDでユーザーを検索する。
// 存在しない場合はUSER_NOT_FOUNDエラーを返す。
func (s *Service) FindByID(ctx context.Context, id int64) (*model.User, error) {
	u, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if u == nil {
		return nil, model.NewUserNotFoundError(id)
	}
	return u, nil
}

func (s *Service) recordRejected(reason string) {
	if s.metrics != nil {
		s.metrics.RecordSignupRejected(reason)
	}
}
