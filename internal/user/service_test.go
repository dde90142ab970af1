package user

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/funapp/internal/model"
	"github.com/hitoshi/funapp/internal/security"
)

// --- モック ---

type mockUserRepo struct {
	findByIDFn    func(ctx context.Context, id int64) (*model.User, error)
	findByEmailFn func(ctx context.Context, email string) (*model.User, error)
	createFn      func(ctx context.Context, u *model.User) error
}

func (m *mockUserRepo) FindByID(ctx context.Context, id int64) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}
func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, nil
}
func (m *mockUserRepo) Create(ctx context.Context, u *model.User) error {
	if m.createFn != nil {
		return m.createFn(ctx, u)
	}
	u.ID = 1
	u.CreatedAt = time.Now()
	return nil
}

type mockResolver struct {
	reverseFn func(ctx context.Context, lat, lon float64) ([]model.Location, error)
}

func (m *mockResolver) Reverse(ctx context.Context, lat, lon float64) ([]model.Location, error) {
	return m.reverseFn(ctx, lat, lon)
}

type mockMetrics struct {
	successCount    int
	rejectedReasons []string
	latencyCount    int
}

func (m *mockMetrics) RecordSignupSuccess() { m.successCount++ }
func (m *mockMetrics) RecordSignupRejected(reason string) {
	m.rejectedReasons = append(m.rejectedReasons, reason)
}
func (m *mockMetrics) RecordGeocodeLatency(d time.Duration) { m.latencyCount++ }

func egyptResolver() *mockResolver {
	return &mockResolver{
		reverseFn: func(ctx context.Context, lat, lon float64) ([]model.Location, error) {
			return []model.Location{{City: "Cairo", Country: "Egypt"}}, nil
		},
	}
}

// --- テスト ---

// TestService_SignUp_Success は許可国内の座標でサインアップが成功することを検証する。
func TestService_SignUp_Success(t *testing.T) {
	var created *model.User
	repo := &mockUserRepo{
		createFn: func(ctx context.Context, u *model.User) error {
			u.ID = 42
			u.CreatedAt = time.Now()
			created = u
			return nil
		},
	}
	metrics := &mockMetrics{}
	svc := NewService(repo, egyptResolver(), nil, metrics, "Egypt")

	u, err := svc.SignUp(context.Background(), SignUpInput{
		Name:      "Ahmed",
		Email:     "ahmed@example.com",
		Latitude:  30.0444,
		Longitude: 31.2357,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if u.ID != 42 {
		t.Errorf("expected ID 42, got %d", u.ID)
	}
	if u.City != "Cairo" {
		t.Errorf("expected city Cairo, got %q", u.City)
	}
	if created == nil {
		t.Fatal("expected Create to be called")
	}
	if metrics.successCount != 1 {
		t.Errorf("expected 1 success metric, got %d", metrics.successCount)
	}
}

// TestService_SignUp_EmailExists はメール重複時にEMAIL_EXISTSを返すことを検証する。
// 重複検出時はジオコーディングが呼ばれないこと。
func TestService_SignUp_EmailExists(t *testing.T) {
	repo := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			return &model.User{ID: 1, Email: email}, nil
		},
	}
	resolverCalled := false
	resolver := &mockResolver{
		reverseFn: func(ctx context.Context, lat, lon float64) ([]model.Location, error) {
			resolverCalled = true
			return []model.Location{{City: "Cairo", Country: "Egypt"}}, nil
		},
	}
	metrics := &mockMetrics{}
	svc := NewService(repo, resolver, nil, metrics, "Egypt")

	_, err := svc.SignUp(context.Background(), SignUpInput{
		Name:      "Ahmed",
		Email:     "taken@example.com",
		Latitude:  30.0444,
		Longitude: 31.2357,
	})

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeEmailExists {
		t.Fatalf("expected EMAIL_EXISTS, got %v", err)
	}
	if resolverCalled {
		t.Error("resolver should not be called when email already exists")
	}
	if len(metrics.rejectedReasons) != 1 || metrics.rejectedReasons[0] != "email_exists" {
		t.Errorf("expected rejected reason email_exists, got %v", metrics.rejectedReasons)
	}
}

// TestService_SignUp_RegionNotAllowed は許可国外の座標でREGION_NOT_ALLOWEDを返し、
// ユーザーが作成されないことを検証する。
func TestService_SignUp_RegionNotAllowed(t *testing.T) {
	createCalled := false
	repo := &mockUserRepo{
		createFn: func(ctx context.Context, u *model.User) error {
			createCalled = true
			return nil
		},
	}
	resolver := &mockResolver{
		reverseFn: func(ctx context.Context, lat, lon float64) ([]model.Location, error) {
			return []model.Location{{City: "London", Country: "United Kingdom"}}, nil
		},
	}
	svc := NewService(repo, resolver, nil, nil, "Egypt")

	_, err := svc.SignUp(context.Background(), SignUpInput{
		Name:      "Alice",
		Email:     "alice@example.com",
		Latitude:  51.5074,
		Longitude: -0.1278,
	})

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeRegionNotAllowed {
		t.Fatalf("expected REGION_NOT_ALLOWED, got %v", err)
	}
	if createCalled {
		t.Error("user should not be created when region is not allowed")
	}
}

// TestService_SignUp_CountryGateCaseSensitive は国名比較が大文字小文字を
// 区別することを検証する。
func TestService_SignUp_CountryGateCaseSensitive(t *testing.T) {
	resolver := &mockResolver{
		reverseFn: func(ctx context.Context, lat, lon float64) ([]model.Location, error) {
			return []model.Location{{City: "Cairo", Country: "egypt"}}, nil
		},
	}
	svc := NewService(&mockUserRepo{}, resolver, nil, nil, "Egypt")

	_, err := svc.SignUp(context.Background(), SignUpInput{
		Name:      "Ahmed",
		Email:     "ahmed@example.com",
		Latitude:  30.0444,
		Longitude: 31.2357,
	})

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeRegionNotAllowed {
		t.Fatalf("expected REGION_NOT_ALLOWED for lowercase country, got %v", err)
	}
}

// TestService_SignUp_LocationNotFound はリゾルバが空の結果を返した場合に
// LOCATION_NOT_FOUNDを返すことを検証する。
func TestService_SignUp_LocationNotFound(t *testing.T) {
	resolver := &mockResolver{
		reverseFn: func(ctx context.Context, lat, lon float64) ([]model.Location, error) {
			return []model.Location{}, nil
		},
	}
	metrics := &mockMetrics{}
	svc := NewService(&mockUserRepo{}, resolver, nil, metrics, "Egypt")

	_, err := svc.SignUp(context.Background(), SignUpInput{
		Name:      "Nobody",
		Email:     "nobody@example.com",
		Latitude:  0.0,
		Longitude: 0.0,
	})

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeLocationNotFound {
		t.Fatalf("expected LOCATION_NOT_FOUND, got %v", err)
	}
	if len(metrics.rejectedReasons) != 1 || metrics.rejectedReasons[0] != "location_not_found" {
		t.Errorf("expected rejected reason location_not_found, got %v", metrics.rejectedReasons)
	}
}

// TestService_SignUp_GeocodingFailed はリゾルバ呼び出し自体の失敗時に
// GEOCODING_FAILEDを返すことを検証する。
func TestService_SignUp_GeocodingFailed(t *testing.T) {
	resolver := &mockResolver{
		reverseFn: func(ctx context.Context, lat, lon float64) ([]model.Location, error) {
			return nil, errors.New("connection refused")
		},
	}
	svc := NewService(&mockUserRepo{}, resolver, nil, nil, "Egypt")

	_, err := svc.SignUp(context.Background(), SignUpInput{
		Name:      "Ahmed",
		Email:     "ahmed@example.com",
		Latitude:  30.0444,
		Longitude: 31.2357,
	})

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeGeocodingFailed {
		t.Fatalf("expected GEOCODING_FAILED, got %v", err)
	}
}

// TestService_SignUp_FirstLocationWins はリゾルバが複数候補を返した場合に
// 先頭の候補のみを採用することを検証する。
func TestService_SignUp_FirstLocationWins(t *testing.T) {
	resolver := &mockResolver{
		reverseFn: func(ctx context.Context, lat, lon float64) ([]model.Location, error) {
			return []model.Location{
				{City: "Giza", Country: "Egypt"},
				{City: "London", Country: "United Kingdom"},
			}, nil
		},
	}
	svc := NewService(&mockUserRepo{}, resolver, nil, nil, "Egypt")

	u, err := svc.SignUp(context.Background(), SignUpInput{
		Name:      "Ahmed",
		Email:     "ahmed@example.com",
		Latitude:  29.9773,
		Longitude: 31.1325,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.City != "Giza" {
		t.Errorf("expected first candidate's city Giza, got %q", u.City)
	}
}

// TestService_SignUp_CityFromResolver は保存される都市名がリゾルバ由来で
// あることを検証する。クライアントは都市名を指定できない。
func TestService_SignUp_CityFromResolver(t *testing.T) {
	var created *model.User
	repo := &mockUserRepo{
		createFn: func(ctx context.Context, u *model.User) error {
			u.ID = 7
			created = u
			return nil
		},
	}
	svc := NewService(repo, egyptResolver(), nil, nil, "Egypt")

	_, err := svc.SignUp(context.Background(), SignUpInput{
		Name:      "Ahmed",
		Email:     "ahmed@example.com",
		Latitude:  30.0444,
		Longitude: 31.2357,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.City != "Cairo" {
		t.Errorf("expected resolver-derived city Cairo, got %q", created.City)
	}
}

// TestService_SignUp_CreateRace はINSERT時のUNIQUE制約違反（事前チェックとの
// 競合）がEMAIL_EXISTSとして伝播することを検証する。
func TestService_SignUp_CreateRace(t *testing.T) {
	repo := &mockUserRepo{
		createFn: func(ctx context.Context, u *model.User) error {
			return model.NewEmailExistsError(u.Email)
		},
	}
	svc := NewService(repo, egyptResolver(), nil, nil, "Egypt")

	_, err := svc.SignUp(context.Background(), SignUpInput{
		Name:      "Ahmed",
		Email:     "race@example.com",
		Latitude:  30.0444,
		Longitude: 31.2357,
	})

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeEmailExists {
		t.Fatalf("expected EMAIL_EXISTS from create race, got %v", err)
	}
}

// TestService_SignUp_SanitizesName は表示名がサニタイザーを通過することを検証する。
type stubSanitizer struct{}

func (stubSanitizer) Sanitize(name string) string { return "clean" }

func TestService_SignUp_SanitizesName(t *testing.T) {
	var created *model.User
	repo := &mockUserRepo{
		createFn: func(ctx context.Context, u *model.User) error {
			created = u
			return nil
		},
	}
	svc := NewService(repo, egyptResolver(), stubSanitizer{}, nil, "Egypt")

	_, err := svc.SignUp(context.Background(), SignUpInput{
		Name:      "<script>alert(1)</script>",
		Email:     "x@example.com",
		Latitude:  30.0444,
		Longitude: 31.2357,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.Name != "clean" {
		t.Errorf("expected sanitized name, got %q", created.Name)
	}
}

// TestService_SignUp_RejectsTagOnlyName はサニタイズ後に空になる表示名
// （タグのみの入力）でユーザーが作成されないことを検証する。
func TestService_SignUp_RejectsTagOnlyName(t *testing.T) {
	createCalled := false
	repo := &mockUserRepo{
		createFn: func(ctx context.Context, u *model.User) error {
			createCalled = true
			return nil
		},
	}
	svc := NewService(repo, egyptResolver(), security.NewNameSanitizer(), nil, "Egypt")

	_, err := svc.SignUp(context.Background(), SignUpInput{
		Name:      "<script>x=1</script>",
		Email:     "tags@example.com",
		Latitude:  30.0444,
		Longitude: 31.2357,
	})

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeValidationFailed {
		t.Fatalf("expected VALIDATION_FAILED for tag-only name, got %v", err)
	}
	if createCalled {
		t.Error("user should not be created with an empty sanitized name")
	}
}

// TestService_FindByID はID検索の成功と未検出を検証する。
func TestService_FindByID(t *testing.T) {
	repo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id int64) (*model.User, error) {
			if id == 1 {
				return &model.User{ID: 1, Name: "Ahmed", City: "Cairo"}, nil
			}
			return nil, nil
		},
	}
	svc := NewService(repo, egyptResolver(), nil, nil, "Egypt")

	u, err := svc.FindByID(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Name != "Ahmed" {
		t.Errorf("expected Ahmed, got %q", u.Name)
	}

	_, err = svc.FindByID(context.Background(), 999)
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeUserNotFound {
		t.Fatalf("expected USER_NOT_FOUND for id 999, got %v", err)
	}
}
