package handler

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/funapp/internal/metrics"
	"github.com/hitoshi/funapp/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	StatusRecorder    middleware.HTTPStatusRecorder

	// ユーザー
	UserService UserServiceInterface

	// ヘルスチェック用DB接続。nilの場合はDB確認をスキップする
	DB *sql.DB

	// Prometheusスクレイプ用。nilの場合は/metricsを公開しない
	Gatherer prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORS → SecurityHeaders → RequestID → Logging → Recovery → Metrics
//
// /health と /metrics はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewMetricsMiddleware(deps.StatusRecorder))

	userHandler := NewUserHandler(deps.UserService)

	// --- 運用ルート（レート制限の外）---

	r.Get("/health", healthHandler(deps.DB))

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	// --- APIルート ---
	// ミドルウェアスタック: RateLimit(General)
	r.Group(func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.GeneralMiddleware())
		}

		r.Route("/users", func(r chi.Router) {
			// POST /users/signup - サインアップ（専用レート制限を追加）
			if deps.RateLimiter != nil {
				r.With(deps.RateLimiter.SignupMiddleware()).Post("/signup", userHandler.SignUp)
			} else {
				r.Post("/signup", userHandler.SignUp)
			}

			// GET /users/{userId} - ユーザー取得
			r.Get("/{userId}", userHandler.GetUser)
		})
	})

	return r
}

// healthHandler はヘルスチェックのハンドラーを返す。
// DB接続が設定されている場合はPingで疎通を確認する。
func healthHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		statusCode := http.StatusOK

		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				status = "unavailable"
				statusCode = http.StatusServiceUnavailable
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		json.NewEncoder(w).Encode(map[string]string{"status": status})
	}
}
