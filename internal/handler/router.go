package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/endzone/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Provider        ResultProvider
	DefaultWindow   time.Duration
	MaxWindow       time.Duration // 0の場合はDefaultWindowを上限とする
	KnownCategories []string

	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RefreshLimiter    *middleware.RateLimiter

	// MetricsHandler は/metricsで公開するハンドラー。nilの場合はルートを登録しない。
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → RealIP → Logging → Recovery → SecurityHeaders → CORS
//
// POST /api/refresh にはクライアントIPごとのレート制限を追加で適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	}
	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	if deps.CORSAllowedOrigin != "" {
		r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	}

	news := NewNewsHandler(deps.Provider, deps.DefaultWindow, deps.MaxWindow, deps.KnownCategories)

	r.Get("/health", Health)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/news", news.ListNews)
		r.Get("/categories", news.ListCategories)
		r.Get("/stats", news.GetStats)
		r.Get("/sources", news.GetSources)

		if deps.RefreshLimiter != nil {
			r.With(deps.RefreshLimiter.Middleware()).Post("/refresh", news.Refresh)
		} else {
			r.Post("/refresh", news.Refresh)
		}
	})

	return r
}

// Health はプロセスの生存確認に応答する。上流ソースへの取得は行わない。
// GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
