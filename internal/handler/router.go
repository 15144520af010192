package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/rohlikhub/internal/metrics"
	"github.com/hitoshi/rohlikhub/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Account     AccountService
	Logger      *slog.Logger
	RateLimiter *middleware.RateLimiter
	// Gatherer がnilの場合は /metrics を公開しない。
	Gatherer prometheus.Gatherer
}

// healthResponse はヘルスチェックのレスポンス。
type healthResponse struct {
	Status        string `json:"status"`
	SnapshotReady bool   `json:"snapshot_ready"`
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders
//
// ショップへの更新を伴うルートには、さらにクライアントIPごとのレート制限を適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())

	h := NewAccountHandler(deps.Account, deps.Logger)

	// --- 運用系 ---
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{
			Status:        "ok",
			SnapshotReady: deps.Account.Snapshot() != nil,
		})
	})
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	r.Route("/api", func(r chi.Router) {
		// 読み取り（キャッシュ済みスナップショット）
		r.Get("/account", h.Summary)
		r.Get("/snapshot", h.Snapshot)

		// ショップへの問い合わせ・更新を伴うルート
		r.Group(func(r chi.Router) {
			if deps.RateLimiter != nil {
				r.Use(deps.RateLimiter.Middleware())
			}

			r.Post("/snapshot/refresh", h.Refresh)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", h.Cart)
				r.Post("/items", h.AddCartItem)
				r.Delete("/items/{orderFieldId}", h.DeleteCartItem)
				r.Post("/search-and-add", h.SearchAndAdd)
				r.Post("/entries", h.AddEntry)
			})

			r.Get("/products/search", h.SearchProducts)
			r.Get("/shopping-lists/{id}", h.ShoppingList)
		})
	})

	return r
}
