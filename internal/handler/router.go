package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/notekeeper/internal/metrics"
	"github.com/hitoshi/notekeeper/internal/middleware"
	"github.com/hitoshi/notekeeper/internal/model"
)

// APIPrefix はユーザー向けAPIのパスプレフィックス。
const APIPrefix = "/api/v1/user"

// HealthChecker はストアの疎通確認を行うインターフェース。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	TokenVerifier     middleware.TokenVerifier
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	MaxBodyBytes      int64

	// メトリクス（nilの場合は/metricsを公開しない）
	Metrics         *metrics.Collector
	MetricsGatherer prometheus.Gatherer

	// ヘルスチェック（nilの場合は常に200）
	HealthChecker HealthChecker

	AccountService AccountServiceInterface
	NoteService    NoteServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Logging → Recovery → SecurityHeaders → CORS → Metrics
//
// create-accountとloginはクライアントIP単位のレート制限のみを適用し、
// それ以外の/api/v1/user配下は Auth → RateLimit(General) を通す。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(chimw.RequestID)
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	var authRecorder middleware.AuthFailureRecorder
	if deps.Metrics != nil {
		r.Use(metrics.Middleware(deps.Metrics))
		authRecorder = deps.Metrics
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteErrorResponse(w, http.StatusNotFound, &model.APIError{
			Code: "ROUTE_NOT_FOUND", Message: "Route not found", Category: "system",
		})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteErrorResponse(w, http.StatusMethodNotAllowed, &model.APIError{
			Code: "METHOD_NOT_ALLOWED", Message: "Method not allowed", Category: "system",
		})
	})

	authHandler := NewAuthHandler(deps.AccountService, deps.MaxBodyBytes)
	noteHandler := NewNoteHandler(deps.NoteService, deps.MaxBodyBytes)

	// --- 運用ルート（認証不要） ---
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, nil, "Server is up and running!")
	})
	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.MetricsGatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.MetricsGatherer))
	}

	r.Route(APIPrefix, func(r chi.Router) {
		// --- 認証不要のルート ---
		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimiter.AuthMiddleware())
			r.Post("/create-account", authHandler.CreateAccount)
			r.Post("/login", authHandler.Login)
		})

		// --- 認証が必要なルート ---
		// ミドルウェアスタック: Auth → RateLimit(General)
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewAuthMiddleware(deps.TokenVerifier, authRecorder))
			r.Use(deps.RateLimiter.GeneralMiddleware())

			r.Get("/get-user", authHandler.GetUsers)

			r.Post("/add-note", noteHandler.AddNote)
			r.Put("/edit-note/{noteId}", noteHandler.EditNote)
			r.Get("/all-notes", noteHandler.ListNotes)
			r.Delete("/delete-note/{noteId}", noteHandler.DeleteNote)
			r.Put("/update-pin-note/{noteId}", noteHandler.UpdatePin)
			r.Get("/search-notes", noteHandler.SearchNotes)
		})
	})

	return r
}

// healthHandler はストアへの疎通を確認するハンドラーを返す。
// GET /health
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				middleware.WriteErrorResponse(w, http.StatusServiceUnavailable, &model.APIError{
					Code: "STORE_UNAVAILABLE", Message: "Store is unavailable", Category: "system",
				})
				return
			}
		}
		middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"}, "OK")
	}
}
