package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/hitoshi/webtec/internal/metrics"
	"github.com/hitoshi/webtec/internal/middleware"
	"github.com/hitoshi/webtec/internal/repository"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	TokenVerifier      middleware.TokenVerifier
	CORSAllowedOrigins []string
	RateLimiter        *middleware.RateLimiter
	CSRFConfig         middleware.CSRFConfig
	Production         bool

	// メトリクス
	Metrics        metrics.MetricsCollector
	MetricsHandler http.Handler

	// ヘルスチェック
	HealthChecker repository.HealthChecker

	// 認証
	TokenIssuer TokenIssuerInterface

	// アイテム・投票
	ListingService ListingServiceInterface
	VoteService    VoteServiceInterface

	// ユーザー
	UserService UserServiceInterface

	// レビュー・通報
	FeedbackService FeedbackServiceInterface

	// 決済
	PaymentService PaymentServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → RequestID → SecurityHeaders → Identity → Logging → Metrics → CORS → RateLimit(General)
//
// Identityはトークンを読むだけで拒否しない。認証必須のルートはグループ内でTokenMiddlewareを通す。
func NewRouter(deps *RouterDeps) http.Handler {
	collector := deps.Metrics
	if collector == nil {
		collector = metrics.Nop{}
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(chimw.RequestID)
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.Production))
	r.Use(middleware.NewIdentityMiddleware(deps.TokenVerifier))
	r.Use(middleware.NewLoggingMiddleware(slog.Default()))
	r.Use(middleware.NewMetricsMiddleware(collector))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigins))
	r.Use(deps.RateLimiter.GeneralMiddleware())

	authHandler := NewAuthHandler(deps.TokenIssuer, collector, AuthHandlerConfig{Production: deps.Production})
	listingHandler := NewListingHandler(deps.ListingService, deps.VoteService)
	userHandler := NewUserHandler(deps.UserService)
	feedbackHandler := NewFeedbackHandler(deps.FeedbackService)
	paymentHandler := NewPaymentHandler(deps.PaymentService)

	// --- 認証不要のルート ---

	r.Get("/", Root)
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// トークン発行（発行専用レート制限を追加）
	r.With(deps.RateLimiter.TokenIssueMiddleware()).Post("/jwt", authHandler.IssueToken)
	r.Post("/logout", authHandler.Logout)

	// 件数
	r.Get("/allproductcount", listingHandler.CountProducts)
	r.Get("/allproductcount/filtered", listingHandler.CountFilteredProducts)

	// ユーザー
	r.Route("/users", func(r chi.Router) {
		r.Get("/", userHandler.ListUsers)
		r.Post("/", userHandler.CreateUser)
		r.Put("/", userHandler.UpdateStatus)
	})

	// レビュー・通報
	r.Get("/reviews", feedbackHandler.ListReviews)
	r.Post("/reviews", feedbackHandler.AddReview)
	r.Post("/reports", feedbackHandler.AddReport)

	// 決済
	r.Post("/create-payment-intent", paymentHandler.CreatePaymentIntent)

	// 投票（クライアント計算値での上書き）
	r.Put("/upVotes/{collection}/{id}", listingHandler.ApplyVote)

	// アイテム一覧: allproducts, featured, trending
	r.Route("/{collection}", func(r chi.Router) {
		r.Get("/", listingHandler.ListItems)
		r.Post("/", listingHandler.CreateItem)
		r.Get("/{id}", listingHandler.GetItem)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Token → (CSRF)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewTokenMiddleware(deps.TokenVerifier, collector))

		r.Get("/me", authHandler.Me)
		r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)

		r.With(middleware.NewCSRFMiddleware(deps.CSRFConfig)).
			Post("/upVotes/{collection}/{id}/toggle", listingHandler.ToggleVote)
	})

	return r
}
