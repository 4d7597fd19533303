package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/agora/internal/kvstore"
	"github.com/hitoshi/agora/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionProvider   middleware.ActiveSessionProvider
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// カタログ
	Catalog CatalogServiceInterface

	// カート
	CartService CartServiceInterface

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// ソーシャル
	SocialService SocialServiceInterface

	// アシスタント
	AssistService AssistServiceInterface

	// 楽観的更新
	Optimistic OptimisticExecutor

	// 失敗通知の配信元（nil可）
	Notifications NotificationSource

	// 画像プロキシ（両方揃っている場合のみルートを公開する）
	ImageValidator ImageValidator
	ImageClient    *http.Client

	// メトリクス（nil可）
	Metrics CommandMetrics

	// Prometheusスクレイプ用ハンドラー（nil可）
	MetricsHandler http.Handler

	// ヘルスチェック用KVストア（nil可）
	KV kvstore.Store
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORSMiddleware → SecurityHeaders → Logging → Recovery
//	（認証ルートのみ）→ SessionMiddleware → RateLimitMiddleware(GeneralMiddleware)
//
// カタログ閲覧・探索フィード・プロフィール・認証ルートはセッション不要。
// カート・通知・画像プロキシもセッション不要だが、レート制限の対象となる。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// 全ルートに効くミドルウェア
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewRecoveryMiddleware())

	catalogHandler := NewCatalogHandler(deps.Catalog)
	cartHandler := NewCartHandler(deps.CartService, deps.Catalog, deps.Optimistic, deps.Metrics)
	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig, deps.Metrics)
	socialHandler := NewSocialHandler(deps.SocialService, deps.Optimistic, deps.Metrics)
	assistHandler := NewAssistHandler(deps.AssistService)

	// --- 認証不要のルート ---

	// ヘルスチェック。KVストアが設定されている場合は疎通も確認する。
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if deps.KV != nil {
			if _, _, err := deps.KV.Get(req.Context(), "health"); err != nil {
				http.Error(w, "kv store unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Prometheusスクレイプ
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// セッション管理
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/login", authHandler.Login)
		r.Post("/login-as", authHandler.LoginAs)
		r.Post("/signup", authHandler.Signup)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	// 商品カタログ
	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", catalogHandler.ListProducts)
		r.Get("/{id}", catalogHandler.GetProduct)
	})

	// 公開フィードとユーザー検索
	r.Get("/api/explore", socialHandler.GetExplore)
	r.Get("/api/users", socialHandler.SearchUsers)
	r.Get("/api/profiles/{username}", socialHandler.GetProfile)

	// --- セッション不要・レート制限ありのルート ---
	// カートはログアウト状態でも閲覧・操作できる。確定（チェックアウト）のみ
	// セッションを要求する。
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Route("/api/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Delete("/", cartHandler.ClearCart)

			r.Route("/items", func(r chi.Router) {
				r.Post("/", cartHandler.AddItem)
				r.Put("/{productID}", cartHandler.UpdateItem)
				r.Delete("/{productID}", cartHandler.RemoveItem)
			})
		})

		// ロールバック通知のポーリング
		if deps.Notifications != nil {
			notificationHandler := NewNotificationHandler(deps.Notifications)
			r.Get("/api/notifications", notificationHandler.List)
		}

		// ユーザー指定URLの画像プロキシ
		if deps.ImageValidator != nil && deps.ImageClient != nil {
			imageHandler := NewImageHandler(deps.ImageValidator, deps.ImageClient)
			r.Get("/api/images", imageHandler.Fetch)
		}
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionProvider))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Post("/api/checkout", cartHandler.Checkout)

		// ソーシャルフィード
		r.Get("/api/feed", socialHandler.GetFeed)

		// 投稿管理
		r.Route("/api/posts", func(r chi.Router) {
			// POST /api/posts - 投稿作成（作成専用レート制限を追加）
			r.With(deps.RateLimiter.PostingMiddleware()).Post("/", socialHandler.CreatePost)

			r.Route("/{id}", func(r chi.Router) {
				r.Delete("/", socialHandler.DeletePost)
				r.Post("/like", socialHandler.ToggleLike)
				r.Post("/comments", socialHandler.AddComment)
			})
		})

		// フォローと自己紹介
		r.Post("/api/users/{id}/follow", socialHandler.ToggleFollow)
		r.Put("/api/me/bio", socialHandler.UpdateBio)

		// テキスト補完アシスタント
		r.Route("/api/assist", func(r chi.Router) {
			r.Post("/chat", assistHandler.Chat)
			r.Post("/chat/reset", assistHandler.ResetChat)
			r.Post("/caption", assistHandler.SuggestCaption)
			r.Post("/bio", assistHandler.EnhanceBio)
		})
	})

	return r
}
