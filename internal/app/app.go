package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/agora/internal/assist"
	"github.com/hitoshi/agora/internal/catalog"
	"github.com/hitoshi/agora/internal/config"
	"github.com/hitoshi/agora/internal/database"
	"github.com/hitoshi/agora/internal/genai"
	"github.com/hitoshi/agora/internal/handler"
	"github.com/hitoshi/agora/internal/kvstore"
	"github.com/hitoshi/agora/internal/logger"
	"github.com/hitoshi/agora/internal/metrics"
	"github.com/hitoshi/agora/internal/middleware"
	"github.com/hitoshi/agora/internal/optimistic"
	"github.com/hitoshi/agora/internal/persist"
	"github.com/hitoshi/agora/internal/security"
	"github.com/hitoshi/agora/internal/store"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("kv_backend", cfg.KVBackend),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// openKV は設定に応じたKVバックエンドを開く。
// 戻り値のcleanupは接続を持つバックエンドのクローズ処理（常に非nil）。
func openKV(cfg *config.Config) (kvstore.Store, func(), error) {
	switch cfg.KVBackend {
	case config.KVBackendRedis:
		kv, err := kvstore.NewRedis(cfg.RedisURL, cfg.KVNamespace)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		slog.Info("redis connection established")
		return kv, func() { kv.Close() }, nil

	case config.KVBackendPostgres:
		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		slog.Info("database connection established")
		return kvstore.NewPostgres(db), func() { db.Close() }, nil

	default:
		return kvstore.NewMemory(), func() {}, nil
	}
}

// runServe はAPIサーバーモードで起動する。
// KVバックエンドを開き、永続スナップショットからドメイン状態を復元し、
// 全依存関係をワイヤリングしてHTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. KVバックエンド
	kv, closeKV, err := openKV(cfg)
	if err != nil {
		return err
	}
	defer closeKV()

	// 2. メトリクス
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	// 3. カタログと永続化アダプタ
	cat := catalog.New()
	adapter := persist.NewAdapter(kv, cat)

	// 4. ドメイン状態ストア（永続スナップショットから復元）
	urlGuard := security.NewURLGuard()
	st := store.New(cat,
		store.WithCheckpointer(adapter),
		store.WithSanitizer(security.NewContentSanitizer()),
		store.WithImageURLValidator(urlGuard),
		store.WithMetrics(collector),
	)
	loadCtx, loadCancel := context.WithTimeout(context.Background(), 10*time.Second)
	cart, session := adapter.Load(loadCtx)
	loadCancel()
	st.AdoptPersisted(cart, session)

	// 5. 楽観的更新コーディネーター
	backend := optimistic.NewRetryingBackend(
		optimistic.NewSimulatedBackend(cfg.BackendLatency, cfg.BackendFailureRate),
		cfg.BackendMaxAttempts,
	)
	failureLog := optimistic.NewFailureLog()
	coordinator := optimistic.NewCoordinator(backend, failureLog, collector)

	// 6. アシストサービス
	// APIキー未設定の場合、クライアントは常にエラーを返しサービスは
	// フォールバック文字列に縮退する
	genaiClient := genai.NewGeminiClient(cfg.GeminiAPIKey, nil, slog.Default())
	genaiClient.SetModel(cfg.GeminiModel)
	assistService := assist.NewService(genaiClient, cat, slog.Default())
	assistService.SetMetrics(collector)

	// 7. レート制限（configはreq/min単位なのでreq/secに変換する）
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
	rateLimiterCfg.PostingRate = rate.Limit(float64(cfg.RateLimitPosting) / 60.0)
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	// 8. ルーターの構築
	deps := &handler.RouterDeps{
		SessionProvider:   st,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),

		Catalog: cat,

		CartService: st,

		AuthService: st,
		AuthConfig: handler.AuthHandlerConfig{
			SecureCookie: cfg.CookieSecure,
		},

		SocialService: st,
		AssistService: assistService,

		Optimistic:    coordinator,
		Notifications: failureLog,

		ImageValidator: urlGuard,
		ImageClient:    urlGuard.NewSafeClient(10*time.Second, 5<<20),

		Metrics:        collector,
		MetricsHandler: metrics.Handler(reg),

		KV: kv,
	}

	router := handler.NewRouter(deps)

	// 9. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	// 飛行中のバッキングコールの完了（とロールバック）を待つ
	coordinator.Wait()

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// KV_BACKEND=postgres用のキーバリューテーブルを準備する。
func runMigrate(cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required for migrate")
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
