package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hitoshi/webtec/internal/auth"
	"github.com/hitoshi/webtec/internal/config"
	"github.com/hitoshi/webtec/internal/database"
	"github.com/hitoshi/webtec/internal/feedback"
	"github.com/hitoshi/webtec/internal/handler"
	"github.com/hitoshi/webtec/internal/listing"
	"github.com/hitoshi/webtec/internal/logger"
	"github.com/hitoshi/webtec/internal/metrics"
	"github.com/hitoshi/webtec/internal/middleware"
	"github.com/hitoshi/webtec/internal/payment"
	"github.com/hitoshi/webtec/internal/repository"
	"github.com/hitoshi/webtec/internal/security"
	"github.com/hitoshi/webtec/internal/user"
	"github.com/hitoshi/webtec/internal/vote"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// dotEnvPath は起動時に読み込む.envファイルのパス。
const dotEnvPath = ".env"

// defaultPort はSERVER_PORT未設定時の待ち受けポート。
const defaultPort = "5000"

// Init はアプリケーションの初期化を行う。
// .envと環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. .envを環境変数に反映する
	if err := config.LoadDotEnv(dotEnvPath); err != nil {
		return nil, err
	}

	// 3. 環境変数から設定を読み込む
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
			port = defaultPort
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
		slog.String("env", cfg.Env),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(ctx, cfg.DatabaseURL, cfg.DBConnectAttempts, 2*time.Second)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	router, rateLimiter := buildRouter(cfg, db, prometheus.NewRegistry())
	defer rateLimiter.Stop()

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// buildRouter はリポジトリ・サービス・ミドルウェアを組み立ててルーターを返す。
// 返却したRateLimiterはシャットダウン時にStopすること。
func buildRouter(cfg *config.Config, db *sql.DB, reg *prometheus.Registry) (http.Handler, *middleware.RateLimiter) {
	// 1. リポジトリの初期化
	votableRepo := repository.NewPostgresVotableRepo(db)
	userRepo := repository.NewPostgresUserRepo(db)
	documentRepo := repository.NewPostgresDocumentRepo(db)

	// 2. メトリクス
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	// 3. ドメインサービスの初期化
	sanitizer := security.NewContentSanitizer()
	tokenService := auth.NewTokenService(cfg.TokenSecret, auth.DefaultTokenTTL)

	listingService := listing.NewService(votableRepo, sanitizer)
	voteService := vote.NewService(votableRepo, collector, cfg.VoteUpsert)
	userService := user.NewService(userRepo, sanitizer)
	feedbackService := feedback.NewService(documentRepo, sanitizer)
	paymentService := payment.NewService(payment.NewStripeGateway(cfg.StripeSecretKey))

	// 4. ミドルウェア設定（RATE_LIMIT_*はreq/min）
	rateLimiter := middleware.NewRateLimiter(
		middleware.PerMinuteRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitToken),
	)
	csrfConfig := middleware.CSRFConfig{CookieSecure: cfg.Production()}
	if cfg.Production() {
		csrfConfig.SameSite = http.SameSiteNoneMode
	}

	deps := &handler.RouterDeps{
		TokenVerifier:      tokenService,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimiter:        rateLimiter,
		CSRFConfig:         csrfConfig,
		Production:         cfg.Production(),

		Metrics:        collector,
		MetricsHandler: metrics.Handler(reg),

		HealthChecker: db,
		TokenIssuer:   tokenService,

		ListingService:  listingService,
		VoteService:     voteService,
		UserService:     userService,
		FeedbackService: feedbackService,
		PaymentService:  paymentService,
	}

	return handler.NewRouter(deps), rateLimiter
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, err := database.MigrationVersion(cfg.DatabaseURL)
	if err != nil {
		return err
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	return checkHealth(fmt.Sprintf("http://localhost:%s/health", port))
}

func checkHealth(healthURL string) error {
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(healthURL)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
func maskDatabaseURL(databaseURL string) string {
	u, err := url.Parse(databaseURL)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
