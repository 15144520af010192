package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	"github.com/hitoshi/rohlikhub/internal/account"
	"github.com/hitoshi/rohlikhub/internal/config"
	"github.com/hitoshi/rohlikhub/internal/handler"
	"github.com/hitoshi/rohlikhub/internal/logger"
	"github.com/hitoshi/rohlikhub/internal/metrics"
	"github.com/hitoshi/rohlikhub/internal/middleware"
	"github.com/hitoshi/rohlikhub/internal/rohlik"
	"github.com/hitoshi/rohlikhub/internal/security"
	"github.com/hitoshi/rohlikhub/internal/worker/refresh"
)

// envFile は起動時に読み込む任意の環境変数ファイル。
const envFile = ".env"

// Init はアプリケーションの初期化を行う。
// .envファイルがあれば読み込み、JSON構造化ログをセットアップしてから環境変数を読み込む。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. .envの読み込み（既存の環境変数は上書きしない）
	envErr := godotenv.Load(envFile)

	// 2. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, logger.ParseLevel(os.Getenv("LOG_LEVEL")))
	if envErr != nil && !errors.Is(envErr, fs.ErrNotExist) {
		slog.Warn(".envファイルの読み込みに失敗しました", slog.String("error", envErr.Error()))
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
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandRefresh:
		return runRefresh(w, cfg)
	default:
		return runServe(cfg)
	}
}

// newAccount はショップクライアントとアカウントファサードを組み立てる。
// ベースURLは起動時に1回だけ検証する。
func newAccount(cfg *config.Config, recorder rohlik.Recorder) (*account.Account, error) {
	guard := security.NewShopGuard(cfg.SafeNetwork)
	if err := guard.ValidateShopURL(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid shop URL: %w", err)
	}

	var limiter *rate.Limiter
	if cfg.RequestRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestRate), cfg.RequestBurst)
	}

	client, err := rohlik.NewClient(rohlik.Options{
		Email:         cfg.Email,
		Password:      cfg.Password,
		BaseURL:       cfg.BaseURL,
		Timeout:       cfg.HTTPTimeout,
		Limiter:       limiter,
		NewHTTPClient: guard.NewHTTPClient,
		Logger:        slog.Default(),
		Metrics:       recorder,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create shop client: %w", err)
	}

	return account.New(client, slog.Default()), nil
}

// runServe はAPIサーバーモードで起動する。
// 全依存関係をワイヤリングし、更新ジョブとHTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// 2. アカウントファサード
	acct, err := newAccount(cfg, collector)
	if err != nil {
		return err
	}
	acct.Subscribe(func() {
		if snap := acct.Snapshot(); snap != nil {
			slog.Debug("スナップショットが更新されました", slog.Time("fetched_at", snap.FetchedAt))
		}
	})

	// 3. 更新ジョブ
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	refresher := refresh.New(acct, collector, slog.Default(), refresh.Config{
		Interval: cfg.RefreshInterval,
	})
	go refresher.Start(ctx)

	// 4. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig(), slog.Default())
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Account:     acct,
		Logger:      slog.Default(),
		RateLimiter: rateLimiter,
		Gatherer:    registry,
	})

	// 5. HTTPサーバーの起動
	// 集約は複数エンドポイントを順に待つため、書き込みタイムアウトはHTTPタイムアウトより長くとる
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.HTTPTimeout*3 + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-serveErr:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down API server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runRefresh はアカウント情報を1回取得し、スナップショットをJSONでwに書き出す。
func runRefresh(w io.Writer, cfg *config.Config) error {
	acct, err := newAccount(cfg, nil)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := acct.Update(ctx); err != nil {
		return err
	}

	if w == nil {
		w = os.Stdout
	}
	if err := json.NewEncoder(w).Encode(acct.Snapshot()); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
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
