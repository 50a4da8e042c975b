package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/endzone/internal/aggregate"
	"github.com/hitoshi/endzone/internal/config"
	"github.com/hitoshi/endzone/internal/handler"
	"github.com/hitoshi/endzone/internal/logger"
	"github.com/hitoshi/endzone/internal/metrics"
	"github.com/hitoshi/endzone/internal/middleware"
	"github.com/hitoshi/endzone/internal/normalize"
	"github.com/hitoshi/endzone/internal/pipeline"
	"github.com/hitoshi/endzone/internal/registry"
	"github.com/hitoshi/endzone/internal/security"
	"github.com/hitoshi/endzone/internal/source"
	fetchpkg "github.com/hitoshi/endzone/internal/worker/fetch"
	"github.com/hitoshi/endzone/internal/worker/refresh"
)

// ErrNoRecords はfetchコマンドで1件も集約できなかった場合に返される。
// 結果のJSONは出力済みで、終了コードでのみ失敗を伝える。
var ErrNoRecords = errors.New("no records aggregated")

const shutdownTimeout = 30 * time.Second

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, *slog.Logger, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再設定する
	appLogger := logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))
	return cfg, appLogger, nil
}

// Components はコマンド間で共有するワイヤリング済みの依存関係。
type Components struct {
	Registry *registry.Registry
	Pipeline *pipeline.Pipeline
	Cache    *pipeline.Cache
	Metrics  *prometheus.Registry
}

// Build は設定とソースレジストリから集約パイプラインを組み立てる。
// SSRF検証に通らないエンドポイントが有効になっている場合はエラーを返す。
func Build(cfg *config.Config, reg *registry.Registry, log *slog.Logger) (*Components, error) {
	scheme, err := aggregate.ParseScheme(cfg.DedupScheme)
	if err != nil {
		return nil, fmt.Errorf("invalid dedup scheme: %w", err)
	}

	// 1. セキュリティ
	ssrfGuard := security.NewSSRFGuard(cfg.AllowPrivateNetworks)
	for _, d := range reg.Enabled() {
		if err := ssrfGuard.ValidateURL(d.Endpoint); err != nil {
			return nil, fmt.Errorf("source %s: %w", d.ID, err)
		}
	}

	// 2. メトリクス
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(promReg)

	// 3. フェッチ
	client := ssrfGuard.NewClient(cfg.FetchConnectTimeout, cfg.FetchTimeout)
	factory := fetchpkg.NewSourceFactory(client, source.Options{
		MaxBodySize: cfg.FetchMaxSize,
		MaxEntries:  cfg.FetchMaxEntries,
	})
	executor := fetchpkg.NewExecutor(factory, log, collector, cfg.FetchMaxConcurrent)

	// 4. 正規化・集約
	normalizer := normalize.NewNormalizer(registry.RuleSets(), normalize.Options{
		Window:          cfg.LookbackWindow,
		SummaryMaxChars: cfg.SummaryMaxChars,
	})
	p := pipeline.New(reg, executor, normalizer, scheme, log, collector)

	return &Components{
		Registry: reg,
		Pipeline: p,
		Cache:    pipeline.NewCache(p, cfg.CacheSize, cfg.CacheTTL, log, collector),
		Metrics:  promReg,
	}, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。fetchコマンドの結果はstdoutに、ログはlogOutに出力する。
func Run(stdout, logOut io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return checkHealth(fmt.Sprintf("http://localhost:%s/health", port))
	}

	cfg, log, err := Init(logOut)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	reg, err := loadRegistry(cfg)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	c, err := Build(cfg, reg, log)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	log.Info("starting application",
		slog.String("command", string(cmd)),
		slog.Int("sources", reg.Len()),
		slog.String("registry_version", reg.Version()),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandFetch:
		return runFetch(ctx, c, stdout)
	default:
		return runServe(ctx, cfg, c, log)
	}
}

// loadRegistry はSOURCES_FILEが指定されていればそのファイルから、なければ組み込みの一覧からRegistryを生成する。
func loadRegistry(cfg *config.Config) (*registry.Registry, error) {
	if cfg.SourcesFile == "" {
		return registry.Default(), nil
	}
	return registry.LoadFile(cfg.SourcesFile)
}

// runServe はAPIサーバーモードで起動する。
// REFRESH_INTERVALが設定されている場合はバックグラウンドでキャッシュを定期的に再計算する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config, c *Components, log *slog.Logger) error {
	limiter := middleware.NewRateLimiter(middleware.PerMinute(cfg.RateLimitRefresh))
	defer limiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Provider:          c.Cache,
		DefaultWindow:     cfg.LookbackWindow,
		MaxWindow:         cfg.MaxLookbackWindow,
		KnownCategories:   registry.KnownCategories(c.Registry.All()),
		Logger:            log,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RefreshLimiter:    limiter,
		MetricsHandler:    metrics.Handler(c.Metrics),
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout(cfg, len(c.Registry.Enabled())),
		IdleTimeout:  60 * time.Second,
	}

	if cfg.RefreshInterval > 0 {
		refresher := refresh.NewRefresher(c.Cache, 0, log)
		go refresher.Start(ctx, cfg.RefreshInterval)
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("API server starting",
			slog.String("addr", server.Addr),
		)
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

	log.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("API server stopped gracefully")
	return nil
}

// writeTimeout はキャッシュミス時にリクエスト内でパイプラインが完了するまでの上限を見積もる。
// 有効ソースをFETCH_MAX_CONCURRENTずつ処理する回数に、フィード探索を含めた1ソースあたり
// 2回分のFETCH_TIMEOUTを掛け、応答の書き込み分を加える。
func writeTimeout(cfg *config.Config, enabled int) time.Duration {
	workers := max(cfg.FetchMaxConcurrent, 1)
	rounds := max((enabled+workers-1)/workers, 1)
	return time.Duration(rounds)*2*cfg.FetchTimeout + 15*time.Second
}

// runFetch はパイプラインを1回実行し、集約結果をJSONでwに出力する。
func runFetch(ctx context.Context, c *Components, w io.Writer) error {
	res := c.Pipeline.Run(ctx, 0)

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}

	if res.Empty() {
		return ErrNoRecords
	}
	return nil
}

// checkHealth はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func checkHealth(url string) error {
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
