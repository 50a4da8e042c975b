// Package refresh は結果キャッシュの定期的な再計算を提供する。
package refresh

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/endzone/internal/model"
)

// CacheRefresher はキャッシュを破棄して再計算する。pipeline.Cacheが実装する。
type CacheRefresher interface {
	Refresh(ctx context.Context, window time.Duration) model.Result
}

// Refresher は一定間隔でキャッシュを再計算し、閲覧時のミスを減らす。
type Refresher struct {
	cache  CacheRefresher
	window time.Duration
	logger *slog.Logger
}

// NewRefresher はRefresherの新しいインスタンスを生成する。
// windowが0以下の場合はパイプラインの既定期間が使われる。
func NewRefresher(cache CacheRefresher, window time.Duration, logger *slog.Logger) *Refresher {
	return &Refresher{
		cache:  cache,
		window: window,
		logger: logger,
	}
}

// Start はintervalごとのティッカーでRefresherを起動する。
// 起動直後に1回実行し、コンテキストがキャンセルされるまで継続する。
func (r *Refresher) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("キャッシュ再計算を開始しました",
		slog.Duration("interval", interval),
	)

	r.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("キャッシュ再計算を停止しました")
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce はキャッシュを1回再計算する。
func (r *Refresher) RunOnce(ctx context.Context) model.Result {
	res := r.cache.Refresh(ctx, r.window)
	r.logger.Info("キャッシュを再計算しました",
		slog.String("run_id", res.Diagnostics.RunID),
		slog.Int("records", len(res.Records)),
		slog.Int("failed", res.Diagnostics.Failed),
	)
	return res
}
