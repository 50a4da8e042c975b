// Package pipeline はレジストリから集約結果までの一方向の処理を組み立てる。
// Registry → Executor → Normalizer → Aggregator の順に実行され、
// 想定内の失敗（ソース単位の取得失敗や不正な記事）はエラーとして返さず診断情報に記録する。
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/endzone/internal/aggregate"
	"github.com/hitoshi/endzone/internal/metrics"
	"github.com/hitoshi/endzone/internal/model"
	"github.com/hitoshi/endzone/internal/normalize"
	"github.com/hitoshi/endzone/internal/worker/fetch"
)

// SourceRegistry はパイプラインが参照するソース一覧。
type SourceRegistry interface {
	Enabled() []model.SourceDescriptor
	Version() string
}

// BatchFetcher はディスクリプタ群を並列取得する。
type BatchFetcher interface {
	Run(ctx context.Context, descs []model.SourceDescriptor) fetch.Batch
}

// Pipeline は1回分の集約処理を実行する。
type Pipeline struct {
	registry   SourceRegistry
	fetcher    BatchFetcher
	normalizer *normalize.Normalizer
	scheme     aggregate.Scheme
	logger     *slog.Logger
	metrics    metrics.MetricsCollector
	now        func() time.Time
}

// New はPipelineの新しいインスタンスを生成する。
func New(
	registry SourceRegistry,
	fetcher BatchFetcher,
	normalizer *normalize.Normalizer,
	scheme aggregate.Scheme,
	logger *slog.Logger,
	collector metrics.MetricsCollector,
) *Pipeline {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Pipeline{
		registry:   registry,
		fetcher:    fetcher,
		normalizer: normalizer,
		scheme:     scheme,
		logger:     logger,
		metrics:    collector,
		now:        time.Now,
	}
}

// Version はレジストリのバージョンを返す。
func (p *Pipeline) Version() string {
	return p.registry.Version()
}

// DefaultWindow は設定済みの期間を返す。
func (p *Pipeline) DefaultWindow() time.Duration {
	return p.normalizer.Window()
}

// Run はパイプラインを1回実行する。windowが0以下の場合は設定済みの期間を使用する。
func (p *Pipeline) Run(ctx context.Context, window time.Duration) model.Result {
	start := p.now()
	runID := uuid.NewString()
	logger := p.logger.With(slog.String("run_id", runID))

	normalizer := p.normalizer
	if window > 0 && window != normalizer.Window() {
		normalizer = normalizer.WithWindow(window)
	}

	logger.Info("パイプラインを開始します",
		slog.Duration("window", normalizer.Window()),
		slog.String("dedup_scheme", p.scheme.String()),
	)

	batch := p.fetcher.Run(ctx, p.registry.Enabled())
	records, dropped := normalizer.NormalizeAll(batch.Items)
	out, duplicates := aggregate.Aggregate(records, p.scheme)

	duration := time.Since(start)
	diag := model.Diagnostics{
		RunID:      runID,
		StartedAt:  start,
		Duration:   duration,
		Succeeded:  len(batch.Reports) - batch.Failed,
		Failed:     batch.Failed,
		Normalized: len(records),
		Dropped:    dropped,
		Duplicates: duplicates,
		Reports:    batch.Reports,
	}
	p.metrics.RecordRun(diag.Normalized, diag.Dropped, diag.Duplicates, duration)

	level := slog.LevelInfo
	if len(out) == 0 {
		level = slog.LevelWarn
	}
	logger.Log(ctx, level, "パイプラインが完了しました",
		slog.Int("succeeded", diag.Succeeded),
		slog.Int("failed", diag.Failed),
		slog.Int("records", len(out)),
		slog.Int("dropped", dropped),
		slog.Int("duplicates", duplicates),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return model.Result{
		Records:     out,
		Diagnostics: diag,
		GeneratedAt: p.now(),
	}
}
