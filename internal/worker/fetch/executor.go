// Package fetch はソースディスクリプタ群の並列取得を提供する。
// 各ソースの失敗は独立して記録され、他のソースの取得には影響しない。
package fetch

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/hitoshi/endzone/internal/metrics"
	"github.com/hitoshi/endzone/internal/model"
	"github.com/hitoshi/endzone/internal/source"
)

// defaultWorkers は並列数が指定されない場合のワーカー数。
const defaultWorkers = 10

// SourceFactory はディスクリプタからFetcherを生成する。
type SourceFactory func(desc model.SourceDescriptor) (source.Fetcher, error)

// NewSourceFactory は共通のHTTPクライアントとOptionsでsource.Newを呼び出すSourceFactoryを返す。
func NewSourceFactory(client *http.Client, opts source.Options) SourceFactory {
	return func(desc model.SourceDescriptor) (source.Fetcher, error) {
		return source.New(desc, client, opts)
	}
}

// Batch は1回の取得実行の結果。
type Batch struct {
	// Items は成功したソースの記事。ディスクリプタの入力順に並び、同一ソース内の順序は維持される。
	Items []model.SourcedItem
	// Reports はディスクリプタの入力順に並んだソース別の結果。
	Reports []model.SourceReport
	// Failed は失敗したソース数。
	Failed int
}

// Executor はsemaphoreパターンで並列数を制御しながらソースを取得する。
type Executor struct {
	newSource SourceFactory
	logger    *slog.Logger
	metrics   metrics.MetricsCollector
	workers   int
}

// NewExecutor はExecutorの新しいインスタンスを生成する。
// workersが0以下の場合はデフォルト値10を使用する。
func NewExecutor(
	newSource SourceFactory,
	logger *slog.Logger,
	collector metrics.MetricsCollector,
	workers int,
) *Executor {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Executor{
		newSource: newSource,
		logger:    logger,
		metrics:   collector,
		workers:   workers,
	}
}

// Workers はワーカー数を返す。
func (e *Executor) Workers() int {
	return e.workers
}

// Run は有効なディスクリプタをそれぞれ1回ずつ取得し、全ソースの完了を待って結果を返す。
// 無効なディスクリプタはスキップされる。ソースのpanicは回復しない。
func (e *Executor) Run(ctx context.Context, descs []model.SourceDescriptor) Batch {
	start := time.Now()

	enabled := make([]model.SourceDescriptor, 0, len(descs))
	for _, d := range descs {
		if d.Enabled {
			enabled = append(enabled, d)
		}
	}

	batch := Batch{
		Items:   []model.SourcedItem{},
		Reports: make([]model.SourceReport, len(enabled)),
	}
	if len(enabled) == 0 {
		e.logger.Info("取得対象のソースはありません")
		return batch
	}

	e.logger.Info("ソース取得を開始します",
		slog.Int("source_count", len(enabled)),
		slog.Int("workers", e.workers),
	)

	// semaphoreパターンで並列数を制御
	sem := make(chan struct{}, e.workers)
	var wg sync.WaitGroup
	var mu sync.Mutex
	perSource := make([][]model.RawItem, len(enabled))

	for i, desc := range enabled {
		wg.Add(1)
		sem <- struct{}{} // semaphore取得（ブロック）

		go func(i int, d model.SourceDescriptor) {
			defer wg.Done()
			defer func() { <-sem }() // semaphore解放

			items, report := e.fetchOne(ctx, d)

			mu.Lock()
			defer mu.Unlock()
			batch.Reports[i] = report
			if !report.OK() {
				batch.Failed++
				return
			}
			perSource[i] = items
		}(i, desc)
	}

	wg.Wait()

	for i, items := range perSource {
		for _, item := range items {
			batch.Items = append(batch.Items, model.SourcedItem{Item: item, Source: enabled[i]})
		}
	}

	e.logger.Info("ソース取得が完了しました",
		slog.Int("source_count", len(enabled)),
		slog.Int("failed", batch.Failed),
		slog.Int("item_count", len(batch.Items)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return batch
}

// fetchOne は1ソースを取得し、結果をメトリクスとログに記録する。
func (e *Executor) fetchOne(ctx context.Context, d model.SourceDescriptor) ([]model.RawItem, model.SourceReport) {
	start := time.Now()
	report := model.SourceReport{SourceID: d.ID}

	items, err := e.fetch(ctx, d)
	report.Duration = time.Since(start)
	e.metrics.RecordFetchLatency(report.Duration)

	if err != nil {
		reason := Classify(err)
		if code, ok := StatusCode(err); ok {
			e.metrics.RecordHTTPStatus(code)
		}
		e.metrics.RecordFetchFailure(d.ID, string(reason))
		e.logger.Warn("ソース取得に失敗しました",
			slog.String("source_id", d.ID),
			slog.String("endpoint", d.Endpoint),
			slog.String("reason", string(reason)),
			slog.String("error", err.Error()),
		)
		report.Err = err.Error()
		return nil, report
	}

	e.metrics.RecordFetchSuccess(d.ID)
	report.Items = len(items)
	e.logger.Debug("ソース取得に成功しました",
		slog.String("source_id", d.ID),
		slog.Int("item_count", len(items)),
		slog.Float64("duration_ms", float64(report.Duration.Milliseconds())),
	)
	return items, report
}

func (e *Executor) fetch(ctx context.Context, d model.SourceDescriptor) ([]model.RawItem, error) {
	// キャンセル済みの場合は待機中のソースも失敗として確定させる
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := e.newSource(d)
	if err != nil {
		return nil, err
	}
	return f.Fetch(ctx)
}
