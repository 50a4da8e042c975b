package pipeline

import (
	"context"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/hitoshi/endzone/internal/metrics"
	"github.com/hitoshi/endzone/internal/model"
)

// Runner はキャッシュ対象の処理。Pipelineが実装する。
type Runner interface {
	Run(ctx context.Context, window time.Duration) model.Result
	Version() string
	DefaultWindow() time.Duration
}

// Cache はRunnerの結果をレジストリバージョンと期間をキーに一定時間保持する。
// 同一キーへの同時ミスはsingleflightで1回の実行にまとめられる。
type Cache struct {
	runner  Runner
	entries *expirable.LRU[string, model.Result]
	group   singleflight.Group
	gen     atomic.Uint64
	logger  *slog.Logger
	metrics metrics.MetricsCollector
}

// NewCache はCacheの新しいインスタンスを生成する。
func NewCache(runner Runner, size int, ttl time.Duration, logger *slog.Logger, collector metrics.MetricsCollector) *Cache {
	if size <= 0 {
		size = 1
	}
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Cache{
		runner:  runner,
		entries: expirable.NewLRU[string, model.Result](size, nil, ttl),
		logger:  logger,
		metrics: collector,
	}
}

func (c *Cache) key(window time.Duration) string {
	if window <= 0 {
		window = c.runner.DefaultWindow()
	}
	return c.runner.Version() + "|" + window.String()
}

// Get はキャッシュ済みの結果を返す。期限切れまたは未計算の場合は実行して保存する。
func (c *Cache) Get(ctx context.Context, window time.Duration) model.Result {
	key := c.key(window)
	if res, ok := c.entries.Get(key); ok {
		c.metrics.RecordCacheHit()
		return res
	}
	c.metrics.RecordCacheMiss()
	return c.compute(ctx, key, window)
}

// Peek は実行せずにキャッシュ済みの結果だけを返す。
func (c *Cache) Peek(window time.Duration) (model.Result, bool) {
	return c.entries.Peek(c.key(window))
}

// Refresh はキャッシュを破棄して再計算する。
func (c *Cache) Refresh(ctx context.Context, window time.Duration) model.Result {
	c.Invalidate()
	return c.compute(ctx, c.key(window), window)
}

// Invalidate は全エントリを破棄する。実行中の計算結果は保存されない。
func (c *Cache) Invalidate() {
	c.gen.Add(1)
	c.entries.Purge()
	c.logger.Info("結果キャッシュを破棄しました")
}

// Len は保持しているエントリ数を返す。
func (c *Cache) Len() int {
	return c.entries.Len()
}

func (c *Cache) compute(ctx context.Context, key string, window time.Duration) model.Result {
	gen := c.gen.Load()
	flightKey := key + "|" + strconv.FormatUint(gen, 10)

	v, _, _ := c.group.Do(flightKey, func() (interface{}, error) {
		// 共有される実行は最初の呼び出し元のキャンセルに影響されない
		res := c.runner.Run(context.WithoutCancel(ctx), window)
		if c.gen.Load() == gen {
			c.entries.Add(key, res)
		}
		return res, nil
	})
	return v.(model.Result)
}
