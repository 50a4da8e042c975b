// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// フェッチ実行器、パイプライン、キャッシュから利用する。
type MetricsCollector interface {
	RecordFetchSuccess(sourceID string)
	RecordFetchFailure(sourceID string, reason string)
	RecordHTTPStatus(statusCode int)
	RecordFetchLatency(duration time.Duration)
	RecordRun(normalized, dropped, duplicates int, duration time.Duration)
	RecordCacheHit()
	RecordCacheMiss()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	fetchSuccess *prometheus.CounterVec
	fetchFail    *prometheus.CounterVec
	httpStatus   *prometheus.CounterVec
	fetchLatency prometheus.Histogram
	records      *prometheus.CounterVec
	runDuration  prometheus.Histogram
	cacheHits    prometheus.Counter
	cacheMisses  prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		fetchSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "endzone_fetch_success_total",
			Help: "ソース取得成功の合計数",
		}, []string{"source"}),
		fetchFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "endzone_fetch_fail_total",
			Help: "ソース取得失敗の合計数",
		}, []string{"source", "reason"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "endzone_http_status_total",
			Help: "HTTPステータスコード別の異常レスポンス数",
		}, []string{"status_code"}),
		fetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "endzone_fetch_latency_seconds",
			Help:    "ソース取得のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "endzone_records_total",
			Help: "パイプライン段階別のレコード数",
		}, []string{"stage"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "endzone_pipeline_run_seconds",
			Help:    "パイプライン1回の実行時間（秒）",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60},
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "endzone_cache_hits_total",
			Help: "結果キャッシュのヒット数",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "endzone_cache_misses_total",
			Help: "結果キャッシュのミス数",
		}),
	}

	reg.MustRegister(
		c.fetchSuccess,
		c.fetchFail,
		c.httpStatus,
		c.fetchLatency,
		c.records,
		c.runDuration,
		c.cacheHits,
		c.cacheMisses,
	)

	return c
}

// RecordFetchSuccess はソース取得成功を記録する。
func (c *Collector) RecordFetchSuccess(sourceID string) {
	c.fetchSuccess.WithLabelValues(sourceID).Inc()
}

// RecordFetchFailure はソース取得失敗を理由付きで記録する。
func (c *Collector) RecordFetchFailure(sourceID string, reason string) {
	c.fetchFail.WithLabelValues(sourceID, reason).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordFetchLatency は取得のレイテンシを記録する。
func (c *Collector) RecordFetchLatency(duration time.Duration) {
	c.fetchLatency.Observe(duration.Seconds())
}

// RecordRun はパイプライン1回分の集計値を記録する。
func (c *Collector) RecordRun(normalized, dropped, duplicates int, duration time.Duration) {
	c.records.WithLabelValues("normalized").Add(float64(normalized))
	c.records.WithLabelValues("dropped").Add(float64(dropped))
	c.records.WithLabelValues("duplicate").Add(float64(duplicates))
	c.runDuration.Observe(duration.Seconds())
}

// RecordCacheHit はキャッシュヒットを記録する。
func (c *Collector) RecordCacheHit() {
	c.cacheHits.Inc()
}

// RecordCacheMiss はキャッシュミスを記録する。
func (c *Collector) RecordCacheMiss() {
	c.cacheMisses.Inc()
}

// Nop は何も記録しないMetricsCollector。
type Nop struct{}

func (Nop) RecordFetchSuccess(string) {}
func (Nop) RecordFetchFailure(string, string) {}
func (Nop) RecordHTTPStatus(int) {}
func (Nop) RecordFetchLatency(time.Duration) {}
func (Nop) RecordRun(int, int, int, time.Duration) {}
func (Nop) RecordCacheHit() {}
func (Nop) RecordCacheMiss() {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
