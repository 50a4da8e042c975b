package handler

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/endzone/internal/aggregate"
	"github.com/hitoshi/endzone/internal/middleware"
	"github.com/hitoshi/endzone/internal/model"
)

// maxLimit は1回に返す記事数の上限。
const maxLimit = 500

const day = 24 * time.Hour

// maxSinceDays は "Nd" 形式でtime.Durationに収まる日数の上限。
const maxSinceDays = math.MaxInt64 / int64(day)

// ResultProvider はニュースハンドラーが必要とする集約結果の提供元。pipeline.Cacheが実装する。
type ResultProvider interface {
	// Get はキャッシュ済みの結果を返す。未計算または期限切れの場合は計算する。
	Get(ctx context.Context, window time.Duration) model.Result
	// Refresh はキャッシュを破棄して再計算する。
	Refresh(ctx context.Context, window time.Duration) model.Result
}

// NewsHandler は集約済みニュースのHTTPハンドラー。
type NewsHandler struct {
	provider      ResultProvider
	defaultWindow time.Duration
	maxWindow     time.Duration
	known         map[string]struct{}
	now           func() time.Time
}

// NewNewsHandler はNewsHandlerを生成する。
// maxWindowはsinceで指定できる期間の上限で、defaultWindowより短い場合はdefaultWindowに揃える。
// knownCategoriesはフィルタ指定を受け付けるカテゴリの一覧。
func NewNewsHandler(provider ResultProvider, defaultWindow, maxWindow time.Duration, knownCategories []string) *NewsHandler {
	if maxWindow < defaultWindow {
		maxWindow = defaultWindow
	}
	known := make(map[string]struct{}, len(knownCategories))
	for _, c := range knownCategories {
		known[strings.ToLower(c)] = struct{}{}
	}
	return &NewsHandler{
		provider:      provider,
		defaultWindow: defaultWindow,
		maxWindow:     maxWindow,
		known:         known,
		now:           time.Now,
	}
}

// --- レスポンス型 ---

// newsItemResponse は記事1件のレスポンス。
type newsItemResponse struct {
	model.Record
	Age string `json:"age"`
}

// newsListResponse は記事一覧のレスポンス。
// no_dataがtrueの場合、表示層はデータなしの表示を選択する。
type newsListResponse struct {
	Items       []newsItemResponse `json:"items"`
	Count       int                `json:"count"`
	Total       int                `json:"total"`
	NoData      bool               `json:"no_data"`
	RunID       string             `json:"run_id"`
	GeneratedAt time.Time          `json:"generated_at"`

	// Notice は集約結果そのものが空の場合のみ設定される。
	Notice *middleware.ErrorResponseBody `json:"notice,omitempty"`
}

// categoriesResponse はカテゴリ一覧のレスポンス。
type categoriesResponse struct {
	Categories []string `json:"categories"`
}

// statsResponse は集約結果の概要レスポンス。
type statsResponse struct {
	aggregate.Stats
	Succeeded   int       `json:"sources_succeeded"`
	Failed      int       `json:"sources_failed"`
	GeneratedAt time.Time `json:"generated_at"`
}

// refreshResponse は手動リフレッシュのレスポンス。
type refreshResponse struct {
	RunID     string `json:"run_id"`
	Records   int    `json:"records"`
	Succeeded int    `json:"sources_succeeded"`
	Failed    int    `json:"sources_failed"`
	NoData    bool   `json:"no_data"`
}

// ListNews は集約済みの記事一覧を返す。
// GET /api/news?category=xxx&source=xxx&since=24h&limit=50
func (h *NewsHandler) ListNews(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	since, err := parseSince(q.Get("since"))
	if err != nil || since > h.maxWindow {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidParameterError("since", q.Get("since")))
		return
	}

	limit := 0
	if s := q.Get("limit"); s != "" {
		limit, err = strconv.Atoi(s)
		if err != nil || limit <= 0 {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidParameterError("limit", s))
			return
		}
		if limit > maxLimit {
			limit = maxLimit
		}
	}

	category := strings.TrimSpace(q.Get("category"))

	// 既定期間より長い指定は一律に上限期間で実行し、sinceで絞り込む。
	// キャッシュキーは既定期間と上限期間の2つに限られる。
	window := h.defaultWindow
	if since > window {
		window = h.maxWindow
	}
	res := h.provider.Get(r.Context(), window)

	if category != "" && !h.isKnownCategory(category, res.Records) {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewUnknownCategoryError(category))
		return
	}
	category = canonicalCategory(category, res.Records)

	now := h.now()
	query := aggregate.Query{
		Category: category,
		SourceID: q.Get("source"),
	}
	if since > 0 {
		query.Since = now.Add(-since)
	}
	matched := aggregate.Filter(res.Records, query)
	total := len(matched)
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}

	items := make([]newsItemResponse, 0, len(matched))
	for _, rec := range matched {
		items = append(items, newsItemResponse{Record: rec, Age: aggregate.Age(rec.Timestamp, now)})
	}

	resp := newsListResponse{
		Items:       items,
		Count:       len(items),
		Total:       total,
		NoData:      len(items) == 0,
		RunID:       res.Diagnostics.RunID,
		GeneratedAt: res.GeneratedAt,
	}
	if res.Empty() {
		notice := middleware.NewErrorResponseBody(model.NewNoDataError())
		resp.Notice = &notice
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListCategories は集約結果に含まれるカテゴリの一覧を返す。
// GET /api/categories
func (h *NewsHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	res := h.provider.Get(r.Context(), h.defaultWindow)
	writeJSON(w, http.StatusOK, categoriesResponse{Categories: aggregate.Categories(res.Records)})
}

// GetStats は集約結果の件数やソース数の概要を返す。
// GET /api/stats
func (h *NewsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	res := h.provider.Get(r.Context(), h.defaultWindow)
	writeJSON(w, http.StatusOK, statsResponse{
		Stats:       aggregate.Summarize(res.Records),
		Succeeded:   res.Diagnostics.Succeeded,
		Failed:      res.Diagnostics.Failed,
		GeneratedAt: res.GeneratedAt,
	})
}

// GetSources は直近の実行のソース別診断情報を返す。
// GET /api/sources
func (h *NewsHandler) GetSources(w http.ResponseWriter, r *http.Request) {
	res := h.provider.Get(r.Context(), h.defaultWindow)
	writeJSON(w, http.StatusOK, res.Diagnostics)
}

// Refresh はキャッシュを破棄して再計算する。
// POST /api/refresh
func (h *NewsHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	res := h.provider.Refresh(r.Context(), h.defaultWindow)
	writeJSON(w, http.StatusOK, refreshResponse{
		RunID:     res.Diagnostics.RunID,
		Records:   len(res.Records),
		Succeeded: res.Diagnostics.Succeeded,
		Failed:    res.Diagnostics.Failed,
		NoData:    res.Empty(),
	})
}

// isKnownCategory は登録済みのカテゴリ、または結果に含まれるカテゴリかを判定する。
// 大文字小文字は区別しない。
func (h *NewsHandler) isKnownCategory(category string, records []model.Record) bool {
	if _, ok := h.known[strings.ToLower(category)]; ok {
		return true
	}
	for _, rec := range records {
		if strings.EqualFold(rec.Category, category) {
			return true
		}
	}
	return false
}

// canonicalCategory は結果に含まれる表記にカテゴリ名を揃える。
func canonicalCategory(category string, records []model.Record) string {
	for _, rec := range records {
		if strings.EqualFold(rec.Category, category) {
			return rec.Category
		}
	}
	return category
}

// parseSince は "24h" や "7d" 形式の期間を解析する。空文字列は0を返す。
func parseSince(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.ParseInt(days, 10, 64)
		if err != nil || n <= 0 {
			return 0, strconv.ErrSyntax
		}
		if n > maxSinceDays {
			return 0, strconv.ErrRange
		}
		return time.Duration(n) * day, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, strconv.ErrRange
	}
	return d, nil
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}
