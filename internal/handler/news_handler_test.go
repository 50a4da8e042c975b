package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/endzone/internal/aggregate"
	"github.com/hitoshi/endzone/internal/middleware"
	"github.com/hitoshi/endzone/internal/model"
)

var testNow = time.Date(2025, 10, 14, 12, 0, 0, 0, time.UTC)

const (
	testWindow    = 7 * 24 * time.Hour
	testMaxWindow = 30 * 24 * time.Hour
)

// --- モック ---

// mockProvider はResultProviderのモック実装。
type mockProvider struct {
	mu        sync.Mutex
	result    model.Result
	windows   []time.Duration
	refreshed int
}

func (m *mockProvider) Get(_ context.Context, window time.Duration) model.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.windows = append(m.windows, window)
	return m.result
}

func (m *mockProvider) Refresh(_ context.Context, window time.Duration) model.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshed++
	m.windows = append(m.windows, window)
	return m.result
}

func (m *mockProvider) distinctWindows() map[time.Duration]struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[time.Duration]struct{})
	for _, w := range m.windows {
		seen[w] = struct{}{}
	}
	return seen
}

func (m *mockProvider) lastWindow() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.windows) == 0 {
		return 0
	}
	return m.windows[len(m.windows)-1]
}

func sampleResult(now time.Time) model.Result {
	return model.Result{
		Records: []model.Record{
			{Category: "Buffalo Bills", Headline: "Bills clinch playoff berth", Link: "https://x/1", Timestamp: now.Add(-30 * time.Minute), SourceID: "bills", SourceName: "Buffalo Rumblings"},
			{Category: "NFL General", Headline: "League office announces schedule", Link: "https://x/2", Timestamp: now.Add(-3 * time.Hour), SourceID: "espn-nfl", SourceName: "ESPN"},
			{Category: "Buffalo Bills", Headline: "Bills sign kicker", Link: "https://x/3", Timestamp: now.Add(-50 * time.Hour), SourceID: "espn-nfl", SourceName: "ESPN"},
		},
		Diagnostics: model.Diagnostics{
			RunID:     "run-1",
			Succeeded: 2,
			Failed:    1,
			Reports: []model.SourceReport{
				{SourceID: "bills", Items: 1},
				{SourceID: "espn-nfl", Items: 2},
				{SourceID: "pft", Err: "status 502"},
			},
		},
		GeneratedAt: now,
	}
}

func newTestNewsHandler(res model.Result) (*NewsHandler, *mockProvider) {
	p := &mockProvider{result: res}
	h := NewNewsHandler(p, testWindow, testMaxWindow, []string{"Buffalo Bills", "NFL General", "Dallas Cowboys"})
	h.now = func() time.Time { return testNow }
	return h, p
}

func decodeNews(t *testing.T, rec *httptest.ResponseRecorder) newsListResponse {
	t.Helper()
	var body newsListResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return body
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) middleware.ErrorResponseBody {
	t.Helper()
	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return body
}

// --- GET /api/news ---

// TestListNews_ReturnsAllRecordsInOrder は条件なしで全件が集約順のまま返ることを検証する。
func TestListNews_ReturnsAllRecordsInOrder(t *testing.T) {
	h, p := newTestNewsHandler(sampleResult(testNow))

	rec := httptest.NewRecorder()
	h.ListNews(rec, httptest.NewRequest(http.MethodGet, "/api/news", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	body := decodeNews(t, rec)
	if body.Count != 3 || body.Total != 3 || len(body.Items) != 3 {
		t.Fatalf("count=%d total=%d items=%d, want 3/3/3", body.Count, body.Total, len(body.Items))
	}
	want := []string{"Bills clinch playoff berth", "League office announces schedule", "Bills sign kicker"}
	for i, w := range want {
		if body.Items[i].Headline != w {
			t.Errorf("items[%d] = %q, want %q", i, body.Items[i].Headline, w)
		}
	}
	if body.Items[0].Age != "30m ago" || body.Items[2].Age != "2d ago" {
		t.Errorf("ages = %q, %q", body.Items[0].Age, body.Items[2].Age)
	}
	if body.NoData || body.Notice != nil {
		t.Error("no_data and notice should not be set")
	}
	if body.RunID != "run-1" {
		t.Errorf("run_id = %q, want run-1", body.RunID)
	}
	if p.lastWindow() != testWindow {
		t.Errorf("provider window = %v, want default %v", p.lastWindow(), testWindow)
	}
}

// TestListNews_CategoryFilterIgnoresCase はカテゴリ指定が大文字小文字を区別しないことを検証する。
func TestListNews_CategoryFilterIgnoresCase(t *testing.T) {
	h, _ := newTestNewsHandler(sampleResult(testNow))

	rec := httptest.NewRecorder()
	h.ListNews(rec, httptest.NewRequest(http.MethodGet, "/api/news?category=buffalo+bills", nil))

	body := decodeNews(t, rec)
	if body.Count != 2 {
		t.Fatalf("count = %d, want 2", body.Count)
	}
	for _, item := range body.Items {
		if item.Category != "Buffalo Bills" {
			t.Errorf("unexpected category %q", item.Category)
		}
	}
}

func TestListNews_UnknownCategoryReturns404(t *testing.T) {
	h, _ := newTestNewsHandler(sampleResult(testNow))

	rec := httptest.NewRecorder()
	h.ListNews(rec, httptest.NewRequest(http.MethodGet, "/api/news?category=Springfield+Atoms", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if body := decodeError(t, rec); body.Code != model.ErrCodeUnknownCategory {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeUnknownCategory)
	}
}

// TestListNews_KnownCategoryWithoutRecords は登録済みで記事のないカテゴリが空の200になることを検証する。
func TestListNews_KnownCategoryWithoutRecords(t *testing.T) {
	h, _ := newTestNewsHandler(sampleResult(testNow))

	rec := httptest.NewRecorder()
	h.ListNews(rec, httptest.NewRequest(http.MethodGet, "/api/news?category=Dallas+Cowboys", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeNews(t, rec)
	if !body.NoData || body.Count != 0 {
		t.Errorf("no_data=%v count=%d, want true/0", body.NoData, body.Count)
	}
	if body.Items == nil {
		t.Error("items should be an empty array, not null")
	}
	if body.Notice != nil {
		t.Error("notice should only be set when the whole result is empty")
	}
}

func TestListNews_SourceFilter(t *testing.T) {
	h, _ := newTestNewsHandler(sampleResult(testNow))

	rec := httptest.NewRecorder()
	h.ListNews(rec, httptest.NewRequest(http.MethodGet, "/api/news?source=espn-nfl", nil))

	body := decodeNews(t, rec)
	if body.Count != 2 {
		t.Fatalf("count = %d, want 2", body.Count)
	}
}

// TestListNews_SinceWithinDefaultWindow は既定期間内の指定がキャッシュ済みの結果を絞り込むことを検証する。
func TestListNews_SinceWithinDefaultWindow(t *testing.T) {
	h, p := newTestNewsHandler(sampleResult(testNow))

	rec := httptest.NewRecorder()
	h.ListNews(rec, httptest.NewRequest(http.MethodGet, "/api/news?since=24h", nil))

	body := decodeNews(t, rec)
	if body.Count != 2 {
		t.Errorf("count = %d, want 2", body.Count)
	}
	if p.lastWindow() != testWindow {
		t.Errorf("provider window = %v, want default %v", p.lastWindow(), testWindow)
	}
}

// TestListNews_SinceBeyondDefaultWindow は既定期間を超える指定で上限期間の実行を要求することを検証する。
func TestListNews_SinceBeyondDefaultWindow(t *testing.T) {
	h, p := newTestNewsHandler(sampleResult(testNow))

	rec := httptest.NewRecorder()
	h.ListNews(rec, httptest.NewRequest(http.MethodGet, "/api/news?since=10d", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if p.lastWindow() != testMaxWindow {
		t.Errorf("provider window = %v, want %v", p.lastWindow(), testMaxWindow)
	}
}

// TestListNews_DistinctSinceValuesShareWindows は任意のsince値で実行期間が増えないことを検証する。
// 期間ごとにキャッシュキーが分かれるため、sinceの値でパイプライン実行を量産できてはならない。
func TestListNews_DistinctSinceValuesShareWindows(t *testing.T) {
	h, p := newTestNewsHandler(sampleResult(testNow))

	queries := []string{"", "since=24h", "since=7d"}
	for i := 0; i < 40; i++ {
		queries = append(queries, fmt.Sprintf("since=%dh", 169+i), fmt.Sprintf("since=168h%ds", i+1))
	}
	queries = append(queries, "since=30d")

	for _, q := range queries {
		rec := httptest.NewRecorder()
		h.ListNews(rec, httptest.NewRequest(http.MethodGet, "/api/news?"+q, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%q: status = %d, want 200", q, rec.Code)
		}
	}

	windows := p.distinctWindows()
	if len(windows) != 2 {
		t.Fatalf("distinct provider windows = %v, want 2", windows)
	}
	for _, w := range []time.Duration{testWindow, testMaxWindow} {
		if _, ok := windows[w]; !ok {
			t.Errorf("window %v was not requested", w)
		}
	}
}

// TestListNews_SinceBeyondMaxWindow は上限期間を超える指定がプロバイダーに届かないことを検証する。
func TestListNews_SinceBeyondMaxWindow(t *testing.T) {
	for _, q := range []string{"since=31d", "since=721h", "since=200000d"} {
		t.Run(q, func(t *testing.T) {
			h, p := newTestNewsHandler(sampleResult(testNow))

			rec := httptest.NewRecorder()
			h.ListNews(rec, httptest.NewRequest(http.MethodGet, "/api/news?"+q, nil))

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if body := decodeError(t, rec); body.Code != model.ErrCodeInvalidParameter {
				t.Errorf("code = %q, want %q", body.Code, model.ErrCodeInvalidParameter)
			}
			if len(p.windows) != 0 {
				t.Errorf("provider should not be called, got windows %v", p.windows)
			}
		})
	}
}

func TestNewNewsHandler_MaxWindowNotBelowDefault(t *testing.T) {
	h := NewNewsHandler(&mockProvider{}, testWindow, 0, nil)
	if h.maxWindow != testWindow {
		t.Errorf("maxWindow = %v, want %v", h.maxWindow, testWindow)
	}
}

func TestListNews_LimitKeepsTotal(t *testing.T) {
	h, _ := newTestNewsHandler(sampleResult(testNow))

	rec := httptest.NewRecorder()
	h.ListNews(rec, httptest.NewRequest(http.MethodGet, "/api/news?limit=1", nil))

	body := decodeNews(t, rec)
	if body.Count != 1 || body.Total != 3 {
		t.Errorf("count=%d total=%d, want 1/3", body.Count, body.Total)
	}
	if body.Items[0].Headline != "Bills clinch playoff berth" {
		t.Errorf("first item = %q", body.Items[0].Headline)
	}
}

func TestListNews_InvalidParameters(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"since not a duration", "since=yesterday"},
		{"negative since", "since=-2h"},
		{"zero days", "since=0d"},
		{"limit not a number", "limit=ten"},
		{"zero limit", "limit=0"},
		{"negative limit", "limit=-5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestNewsHandler(sampleResult(testNow))

			rec := httptest.NewRecorder()
			h.ListNews(rec, httptest.NewRequest(http.MethodGet, "/api/news?"+tt.query, nil))

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if body := decodeError(t, rec); body.Code != model.ErrCodeInvalidParameter {
				t.Errorf("code = %q, want %q", body.Code, model.ErrCodeInvalidParameter)
			}
		})
	}
}

// TestListNews_EmptyResultSetsNotice は全ソース失敗時に200とno_data通知が返ることを検証する。
func TestListNews_EmptyResultSetsNotice(t *testing.T) {
	h, _ := newTestNewsHandler(model.Result{
		Diagnostics: model.Diagnostics{RunID: "run-empty", Failed: 3},
		GeneratedAt: testNow,
	})

	rec := httptest.NewRecorder()
	h.ListNews(rec, httptest.NewRequest(http.MethodGet, "/api/news", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeNews(t, rec)
	if !body.NoData {
		t.Error("no_data should be true")
	}
	if body.Notice == nil || body.Notice.Code != model.ErrCodeNoData {
		t.Errorf("notice = %+v, want code %s", body.Notice, model.ErrCodeNoData)
	}
}

// --- 他のエンドポイント ---

func TestListCategories(t *testing.T) {
	h, _ := newTestNewsHandler(sampleResult(testNow))

	rec := httptest.NewRecorder()
	h.ListCategories(rec, httptest.NewRequest(http.MethodGet, "/api/categories", nil))

	var body categoriesResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if len(body.Categories) != 2 || body.Categories[0] != "Buffalo Bills" || body.Categories[1] != "NFL General" {
		t.Errorf("categories = %v", body.Categories)
	}
}

func TestGetStats(t *testing.T) {
	h, _ := newTestNewsHandler(sampleResult(testNow))

	rec := httptest.NewRecorder()
	h.GetStats(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))

	var body statsResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	want := aggregate.Stats{Total: 3, Categories: 2, Sources: 2}
	if body.Total != want.Total || body.Categories != want.Categories || body.Sources != want.Sources {
		t.Errorf("stats = %+v, want %+v", body.Stats, want)
	}
	if body.ByCategory["Buffalo Bills"] != 2 {
		t.Errorf("by_category[Buffalo Bills] = %d, want 2", body.ByCategory["Buffalo Bills"])
	}
	if body.Succeeded != 2 || body.Failed != 1 {
		t.Errorf("succeeded=%d failed=%d, want 2/1", body.Succeeded, body.Failed)
	}
}

func TestGetSources(t *testing.T) {
	h, _ := newTestNewsHandler(sampleResult(testNow))

	rec := httptest.NewRecorder()
	h.GetSources(rec, httptest.NewRequest(http.MethodGet, "/api/sources", nil))

	var body model.Diagnostics
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if len(body.Reports) != 3 {
		t.Fatalf("reports = %d, want 3", len(body.Reports))
	}
	if body.Reports[2].OK() {
		t.Error("pft report should carry its error")
	}
}

func TestRefresh_CallsProvider(t *testing.T) {
	h, p := newTestNewsHandler(sampleResult(testNow))

	rec := httptest.NewRecorder()
	h.Refresh(rec, httptest.NewRequest(http.MethodPost, "/api/refresh", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if p.refreshed != 1 {
		t.Errorf("Refresh called %d times, want 1", p.refreshed)
	}

	var body refreshResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body.Records != 3 || body.RunID != "run-1" || body.NoData {
		t.Errorf("body = %+v", body)
	}
}

func TestParseSince(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"", 0, false},
		{"24h", 24 * time.Hour, false},
		{"90m", 90 * time.Minute, false},
		{"3d", 72 * time.Hour, false},
		{" 1d ", 24 * time.Hour, false},
		{"106751d", 106751 * 24 * time.Hour, false},
		{"106752d", 0, true},
		{"200000d", 0, true},
		{"99999999999999999999d", 0, true},
		{"d", 0, true},
		{"-1d", 0, true},
		{"0s", 0, true},
		{"soon", 0, true},
	}

	for _, tt := range tests {
		got, err := parseSince(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseSince(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseSince(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
