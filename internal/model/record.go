package model

import "time"

// Record は全ソース共通の正規化済みレコード。
// HeadlineとLinkは常に空でない。
type Record struct {
	Category      string    `json:"category"`
	Headline      string    `json:"headline"`
	Link          string    `json:"link"`
	Timestamp     time.Time `json:"timestamp"`
	SourceID      string    `json:"source_id"`
	SourceName    string    `json:"source"`
	Summary       string    `json:"summary"`
	DateEstimated bool      `json:"date_estimated"` // 日付が解析できず現在時刻で代用した
}

// SourceReport はソース1件分のフェッチ結果の診断情報。
type SourceReport struct {
	SourceID string        `json:"source_id"`
	Items    int           `json:"items"`
	Err      string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// OK はフェッチが成功したかを返す。
func (r SourceReport) OK() bool {
	return r.Err == ""
}

// Diagnostics はパイプライン1回分の実行診断。
type Diagnostics struct {
	RunID      string         `json:"run_id"`
	StartedAt  time.Time      `json:"started_at"`
	Duration   time.Duration  `json:"duration_ns"`
	Succeeded  int            `json:"succeeded"`
	Failed     int            `json:"failed"`
	Normalized int            `json:"normalized"`
	Dropped    int            `json:"dropped"`
	Duplicates int            `json:"duplicates"`
	Reports    []SourceReport `json:"sources"`
}

// Result は表示層に渡す集約結果。
// Recordsはフィンガープリントで一意、Timestampの降順に並ぶ。
type Result struct {
	Records     []Record    `json:"records"`
	Diagnostics Diagnostics `json:"diagnostics"`
	GeneratedAt time.Time   `json:"generated_at"`
}

// Empty は結果が0件かを返す。
func (r *Result) Empty() bool {
	return len(r.Records) == 0
}
