package aggregate

import (
	"fmt"
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/hitoshi/endzone/internal/model"
)

// Query は集約結果に対する表示用の絞り込み条件。
// ゼロ値のフィールドは条件として扱わない。
type Query struct {
	Category string
	SourceID string
	Since    time.Time
	Limit    int
}

// Filter は条件に一致するレコードを元の順序のまま返す。
func Filter(records []model.Record, q Query) []model.Record {
	out := lo.Filter(records, func(r model.Record, _ int) bool {
		if q.Category != "" && r.Category != q.Category {
			return false
		}
		if q.SourceID != "" && r.SourceID != q.SourceID {
			return false
		}
		if !q.Since.IsZero() && r.Timestamp.Before(q.Since) {
			return false
		}
		return true
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

// Categories はレコードに含まれるカテゴリを重複なしで昇順に返す。
func Categories(records []model.Record) []string {
	cats := lo.Uniq(lo.Map(records, func(r model.Record, _ int) string {
		return r.Category
	}))
	sort.Strings(cats)
	return cats
}

// Stats は集約結果の概要。
type Stats struct {
	Total      int            `json:"total"`
	Categories int            `json:"categories"`
	Sources    int            `json:"sources"`
	ByCategory map[string]int `json:"by_category"`
	Newest     *time.Time     `json:"newest,omitempty"`
}

// Summarize はレコード件数、カテゴリ数、ソース数を集計する。
func Summarize(records []model.Record) Stats {
	stats := Stats{
		Total:      len(records),
		ByCategory: lo.MapValues(
			lo.GroupBy(records, func(r model.Record) string { return r.Category }),
			func(group []model.Record, _ string) int { return len(group) },
		),
	}
	stats.Categories = len(stats.ByCategory)
	stats.Sources = len(lo.UniqBy(records, func(r model.Record) string { return r.SourceID }))

	if len(records) > 0 {
		newest := lo.MaxBy(records, func(a, b model.Record) bool {
			return a.Timestamp.After(b.Timestamp)
		}).Timestamp
		stats.Newest = &newest
	}
	return stats
}

// Age はtからnowまでの経過時間を "just now", "5m ago", "3h ago", "2d ago" の形式で返す。
func Age(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d >= 24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d/(24*time.Hour)))
	case d >= time.Hour:
		return fmt.Sprintf("%dh ago", int(d/time.Hour))
	case d >= time.Minute:
		return fmt.Sprintf("%dm ago", int(d/time.Minute))
	default:
		return "just now"
	}
}
