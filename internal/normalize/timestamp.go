package normalize

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/hitoshi/endzone/internal/model"
)

// ResolveTimestamp はRawItemの日時を1つの時刻に解決する。
// 解決順序:
//  1. 構造化された公開日時
//  2. 構造化された更新日時
//  3. 文字列形式の日付のベストエフォート解析
//  4. 現在時刻（estimated=trueを返す）
//
// 4の場合、解析できない日付は最新の記事として扱われる。
func ResolveTimestamp(item model.RawItem, now time.Time) (ts time.Time, estimated bool) {
	if item.Published != nil && !item.Published.IsZero() {
		return item.Published.UTC(), false
	}
	if item.Updated != nil && !item.Updated.IsZero() {
		return item.Updated.UTC(), false
	}
	if text := strings.TrimSpace(item.DateText); text != "" {
		if t, err := dateparse.ParseAny(text); err == nil && !t.IsZero() {
			return t.UTC(), false
		}
	}
	return now.UTC(), true
}

// WithinWindow はtsがnow-windowより古くないかを判定する。境界ちょうどは含む。
func WithinWindow(ts, now time.Time, window time.Duration) bool {
	return !ts.Before(now.Add(-window))
}
