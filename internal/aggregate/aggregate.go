// Package aggregate は全ソースの正規化済みレコードを統合し、重複を除去して新しい順に並べる。
package aggregate

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/hitoshi/endzone/internal/model"
)

// Scheme はフィンガープリントに含めるフィールドの組み合わせ。
type Scheme int

const (
	// SchemeHeadlineAndLink は見出し+リンクで同一性を判定する（デフォルト）。
	// 同じ見出しでもリンクが異なる転載記事は別レコードとして残る。
	SchemeHeadlineAndLink Scheme = iota
	// SchemeHeadlineOnly は見出しのみで同一性を判定する。
	// リンクの異なるクロスポストも1件にまとめられる。
	SchemeHeadlineOnly
)

// ParseScheme は設定値の文字列をSchemeに変換する。
func ParseScheme(s string) (Scheme, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "headline_link":
		return SchemeHeadlineAndLink, nil
	case "headline":
		return SchemeHeadlineOnly, nil
	default:
		return 0, fmt.Errorf("unknown dedup scheme: %q", s)
	}
}

// String はSchemeの設定値表現を返す。
func (s Scheme) String() string {
	if s == SchemeHeadlineOnly {
		return "headline"
	}
	return "headline_link"
}

// fieldSeparator はフィールド連結時の区切り。見出し中に現れないNULを使う。
const fieldSeparator = "\x00"

// Fingerprint はレコードのSHA-256ダイジェストを16進文字列で返す。
// フィールドは前後の空白を除去し小文字化した上で固定順に連結する。
func Fingerprint(rec model.Record, scheme Scheme) string {
	fields := []string{normalizeField(rec.Headline)}
	if scheme == SchemeHeadlineAndLink {
		fields = append(fields, normalizeField(rec.Link))
	}
	sum := sha256.Sum256([]byte(strings.Join(fields, fieldSeparator)))
	return hex.EncodeToString(sum[:])
}

func normalizeField(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Aggregate はレコードを重複除去し、Timestampの降順に並べた新しいスライスを返す。
// 同一フィンガープリントの場合は最初に現れたレコードを残す。
// 同時刻のレコードは入力順を維持する。入力が空の場合は空の結果を返す。
func Aggregate(records []model.Record, scheme Scheme) (out []model.Record, duplicates int) {
	out = make([]model.Record, 0, len(records))
	seen := make(map[string]struct{}, len(records))

	for _, rec := range records {
		fp := Fingerprint(rec, scheme)
		if _, dup := seen[fp]; dup {
			duplicates++
			continue
		}
		seen[fp] = struct{}{}
		out = append(out, rec)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})

	return out, duplicates
}
