package normalize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TruncationMarker は文字数上限で切り詰めた場合に末尾へ付与するマーカー。
const TruncationMarker = "..."

// Cleaner はフリーテキストからマークアップを除去し、空白を正規化して文字数上限で切り詰める。
// bluemondayのStrictPolicyを保持し、スレッドセーフに処理を行う。
type Cleaner struct {
	policy   *bluemonday.Policy
	maxChars int
}

// NewCleaner はCleanerを生成する。maxCharsは本文の最大文字数（rune単位）。
func NewCleaner(maxChars int) *Cleaner {
	p := bluemonday.StrictPolicy()
	// <p>a</p><p>b</p> が "ab" に連結されないよう、除去したタグを空白に置き換える
	p.AddSpaceWhenStrippingTag(true)

	return &Cleaner{
		policy:   p,
		maxChars: maxChars,
	}
}

// StripMarkup はタグを除去し、実体参照をデコードし、連続する空白を1つにまとめる。
func (c *Cleaner) StripMarkup(s string) string {
	if s == "" {
		return ""
	}
	text := html.UnescapeString(c.policy.Sanitize(s))
	return strings.Join(strings.Fields(text), " ")
}

// Clean はStripMarkupの結果を最大文字数で切り詰める。
// 切り詰めた場合は本文maxChars文字の後ろにTruncationMarkerを付与する。
func (c *Cleaner) Clean(s string) string {
	return Truncate(c.StripMarkup(s), c.maxChars)
}

// Truncate はsをrune単位でmaxChars文字に切り詰め、切り詰めた場合はマーカーを付与する。
func Truncate(s string, maxChars int) string {
	if maxChars <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars]) + TruncationMarker
}
