// Package normalize は取得したRawItemを共通のRecord形式に変換する。
// 日時の解決、期間フィルタ、マークアップ除去、キーワードによるカテゴリ推定を含む。
package normalize

import (
	"strings"
	"time"

	"github.com/hitoshi/endzone/internal/model"
)

// GeneralCategory はルールテーブルが見つからない場合のカテゴリ。
const GeneralCategory = "general"

// Options はNormalizerの動作パラメータ。
type Options struct {
	// Window は記事の最大経過時間。これより古い記事は除外される。
	Window time.Duration
	// SummaryMaxChars はサマリーの最大文字数。
	SummaryMaxChars int
	// Now は現在時刻の取得関数。nilの場合はtime.Nowを使用する。
	Now func() time.Time
}

// Normalizer はRawItemをRecordに変換する。
// ルールテーブルはディスクリプタのRuleSet名で選択され、空文字列のキーがデフォルトとなる。
type Normalizer struct {
	ruleSets map[string]*Matcher
	cleaner  *Cleaner
	window   time.Duration
	now      func() time.Time
}

// NewNormalizer はNormalizerの新しいインスタンスを生成する。
func NewNormalizer(ruleSets map[string]*Matcher, opts Options) *Normalizer {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	sets := make(map[string]*Matcher, len(ruleSets))
	for name, m := range ruleSets {
		sets[name] = m
	}
	return &Normalizer{
		ruleSets: sets,
		cleaner:  NewCleaner(opts.SummaryMaxChars),
		window:   opts.Window,
		now:      now,
	}
}

// WithWindow は期間だけを差し替えたNormalizerのコピーを返す。
func (n *Normalizer) WithWindow(window time.Duration) *Normalizer {
	c := *n
	c.window = window
	return &c
}

// Window は現在の期間を返す。
func (n *Normalizer) Window() time.Duration {
	return n.window
}

// Normalize は1件のRawItemを変換する。
// 見出しまたはリンクが空、もしくは期間外の場合はfalseを返す。
func (n *Normalizer) Normalize(item model.RawItem, desc model.SourceDescriptor) (model.Record, bool) {
	return n.normalizeAt(item, desc, n.now())
}

// NormalizeAll は複数のSourcedItemを入力順のまま変換し、除外件数を返す。
// 現在時刻はバッチ全体で1回だけ取得する。
func (n *Normalizer) NormalizeAll(items []model.SourcedItem) (records []model.Record, dropped int) {
	now := n.now()
	records = make([]model.Record, 0, len(items))
	for _, si := range items {
		rec, ok := n.normalizeAt(si.Item, si.Source, now)
		if !ok {
			dropped++
			continue
		}
		records = append(records, rec)
	}
	return records, dropped
}

func (n *Normalizer) normalizeAt(item model.RawItem, desc model.SourceDescriptor, now time.Time) (model.Record, bool) {
	headline := n.cleaner.StripMarkup(item.Headline)
	link := strings.TrimSpace(item.Link)
	if headline == "" || link == "" {
		return model.Record{}, false
	}

	ts, estimated := ResolveTimestamp(item, now)
	if !WithinWindow(ts, now, n.window) {
		return model.Record{}, false
	}

	return model.Record{
		Category:      n.categorize(headline, desc),
		Headline:      headline,
		Link:          link,
		Timestamp:     ts,
		SourceID:      desc.ID,
		SourceName:    desc.DisplayName(),
		Summary:       n.cleaner.Clean(item.Body),
		DateEstimated: estimated,
	}, true
}

// categorize はヒントがあればそれを、なければルールテーブルの推定結果を返す。
func (n *Normalizer) categorize(headline string, desc model.SourceDescriptor) string {
	if desc.CategoryHint != "" {
		return desc.CategoryHint
	}
	m, ok := n.ruleSets[desc.RuleSet]
	if !ok {
		m, ok = n.ruleSets[""]
	}
	if !ok {
		return GeneralCategory
	}
	return m.Match(headline)
}
