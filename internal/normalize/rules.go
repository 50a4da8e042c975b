package normalize

import "strings"

// Rule はキーワードとカテゴリの対応を表す。
type Rule struct {
	Keyword  string
	Category string
}

// Matcher は順序付きルールテーブルによるカテゴリ推定を行う。
// ルールはリスト順に評価され、最初にマッチしたルールのカテゴリが採用される。
// テキスト中の出現位置は優先順位に影響しない。
type Matcher struct {
	rules    []Rule // Keywordは小文字化済み
	sentinel string
}

// NewMatcher はMatcherを生成する。
// 空のキーワードを持つルールは無視される。sentinelはどのルールにもマッチしない場合のカテゴリ。
func NewMatcher(rules []Rule, sentinel string) *Matcher {
	m := &Matcher{
		rules:    make([]Rule, 0, len(rules)),
		sentinel: sentinel,
	}
	for _, r := range rules {
		kw := strings.ToLower(strings.TrimSpace(r.Keyword))
		if kw == "" {
			continue
		}
		m.rules = append(m.rules, Rule{Keyword: kw, Category: r.Category})
	}
	return m
}

// Match はテキストに最初にマッチしたルールのカテゴリを返す。
func (m *Matcher) Match(text string) string {
	lower := strings.ToLower(text)
	for _, r := range m.rules {
		if strings.Contains(lower, r.Keyword) {
			return r.Category
		}
	}
	return m.sentinel
}

// Sentinel はマッチなしの場合のカテゴリを返す。
func (m *Matcher) Sentinel() string {
	return m.sentinel
}

// Len はルール数を返す。
func (m *Matcher) Len() int {
	return len(m.rules)
}
