// Package model はドメインモデルを定義する。
package model

import "time"

// SourceKind はソースの取得方式を表す。
type SourceKind string

const (
	// SourceKindSyndication はRSS/Atom等のシンジケーションフィード。
	SourceKindSyndication SourceKind = "syndication_feed"
	// SourceKindJSONAPI はJSONを返すHTTP API。
	SourceKindJSONAPI SourceKind = "json_api"
)

// SourceDescriptor は取得対象のフィードまたはAPIエンドポイントを表す。
// 起動時に1回構築され、以降パイプラインから変更されることはない。
type SourceDescriptor struct {
	ID           string     // 実行をまたいで安定した識別子（診断用）
	Name         string     // 表示用のソース名
	Kind         SourceKind
	Endpoint     string
	CategoryHint string // 設定時はキーワード推定より優先される（チーム別フィード用）
	ParserHint   string // JSON APIのマッパー名
	RuleSet      string // カテゴリ推定に使うルールテーブル名。空はデフォルト
	Enabled      bool
}

// DisplayName はソース名を返す。Nameが空の場合はIDを返す。
func (d SourceDescriptor) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.ID
}

// RawItem は正規化前の取得直後の1エントリを表す。
// フェッチワーカー内で生成され、正規化で消費される。
type RawItem struct {
	Headline  string
	Link      string
	Published *time.Time
	Updated   *time.Time
	DateText  string // 構造化日時がない場合の文字列形式の日付
	Body      string // 未サニタイズのHTMLを含みうる本文/サマリー
}

// SourcedItem はRawItemと取得元のディスクリプタの組。
type SourcedItem struct {
	Item   RawItem
	Source SourceDescriptor
}
