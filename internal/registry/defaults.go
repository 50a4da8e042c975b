package registry

import (
	"github.com/samber/lo"

	"github.com/hitoshi/endzone/internal/model"
	"github.com/hitoshi/endzone/internal/normalize"
)

const (
	// GeneralCategory はどのチームにも一致しない記事のカテゴリ。
	GeneralCategory = "NFL General"
	// UnknownInjury は負傷の種類が特定できない記事のカテゴリ。
	UnknownInjury = "Unspecified"

	// RuleSetInjuries は負傷ルールテーブルの名前。
	RuleSetInjuries = "injuries"
)

func feed(id, name, endpoint string) model.SourceDescriptor {
	return model.SourceDescriptor{
		ID:       id,
		Name:     name,
		Kind:     model.SourceKindSyndication,
		Endpoint: endpoint,
		Enabled:  true,
	}
}

func teamFeed(id, team, endpoint string) model.SourceDescriptor {
	d := feed(id, team, endpoint)
	d.CategoryHint = team
	return d
}

func injuryFeed(id, name, endpoint string) model.SourceDescriptor {
	d := feed(id, name, endpoint)
	d.RuleSet = RuleSetInjuries
	return d
}

// DefaultDescriptors は組み込みのNFLソース一覧を返す。
func DefaultDescriptors() []model.SourceDescriptor {
	return []model.SourceDescriptor{
		// 総合ニュース
		feed("espn-nfl", "ESPN", "https://www.espn.com/espn/rss/nfl/news"),
		feed("cbs-nfl", "CBS Sports", "https://www.cbssports.com/rss/headlines/nfl/"),
		feed("pft", "ProFootballTalk", "https://profootballtalk.nbcsports.com/feed/"),
		feed("yahoo-nfl", "Yahoo Sports", "https://sports.yahoo.com/nfl/rss.xml"),
		feed("nfl-trade-rumors", "NFL Trade Rumors", "https://nfltraderumors.co/feed/"),

		// チーム別
		teamFeed("bills", "Buffalo Bills", "https://www.buffalorumblings.com/rss/current.xml"),
		teamFeed("chiefs", "Kansas City Chiefs", "https://www.arrowheadpride.com/rss/current.xml"),
		teamFeed("eagles", "Philadelphia Eagles", "https://www.bleedinggreennation.com/rss/current.xml"),
		teamFeed("49ers", "San Francisco 49ers", "https://www.ninersnation.com/rss/current.xml"),
		teamFeed("cowboys", "Dallas Cowboys", "https://www.bloggingtheboys.com/rss/current.xml"),
		teamFeed("packers", "Green Bay Packers", "https://www.acmepackingcompany.com/rss/current.xml"),

		// 負傷情報
		injuryFeed("rotowire-nfl", "RotoWire", "https://www.rotowire.com/rss/news.php?sport=NFL"),
		injuryFeed("pft-injuries", "PFT Injuries", "https://profootballtalk.nbcsports.com/category/injuries/feed/"),

		// JSON API
		{
			ID:         "espn-api-news",
			Name:       "ESPN API",
			Kind:       model.SourceKindJSONAPI,
			Endpoint:   "https://site.api.espn.com/apis/site/v2/sports/football/nfl/news",
			ParserHint: "espn_news",
			Enabled:    true,
		},
		{
			ID:         "espn-api-injuries",
			Name:       "ESPN Injuries",
			Kind:       model.SourceKindJSONAPI,
			Endpoint:   "https://site.api.espn.com/apis/site/v2/sports/football/nfl/injuries",
			ParserHint: "espn_injuries",
			RuleSet:    RuleSetInjuries,
			Enabled:    true,
		},
	}
}

// Default は組み込みのNFLソース一覧からRegistryを生成する。
func Default() *Registry {
	r, err := New(DefaultDescriptors())
	if err != nil {
		panic("registry: invalid default descriptors: " + err.Error())
	}
	return r
}

// team はチームの正式名とその別名。
type team struct {
	name    string
	aliases []string
}

// teams は全32チーム。別名はニックネームと略称。
var teams = []team{
	{"Arizona Cardinals", []string{"Cardinals"}},
	{"Atlanta Falcons", []string{"Falcons"}},
	{"Baltimore Ravens", []string{"Ravens"}},
	{"Buffalo Bills", []string{"Bills"}},
	{"Carolina Panthers", []string{"Panthers"}},
	{"Chicago Bears", []string{"Bears"}},
	{"Cincinnati Bengals", []string{"Bengals"}},
	{"Cleveland Browns", []string{"Browns"}},
	{"Dallas Cowboys", []string{"Cowboys"}},
	{"Denver Broncos", []string{"Broncos"}},
	{"Detroit Lions", []string{"Lions"}},
	{"Green Bay Packers", []string{"Packers"}},
	{"Houston Texans", []string{"Texans"}},
	{"Indianapolis Colts", []string{"Colts"}},
	{"Jacksonville Jaguars", []string{"Jaguars", "Jags"}},
	{"Kansas City Chiefs", []string{"Chiefs"}},
	{"Las Vegas Raiders", []string{"Raiders"}},
	{"Los Angeles Chargers", []string{"Chargers"}},
	{"Los Angeles Rams", []string{"Rams"}},
	{"Miami Dolphins", []string{"Dolphins"}},
	{"Minnesota Vikings", []string{"Vikings"}},
	{"New England Patriots", []string{"Patriots", "Pats"}},
	{"New Orleans Saints", []string{"Saints"}},
	{"New York Giants", []string{"Giants"}},
	{"New York Jets", []string{"Jets"}},
	{"Philadelphia Eagles", []string{"Eagles"}},
	{"Pittsburgh Steelers", []string{"Steelers"}},
	{"San Francisco 49ers", []string{"49ers", "Niners"}},
	{"Seattle Seahawks", []string{"Seahawks"}},
	{"Tampa Bay Buccaneers", []string{"Buccaneers", "Bucs"}},
	{"Tennessee Titans", []string{"Titans"}},
	{"Washington Commanders", []string{"Commanders"}},
}

// TeamRules はチーム名推定用のルールを返す。
// 正式名を先に並べ、別名はその後に続ける。
func TeamRules() []normalize.Rule {
	rules := make([]normalize.Rule, 0, len(teams)*3)
	for _, t := range teams {
		rules = append(rules, normalize.Rule{Keyword: t.name, Category: t.name})
	}
	for _, t := range teams {
		for _, alias := range t.aliases {
			rules = append(rules, normalize.Rule{Keyword: alias, Category: t.name})
		}
	}
	return rules
}

// TeamNames は全チームの正式名を返す。
func TeamNames() []string {
	names := make([]string, len(teams))
	for i, t := range teams {
		names[i] = t.name
	}
	return names
}

// InjuryRules は負傷の種類推定用のルールを返す。
func InjuryRules() []normalize.Rule {
	return []normalize.Rule{
		{Keyword: "concussion", Category: "Concussion"},
		{Keyword: "torn ACL", Category: "ACL"},
		{Keyword: "ACL tear", Category: "ACL"},
		{Keyword: "ACL injury", Category: "ACL"},
		{Keyword: "MCL", Category: "MCL"},
		{Keyword: "Achilles", Category: "Achilles"},
		{Keyword: "hamstring", Category: "Hamstring"},
		{Keyword: "groin", Category: "Groin"},
		{Keyword: "ankle", Category: "Ankle"},
		{Keyword: "knee", Category: "Knee"},
		{Keyword: "shoulder", Category: "Shoulder"},
		{Keyword: "back injury", Category: "Back"},
		{Keyword: "foot injury", Category: "Foot"},
		{Keyword: "turf toe", Category: "Toe"},
		{Keyword: "calf", Category: "Calf"},
		{Keyword: "quadriceps", Category: "Quadriceps"},
		{Keyword: "ribs", Category: "Ribs"},
		{Keyword: "hand injury", Category: "Hand"},
		{Keyword: "wrist", Category: "Wrist"},
		{Keyword: "elbow", Category: "Elbow"},
		{Keyword: "neck", Category: "Neck"},
		{Keyword: "illness", Category: "Illness"},
	}
}

// RuleSets はNormalizerに渡すルールテーブルを返す。
// 空文字列のキーがデフォルト（チーム推定）となる。
func RuleSets() map[string]*normalize.Matcher {
	return map[string]*normalize.Matcher{
		"":              normalize.NewMatcher(TeamRules(), GeneralCategory),
		RuleSetInjuries: normalize.NewMatcher(InjuryRules(), UnknownInjury),
	}
}

// KnownCategories はルールテーブルとdescsのヒントから得られる全カテゴリを返す。
// 記事がまだ1件もないカテゴリもフィルタ指定として受け付けるために使う。
func KnownCategories(descs []model.SourceDescriptor) []string {
	cats := append([]string{GeneralCategory, UnknownInjury}, TeamNames()...)
	for _, r := range InjuryRules() {
		cats = append(cats, r.Category)
	}
	for _, d := range descs {
		if d.CategoryHint != "" {
			cats = append(cats, d.CategoryHint)
		}
	}
	return lo.Uniq(cats)
}
