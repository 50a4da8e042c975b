package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/endzone/internal/model"
)

const jsonAccept = "application/json"

// injuriesFallbackLink は記事固有のリンクを持たない負傷情報に使用するリンク。
const injuriesFallbackLink = "https://www.espn.com/nfl/injuries"

// MapperFunc はJSONボディをRawItemのスライスに変換する。
type MapperFunc func(body []byte) ([]model.RawItem, error)

// mappers はParserHintとマッパーの対応表。
var mappers = map[string]MapperFunc{
	"espn_news":     mapESPNNews,
	"espn_injuries": mapESPNInjuries,
}

// LookupMapper は名前に対応するマッパーを返す。
func LookupMapper(name string) (MapperFunc, bool) {
	m, ok := mappers[name]
	return m, ok
}

// JSONSource はJSON APIを取得し、登録済みマッパーでRawItemに変換するFetcher。
type JSONSource struct {
	desc   model.SourceDescriptor
	client *http.Client
	opts   Options
	mapper MapperFunc
}

// Fetch はAPIを取得してマッパーを適用する。
func (s *JSONSource) Fetch(ctx context.Context) ([]model.RawItem, error) {
	resp, err := get(ctx, s.client, s.desc.Endpoint, jsonAccept, s.opts.MaxBodySize)
	if err != nil {
		return nil, err
	}

	items, err := s.mapper(resp.body)
	if err != nil {
		return nil, err
	}

	items = capEntries(items, s.opts.MaxEntries)
	if len(items) == 0 {
		return nil, ErrEmptyFeed
	}
	return items, nil
}

type espnNewsPayload struct {
	Articles []struct {
		Headline     string `json:"headline"`
		Description  string `json:"description"`
		Published    string `json:"published"`
		LastModified string `json:"lastModified"`
		Links        struct {
			Web struct {
				Href string `json:"href"`
			} `json:"web"`
		} `json:"links"`
	} `json:"articles"`
}

// mapESPNNews はESPNニュースAPIの記事一覧を変換する。
func mapESPNNews(body []byte) ([]model.RawItem, error) {
	var payload espnNewsPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	items := make([]model.RawItem, 0, len(payload.Articles))
	for _, a := range payload.Articles {
		item := model.RawItem{
			Headline: a.Headline,
			Link:     a.Links.Web.Href,
			Body:     a.Description,
		}
		setDate(&item, a.Published, a.LastModified)
		items = append(items, item)
	}
	return items, nil
}

type espnInjuriesPayload struct {
	Injuries []struct {
		DisplayName string `json:"displayName"`
		Injuries    []struct {
			Status       string `json:"status"`
			Date         string `json:"date"`
			ShortComment string `json:"shortComment"`
			LongComment  string `json:"longComment"`
			Athlete      struct {
				DisplayName string `json:"displayName"`
				Links       []struct {
					Href string `json:"href"`
				} `json:"links"`
			} `json:"athlete"`
			Type struct {
				Description string `json:"description"`
			} `json:"type"`
		} `json:"injuries"`
	} `json:"injuries"`
}

// mapESPNInjuries はESPN負傷者APIのチーム別一覧を変換する。
// 見出しは "<選手名> (<チーム名>) - <状態>: <種類>" の形式で合成する。
func mapESPNInjuries(body []byte) ([]model.RawItem, error) {
	var payload espnInjuriesPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	var items []model.RawItem
	for _, team := range payload.Injuries {
		for _, inj := range team.Injuries {
			athlete := strings.TrimSpace(inj.Athlete.DisplayName)
			if athlete == "" {
				continue
			}

			injuryType := inj.Type.Description
			if injuryType == "" {
				injuryType = "Undisclosed"
			}

			link := injuriesFallbackLink
			if len(inj.Athlete.Links) > 0 && inj.Athlete.Links[0].Href != "" {
				link = inj.Athlete.Links[0].Href
			}

			summary := inj.LongComment
			if summary == "" {
				summary = inj.ShortComment
			}

			item := model.RawItem{
				Headline: fmt.Sprintf("%s (%s) - %s: %s", athlete, team.DisplayName, inj.Status, injuryType),
				Link:     link,
				Body:     summary,
			}
			setDate(&item, inj.Date, "")
			items = append(items, item)
		}
	}
	return items, nil
}

// setDate はRFC3339形式の日時をPublished/Updatedに設定する。
// 解析できない文字列はDateTextに残し、正規化時のフォールバック解析に回す。
func setDate(item *model.RawItem, published, updated string) {
	if t, ok := parseRFC3339(published); ok {
		item.Published = &t
	} else if published != "" {
		item.DateText = published
	}
	if t, ok := parseRFC3339(updated); ok {
		item.Updated = &t
	} else if updated != "" && item.DateText == "" {
		item.DateText = updated
	}
}

func parseRFC3339(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
