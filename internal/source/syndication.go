package source

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/endzone/internal/model"
)

const feedAccept = "application/rss+xml, application/atom+xml, application/feed+json, application/xml, text/xml, text/html;q=0.5, */*;q=0.1"

// SyndicationSource はRSS/Atom/JSON Feedを取得するFetcher。
// エンドポイントがHTMLページの場合はheadのalternateリンクからフィードを検出して1回だけ取得し直す。
type SyndicationSource struct {
	desc   model.SourceDescriptor
	client *http.Client
	opts   Options
}

// Fetch はフィードを取得し、フィード内の順序を保ったままRawItemに変換する。
func (s *SyndicationSource) Fetch(ctx context.Context) ([]model.RawItem, error) {
	resp, err := get(ctx, s.client, s.desc.Endpoint, feedAccept, s.opts.MaxBodySize)
	if err != nil {
		return nil, err
	}

	if !IsDirectFeed(resp.contentType, resp.body) && isHTML(resp.contentType) {
		best := SelectBestFeed(ParseFeedLinksFromHTML(resp.body, s.desc.Endpoint), s.desc.Endpoint)
		if best == nil {
			return nil, fmt.Errorf("%w: %s", ErrFeedNotDetected, s.desc.Endpoint)
		}
		resp, err = get(ctx, s.client, best.URL, feedAccept, s.opts.MaxBodySize)
		if err != nil {
			return nil, err
		}
	}

	// gofeedでフィードをパース
	parsed, err := gofeed.NewParser().ParseString(string(resp.body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	items := capEntries(convertGofeedItems(parsed.Items), s.opts.MaxEntries)
	if len(items) == 0 {
		return nil, ErrEmptyFeed
	}
	return items, nil
}

// isHTML はContent-TypeがHTMLかを判定する。
func isHTML(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.Split(contentType, ";")[0])
	}
	return strings.Contains(strings.ToLower(mediaType), "html")
}

// convertGofeedItems はgofeedの記事をRawItemに変換する。
func convertGofeedItems(items []*gofeed.Item) []model.RawItem {
	raw := make([]model.RawItem, 0, len(items))

	for _, item := range items {
		if item == nil {
			continue
		}

		r := model.RawItem{
			Headline: item.Title,
			Link:     item.Link,
			Body:     item.Description,
		}

		// Descriptionが空の場合はContentを使用
		if r.Body == "" {
			r.Body = item.Content
		}

		if item.PublishedParsed != nil {
			t := *item.PublishedParsed
			r.Published = &t
		}
		if item.UpdatedParsed != nil {
			t := *item.UpdatedParsed
			r.Updated = &t
		}

		// gofeedが解析できなかった日付文字列は後段のフォールバック解析に回す
		switch {
		case r.Published == nil && item.Published != "":
			r.DateText = item.Published
		case r.Updated == nil && item.Updated != "":
			r.DateText = item.Updated
		}

		// LinkがなくGUIDがURL形式の場合はGUIDをLinkとして使用
		if strings.TrimSpace(r.Link) == "" &&
			(strings.HasPrefix(item.GUID, "http://") || strings.HasPrefix(item.GUID, "https://")) {
			r.Link = item.GUID
		}

		raw = append(raw, r)
	}

	return raw
}
