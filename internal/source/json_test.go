package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/endzone/internal/model"
)

const testESPNNews = `{
  "header": "NFL News",
  "articles": [
    {
      "headline": "Eagles extend star tackle",
      "description": "Philadelphia locked up its anchor.",
      "published": "2025-10-13T18:30:00Z",
      "links": {"web": {"href": "https://www.espn.com/nfl/story/_/id/1"}}
    },
    {
      "headline": "Week 7 power rankings",
      "description": "Who climbed?",
      "published": "Oct 13, 2025",
      "links": {"web": {"href": "https://www.espn.com/nfl/story/_/id/2"}}
    }
  ]
}`

const testESPNInjuries = `{
  "injuries": [
    {
      "displayName": "Buffalo Bills",
      "injuries": [
        {
          "status": "Out",
          "date": "2025-10-12T15:04:05Z",
          "shortComment": "Torn ACL in practice.",
          "athlete": {"displayName": "Jane Doe", "links": [{"href": "https://www.espn.com/nfl/player/_/id/9"}]},
          "type": {"description": "Knee"}
        },
        {
          "status": "Questionable",
          "athlete": {"displayName": "John Roe"}
        },
        {
          "status": "Out",
          "athlete": {"displayName": ""}
        }
      ]
    }
  ]
}`

func jsonDesc(endpoint, hint string) model.SourceDescriptor {
	return model.SourceDescriptor{
		ID:         "espn-json",
		Name:       "ESPN API",
		Kind:       model.SourceKindJSONAPI,
		Endpoint:   endpoint,
		ParserHint: hint,
		Enabled:    true,
	}
}

func serveJSON(body string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}))
}

func TestJSONSource_ESPNNews(t *testing.T) {
	ts := serveJSON(testESPNNews)
	defer ts.Close()

	items, err := newTestFetcher(t, jsonDesc(ts.URL, "espn_news"), Options{}).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}

	if items[0].Headline != "Eagles extend star tackle" || items[0].Link != "https://www.espn.com/nfl/story/_/id/1" {
		t.Errorf("items[0] = %+v", items[0])
	}
	if items[0].Published == nil || !items[0].Published.Equal(time.Date(2025, 10, 13, 18, 30, 0, 0, time.UTC)) {
		t.Errorf("items[0].Published = %v", items[0].Published)
	}
	if items[1].Published != nil || items[1].DateText != "Oct 13, 2025" {
		t.Errorf("non-RFC3339 date should go to DateText: %+v", items[1])
	}
}

func TestJSONSource_ESPNInjuries(t *testing.T) {
	ts := serveJSON(testESPNInjuries)
	defer ts.Close()

	items, err := newTestFetcher(t, jsonDesc(ts.URL, "espn_injuries"), Options{}).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2 (entry without athlete skipped)", len(items))
	}

	if want := "Jane Doe (Buffalo Bills) - Out: Knee"; items[0].Headline != want {
		t.Errorf("Headline = %q, want %q", items[0].Headline, want)
	}
	if items[0].Link != "https://www.espn.com/nfl/player/_/id/9" {
		t.Errorf("Link = %q", items[0].Link)
	}
	if items[0].Body != "Torn ACL in practice." {
		t.Errorf("Body = %q", items[0].Body)
	}

	if want := "John Roe (Buffalo Bills) - Questionable: Undisclosed"; items[1].Headline != want {
		t.Errorf("Headline = %q, want %q", items[1].Headline, want)
	}
	if items[1].Link != injuriesFallbackLink {
		t.Errorf("Link = %q, want fallback %q", items[1].Link, injuriesFallbackLink)
	}
	if items[1].Published != nil || items[1].DateText != "" {
		t.Errorf("missing date should stay empty: %+v", items[1])
	}
}

func TestJSONSource_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
	}{
		{"invalid json", `{"articles": [`, ErrMalformedPayload},
		{"no articles", `{"articles": []}`, ErrEmptyFeed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := serveJSON(tt.body)
			defer ts.Close()

			_, err := newTestFetcher(t, jsonDesc(ts.URL, "espn_news"), Options{}).Fetch(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLookupMapper(t *testing.T) {
	for _, name := range []string{"espn_news", "espn_injuries"} {
		if _, ok := LookupMapper(name); !ok {
			t.Errorf("LookupMapper(%q) not found", name)
		}
	}
	if _, ok := LookupMapper("rss"); ok {
		t.Error("LookupMapper(\"rss\") should not be found")
	}
}
