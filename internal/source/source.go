// Package source はソースディスクリプタ1件分のネットワーク取得を提供する。
// 取得方式はシンジケーションフィードとJSON APIの2種類に限られ、
// どちらもRawItemのスライスを返すFetcherとして扱われる。
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/hitoshi/endzone/internal/model"
)

const userAgent = "Endzone/1.0 News Aggregator"

var (
	// ErrEmptyFeed は取得に成功したが記事が0件だった場合のエラー。
	ErrEmptyFeed = errors.New("source returned no items")
	// ErrUnexpectedStatus は200以外のHTTPステータスを受け取った場合のエラー。
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")
	// ErrMalformedPayload はレスポンスボディを解析できなかった場合のエラー。
	ErrMalformedPayload = errors.New("malformed payload")
	// ErrUnknownMapper はJSON APIのマッパー名が登録されていない場合のエラー。
	ErrUnknownMapper = errors.New("unknown JSON mapper")
	// ErrFeedNotDetected はHTMLページからフィードリンクを検出できなかった場合のエラー。
	ErrFeedNotDetected = errors.New("feed not detected")
	// ErrUnsupportedKind は未知のSourceKindの場合のエラー。
	ErrUnsupportedKind = errors.New("unsupported source kind")
)

// StatusError はHTTPステータスコードを保持するエラー。
// errors.Is(err, ErrUnexpectedStatus) が成立する。
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %d", ErrUnexpectedStatus.Error(), e.StatusCode)
}

// Is はErrUnexpectedStatusとの比較を可能にする。
func (e *StatusError) Is(target error) bool {
	return target == ErrUnexpectedStatus
}

// Fetcher は1ソース分のRawItemを取得する。
type Fetcher interface {
	Fetch(ctx context.Context) ([]model.RawItem, error)
}

// Options はソース取得の共通パラメータ。
type Options struct {
	// MaxBodySize はレスポンスボディの最大読み取りバイト数。
	MaxBodySize int64
	// MaxEntries は1ソースから採用する最大件数。0以下は無制限。
	MaxEntries int
}

// New はディスクリプタの種類に応じたFetcherを生成する。
func New(desc model.SourceDescriptor, client *http.Client, opts Options) (Fetcher, error) {
	switch desc.Kind {
	case model.SourceKindSyndication:
		return &SyndicationSource{desc: desc, client: client, opts: opts}, nil
	case model.SourceKindJSONAPI:
		mapper, ok := LookupMapper(desc.ParserHint)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownMapper, desc.ParserHint)
		}
		return &JSONSource{desc: desc, client: client, opts: opts, mapper: mapper}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedKind, desc.Kind)
	}
}

// response はGETの結果。
type response struct {
	body        []byte
	contentType string
}

// get はURLにGETリクエストを送信し、200の場合のみボディを返す。
// ボディはmaxBodySizeまでしか読み取らない。
func get(ctx context.Context, client *http.Client, rawURL, accept string, maxBodySize int64) (*response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエスト作成に失敗: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", accept)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエスト失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	reader := io.Reader(resp.Body)
	if maxBodySize > 0 {
		reader = io.LimitReader(resp.Body, maxBodySize)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("レスポンス読み取り失敗: %w", err)
	}

	return &response{body: body, contentType: resp.Header.Get("Content-Type")}, nil
}

// capEntries は先頭からmax件までに切り詰める。順序は維持される。
func capEntries(items []model.RawItem, max int) []model.RawItem {
	if max > 0 && len(items) > max {
		return items[:max]
	}
	return items
}
