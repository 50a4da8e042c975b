package fetch

import (
	"context"
	"errors"
	"net"

	"github.com/hitoshi/endzone/internal/source"
)

// FailureReason はソース取得失敗の分類。メトリクスのラベルに使用する。
type FailureReason string

const (
	// ReasonTimeout は接続または全体タイムアウト。
	ReasonTimeout FailureReason = "timeout"
	// ReasonCanceled は呼び出し元のキャンセル。
	ReasonCanceled FailureReason = "canceled"
	// ReasonHTTPStatus は200以外のHTTPステータス。
	ReasonHTTPStatus FailureReason = "http_status"
	// ReasonMalformed はボディの解析失敗。
	ReasonMalformed FailureReason = "malformed"
	// ReasonEmpty は記事0件。
	ReasonEmpty FailureReason = "empty"
	// ReasonNotDetected はHTMLページからフィードを検出できなかった。
	ReasonNotDetected FailureReason = "not_detected"
	// ReasonConfig はディスクリプタ設定の不備（未知のマッパーや種類）。
	ReasonConfig FailureReason = "config"
	// ReasonNetwork はその他のネットワークエラー。
	ReasonNetwork FailureReason = "network"
)

// Classify はエラーを失敗理由に分類する。
func Classify(err error) FailureReason {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case errors.Is(err, context.Canceled):
		return ReasonCanceled
	case errors.As(err, &netErr) && netErr.Timeout():
		return ReasonTimeout
	case errors.Is(err, source.ErrUnexpectedStatus):
		return ReasonHTTPStatus
	case errors.Is(err, source.ErrMalformedPayload):
		return ReasonMalformed
	case errors.Is(err, source.ErrEmptyFeed):
		return ReasonEmpty
	case errors.Is(err, source.ErrFeedNotDetected):
		return ReasonNotDetected
	case errors.Is(err, source.ErrUnknownMapper), errors.Is(err, source.ErrUnsupportedKind):
		return ReasonConfig
	default:
		return ReasonNetwork
	}
}

// StatusCode はエラーがHTTPステータスエラーの場合にそのコードを返す。
func StatusCode(err error) (int, bool) {
	var se *source.StatusError
	if errors.As(err, &se) {
		return se.StatusCode, true
	}
	return 0, false
}
