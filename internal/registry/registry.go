// Package registry はニュースソースのディスクリプタ一覧とカテゴリ推定用のルールテーブルを提供する。
// Registryは生成後に変更されない。
package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/hitoshi/endzone/internal/model"
)

var (
	// ErrInvalidDescriptor はディスクリプタの検証に失敗した場合のエラー。
	ErrInvalidDescriptor = errors.New("invalid source descriptor")
	// ErrDuplicateID はディスクリプタIDが重複している場合のエラー。
	ErrDuplicateID = errors.New("duplicate source id")
)

// Registry はソースディスクリプタの不変な一覧。
type Registry struct {
	descs   []model.SourceDescriptor
	version string
}

// New はディスクリプタを検証し、コピーを保持するRegistryを生成する。
func New(descs []model.SourceDescriptor) (*Registry, error) {
	seen := make(map[string]struct{}, len(descs))
	copied := make([]model.SourceDescriptor, 0, len(descs))

	for i, d := range descs {
		if err := validate(d); err != nil {
			return nil, fmt.Errorf("descriptor[%d] %q: %w", i, d.ID, err)
		}
		if _, ok := seen[d.ID]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, d.ID)
		}
		seen[d.ID] = struct{}{}
		copied = append(copied, d)
	}

	return &Registry{descs: copied, version: computeVersion(copied)}, nil
}

func validate(d model.SourceDescriptor) error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidDescriptor)
	}

	switch d.Kind {
	case model.SourceKindSyndication:
	case model.SourceKindJSONAPI:
		if d.ParserHint == "" {
			return fmt.Errorf("%w: json source requires a parser hint", ErrInvalidDescriptor)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidDescriptor, d.Kind)
	}

	u, err := url.Parse(d.Endpoint)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDescriptor, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: endpoint must be an absolute http(s) URL: %q", ErrInvalidDescriptor, d.Endpoint)
	}
	return nil
}

// computeVersion は全フィールドを順序どおりに連結したSHA-256ダイジェストを返す。
func computeVersion(descs []model.SourceDescriptor) string {
	h := sha256.New()
	for _, d := range descs {
		fields := []string{
			d.ID, d.Name, string(d.Kind), d.Endpoint,
			d.CategoryHint, d.ParserHint, d.RuleSet, strconv.FormatBool(d.Enabled),
		}
		h.Write([]byte(strings.Join(fields, "\x00")))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// All は登録順の全ディスクリプタのコピーを返す。
func (r *Registry) All() []model.SourceDescriptor {
	out := make([]model.SourceDescriptor, len(r.descs))
	copy(out, r.descs)
	return out
}

// Enabled は有効なディスクリプタを登録順で返す。
func (r *Registry) Enabled() []model.SourceDescriptor {
	out := make([]model.SourceDescriptor, 0, len(r.descs))
	for _, d := range r.descs {
		if d.Enabled {
			out = append(out, d)
		}
	}
	return out
}

// Len は登録されているディスクリプタ数を返す。
func (r *Registry) Len() int {
	return len(r.descs)
}

// Version はレジストリ内容のダイジェスト。キャッシュキーに使用する。
func (r *Registry) Version() string {
	return r.version
}
