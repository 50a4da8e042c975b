package registry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hitoshi/endzone/internal/model"
)

// sourceFile はソース定義ファイルの最上位構造。
type sourceFile struct {
	Sources []sourceEntry `yaml:"sources"`
}

type sourceEntry struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	Kind         string `yaml:"kind"`
	Endpoint     string `yaml:"endpoint"`
	CategoryHint string `yaml:"category_hint"`
	ParserHint   string `yaml:"parser_hint"`
	RuleSet      string `yaml:"rule_set"`
	Enabled      *bool  `yaml:"enabled"` // 省略時は有効
}

// LoadFile はYAMLのソース定義ファイルからRegistryを構築する。
// 各エントリはNewと同じ検証を受ける。
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read source file: %w", err)
	}
	return Parse(data)
}

// Parse はYAMLのソース定義からRegistryを構築する。
func Parse(data []byte) (*Registry, error) {
	var f sourceFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDescriptor, err)
	}
	if len(f.Sources) == 0 {
		return nil, fmt.Errorf("%w: no sources defined", ErrInvalidDescriptor)
	}

	descs := make([]model.SourceDescriptor, 0, len(f.Sources))
	for _, e := range f.Sources {
		enabled := true
		if e.Enabled != nil {
			enabled = *e.Enabled
		}
		descs = append(descs, model.SourceDescriptor{
			ID:           e.ID,
			Name:         e.Name,
			Kind:         model.SourceKind(e.Kind),
			Endpoint:     e.Endpoint,
			CategoryHint: e.CategoryHint,
			ParserHint:   e.ParserHint,
			RuleSet:      e.RuleSet,
			Enabled:      enabled,
		})
	}
	return New(descs)
}
