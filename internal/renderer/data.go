package renderer

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

// contextFor assembles the render context for a template: data files the
// template declares as extra dependencies come first, keyed by their file
// stem, then the configured context sources in order. The first matching
// source wins unless MergeContexts is set, in which case every match
// contributes and later matches override earlier keys.
func (s *Site) contextFor(name string) (map[string]interface{}, error) {
	ctx, err := s.dataContext(name)
	if err != nil {
		return nil, err
	}
	for _, source := range s.contexts {
		if !source.Pattern.MatchString(name) {
			continue
		}
		m, err := source.Build(name)
		if err != nil {
			return nil, fmt.Errorf("context source %s: %w", source.Pattern, err)
		}
		for k, v := range m {
			ctx[k] = v
		}
		if !s.mergeContexts {
			break
		}
	}
	return ctx, nil
}

// dataContext loads the declared data dependencies of a template.
func (s *Site) dataContext(name string) (map[string]interface{}, error) {
	ctx := make(map[string]interface{})
	for _, dep := range s.sources.ExtraDepsFor(name) {
		if !s.sources.IsData(dep) {
			continue
		}
		value, err := s.loadData(dep)
		if err != nil {
			return nil, fmt.Errorf("loading data file %s: %w", dep, err)
		}
		ctx[dataKey(dep)] = value
	}
	return ctx, nil
}

// loadData decodes a data file by extension. Unknown extensions are exposed
// as their raw text.
func (s *Site) loadData(name string) (interface{}, error) {
	text, err := s.readSource(name)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(path.Ext(name)) {
	case ".json":
		var v interface{}
		if err := json.Unmarshal([]byte(text), &v); err != nil {
			return nil, err
		}
		return v, nil
	case ".yaml", ".yml":
		var v interface{}
		if err := yaml.Unmarshal([]byte(text), &v); err != nil {
			return nil, err
		}
		return v, nil
	default:
		return text, nil
	}
}

// dataKey derives the context key of a data file: its base name without
// the extension.
func dataKey(name string) string {
	base := path.Base(name)
	return strings.TrimSuffix(base, path.Ext(base))
}
