package nexus

import (
	"net/url"
	"sort"
)

const (
	SearchKeyword    = "q"
	SearchGroup      = "group"
	SearchName       = "name"
	SearchVersion    = "version"
	SearchFormat     = "format"
	SearchRepository = "repository"
	SearchTag        = "tag"
)

// SearchBuilder collects the query parameters used to select components.
type SearchBuilder struct {
	params map[string]string
	err    error
}

func NewSearchBuilder() *SearchBuilder {
	return &SearchBuilder{params: map[string]string{}}
}

func (s *SearchBuilder) WithKeyword(keyword string) *SearchBuilder {
	return s.WithParameter(SearchKeyword, keyword)
}

func (s *SearchBuilder) WithGroup(group string) *SearchBuilder {
	return s.WithParameter(SearchGroup, group)
}

func (s *SearchBuilder) WithName(name string) *SearchBuilder {
	return s.WithParameter(SearchName, name)
}

func (s *SearchBuilder) WithVersion(version string) *SearchBuilder {
	return s.WithParameter(SearchVersion, version)
}

func (s *SearchBuilder) WithFormat(format string) *SearchBuilder {
	return s.WithParameter(SearchFormat, format)
}

func (s *SearchBuilder) WithRepository(repository string) *SearchBuilder {
	return s.WithParameter(SearchRepository, repository)
}

func (s *SearchBuilder) WithTag(tag string) *SearchBuilder {
	return s.WithParameter(SearchTag, tag)
}

func (s *SearchBuilder) WithParameter(name, value string) *SearchBuilder {
	if s.err != nil {
		return s
	}
	if err := checkArgument(!isBlank(name), "search parameter name is required"); err != nil {
		s.err = err
		return s
	}
	if err := checkArgument(!isBlank(value), "value for search parameter '%s' is required", name); err != nil {
		s.err = err
		return s
	}
	s.params[name] = value
	return s
}

// Build returns a copy of the collected parameters.
func (s *SearchBuilder) Build() (map[string]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make(map[string]string, len(s.params))
	for k, v := range s.params {
		out[k] = v
	}
	return out, nil
}

func encodeSearch(search map[string]string) string {
	keys := make([]string, 0, len(search))
	for k := range search {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	values := url.Values{}
	for _, k := range keys {
		values.Add(k, search[k])
	}
	return values.Encode()
}
