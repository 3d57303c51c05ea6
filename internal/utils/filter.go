package utils

// SuggestionFilter drops repeated names while merging result lists
type SuggestionFilter struct {
	seen map[string]struct{}
}

// NewSuggestionFilter creates a filter that has already seen the given names
func NewSuggestionFilter(seen ...string) *SuggestionFilter {
	f := &SuggestionFilter{seen: make(map[string]struct{}, len(seen))}
	for _, s := range seen {
		f.seen[s] = struct{}{}
	}
	return f
}

// ShouldInclude returns true the first time a name is offered and false afterwards
func (f *SuggestionFilter) ShouldInclude(name string) bool {
	if _, dup := f.seen[name]; dup {
		return false
	}
	f.seen[name] = struct{}{}
	return true
}
