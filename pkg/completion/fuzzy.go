package completion

import (
	"github.com/sahilm/fuzzy"

	"github.com/bastiangx/tagserve/internal/utils"
	"github.com/bastiangx/tagserve/pkg/index"
)

// nameSource exposes the indexed names to sahilm/fuzzy.
type nameSource struct {
	s *index.Searcher
}

func (n nameSource) String(i int) string { return n.s.Key(i) }
func (n nameSource) Len() int            { return n.s.Len() }

// fuzzyFill appends fuzzy matches for term that are not already in out,
// stopping at maxResults (no cap when <= 0).
func (s *snapshot) fuzzyFill(out []Completion, term string, maxResults int) []Completion {
	seen := make([]string, 0, len(out))
	for _, c := range out {
		seen = append(seen, c.Name)
	}
	filter := utils.NewSuggestionFilter(seen...)

	for _, m := range fuzzy.FindFrom(term, nameSource{s.searcher}) {
		if maxResults > 0 && len(out) >= maxResults {
			break
		}
		if !filter.ShouldInclude(m.Str) {
			continue
		}
		out = append(out, s.completion(m.Str, true))
	}
	return out
}
