package remotezip

import (
	"log/slog"

	"github.com/bmatcuk/doublestar/v4"
)

// index is the immutable name -> Entry mapping built once during
// initialization (§4.5). Construction is the only place it is mutated;
// after that every method is a pure read and safe for unsynchronized
// concurrent use.
type index struct {
	byName map[string]Entry
	names  []string // insertion order, i.e. Central Directory traversal order
}

// newIndex builds an index from the ordered entries produced by the Central
// Directory parser. When two entries share a name, the later one wins (last
// writer in traversal order), matching §3's stated Index semantics; each
// such collision is logged once as a warning (§9 open question: "Consider
// surfacing a warning").
func newIndex(entries []Entry, log *slog.Logger) *index {
	idx := &index{
		byName: make(map[string]Entry, len(entries)),
		names:  make([]string, 0, len(entries)),
	}
	for _, e := range entries {
		if _, dup := idx.byName[e.Name]; dup {
			log.Warn("duplicateEntryName", "name", e.Name)
		} else {
			idx.names = append(idx.names, e.Name)
		}
		idx.byName[e.Name] = e
	}
	return idx
}

// list returns the ordered sequence of member names. The returned slice is
// shared; callers must not mutate it.
func (idx *index) list() []string {
	return idx.names
}

// find returns the Entry registered under name, if any.
func (idx *index) find(name string) (Entry, bool) {
	e, ok := idx.byName[name]
	return e, ok
}

// glob returns the names matching a doublestar pattern, evaluated over the
// already-built, immutable name list. It introduces no extra I/O.
func (idx *index) glob(pattern string) ([]string, error) {
	var matches []string
	for _, name := range idx.names {
		ok, err := doublestar.Match(pattern, name)
		if err != nil {
			return nil, err
		}
		if ok {
			matches = append(matches, name)
		}
	}
	return matches, nil
}
