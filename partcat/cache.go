package partcat

import (
	"sort"

	"github.com/google/uuid"
)

// cacheEntry binds one listed reference to its definition. A nil def marks
// an unmatched reference.
type cacheEntry struct {
	ref Reference
	def *BatchDefinition
}

// snapshot is one immutable generation of the data reference cache. Refresh
// builds a new snapshot and publishes it whole; nothing mutates a published
// snapshot.
type snapshot struct {
	id string

	// assets holds the reported asset names, sorted.
	assets []string

	// entries maps asset name to its entries sorted by reference. Unmatched
	// references of an implicit-asset connector live under "".
	entries map[string][]cacheEntry

	unmatched []Reference
	total     int
}

// snapshotBuilder accumulates resolved references for a new snapshot.
type snapshotBuilder struct {
	declared []string // explicit asset names, reported even when empty
	entries  map[string][]cacheEntry
}

func newSnapshotBuilder(declared []string) *snapshotBuilder {
	return &snapshotBuilder{
		declared: declared,
		entries:  make(map[string][]cacheEntry),
	}
}

func (b *snapshotBuilder) add(asset string, ref Reference, def *BatchDefinition) {
	b.entries[asset] = append(b.entries[asset], cacheEntry{ref: ref, def: def})
}

func (b *snapshotBuilder) build() *snapshot {
	s := &snapshot{
		id:      uuid.NewString(),
		entries: b.entries,
	}

	names := make(map[string]bool, len(b.entries)+len(b.declared))
	for _, n := range b.declared {
		names[n] = true
	}
	for n, entries := range b.entries {
		if n == "" {
			continue
		}
		for _, e := range entries {
			if e.def != nil {
				names[n] = true
				break
			}
		}
	}
	for n := range names {
		s.assets = append(s.assets, n)
	}
	sort.Strings(s.assets)

	for _, entries := range s.entries {
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].ref < entries[j].ref })
		for _, e := range entries {
			s.total++
			if e.def == nil {
				s.unmatched = append(s.unmatched, e.ref)
			}
		}
	}
	sort.Strings(s.unmatched)
	return s
}

func (s *snapshot) hasAsset(name string) bool {
	i := sort.SearchStrings(s.assets, name)
	return i < len(s.assets) && s.assets[i] == name
}

// definitions returns the matched definitions of one asset in cache order.
func (s *snapshot) definitions(asset string) []BatchDefinition {
	var out []BatchDefinition
	for _, e := range s.entries[asset] {
		if e.def != nil {
			out = append(out, *e.def)
		}
	}
	return out
}

// matchedReferences returns the matched references of one asset in cache order.
func (s *snapshot) matchedReferences(asset string) []Reference {
	var out []Reference
	for _, e := range s.entries[asset] {
		if e.def != nil {
			out = append(out, e.ref)
		}
	}
	return out
}
