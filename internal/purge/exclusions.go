package purge

import (
	"sort"
	"strings"

	"github.com/banshee-data/welldash/internal/monitoring"
	"github.com/banshee-data/welldash/internal/prefs"
)

var logf = monitoring.Component("exclusions")

// ExclusionChange is delivered to subscribers after a well's set changes.
type ExclusionChange struct {
	WellID   string
	Excluded []string
}

// ExclusionStore is the persisted per-well set of excluded cycle IDs.
// Not safe for concurrent use; it is owned by the session loop.
type ExclusionStore struct {
	store prefs.Store
	subs  []func(ExclusionChange)
}

// NewExclusionStore wraps a preference store.
func NewExclusionStore(store prefs.Store) *ExclusionStore {
	return &ExclusionStore{store: store}
}

// Subscribe registers fn to be called after every change.
func (e *ExclusionStore) Subscribe(fn func(ExclusionChange)) {
	e.subs = append(e.subs, fn)
}

// Excluded returns the sorted excluded IDs for a well. A missing or
// unreadable entry is an empty set.
func (e *ExclusionStore) Excluded(wellID string) []string {
	var ids []string
	ok, err := prefs.GetJSON(e.store, prefs.Key(prefs.FeatureExcludedCycles, wellID), &ids)
	if err != nil {
		logf("well %s: ignoring unreadable exclusion set: %v", wellID, err)
		return nil
	}
	if !ok {
		return nil
	}
	return normalize(ids)
}

// Set returns the excluded IDs as a lookup set.
func (e *ExclusionStore) Set(wellID string) map[string]bool {
	ids := e.Excluded(wellID)
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// Contains reports whether id is excluded for the well.
func (e *ExclusionStore) Contains(wellID, id string) bool {
	return e.Set(wellID)[id]
}

// Toggle flips id's membership and persists the result. It returns whether
// id is excluded afterwards.
func (e *ExclusionStore) Toggle(wellID, id string) (bool, error) {
	set := e.Set(wellID)
	excluded := !set[id]
	if excluded {
		set[id] = true
	} else {
		delete(set, id)
	}
	if err := e.write(wellID, set); err != nil {
		return !excluded, err
	}
	return excluded, nil
}

// Replace stores exactly ids for the well.
func (e *ExclusionStore) Replace(wellID string, ids []string) error {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return e.write(wellID, set)
}

// Param renders the set as the comma-separated exclude_periods parameter.
// The result is empty when nothing is excluded.
func (e *ExclusionStore) Param(wellID string) string {
	return strings.Join(e.Excluded(wellID), ",")
}

func (e *ExclusionStore) write(wellID string, set map[string]bool) error {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	ids = normalize(ids)
	if err := prefs.SetJSON(e.store, prefs.Key(prefs.FeatureExcludedCycles, wellID), ids); err != nil {
		return err
	}
	logf("well %s: %d cycles excluded", wellID, len(ids))
	change := ExclusionChange{WellID: wellID, Excluded: ids}
	for _, fn := range e.subs {
		fn(change)
	}
	return nil
}

func normalize(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
