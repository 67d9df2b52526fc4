package walker

import (
	"sync"

	"github.com/smy-101/skillpack/internal/types"
)

type visitedSet struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func newVisitedSet() *visitedSet {
	return &visitedSet{keys: make(map[string]struct{})}
}

// add marks key as visited and reports whether it was new.
func (v *visitedSet) add(key string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.keys[key]; ok {
		return false
	}
	v.keys[key] = struct{}{}
	return true
}

func (v *visitedSet) len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.keys)
}

func visitKey(coord types.RepositoryCoordinate, path string) string {
	return coord.Owner + "/" + coord.Name + "/" + coord.Branch + "/" + path
}
