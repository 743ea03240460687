package migration

import (
	"fmt"
	"sort"

	"gorm.io/gorm"
)

// Step moves the schema to Version. Apply must be idempotent: it runs inside
// its own transaction and may be re-run after a crash mid-upgrade.
type Step struct {
	Version int
	Name    string
	Apply   func(tx *gorm.DB) error
}

// Registry is the ordered, forward-only list of schema versions
type Registry struct {
	steps []Step
}

// NewRegistry builds a registry. Versions must run 1, 2, 3... without gaps.
func NewRegistry(steps ...Step) *Registry {
	sorted := make([]Step, len(steps))
	copy(sorted, steps)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })
	for i, s := range sorted {
		if s.Version != i+1 {
			panic(fmt.Sprintf("migration: step versions must be contiguous from 1, found %d at position %d", s.Version, i))
		}
		if s.Apply == nil {
			panic(fmt.Sprintf("migration: step %d has no Apply func", s.Version))
		}
	}
	return &Registry{steps: sorted}
}

// DefaultRegistry returns the registry of every released schema version
func DefaultRegistry() *Registry {
	return NewRegistry(History()...)
}

// CurrentVersion is the version a fully migrated store records
func (r *Registry) CurrentVersion() int {
	return len(r.steps)
}

// PendingSteps returns the steps above from, in ascending order
func (r *Registry) PendingSteps(from int) []Step {
	if from < 0 {
		from = 0
	}
	if from >= len(r.steps) {
		return nil
	}
	out := make([]Step, len(r.steps)-from)
	copy(out, r.steps[from:])
	return out
}

// Steps returns every step in order
func (r *Registry) Steps() []Step {
	return r.PendingSteps(0)
}
