package mapengine

import (
	"sort"

	"github.com/FACorreiaa/go-itinerary-map/internal/types"
)

// LayerSet tracks per-category visibility. Categories are visible until toggled off,
// including categories the set has never seen.
type LayerSet struct {
	hidden map[types.ActivityType]bool
}

func NewLayerSet() *LayerSet {
	return &LayerSet{hidden: make(map[types.ActivityType]bool)}
}

// Toggle flips the visibility of category and returns the new state.
func (l *LayerSet) Toggle(category types.ActivityType) bool {
	if l.hidden[category] {
		delete(l.hidden, category)
		return true
	}
	l.hidden[category] = true
	return false
}

func (l *LayerSet) IsVisible(category types.ActivityType) bool {
	return !l.hidden[category]
}

func (l *LayerSet) Reset() {
	clear(l.hidden)
}

// Hidden returns the categories currently toggled off, sorted.
func (l *LayerSet) Hidden() []types.ActivityType {
	out := make([]types.ActivityType, 0, len(l.hidden))
	for c := range l.hidden {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
