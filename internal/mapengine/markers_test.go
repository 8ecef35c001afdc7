package mapengine

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"

	"github.com/FACorreiaa/go-itinerary-map/internal/types"
)

func TestStyleFor(t *testing.T) {
	t.Run("every known category has its own style", func(t *testing.T) {
		seen := make(map[string]types.ActivityType)
		for _, c := range types.ActivityTypes {
			style := StyleFor(c)
			assert.NotEqual(t, NeutralStyle, style, "category %s", c)
			if other, dup := seen[style.Color]; dup {
				t.Errorf("%s and %s share color %s", c, other, style.Color)
			}
			seen[style.Color] = c
		}
	})

	t.Run("unknown and missing types are neutral", func(t *testing.T) {
		assert.Equal(t, NeutralStyle, StyleFor(""))
		assert.Equal(t, NeutralStyle, StyleFor("museum"))
	})
}

func TestNewMarker(t *testing.T) {
	a := &types.Activity{Title: "Lunch", Type: types.ActivityMeal, Coordinates: at(41.15, -8.61)}
	m := NewMarker(3, 1, a)

	assert.Equal(t, "d3-a1", m.ID)
	assert.Equal(t, MarkerID(3, 1), m.ID)
	assert.Equal(t, orb.Point{-8.61, 41.15}, m.Position)
	assert.Equal(t, StyleFor(types.ActivityMeal), m.Style)
	assert.Same(t, a, m.Activity)
	assert.Equal(t, OverlayMarker, m.OverlayKind())
}
