package mapengine

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPalette_Color(t *testing.T) {
	t.Run("cycles by day number", func(t *testing.T) {
		for day := 1; day <= 3*len(DefaultPalette); day++ {
			assert.Equal(t, DefaultPalette[(day-1)%len(DefaultPalette)], DefaultPalette.Color(day))
		}
		assert.Equal(t, DefaultPalette.Color(1), DefaultPalette.Color(1+len(DefaultPalette)))
	})

	t.Run("stable across calls", func(t *testing.T) {
		assert.Equal(t, DefaultPalette.Color(4), DefaultPalette.Color(4))
	})

	t.Run("empty palette falls back", func(t *testing.T) {
		assert.Equal(t, DefaultPalette[1], Palette(nil).Color(2))
	})

	t.Run("custom palette", func(t *testing.T) {
		p := Palette{"#000", "#fff"}
		assert.Equal(t, "#000", p.Color(1))
		assert.Equal(t, "#fff", p.Color(2))
		assert.Equal(t, "#000", p.Color(3))
	})
}

func TestDecorateRoute(t *testing.T) {
	t.Run("fewer than two points", func(t *testing.T) {
		assert.Nil(t, DecorateRoute(1, "#fff", nil))
		assert.Nil(t, DecorateRoute(1, "#fff", []orb.Point{{1, 1}}))
	})

	t.Run("one arrow per segment", func(t *testing.T) {
		points := []orb.Point{{0, 0}, {0, 1}, {1, 1}, {1, 0}}
		route := DecorateRoute(2, "#3498db", points)
		require.NotNil(t, route)

		assert.Len(t, route.Path, len(points))
		require.Len(t, route.Arrows, len(points)-1)
		for _, a := range route.Arrows {
			assert.Equal(t, 2, a.Day)
			assert.Equal(t, "#3498db", a.Color)
		}
		assert.Equal(t, orb.Point{0, 0.5}, route.Arrows[0].Position)
		assert.InDelta(t, 0, route.Arrows[0].Bearing, 1e-9)
		assert.InDelta(t, 90, route.Arrows[1].Bearing, 1e-9)
		assert.InDelta(t, 180, route.Arrows[2].Bearing, 1e-9)
		assert.Greater(t, route.DistanceMeters, 300000.0)
	})

	t.Run("path is a copy", func(t *testing.T) {
		points := []orb.Point{{0, 0}, {1, 1}}
		route := DecorateRoute(1, "#fff", points)
		points[0] = orb.Point{9, 9}
		assert.Equal(t, orb.Point{0, 0}, route.Path[0])
	})
}

func TestBearing(t *testing.T) {
	origin := orb.Point{0, 0}
	assert.InDelta(t, 0, Bearing(origin, orb.Point{0, 1}), 1e-9)
	assert.InDelta(t, 90, Bearing(origin, orb.Point{1, 0}), 1e-9)
	assert.InDelta(t, -90, Bearing(origin, orb.Point{-1, 0}), 1e-9)
	assert.InDelta(t, 45, Bearing(origin, orb.Point{1, 1}), 1e-9)
}

func TestMidpoint(t *testing.T) {
	assert.Equal(t, orb.Point{1, 2}, Midpoint(orb.Point{0, 0}, orb.Point{2, 4}))
}
