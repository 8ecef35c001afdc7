package mapview

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/FACorreiaa/go-itinerary-map/internal/mapengine"
)

// View is one hosted map: an engine plus bookkeeping.
type View struct {
	ID        uuid.UUID
	Engine    *mapengine.Engine
	CreatedAt time.Time
}

// Store keeps live views in a go-cache. A view that expires or is deleted is
// torn down, releasing its surface.
type Store struct {
	cache  *cache.Cache
	ttl    time.Duration
	logger *slog.Logger
}

func NewStore(ttl, cleanupInterval time.Duration, logger *slog.Logger) *Store {
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	c := cache.New(ttl, cleanupInterval)
	s := &Store{cache: c, ttl: ttl, logger: logger}
	c.OnEvicted(func(key string, value interface{}) {
		v, ok := value.(*View)
		if !ok {
			return
		}
		if err := v.Engine.Teardown(context.Background()); err != nil {
			logger.Warn("Map view teardown failed", slog.String("view", key), slog.Any("error", err))
			return
		}
		logger.Debug("Map view released", slog.String("view", key))
	})
	return s
}

func (s *Store) Put(v *View) {
	s.cache.Set(v.ID.String(), v, cache.DefaultExpiration)
}

// Get returns the view and extends its lifetime. A view evicted between the
// lookup and the extension is reported as missing.
func (s *Store) Get(id uuid.UUID) (*View, bool) {
	key := id.String()
	value, ok := s.cache.Get(key)
	if !ok {
		return nil, false
	}
	if !s.touch(key, value) {
		return nil, false
	}
	return value.(*View), true
}

// touch restarts the TTL of a key that is still cached. Replace never
// re-inserts an item the janitor already removed.
func (s *Store) touch(key string, value interface{}) bool {
	return s.cache.Replace(key, value, cache.DefaultExpiration) == nil
}

// Delete removes and tears down the view. It reports whether it existed.
func (s *Store) Delete(id uuid.UUID) bool {
	key := id.String()
	if _, ok := s.cache.Get(key); !ok {
		return false
	}
	s.cache.Delete(key)
	return true
}

func (s *Store) Count() int {
	return s.cache.ItemCount()
}

// TeardownAll removes every view. Flush would skip the eviction hook, so views
// are deleted one by one.
func (s *Store) TeardownAll() int {
	items := s.cache.Items()
	for key := range items {
		s.cache.Delete(key)
	}
	return len(items)
}
