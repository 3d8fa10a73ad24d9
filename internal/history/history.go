// Package history implements LocationHistory (spec §4.5 C6): a per-user
// bounded, newest-last trace of resolved locations, backed by cache.Cache so
// concurrent appends for the same user serialize through a per-key mutex
// rather than racing on a shared slice.
package history

import (
	"context"
	"sync"
	"time"

	"identityguard/internal/cache"
	"identityguard/internal/domain"
	"identityguard/internal/magic"
)

// Store is the LocationHistory component.
type Store struct {
	cache *cache.Cache
	max   int
	now   func() time.Time

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewStore constructs a Store backed by c, capping each user's history at
// max entries (spec default magic.DefaultHistoryMax).
func NewStore(c *cache.Cache, max int) *Store {
	if max <= 0 {
		max = magic.DefaultHistoryMax
	}
	return &Store{
		cache: c,
		max:   max,
		now:   time.Now,
		locks: make(map[string]*sync.Mutex),
	}
}

// Get returns userId's current history, an empty one on first access.
func (s *Store) Get(ctx context.Context, userID string) (domain.LocationHistory, error) {
	v, err := s.cache.Get(ctx, userID, func(context.Context) (any, error) {
		return domain.LocationHistory{UserID: userID}, nil
	})
	if err != nil {
		return domain.LocationHistory{}, err
	}
	return v.(domain.LocationHistory), nil
}

// Append inserts (location, now) at the tail of userId's history, trims to
// max, and persists the result. Concurrent appends for the same user
// serialize on a per-user lock (spec §5: "appends for a single userId are
// serializable").
func (s *Store) Append(ctx context.Context, userID string, location domain.GeoLocation) (domain.LocationHistory, error) {
	lock := s.lockFor(userID)
	lock.Lock()
	defer lock.Unlock()

	current, err := s.Get(ctx, userID)
	if err != nil {
		return domain.LocationHistory{}, err
	}

	updated := current.Append(domain.LocationHistoryEntry{Location: location, Timestamp: s.now()}, s.max)
	s.cache.Put(userID, updated)
	return updated, nil
}

func (s *Store) lockFor(userID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	lock, ok := s.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[userID] = lock
	}
	return lock
}
