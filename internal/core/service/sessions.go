package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/niksmo/storefront/internal/core/port"
	"golang.org/x/sync/singleflight"
)

// CartKey is the storage key of the current cart.
const CartKey = "cartItems"

var _ port.CartProvider = (*Sessions)(nil)

// DefaultSessionsLimit is how many idle session carts stay in memory.
const DefaultSessionsLimit = 10_000

// Sessions owns exactly one [CartStore] per session, loading it from
// storage on first use.
//
// At most limit stores are kept in an LRU. An evicted store is reloaded
// from storage on the next access, except a store with live subscribers,
// which is pinned until they leave.
type Sessions struct {
	kv      port.KVStorage
	codec   port.CartCodec
	pricing domain.Pricing

	limit  int
	stores *lru.Cache
	load   singleflight.Group

	pinMu  sync.Mutex
	pinned map[string]*CartStore
}

type SessionsOpt func(*Sessions) error

func SessionsLimitOpt(limit int) SessionsOpt {
	return func(s *Sessions) error {
		if limit <= 0 {
			return errors.New("sessions limit must be positive")
		}
		s.limit = limit
		return nil
	}
}

func NewSessions(
	kv port.KVStorage,
	codec port.CartCodec,
	pricing domain.Pricing,
	opts ...SessionsOpt,
) (*Sessions, error) {
	const op = "NewSessions"

	s := &Sessions{
		kv:      kv,
		codec:   codec,
		pricing: pricing,
		limit:   DefaultSessionsLimit,
		pinned:  make(map[string]*CartStore),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	stores, err := lru.NewWithEvict(s.limit, s.onEvict)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.stores = stores
	return s, nil
}

// Cart returns the session's store. It satisfies [port.CartProvider].
func (s *Sessions) Cart(ctx context.Context, sessionID string) (port.Cart, error) {
	return s.Store(ctx, sessionID)
}

func (s *Sessions) Store(ctx context.Context, sessionID string) (*CartStore, error) {
	const op = "Sessions.Store"

	if v, ok := s.stores.Get(sessionID); ok {
		return v.(*CartStore), nil
	}

	v, err, _ := s.load.Do(sessionID, func() (any, error) {
		if v, ok := s.stores.Get(sessionID); ok {
			return v, nil
		}
		if store, ok := s.unpin(sessionID); ok {
			s.stores.Add(sessionID, store)
			return store, nil
		}

		store, err := LoadCartStore(
			ctx, SessionKey(sessionID), s.kv, s.codec, s.pricing,
		)
		if err != nil {
			return nil, err
		}
		s.stores.Add(sessionID, store)
		return store, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return v.(*CartStore), nil
}

// Len reports how many stores are held in memory.
func (s *Sessions) Len() int {
	n := s.stores.Len()
	s.pinMu.Lock()
	defer s.pinMu.Unlock()
	return n + len(s.pinned)
}

func (s *Sessions) Pricing() domain.Pricing {
	return s.pricing
}

// onEvict runs under the LRU lock and must not call back into it.
func (s *Sessions) onEvict(key, value any) {
	s.pinMu.Lock()
	defer s.pinMu.Unlock()

	for id, store := range s.pinned {
		if store.Subscribers() == 0 {
			delete(s.pinned, id)
		}
	}

	store := value.(*CartStore)
	if store.Subscribers() > 0 {
		s.pinned[key.(string)] = store
	}
}

func (s *Sessions) unpin(sessionID string) (*CartStore, bool) {
	s.pinMu.Lock()
	defer s.pinMu.Unlock()

	store, ok := s.pinned[sessionID]
	if ok {
		delete(s.pinned, sessionID)
	}
	return store, ok
}

// SessionKey scopes [CartKey] to a session. The empty session uses
// the bare key.
func SessionKey(sessionID string) string {
	if sessionID == "" {
		return CartKey
	}
	return CartKey + ":" + sessionID
}
