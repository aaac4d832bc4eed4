package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/niksmo/storefront/internal/core/port"
)

var _ port.Cart = (*CartStore)(nil)

// A CartStore is the single source of truth for one session's cart.
//
// Every mutation applies a pure [domain.Cart] transition, persists the
// result under the store key and then notifies subscribers, all under one
// lock. When persisting fails the in-memory cart is left unchanged.
//
// Subscribers run while the lock is held and must not call back
// into the store.
type CartStore struct {
	key     string
	kv      port.KVStorage
	codec   port.CartCodec
	pricing domain.Pricing

	mu        sync.Mutex
	cart      domain.Cart
	listeners map[uint64]func(domain.CartSnapshot)
	nextID    uint64
}

// LoadCartStore reads the persisted cart stored under key.
//
// A missing or undecodable record yields an empty cart. Only storage
// failures are returned.
func LoadCartStore(
	ctx context.Context,
	key string,
	kv port.KVStorage,
	codec port.CartCodec,
	pricing domain.Pricing,
) (*CartStore, error) {
	const op = "LoadCartStore"
	log := slog.With("op", op, "key", key)

	s := &CartStore{
		key:       key,
		kv:        kv,
		codec:     codec,
		pricing:   pricing,
		listeners: make(map[uint64]func(domain.CartSnapshot)),
	}

	raw, err := kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, port.ErrKeyNotFound) {
			return s, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cart, err := codec.DecodeCart(raw)
	if err != nil {
		log.Warn("corrupt cart record, starting empty", "err", err)
		return s, nil
	}

	s.cart = cart.Normalize(pricing.MaxQuantity)
	return s, nil
}

func (s *CartStore) Add(
	ctx context.Context, p domain.ProductSnapshot, quantity int,
) error {
	const op = "CartStore.Add"
	return s.apply(ctx, op, func(c domain.Cart) domain.Cart {
		return c.Add(p, quantity, s.pricing.MaxQuantity)
	})
}

func (s *CartStore) Remove(ctx context.Context, productID string) error {
	const op = "CartStore.Remove"
	return s.apply(ctx, op, func(c domain.Cart) domain.Cart {
		return c.Remove(productID)
	})
}

func (s *CartStore) SetQuantity(
	ctx context.Context, productID string, quantity int,
) error {
	const op = "CartStore.SetQuantity"
	return s.apply(ctx, op, func(c domain.Cart) domain.Cart {
		return c.SetQuantity(productID, quantity, s.pricing.MaxQuantity)
	})
}

// RemoveOrdered takes the ordered quantities out of the cart. Items added
// after the order was built stay.
func (s *CartStore) RemoveOrdered(
	ctx context.Context, ordered []domain.LineItem,
) error {
	const op = "CartStore.RemoveOrdered"
	return s.apply(ctx, op, func(c domain.Cart) domain.Cart {
		return c.Subtract(ordered)
	})
}

func (s *CartStore) Clear(ctx context.Context) error {
	const op = "CartStore.Clear"
	return s.apply(ctx, op, func(c domain.Cart) domain.Cart {
		return c.Clear()
	})
}

// Snapshot returns a copy of the items with their derived totals.
func (s *CartStore) Snapshot() domain.CartSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

func (s *CartStore) Items() []domain.LineItem {
	return s.Snapshot().Items
}

func (s *CartStore) Totals() domain.Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pricing.Totals(s.cart)
}

func (s *CartStore) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.IsEmpty()
}

// Subscribe registers fn to receive the snapshot after each committed
// mutation. The returned func unregisters it and is safe to call twice.
func (s *CartStore) Subscribe(
	fn func(domain.CartSnapshot),
) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Subscribers reports how many subscriptions are live.
func (s *CartStore) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}

func (s *CartStore) apply(
	ctx context.Context, op string, transition func(domain.Cart) domain.Cart,
) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := transition(s.cart)
	if err := s.persist(ctx, next); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.cart = next

	snap := s.snapshot()
	for _, fn := range s.listeners {
		fn(snap)
	}
	return nil
}

// persist writes the item list, or removes the record for an empty cart
// so that a reload behaves exactly like "no cart".
func (s *CartStore) persist(ctx context.Context, c domain.Cart) error {
	const op = "CartStore.persist"

	if c.IsEmpty() {
		if err := s.kv.Remove(ctx, s.key); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	}

	raw, err := s.codec.EncodeCart(c)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.kv.Set(ctx, s.key, raw); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *CartStore) snapshot() domain.CartSnapshot {
	items := make([]domain.LineItem, len(s.cart.Items))
	copy(items, s.cart.Items)
	return domain.CartSnapshot{
		Items:  items,
		Totals: s.pricing.Totals(s.cart),
	}
}
