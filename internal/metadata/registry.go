// Package metadata caches immutable pool and token records in memory on top
// of a persistent store.
package metadata

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/puzpuzpuz/xsync/v4"

	"evmswaps/internal/model"
)

// Record is a metadata record with a (network, address) key.
type Record interface {
	Key() model.MetadataKey
}

// Store is the persistent side of a registry.
type Store[V Record] interface {
	// InsertIfAbsent writes records whose key is not stored yet. Existing
	// rows are left untouched.
	InsertIfAbsent(ctx context.Context, records []V) error
	// SelectByAddress returns the stored records among addresses.
	SelectByAddress(ctx context.Context, network string, addresses []common.Address) ([]V, error)
}

// Options tune a registry.
type Options struct {
	// MissTTL suppresses repeated store lookups for keys the store did not
	// have. Zero disables miss caching.
	MissTTL time.Duration
}

// Registry is a read-through, write-through cache of immutable records.
type Registry[V Record] struct {
	store  Store[V]
	opts   Options
	items  *xsync.Map[model.MetadataKey, V]
	misses *xsync.Map[model.MetadataKey, time.Time]
	now    func() time.Time
}

// NewRegistry builds a registry over store.
func NewRegistry[V Record](store Store[V], opts Options) *Registry[V] {
	return &Registry[V]{
		store:  store,
		opts:   opts,
		items:  xsync.NewMap[model.MetadataKey, V](),
		misses: xsync.NewMap[model.MetadataKey, time.Time](),
		now:    time.Now,
	}
}

// Get returns one record.
func (r *Registry[V]) Get(ctx context.Context, network string, address common.Address) (V, bool, error) {
	found, err := r.GetMany(ctx, network, []common.Address{address})
	if err != nil {
		var zero V
		return zero, false, err
	}
	v, ok := found[address]
	return v, ok, nil
}

// GetMany resolves addresses from memory, then loads the remaining ones from
// the store in a single lookup. Addresses known to neither are absent from
// the result.
func (r *Registry[V]) GetMany(ctx context.Context, network string, addresses []common.Address) (map[common.Address]V, error) {
	found := make(map[common.Address]V, len(addresses))
	missing := make([]common.Address, 0)
	queued := make(map[common.Address]struct{})

	now := r.now()
	for _, address := range addresses {
		key := model.MetadataKey{Network: network, Address: address}
		if v, ok := r.items.Load(key); ok {
			found[address] = v
			continue
		}
		if _, ok := queued[address]; ok {
			continue
		}
		if r.recentMiss(key, now) {
			continue
		}
		queued[address] = struct{}{}
		missing = append(missing, address)
	}
	if len(missing) == 0 || r.store == nil {
		return found, nil
	}

	stored, err := r.store.SelectByAddress(ctx, network, missing)
	if err != nil {
		return nil, fmt.Errorf("select %d records: %w", len(missing), err)
	}
	for _, v := range stored {
		key := v.Key()
		actual, _ := r.items.LoadOrStore(key, v)
		found[key.Address] = actual
		delete(queued, key.Address)
	}

	if r.opts.MissTTL > 0 {
		for address := range queued {
			r.misses.Store(model.MetadataKey{Network: network, Address: address}, now)
		}
	}
	return found, nil
}

// Put persists records with insert-if-absent semantics and makes them
// visible in memory immediately, even if the store write fails.
func (r *Registry[V]) Put(ctx context.Context, records ...V) error {
	if len(records) == 0 {
		return nil
	}
	for _, v := range records {
		key := v.Key()
		r.items.LoadOrStore(key, v)
		r.misses.Delete(key)
	}
	if r.store == nil {
		return nil
	}
	if err := r.store.InsertIfAbsent(ctx, records); err != nil {
		return fmt.Errorf("insert %d records: %w", len(records), err)
	}
	return nil
}

// Len returns the number of records held in memory.
func (r *Registry[V]) Len() int {
	return r.items.Size()
}

func (r *Registry[V]) recentMiss(key model.MetadataKey, now time.Time) bool {
	if r.opts.MissTTL <= 0 {
		return false
	}
	at, ok := r.misses.Load(key)
	if !ok {
		return false
	}
	if now.Sub(at) < r.opts.MissTTL {
		return true
	}
	r.misses.Delete(key)
	return false
}

// Pools resolves pool addresses to pool records.
type Pools = Registry[model.PoolRecord]

// Tokens resolves token addresses to token records.
type Tokens = Registry[model.TokenRecord]

// NewPools builds a pool registry.
func NewPools(store Store[model.PoolRecord], opts Options) *Pools {
	return NewRegistry[model.PoolRecord](store, opts)
}

// NewTokens builds a token registry.
func NewTokens(store Store[model.TokenRecord], opts Options) *Tokens {
	return NewRegistry[model.TokenRecord](store, opts)
}
