// Package memory holds in-process implementations of the storage contracts.
package memory

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"evmswaps/internal/model"
)

// Keyed is any record with a metadata key.
type Keyed interface {
	Key() model.MetadataKey
}

// MetadataStore is an insert-if-absent table held in memory.
type MetadataStore[V Keyed] struct {
	mu      sync.RWMutex
	rows    map[model.MetadataKey]V
	selects int
}

func NewMetadataStore[V Keyed]() *MetadataStore[V] {
	return &MetadataStore[V]{rows: make(map[model.MetadataKey]V)}
}

func (m *MetadataStore[V]) InsertIfAbsent(_ context.Context, records []V) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, record := range records {
		key := record.Key()
		if _, ok := m.rows[key]; ok {
			continue
		}
		m.rows[key] = record
	}
	return nil
}

func (m *MetadataStore[V]) SelectByAddress(_ context.Context, network string, addresses []common.Address) ([]V, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.selects++

	out := make([]V, 0, len(addresses))
	for _, address := range addresses {
		if record, ok := m.rows[model.MetadataKey{Network: network, Address: address}]; ok {
			out = append(out, record)
		}
	}
	return out, nil
}

// Lookup returns a stored record.
func (m *MetadataStore[V]) Lookup(network string, address common.Address) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.rows[model.MetadataKey{Network: network, Address: address}]
	return record, ok
}

// Len returns the number of stored records.
func (m *MetadataStore[V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rows)
}

// Selects returns how many SelectByAddress calls were served.
func (m *MetadataStore[V]) Selects() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.selects
}
