package protocol

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"evmswaps/internal/model"
)

// Key identifies a registry entry.
type Key struct {
	Network  string
	DexName  string
	Protocol string
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Network, k.DexName, k.Protocol)
}

// Entry binds a protocol to its factory deployment on one network.
type Entry struct {
	Key
	Factory  common.Address
	Protocol *Protocol
}

// IsPoolCreation reports whether the log is this deployment's creation event.
func (e Entry) IsPoolCreation(log model.Log) bool {
	return log.Address == e.Factory && log.Topic0() == e.Protocol.Creation.ID
}

// DecodePoolCreation turns a factory log into a pool record.
func (e Entry) DecodePoolCreation(log model.Log, header model.BlockHeader) (model.PoolRecord, error) {
	record, err := e.Protocol.DecodePoolCreation(log)
	if err != nil {
		return model.PoolRecord{}, err
	}
	record.Network = e.Network
	record.FactoryAddress = log.Address
	record.BlockNumber = header.Number
	return record, nil
}

// IsSwap reports whether the log carries this protocol's swap signature.
func (e Entry) IsSwap(log model.Log) bool {
	return log.Topic0() == e.Protocol.Swap.ID
}

// DecodeSwap decodes a swap log emitted by one of this deployment's pools.
func (e Entry) DecodeSwap(log model.Log) (model.DecodedSwap, error) {
	return e.Protocol.DecodeSwap(log)
}

// Filters returns the block source filters for the entry.
func (e Entry) Filters(onlyPools bool) []model.LogFilter {
	filters := []model.LogFilter{{
		Addresses:   []common.Address{e.Factory},
		Topic0:      []common.Hash{e.Protocol.Creation.ID},
		Transaction: true,
	}}
	if onlyPools {
		return filters
	}
	return append(filters, model.LogFilter{
		Topic0:      []common.Hash{e.Protocol.Swap.ID},
		Transaction: true,
	})
}

// Registry is a static lookup table of protocol deployments.
type Registry struct {
	entries   map[Key]Entry
	ordered   []Entry
	creations map[string]map[common.Hash][]Entry
	swaps     map[string]map[common.Hash]struct{}
}

// NewRegistry indexes the entries. Creation event signatures must be unique
// per network and keys must be unique.
func NewRegistry(entries []Entry) (*Registry, error) {
	r := &Registry{
		entries:   make(map[Key]Entry, len(entries)),
		ordered:   make([]Entry, 0, len(entries)),
		creations: make(map[string]map[common.Hash][]Entry),
		swaps:     make(map[string]map[common.Hash]struct{}),
	}

	for _, entry := range entries {
		if entry.Protocol == nil {
			return nil, fmt.Errorf("registry entry %s has no protocol", entry.Key)
		}
		if _, ok := r.entries[entry.Key]; ok {
			return nil, fmt.Errorf("duplicate registry entry %s", entry.Key)
		}

		topic := entry.Protocol.Creation.ID
		byTopic := r.creations[entry.Network]
		if byTopic == nil {
			byTopic = make(map[common.Hash][]Entry)
			r.creations[entry.Network] = byTopic
		}
		for _, other := range byTopic[topic] {
			if other.Protocol.Name != entry.Protocol.Name {
				return nil, fmt.Errorf("creation signature %s shared by %s and %s", topic.Hex(), other.Key, entry.Key)
			}
		}
		byTopic[topic] = append(byTopic[topic], entry)

		swapTopics := r.swaps[entry.Network]
		if swapTopics == nil {
			swapTopics = make(map[common.Hash]struct{})
			r.swaps[entry.Network] = swapTopics
		}
		swapTopics[entry.Protocol.Swap.ID] = struct{}{}

		r.entries[entry.Key] = entry
		r.ordered = append(r.ordered, entry)
	}

	return r, nil
}

// NewDefaultRegistry builds the registry from the built-in deployment table.
func NewDefaultRegistry() (*Registry, error) {
	entries := make([]Entry, 0)
	for _, name := range NetworkNames() {
		network := networks[name]
		for _, protocolName := range AllProtocols {
			factory, ok := network.Factories[protocolName]
			if !ok {
				continue
			}
			proto, err := NewProtocol(protocolName)
			if err != nil {
				return nil, err
			}
			entries = append(entries, Entry{
				Key:      Key{Network: name, DexName: proto.DexName, Protocol: proto.Name},
				Factory:  factory,
				Protocol: proto,
			})
		}
	}
	return NewRegistry(entries)
}

// Lookup returns the entry for a network, dex and protocol.
func (r *Registry) Lookup(network, dexName, protocol string) (Entry, bool) {
	entry, ok := r.entries[Key{Network: network, DexName: dexName, Protocol: protocol}]
	return entry, ok
}

// Entries returns the network's entries in registration order.
func (r *Registry) Entries(network string) []Entry {
	out := make([]Entry, 0)
	for _, entry := range r.ordered {
		if entry.Network == network {
			out = append(out, entry)
		}
	}
	return out
}

// Select returns the network's entries for the named protocols, or all of
// them when protocols is empty.
func (r *Registry) Select(network string, protocols []string) ([]Entry, error) {
	all := r.Entries(network)
	if len(all) == 0 {
		return nil, fmt.Errorf("no protocols registered for network %s", network)
	}
	if len(protocols) == 0 {
		return all, nil
	}

	out := make([]Entry, 0, len(protocols))
	for _, name := range protocols {
		var found bool
		for _, entry := range all {
			if entry.Protocol.Name == name {
				out = append(out, entry)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("protocol %q is not supported on %s", name, network)
		}
	}
	return out, nil
}

// MatchCreation returns the first entry that claims the log as a pool
// creation event.
func (r *Registry) MatchCreation(network string, log model.Log) (Entry, bool) {
	for _, entry := range r.creations[network][log.Topic0()] {
		if entry.IsPoolCreation(log) {
			return entry, true
		}
	}
	return Entry{}, false
}

// IsSwapCandidate reports whether the log's signature belongs to any swap
// event registered on the network.
func (r *Registry) IsSwapCandidate(network string, log model.Log) bool {
	_, ok := r.swaps[network][log.Topic0()]
	return ok
}

// Keys returns the keys of the given entries.
func Keys(entries []Entry) []Key {
	out := make([]Key, 0, len(entries))
	for _, entry := range entries {
		out = append(out, entry.Key)
	}
	return out
}

// Filters builds the block source filters for the given entries.
func Filters(entries []Entry, onlyPools bool) []model.LogFilter {
	out := make([]model.LogFilter, 0, len(entries)*2)
	for _, entry := range entries {
		out = append(out, entry.Filters(onlyPools)...)
	}
	return out
}
