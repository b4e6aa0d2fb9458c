package protocol

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"evmswaps/internal/model"
)

func TestDefaultRegistry(t *testing.T) {
	registry, err := NewDefaultRegistry()
	if err != nil {
		t.Fatalf("registry: %v", err)
	}

	if got := len(registry.Entries(Ethereum)); got != 2 {
		t.Fatalf("ethereum entries: %d", got)
	}
	if got := len(registry.Entries(Base)); got != 4 {
		t.Fatalf("base entries: %d", got)
	}

	entry, ok := registry.Lookup(Base, DexAerodrome, AerodromeSlipstream)
	if !ok {
		t.Fatalf("slipstream not registered on base")
	}
	if entry.Factory != common.HexToAddress("0x5e7BB104d84c7CB9B682AaC2F3d509f5F406809A") {
		t.Fatalf("factory mismatch: %s", entry.Factory.Hex())
	}
	if _, ok := registry.Lookup(Ethereum, DexAerodrome, AerodromeBasic); ok {
		t.Fatalf("aerodrome should not exist on ethereum")
	}
}

func TestRegistryRejectsSharedCreationTopic(t *testing.T) {
	v3 := mustProtocol(t, UniswapV3)
	impostor := *v3
	impostor.Name = "impostor"

	_, err := NewRegistry([]Entry{
		{Key: Key{Network: Base, DexName: DexUniswap, Protocol: UniswapV3}, Factory: common.HexToAddress("0x01"), Protocol: v3},
		{Key: Key{Network: Base, DexName: "other", Protocol: "impostor"}, Factory: common.HexToAddress("0x02"), Protocol: &impostor},
	})
	if err == nil {
		t.Fatalf("expected shared creation topic error")
	}

	_, err = NewRegistry([]Entry{
		{Key: Key{Network: Base, DexName: DexUniswap, Protocol: UniswapV3}, Factory: common.HexToAddress("0x01"), Protocol: v3},
		{Key: Key{Network: Ethereum, DexName: "other", Protocol: "impostor"}, Factory: common.HexToAddress("0x02"), Protocol: &impostor},
	})
	if err != nil {
		t.Fatalf("different networks should not conflict: %v", err)
	}
}

func TestRegistryRejectsDuplicateKey(t *testing.T) {
	v3 := mustProtocol(t, UniswapV3)
	key := Key{Network: Base, DexName: DexUniswap, Protocol: UniswapV3}
	_, err := NewRegistry([]Entry{
		{Key: key, Factory: common.HexToAddress("0x01"), Protocol: v3},
		{Key: key, Factory: common.HexToAddress("0x02"), Protocol: v3},
	})
	if err == nil {
		t.Fatalf("expected duplicate key error")
	}
}

func TestMatchCreationRequiresFactory(t *testing.T) {
	registry, err := NewDefaultRegistry()
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	entry, _ := registry.Lookup(Base, DexUniswap, UniswapV3)

	data, err := entry.Protocol.Creation.Inputs.NonIndexed().Pack(big.NewInt(10), testPool)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	log := buildLog(entry.Factory, entry.Protocol.Creation.ID, data,
		topicFromAddress(testToken0), topicFromAddress(testToken1), common.BigToHash(big.NewInt(500)))

	matched, ok := registry.MatchCreation(Base, log)
	if !ok || matched.Key != entry.Key {
		t.Fatalf("creation not matched")
	}

	record, err := matched.DecodePoolCreation(log, model.BlockHeader{Number: 150})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if record.Network != Base || record.FactoryAddress != entry.Factory || record.BlockNumber != 150 {
		t.Fatalf("entry fields mismatch: %+v", record)
	}

	log.Address = common.HexToAddress("0xdead")
	if _, ok := registry.MatchCreation(Base, log); ok {
		t.Fatalf("log from non-factory address must not match")
	}
	if _, ok := registry.MatchCreation(Ethereum, buildLog(entry.Factory, entry.Protocol.Creation.ID, data)); ok {
		t.Fatalf("base factory must not match on ethereum")
	}
}

func TestSelectAndFilters(t *testing.T) {
	registry, err := NewDefaultRegistry()
	if err != nil {
		t.Fatalf("registry: %v", err)
	}

	entries, err := registry.Select(Base, []string{AerodromeBasic})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(entries) != 1 || entries[0].Protocol.Name != AerodromeBasic {
		t.Fatalf("select mismatch: %+v", entries)
	}

	if _, err := registry.Select(Ethereum, []string{AerodromeBasic}); err == nil {
		t.Fatalf("expected unsupported protocol error")
	}
	if _, err := registry.Select("solana", nil); err == nil {
		t.Fatalf("expected unknown network error")
	}

	filters := Filters(entries, false)
	if len(filters) != 2 {
		t.Fatalf("filters: %d", len(filters))
	}
	if len(filters[0].Addresses) != 1 || filters[0].Addresses[0] != entries[0].Factory {
		t.Fatalf("creation filter should target the factory")
	}
	if len(filters[1].Addresses) != 0 || filters[1].Topic0[0] != entries[0].Protocol.Swap.ID {
		t.Fatalf("swap filter mismatch")
	}

	if got := len(Filters(entries, true)); got != 1 {
		t.Fatalf("pools-only filters: %d", got)
	}
}
