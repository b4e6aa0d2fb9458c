package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"evmswaps/internal/model"
)

func swapAt(block uint64, logIndex uint64) model.CanonicalSwap {
	return model.CanonicalSwap{
		Dex:      "uniswap",
		Protocol: "uniswap_v3",
		Network:  "base",
		Block:    model.BlockHeader{Number: block, Timestamp: 1700000000},
		LogIndex: logIndex,
		Pool:     model.SwapPool{Address: common.HexToAddress("0x1111")},
		TokenA:   model.TokenAmount{Address: common.HexToAddress("0xaaaa"), RawAmount: big.NewInt(1000)},
		TokenB:   model.TokenAmount{Address: common.HexToAddress("0xbbbb"), RawAmount: big.NewInt(-2000)},
	}
}

func readBlocks(t *testing.T, path string) []uint64 {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer file.Close()

	blocks := make([]uint64, 0)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var row model.CanonicalSwap
		if err := json.Unmarshal(scanner.Bytes(), &row); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		blocks = append(blocks, row.Block.Number)
	}
	return blocks
}

func TestJsonlSinkWriteAndCleanup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "swaps.jsonl")
	sink := NewJsonlSink(path)
	ctx := context.Background()

	if err := sink.Write(ctx, []model.CanonicalSwap{swapAt(149, 0), swapAt(150, 2)}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := sink.Write(ctx, []model.CanonicalSwap{swapAt(151, 0), swapAt(153, 7)}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := sink.Write(ctx, nil); err != nil {
		t.Fatalf("empty write: %v", err)
	}

	if got := readBlocks(t, path); len(got) != 4 {
		t.Fatalf("rows before cleanup: %v", got)
	}

	if err := sink.CleanupAfter(ctx, 150); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	got := readBlocks(t, path)
	if len(got) != 2 || got[0] != 149 || got[1] != 150 {
		t.Fatalf("rows after cleanup: %v", got)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("tmp file left behind")
	}
}

func TestJsonlSinkAppendsAfterCleanup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "swaps.jsonl")
	sink := NewJsonlSink(path)
	ctx := context.Background()

	if err := sink.Write(ctx, []model.CanonicalSwap{swapAt(10, 0), swapAt(11, 0), swapAt(12, 0)}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := sink.CleanupAfter(ctx, 10); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if err := sink.Write(ctx, []model.CanonicalSwap{swapAt(11, 1)}); err != nil {
		t.Fatalf("write after cleanup: %v", err)
	}

	got := readBlocks(t, path)
	if len(got) != 2 || got[0] != 10 || got[1] != 11 {
		t.Fatalf("rows after cleanup and write: %v", got)
	}
}

func TestJsonlSinkCleanupCorruptFileKeepsOriginal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "swaps.jsonl")
	original := []byte("{\"block\":{\"number\":5}}\nnot json\n")
	if err := os.WriteFile(path, original, 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}

	sink := NewJsonlSink(path)
	if err := sink.CleanupAfter(context.Background(), 1); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("tmp file left behind")
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != string(original) {
		t.Fatalf("original file changed: %q", got)
	}
}

func TestJsonlSinkCleanupMissingFile(t *testing.T) {
	sink := NewJsonlSink(filepath.Join(t.TempDir(), "missing.jsonl"))
	if err := sink.CleanupAfter(context.Background(), 10); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
}

func TestJsonlSinkAmounts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "swaps.jsonl")
	sink := NewJsonlSink(path)

	row := swapAt(10, 0)
	row.TokenA.Resolve(model.TokenRecord{Decimals: 6, Symbol: "USDC"})
	if err := sink.Write(context.Background(), []model.CanonicalSwap{row}); err != nil {
		t.Fatalf("write: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var decoded struct {
		TokenA struct {
			Symbol    string      `json:"symbol"`
			Decimals  *uint8      `json:"decimals"`
			RawAmount json.Number `json:"raw_amount"`
			Amount    *string     `json:"amount"`
		} `json:"token_a"`
		TokenB struct {
			Decimals *uint8  `json:"decimals"`
			Amount   *string `json:"amount"`
		} `json:"token_b"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.TokenA.Symbol != "USDC" || decoded.TokenA.Amount == nil || *decoded.TokenA.Amount != "0.001" {
		t.Fatalf("token a mismatch: %+v", decoded.TokenA)
	}
	if decoded.TokenB.Decimals != nil || decoded.TokenB.Amount != nil {
		t.Fatalf("unresolved token b should have null decimals and amount")
	}
}
