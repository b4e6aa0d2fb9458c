package source

import (
	"context"
	"errors"
	"io"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"evmswaps/internal/model"
)

type fakeClient struct {
	mu        sync.Mutex
	heads     []uint64
	logs      []types.Log
	txs       map[uint64][]model.Transaction
	failures  int
	filterLog []BlockRange
}

func (f *fakeClient) LatestBlockNumber(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	head := f.heads[0]
	if len(f.heads) > 1 {
		f.heads = f.heads[1:]
	}
	return head, nil
}

func (f *fakeClient) FilterLogs(_ context.Context, from, to uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("rpc unavailable")
	}
	f.filterLog = append(f.filterLog, BlockRange{From: from, To: to})

	out := make([]types.Log, 0)
	for _, log := range f.logs {
		if log.BlockNumber < from || log.BlockNumber > to {
			continue
		}
		if len(addresses) > 0 && !containsAddress(addresses, log.Address) {
			continue
		}
		if len(topic0) > 0 && !containsHash(topic0, log.Topics[0]) {
			continue
		}
		out = append(out, log)
	}
	return out, nil
}

func (f *fakeClient) Blocks(_ context.Context, numbers []uint64, withTransactions bool) ([]model.Block, error) {
	out := make([]model.Block, 0, len(numbers))
	for _, number := range numbers {
		block := model.Block{Header: model.BlockHeader{
			Number:    number,
			Hash:      common.BigToHash(new(big.Int).SetUint64(number)),
			Timestamp: 1700000000 + number,
		}}
		if withTransactions {
			block.Transactions = f.txs[number]
		}
		out = append(out, block)
	}
	return out, nil
}

func containsAddress(list []common.Address, addr common.Address) bool {
	for _, item := range list {
		if item == addr {
			return true
		}
	}
	return false
}

func containsHash(list []common.Hash, hash common.Hash) bool {
	for _, item := range list {
		if item == hash {
			return true
		}
	}
	return false
}

var (
	factory   = common.HexToAddress("0xfac7")
	created   = common.HexToHash("0x01")
	swapTopic = common.HexToHash("0x02")
)

func testLog(block uint64, index uint, address common.Address, topic common.Hash, tx common.Hash) types.Log {
	return types.Log{
		Address:     address,
		Topics:      []common.Hash{topic},
		BlockNumber: block,
		TxHash:      tx,
		Index:       index,
	}
}

func testFilters() []model.LogFilter {
	return []model.LogFilter{
		{Addresses: []common.Address{factory}, Topic0: []common.Hash{created}, Transaction: true},
		{Topic0: []common.Hash{swapTopic}, Transaction: true},
		// overlapping filter, logs must not be delivered twice
		{Topic0: []common.Hash{swapTopic}},
	}
}

func TestStreamDeliversOrderedBatches(t *testing.T) {
	txA := common.HexToHash("0xaa")
	txB := common.HexToHash("0xbb")
	client := &fakeClient{
		heads: []uint64{1000},
		logs: []types.Log{
			testLog(152, 3, common.HexToAddress("0x9001"), swapTopic, txA),
			testLog(152, 1, factory, created, txA),
			testLog(155, 0, common.HexToAddress("0x9001"), swapTopic, txB),
			testLog(160, 0, common.HexToAddress("0x9001"), swapTopic, txB),
		},
		txs: map[uint64][]model.Transaction{
			152: {{Hash: txA, Index: 4}, {Hash: common.HexToHash("0xcc"), Index: 5}},
			155: {{Hash: txB, Index: 0}},
		},
	}
	src := NewRPC(client, Config{BatchSize: 5}, nil)

	stream, err := src.Open(context.Background(), testFilters(), model.Position{Number: 150}, 158)
	require.NoError(t, err)

	batch, err := stream.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(155), batch.Position.Number)
	require.Len(t, batch.Blocks, 2)

	first := batch.Blocks[0]
	require.Equal(t, uint64(152), first.Header.Number)
	require.Len(t, first.Logs, 2)
	require.Equal(t, uint64(1), first.Logs[0].LogIndex)
	require.Equal(t, uint64(3), first.Logs[1].LogIndex)
	require.Len(t, first.Transactions, 1)
	tx, ok := first.Transaction(txA)
	require.True(t, ok)
	require.Equal(t, uint64(4), tx.Index)

	_, err = stream.Next(context.Background())
	require.ErrorIs(t, err, ErrNotAcked)

	require.Error(t, stream.Ack(model.Position{Number: 154}))
	require.NoError(t, stream.Ack(batch.Position))

	batch, err = stream.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(158), batch.Position.Number)
	require.Empty(t, batch.Blocks)
	require.NoError(t, stream.Ack(batch.Position))

	_, err = stream.Next(context.Background())
	require.ErrorIs(t, err, io.EOF)

	require.Equal(t, BlockRange{From: 151, To: 155}, client.filterLog[0])
}

func TestStreamRetriesFilterLogs(t *testing.T) {
	client := &fakeClient{heads: []uint64{200}, failures: 2}
	src := NewRPC(client, Config{BatchSize: 10, MaxRetries: 3, RetryBackoff: time.Millisecond}, nil)

	stream, err := src.Open(context.Background(), testFilters(), model.Position{Number: 100}, 105)
	require.NoError(t, err)

	batch, err := stream.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(105), batch.Position.Number)
}

func TestStreamWaitsForHead(t *testing.T) {
	client := &fakeClient{heads: []uint64{100, 100, 103}}
	src := NewRPC(client, Config{BatchSize: 10, PollInterval: time.Millisecond}, nil)

	stream, err := src.Open(context.Background(), testFilters(), model.Position{Number: 100}, 0)
	require.NoError(t, err)

	batch, err := stream.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(103), batch.Position.Number)
}

func TestStreamStopsOnCancel(t *testing.T) {
	client := &fakeClient{heads: []uint64{100}}
	src := NewRPC(client, Config{BatchSize: 10, PollInterval: time.Hour}, nil)

	stream, err := src.Open(context.Background(), testFilters(), model.Position{Number: 100}, 0)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = stream.Next(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOpenValidates(t *testing.T) {
	src := NewRPC(&fakeClient{heads: []uint64{1}}, Config{}, nil)
	_, err := src.Open(context.Background(), testFilters(), model.Position{}, 0)
	require.Error(t, err)

	src = NewRPC(&fakeClient{heads: []uint64{1}}, Config{BatchSize: 1}, nil)
	_, err = src.Open(context.Background(), nil, model.Position{}, 0)
	require.Error(t, err)
}
