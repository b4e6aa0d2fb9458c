package source

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"evmswaps/internal/model"
)

const defaultPollInterval = 2 * time.Second

// Client is the subset of the chain client the RPC source needs.
type Client interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error)
	Blocks(ctx context.Context, numbers []uint64, withTransactions bool) ([]model.Block, error)
}

// Config holds RPC source settings.
type Config struct {
	BatchSize    uint64
	PollInterval time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxRetryDelay caps the backoff between retries.
	MaxRetryDelay time.Duration
}

// RPC is a Source backed by eth_getLogs and eth_getBlockByNumber.
type RPC struct {
	client Client
	cfg    Config
	retry  retryPolicy
	logger *zap.Logger
}

// NewRPC builds an RPC source.
func NewRPC(client Client, cfg Config, logger *zap.Logger) *RPC {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	return &RPC{
		client: client,
		cfg:    cfg,
		retry:  newRetryPolicy(cfg.MaxRetries, cfg.RetryBackoff, cfg.MaxRetryDelay),
		logger: logger,
	}
}

// Head returns the latest block number.
func (r *RPC) Head(ctx context.Context) (uint64, error) {
	var head uint64
	err := withRetry(ctx, r.retry, r.logger, "eth_blockNumber", func(ctx context.Context) error {
		var err error
		head, err = r.client.LatestBlockNumber(ctx)
		return err
	})
	return head, err
}

// Open starts a stream after the given position.
func (r *RPC) Open(_ context.Context, filters []model.LogFilter, after model.Position, to uint64) (Stream, error) {
	if r.client == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	if r.cfg.BatchSize == 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	if len(filters) == 0 {
		return nil, fmt.Errorf("at least one log filter is required")
	}

	withTx := false
	for _, filter := range filters {
		withTx = withTx || filter.Transaction
	}

	return &rpcStream{
		source:  r,
		filters: filters,
		next:    after.Number + 1,
		to:      to,
		withTx:  withTx,
	}, nil
}

type rpcStream struct {
	source  *RPC
	filters []model.LogFilter
	next    uint64
	to      uint64
	head    uint64
	withTx  bool
	pending *model.Position
}

func (s *rpcStream) Next(ctx context.Context) (model.Batch, error) {
	if s.pending != nil {
		return model.Batch{}, ErrNotAcked
	}
	if s.to > 0 && s.next > s.to {
		return model.Batch{}, io.EOF
	}
	if err := s.waitForHead(ctx); err != nil {
		return model.Batch{}, err
	}

	limit := s.head
	if s.to > 0 && s.to < limit {
		limit = s.to
	}
	blockRange, err := NextRange(s.next, limit, s.source.cfg.BatchSize)
	if err != nil {
		return model.Batch{}, err
	}

	logs, err := s.fetchLogs(ctx, blockRange)
	if err != nil {
		return model.Batch{}, err
	}
	batch, err := s.assemble(ctx, blockRange, logs)
	if err != nil {
		return model.Batch{}, err
	}

	s.pending = &batch.Position
	s.source.logger.Debug("batch fetched",
		zap.Uint64("from", blockRange.From),
		zap.Uint64("to", blockRange.To),
		zap.Int("blocks", len(batch.Blocks)),
		zap.Int("logs", len(logs)),
	)
	return batch, nil
}

func (s *rpcStream) Ack(position model.Position) error {
	if s.pending == nil {
		return fmt.Errorf("ack %s: no batch pending", position)
	}
	if *s.pending != position {
		return fmt.Errorf("ack %s: pending batch ends at %s", position, *s.pending)
	}
	s.next = position.Number + 1
	s.pending = nil
	return nil
}

// waitForHead blocks until the chain head reaches the next block to fetch.
func (s *rpcStream) waitForHead(ctx context.Context) error {
	for s.head < s.next {
		head, err := s.source.Head(ctx)
		if err != nil {
			return fmt.Errorf("get latest block: %w", err)
		}
		s.head = head
		if s.head >= s.next {
			return nil
		}

		timer := time.NewTimer(s.source.cfg.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return nil
}

func (s *rpcStream) fetchLogs(ctx context.Context, blockRange BlockRange) ([]types.Log, error) {
	seen := make(map[string]struct{})
	out := make([]types.Log, 0)
	for _, filter := range s.filters {
		var logs []types.Log
		operation := fmt.Sprintf("eth_getLogs %d-%d", blockRange.From, blockRange.To)
		err := withRetry(ctx, s.source.retry, s.source.logger, operation, func(ctx context.Context) error {
			var err error
			logs, err = s.source.client.FilterLogs(ctx, blockRange.From, blockRange.To, filter.Addresses, filter.Topic0)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("filter logs: %w", err)
		}

		for _, log := range logs {
			if log.Removed || isDuplicate(seen, log) {
				continue
			}
			out = append(out, log)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].BlockNumber != out[j].BlockNumber {
			return out[i].BlockNumber < out[j].BlockNumber
		}
		return out[i].Index < out[j].Index
	})
	return out, nil
}

func (s *rpcStream) assemble(ctx context.Context, blockRange BlockRange, logs []types.Log) (model.Batch, error) {
	numbers := make([]uint64, 0)
	for _, log := range logs {
		if len(numbers) == 0 || numbers[len(numbers)-1] != log.BlockNumber {
			numbers = append(numbers, log.BlockNumber)
		}
	}
	if len(numbers) == 0 || numbers[len(numbers)-1] != blockRange.To {
		numbers = append(numbers, blockRange.To)
	}

	var fetched []model.Block
	operation := fmt.Sprintf("eth_getBlockByNumber x%d", len(numbers))
	err := withRetry(ctx, s.source.retry, s.source.logger, operation, func(ctx context.Context) error {
		var err error
		fetched, err = s.source.client.Blocks(ctx, numbers, s.withTx)
		return err
	})
	if err != nil {
		return model.Batch{}, fmt.Errorf("get blocks: %w", err)
	}

	byNumber := make(map[uint64]model.Block, len(fetched))
	for _, block := range fetched {
		byNumber[block.Header.Number] = block
	}
	end, ok := byNumber[blockRange.To]
	if !ok {
		return model.Batch{}, fmt.Errorf("block %d missing from response", blockRange.To)
	}

	batch := model.Batch{Position: end.Header.Position()}
	for i := 0; i < len(logs); {
		number := logs[i].BlockNumber
		full, ok := byNumber[number]
		if !ok {
			return model.Batch{}, fmt.Errorf("block %d missing from response", number)
		}

		block := model.Block{Header: full.Header}
		referenced := make(map[common.Hash]struct{})
		for ; i < len(logs) && logs[i].BlockNumber == number; i++ {
			block.Logs = append(block.Logs, toModelLog(logs[i]))
			referenced[logs[i].TxHash] = struct{}{}
		}
		for _, tx := range full.Transactions {
			if _, ok := referenced[tx.Hash]; ok {
				block.Transactions = append(block.Transactions, tx)
			}
		}
		batch.Blocks = append(batch.Blocks, block)
	}
	return batch, nil
}

func isDuplicate(seen map[string]struct{}, log types.Log) bool {
	id := fmt.Sprintf("%d:%s:%d", log.BlockNumber, log.TxHash.Hex(), log.Index)
	if _, ok := seen[id]; ok {
		return true
	}
	seen[id] = struct{}{}
	return false
}

func toModelLog(log types.Log) model.Log {
	return model.Log{
		Address:          log.Address,
		Topics:           log.Topics,
		Data:             log.Data,
		TransactionHash:  log.TxHash,
		TransactionIndex: uint64(log.TxIndex),
		LogIndex:         uint64(log.Index),
	}
}
