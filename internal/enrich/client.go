// Package enrich resolves ERC20 metadata through an on-chain multicall
// aggregator.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/alitto/pond/v2"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"evmswaps/internal/model"
)

const (
	DefaultChunkSize = 100
	DefaultWorkers   = 4
)

// Caller performs read-only contract calls.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Config holds enrichment settings.
type Config struct {
	Network   string
	Multicall common.Address
	ChunkSize int
	Workers   int
}

// Client batches decimals and symbol lookups into multicall round trips.
type Client struct {
	caller Caller
	cfg    Config
	abis   abis
	pool   pond.Pool
	logger *zap.Logger
}

// NewClient builds an enrichment client. Close releases its worker pool.
func NewClient(caller Caller, cfg Config, logger *zap.Logger) (*Client, error) {
	if caller == nil {
		return nil, fmt.Errorf("caller is nil")
	}
	if cfg.Multicall == (common.Address{}) {
		return nil, fmt.Errorf("multicall address is required")
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	parsed, err := loadABIs()
	if err != nil {
		return nil, fmt.Errorf("parse abis: %w", err)
	}

	return &Client{
		caller: caller,
		cfg:    cfg,
		abis:   parsed,
		pool:   pond.NewPool(cfg.Workers),
		logger: logger,
	}, nil
}

// Close waits for in-flight chunks and stops the worker pool.
func (c *Client) Close() {
	c.pool.StopAndWait()
}

// Tokens resolves metadata for the given addresses. Chunks are fetched
// concurrently. Tokens whose sub-calls fail get default decimals and an
// empty symbol. When a whole chunk call fails, the records of the other
// chunks are still returned together with the error.
func (c *Client) Tokens(ctx context.Context, addresses []common.Address) ([]model.TokenRecord, error) {
	addresses = dedupe(addresses)
	if len(addresses) == 0 {
		return nil, nil
	}

	chunks := make([][]common.Address, 0, (len(addresses)+c.cfg.ChunkSize-1)/c.cfg.ChunkSize)
	for start := 0; start < len(addresses); start += c.cfg.ChunkSize {
		end := start + c.cfg.ChunkSize
		if end > len(addresses) {
			end = len(addresses)
		}
		chunks = append(chunks, addresses[start:end])
	}

	results := make([][]model.TokenRecord, len(chunks))
	errs := make([]error, len(chunks))
	group := c.pool.NewGroup()
	for i, chunk := range chunks {
		i, chunk := i, chunk
		group.Submit(func() {
			results[i], errs[i] = c.fetchChunk(ctx, chunk)
		})
	}
	if err := group.Wait(); err != nil && !errors.Is(err, pond.ErrGroupStopped) {
		return nil, fmt.Errorf("enrichment workers: %w", err)
	}

	out := make([]model.TokenRecord, 0, len(addresses))
	for i := range chunks {
		if errs[i] != nil {
			c.logger.Warn("multicall chunk failed",
				zap.String("network", c.cfg.Network),
				zap.Int("tokens", len(chunks[i])),
				zap.Error(errs[i]),
			)
			continue
		}
		out = append(out, results[i]...)
	}
	return out, errors.Join(errs...)
}

func (c *Client) fetchChunk(ctx context.Context, tokens []common.Address) ([]model.TokenRecord, error) {
	decimalsData, err := c.abis.erc20String.Pack("decimals")
	if err != nil {
		return nil, fmt.Errorf("pack decimals: %w", err)
	}
	symbolData, err := c.abis.erc20String.Pack("symbol")
	if err != nil {
		return nil, fmt.Errorf("pack symbol: %w", err)
	}

	calls := make([]multicallCall, 0, len(tokens)*2)
	for _, token := range tokens {
		calls = append(calls,
			multicallCall{Target: token, CallData: decimalsData},
			multicallCall{Target: token, CallData: symbolData},
		)
	}

	data, err := c.abis.multicall.Pack("tryAggregate", false, calls)
	if err != nil {
		return nil, fmt.Errorf("pack tryAggregate: %w", err)
	}
	multicall := c.cfg.Multicall
	resp, err := c.caller.CallContract(ctx, ethereum.CallMsg{To: &multicall, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call tryAggregate: %w", err)
	}
	values, err := c.abis.multicall.Unpack("tryAggregate", resp)
	if err != nil {
		return nil, fmt.Errorf("unpack tryAggregate: %w", err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("unpack tryAggregate: %d values", len(values))
	}
	results := *abi.ConvertType(values[0], new([]multicallResult)).(*[]multicallResult)
	if len(results) != len(calls) {
		return nil, fmt.Errorf("tryAggregate returned %d results for %d calls", len(results), len(calls))
	}

	out := make([]model.TokenRecord, 0, len(tokens))
	for i, token := range tokens {
		out = append(out, model.TokenRecord{
			Network:  c.cfg.Network,
			Address:  token,
			Decimals: c.decodeDecimals(token, results[2*i]),
			Symbol:   c.decodeSymbol(token, results[2*i+1]),
		})
	}
	return out, nil
}

func (c *Client) decodeDecimals(token common.Address, result multicallResult) uint8 {
	if !result.Success || len(result.ReturnData) == 0 {
		c.logger.Debug("decimals call failed", zap.String("token", token.Hex()))
		return model.DefaultTokenDecimals
	}
	values, err := c.abis.erc20String.Unpack("decimals", result.ReturnData)
	if err != nil || len(values) == 0 {
		c.logger.Debug("decimals decode failed", zap.String("token", token.Hex()), zap.Error(err))
		return model.DefaultTokenDecimals
	}
	decimals, ok := values[0].(uint8)
	if !ok {
		return model.DefaultTokenDecimals
	}
	return decimals
}

func (c *Client) decodeSymbol(token common.Address, result multicallResult) string {
	if !result.Success || len(result.ReturnData) == 0 {
		c.logger.Debug("symbol call failed", zap.String("token", token.Hex()))
		return ""
	}
	if values, err := c.abis.erc20String.Unpack("symbol", result.ReturnData); err == nil && len(values) > 0 {
		if symbol, ok := values[0].(string); ok {
			return cleanSymbol(symbol)
		}
	}
	if values, err := c.abis.erc20Bytes32.Unpack("symbol", result.ReturnData); err == nil && len(values) > 0 {
		if symbol, ok := bytes32ToString(values[0]); ok {
			return cleanSymbol(symbol)
		}
	}
	c.logger.Debug("symbol decode failed", zap.String("token", token.Hex()))
	return ""
}

// cleanSymbol drops NUL bytes and invalid UTF-8 so the symbol can be stored
// as text.
func cleanSymbol(symbol string) string {
	symbol = strings.ReplaceAll(symbol, "\x00", "")
	return strings.TrimSpace(strings.ToValidUTF8(symbol, ""))
}

func dedupe(addresses []common.Address) []common.Address {
	seen := make(map[common.Address]struct{}, len(addresses))
	out := make([]common.Address, 0, len(addresses))
	for _, address := range addresses {
		if _, ok := seen[address]; ok {
			continue
		}
		seen[address] = struct{}{}
		out = append(out, address)
	}
	return out
}
