// Package swaps turns block batches into canonical swap records.
package swaps

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"evmswaps/internal/model"
	"evmswaps/internal/observability"
	"evmswaps/internal/protocol"
)

// Mode selects what the engine produces.
type Mode int

const (
	// ModeSwaps records pools and emits canonical swaps.
	ModeSwaps Mode = iota
	// ModePools only records pools, priming the registry.
	ModePools
)

func (m Mode) String() string {
	if m == ModePools {
		return "pools"
	}
	return "swaps"
}

// PoolRegistry resolves and records pools.
type PoolRegistry interface {
	GetMany(ctx context.Context, network string, addresses []common.Address) (map[common.Address]model.PoolRecord, error)
	Put(ctx context.Context, records ...model.PoolRecord) error
}

// TokenRegistry resolves and records token metadata.
type TokenRegistry interface {
	GetMany(ctx context.Context, network string, addresses []common.Address) (map[common.Address]model.TokenRecord, error)
	Put(ctx context.Context, records ...model.TokenRecord) error
}

// Enricher fetches token metadata from the chain.
type Enricher interface {
	Tokens(ctx context.Context, addresses []common.Address) ([]model.TokenRecord, error)
}

// Config holds engine settings. Protocols lists the registry keys the engine
// decodes; pools of any other protocol are dropped.
type Config struct {
	Network        string
	Mode           Mode
	Registry       *protocol.Registry
	Protocols      []protocol.Key
	PriorityTokens []common.Address
}

// Result is the engine output for one batch.
type Result struct {
	Swaps []model.CanonicalSwap
	Pools []model.PoolRecord
	Drops []model.Drop
	// EnrichErr is set when token enrichment failed. The affected swaps are
	// still emitted with unresolved token fields.
	EnrichErr error
}

// Engine normalizes batches for one network.
type Engine struct {
	cfg      Config
	registry *protocol.Registry
	selected map[protocol.Key]struct{}
	ordering Ordering
	pools    PoolRegistry
	tokens   TokenRegistry
	enricher Enricher
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewEngine builds an engine. enricher may be nil, in which case tokens
// missing from the registry stay unresolved.
func NewEngine(cfg Config, pools PoolRegistry, tokens TokenRegistry, enricher Enricher, metrics *observability.Metrics, logger *zap.Logger) (*Engine, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("protocol registry is nil")
	}
	if len(cfg.Protocols) == 0 {
		return nil, fmt.Errorf("at least one protocol is required")
	}
	if pools == nil {
		return nil, fmt.Errorf("pool registry is nil")
	}
	if cfg.Mode == ModeSwaps && tokens == nil {
		return nil, fmt.Errorf("token registry is nil")
	}
	if metrics == nil {
		metrics = observability.NewMetrics(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	selected := make(map[protocol.Key]struct{}, len(cfg.Protocols))
	for _, key := range cfg.Protocols {
		if key.Network != cfg.Network {
			return nil, fmt.Errorf("protocol %s does not belong to network %s", key, cfg.Network)
		}
		if _, ok := cfg.Registry.Lookup(key.Network, key.DexName, key.Protocol); !ok {
			return nil, fmt.Errorf("protocol %s is not registered", key)
		}
		selected[key] = struct{}{}
	}

	return &Engine{
		cfg:      cfg,
		registry: cfg.Registry,
		selected: selected,
		ordering: NewOrdering(cfg.PriorityTokens),
		pools:    pools,
		tokens:   tokens,
		enricher: enricher,
		metrics:  metrics,
		logger:   logger.With(zap.String("network", cfg.Network), zap.Stringer("mode", cfg.Mode)),
	}, nil
}

// pendingSwap is a decoded swap waiting for token metadata.
type pendingSwap struct {
	header  model.BlockHeader
	log     model.Log
	tx      model.Transaction
	pool    model.PoolRecord
	decoded model.DecodedSwap
}

// Process runs one batch. Pool creations in the batch are recorded before
// any swap is resolved, so a pool created earlier in the batch is visible
// to its swaps. Errors are transport faults; per-log problems become drops.
func (e *Engine) Process(ctx context.Context, batch model.Batch) (Result, error) {
	var result Result

	pools, creationLogs := e.collectPools(batch, &result)
	if len(pools) > 0 {
		if err := e.pools.Put(ctx, pools...); err != nil {
			return Result{}, fmt.Errorf("record pools: %w", err)
		}
		for _, pool := range pools {
			e.metrics.PoolsDiscovered.WithLabelValues(pool.Protocol).Inc()
		}
	}
	result.Pools = pools

	if e.cfg.Mode == ModePools {
		return result, nil
	}

	pending, err := e.decodeSwaps(ctx, batch, creationLogs, &result)
	if err != nil {
		return Result{}, err
	}
	if len(pending) == 0 {
		return result, nil
	}

	tokens, err := e.resolveTokens(ctx, pending, &result)
	if err != nil {
		return Result{}, err
	}

	result.Swaps = make([]model.CanonicalSwap, 0, len(pending))
	for _, p := range pending {
		swap := e.canonical(p, tokens)
		result.Swaps = append(result.Swaps, swap)
		e.metrics.SwapsEmitted.WithLabelValues(swap.Protocol).Inc()
	}
	return result, nil
}

type logRef struct {
	block uint64
	index uint64
}

func (e *Engine) collectPools(batch model.Batch, result *Result) ([]model.PoolRecord, map[logRef]struct{}) {
	pools := make([]model.PoolRecord, 0)
	claimed := make(map[logRef]struct{})
	for _, block := range batch.Blocks {
		for _, log := range block.Logs {
			entry, ok := e.matchCreation(log)
			if !ok {
				continue
			}
			claimed[logRef{block: block.Header.Number, index: log.LogIndex}] = struct{}{}

			pool, err := entry.DecodePoolCreation(log, block.Header)
			if err != nil {
				e.drop(result, model.DropCreationFailed, block.Header, log, err)
				continue
			}
			e.logger.Debug("pool discovered",
				zap.String("protocol", pool.Protocol),
				zap.String("pool", pool.Pool.Hex()),
				zap.Uint64("block_number", pool.BlockNumber),
			)
			pools = append(pools, pool)
		}
	}
	return pools, claimed
}

func (e *Engine) matchCreation(log model.Log) (protocol.Entry, bool) {
	entry, ok := e.registry.MatchCreation(e.cfg.Network, log)
	if !ok || !e.isSelected(entry.Key) {
		return protocol.Entry{}, false
	}
	return entry, true
}

// decoderFor returns the selected entry that decodes swaps of the pool.
func (e *Engine) decoderFor(pool model.PoolRecord, log model.Log) (protocol.Entry, bool) {
	entry, ok := e.registry.Lookup(pool.Network, pool.DexName, pool.Protocol)
	if !ok || !e.isSelected(entry.Key) || !entry.IsSwap(log) {
		return protocol.Entry{}, false
	}
	return entry, true
}

func (e *Engine) isSelected(key protocol.Key) bool {
	_, ok := e.selected[key]
	return ok
}

func (e *Engine) decodeSwaps(ctx context.Context, batch model.Batch, claimed map[logRef]struct{}, result *Result) ([]pendingSwap, error) {
	addresses := make([]common.Address, 0)
	for _, block := range batch.Blocks {
		for _, log := range block.Logs {
			if e.isSwapCandidate(block.Header, log, claimed) {
				addresses = append(addresses, log.Address)
			}
		}
	}
	if len(addresses) == 0 {
		return nil, nil
	}

	pools, err := e.pools.GetMany(ctx, e.cfg.Network, addresses)
	if err != nil {
		return nil, fmt.Errorf("resolve pools: %w", err)
	}

	pending := make([]pendingSwap, 0, len(addresses))
	for _, block := range batch.Blocks {
		for _, log := range block.Logs {
			if !e.isSwapCandidate(block.Header, log, claimed) {
				continue
			}

			pool, ok := pools[log.Address]
			if !ok {
				e.drop(result, model.DropUnknownPool, block.Header, log, nil)
				continue
			}
			entry, ok := e.decoderFor(pool, log)
			if !ok {
				e.drop(result, model.DropNoDecoder, block.Header, log, fmt.Errorf("pool protocol %s/%s", pool.DexName, pool.Protocol))
				continue
			}
			tx, ok := block.Transaction(log.TransactionHash)
			if !ok {
				e.drop(result, model.DropMissingTx, block.Header, log, nil)
				continue
			}
			decoded, err := entry.DecodeSwap(log)
			if err != nil {
				e.drop(result, model.DropDecodeFailed, block.Header, log, err)
				continue
			}

			pending = append(pending, pendingSwap{
				header:  block.Header,
				log:     log,
				tx:      tx,
				pool:    pool,
				decoded: decoded,
			})
		}
	}
	return pending, nil
}

func (e *Engine) isSwapCandidate(header model.BlockHeader, log model.Log, claimed map[logRef]struct{}) bool {
	if !e.registry.IsSwapCandidate(e.cfg.Network, log) {
		return false
	}
	_, isCreation := claimed[logRef{block: header.Number, index: log.LogIndex}]
	return !isCreation
}

// resolveTokens loads token metadata for every pending swap, enriching the
// tokens the registry does not know yet in one call. Enrichment failures are
// reported on result; the returned error is a registry failure.
func (e *Engine) resolveTokens(ctx context.Context, pending []pendingSwap, result *Result) (map[common.Address]model.TokenRecord, error) {
	addresses := make([]common.Address, 0, len(pending)*2)
	for _, p := range pending {
		addresses = append(addresses, p.pool.TokenA, p.pool.TokenB)
	}

	tokens, err := e.tokens.GetMany(ctx, e.cfg.Network, addresses)
	if err != nil {
		return nil, fmt.Errorf("resolve tokens: %w", err)
	}

	missing := make([]common.Address, 0)
	queued := make(map[common.Address]struct{})
	for _, address := range addresses {
		if _, ok := tokens[address]; ok {
			continue
		}
		if _, ok := queued[address]; ok {
			continue
		}
		queued[address] = struct{}{}
		missing = append(missing, address)
	}
	if len(missing) == 0 || e.enricher == nil {
		return tokens, nil
	}

	records, enrichErr := e.enricher.Tokens(ctx, missing)
	if enrichErr != nil {
		e.metrics.EnrichmentFailures.Inc()
		e.logger.Warn("token enrichment failed",
			zap.Int("tokens", len(missing)),
			zap.Int("resolved", len(records)),
			zap.Error(enrichErr),
		)
	}
	if len(records) > 0 {
		if err := e.tokens.Put(ctx, records...); err != nil {
			return nil, fmt.Errorf("record tokens: %w", err)
		}
		e.metrics.TokensEnriched.Add(float64(len(records)))
	}
	for _, record := range records {
		tokens[record.Address] = record
	}
	result.EnrichErr = enrichErr
	return tokens, nil
}

func (e *Engine) canonical(p pendingSwap, tokens map[common.Address]model.TokenRecord) model.CanonicalSwap {
	first := model.TokenAmount{Address: p.pool.TokenA, RawAmount: p.decoded.From.Amount}
	second := model.TokenAmount{Address: p.pool.TokenB, RawAmount: p.decoded.To.Amount}
	if !e.ordering.Less(first.Address, second.Address) {
		first, second = second, first
	}
	if token, ok := tokens[first.Address]; ok {
		first.Resolve(token)
	}
	if token, ok := tokens[second.Address]; ok {
		second.Resolve(token)
	}

	return model.CanonicalSwap{
		Dex:      p.decoded.DexName,
		Protocol: p.decoded.Protocol,
		Network:  e.cfg.Network,
		Block:    p.header,
		Transaction: model.TxRef{
			Hash:  p.tx.Hash,
			Index: p.tx.Index,
		},
		LogIndex:  p.log.LogIndex,
		Account:   p.tx.From,
		Sender:    p.decoded.From.Account,
		Recipient: p.decoded.To.Account,
		Pool: model.SwapPool{
			Address:      p.pool.Pool,
			Fee:          p.pool.Params.Fee,
			TickSpacing:  p.pool.Params.TickSpacing,
			Stable:       p.pool.Params.Stable,
			Liquidity:    p.decoded.Liquidity,
			SqrtPriceX96: p.decoded.SqrtPriceX96,
			Tick:         p.decoded.Tick,
		},
		Factory: p.pool.FactoryAddress,
		TokenA:  first,
		TokenB:  second,
	}
}

func (e *Engine) drop(result *Result, reason model.DropReason, header model.BlockHeader, log model.Log, err error) {
	d := model.Drop{
		Reason:      reason,
		BlockNumber: header.Number,
		TxHash:      log.TransactionHash,
		LogIndex:    log.LogIndex,
		Address:     log.Address,
		Topic0:      log.Topic0(),
	}
	if err != nil {
		d.Error = err.Error()
	}
	result.Drops = append(result.Drops, d)
	e.metrics.LogsDropped.WithLabelValues(string(reason)).Inc()

	fields := []zap.Field{
		zap.String("reason", string(reason)),
		zap.Uint64("block_number", d.BlockNumber),
		zap.String("tx_hash", d.TxHash.Hex()),
		zap.Uint64("log_index", d.LogIndex),
		zap.String("address", d.Address.Hex()),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	switch reason {
	case model.DropUnknownPool:
		e.logger.Debug("log dropped", fields...)
	case model.DropMissingTx:
		e.logger.Error("log dropped", fields...)
	default:
		e.logger.Warn("log dropped", fields...)
	}
}
