package postgres

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"evmswaps/internal/metadata"
	"evmswaps/internal/model"
)

var (
	_ metadata.Store[model.PoolRecord]  = (*PoolStore)(nil)
	_ metadata.Store[model.TokenRecord] = (*TokenStore)(nil)
)

// PoolStore is the evm_pools table.
type PoolStore struct {
	pool *pgxpool.Pool
}

// InsertIfAbsent inserts pools whose (network, address) is not stored yet.
func (s *PoolStore) InsertIfAbsent(ctx context.Context, records []model.PoolRecord) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, p := range records {
		var fee *int64
		if p.Params.Fee != nil {
			v := int64(*p.Params.Fee)
			fee = &v
		}
		batch.Queue(`
			INSERT INTO evm_pools (
				network, address, dex_name, protocol, token_a, token_b,
				factory_address, block_number, fee, tick_spacing, stable
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (network, address) DO NOTHING
		`,
			p.Network,
			p.Pool.Hex(),
			p.DexName,
			p.Protocol,
			p.TokenA.Hex(),
			p.TokenB.Hex(),
			p.FactoryAddress.Hex(),
			int64(p.BlockNumber),
			fee,
			p.Params.TickSpacing,
			p.Params.Stable,
		)
	}
	return sendBatch(ctx, s.pool, batch, len(records))
}

// SelectByAddress returns the stored pools among addresses.
func (s *PoolStore) SelectByAddress(ctx context.Context, network string, addresses []common.Address) ([]model.PoolRecord, error) {
	if len(addresses) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT network, address, dex_name, protocol, token_a, token_b,
			factory_address, block_number, fee, tick_spacing, stable
		FROM evm_pools
		WHERE network = $1 AND address = ANY($2)
	`, network, hexAddresses(addresses))
	if err != nil {
		return nil, fmt.Errorf("select pools: %w", err)
	}
	defer rows.Close()

	var out []model.PoolRecord
	for rows.Next() {
		var (
			p                             model.PoolRecord
			address, tokenA, tokenB, fact string
			blockNumber                   int64
			fee                           *int64
		)
		if err := rows.Scan(
			&p.Network, &address, &p.DexName, &p.Protocol, &tokenA, &tokenB,
			&fact, &blockNumber, &fee, &p.Params.TickSpacing, &p.Params.Stable,
		); err != nil {
			return nil, fmt.Errorf("scan pool: %w", err)
		}
		p.Pool = common.HexToAddress(address)
		p.TokenA = common.HexToAddress(tokenA)
		p.TokenB = common.HexToAddress(tokenB)
		p.FactoryAddress = common.HexToAddress(fact)
		p.BlockNumber = uint64(blockNumber)
		if fee != nil {
			v := uint32(*fee)
			p.Params.Fee = &v
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// TokenStore is the evm_tokens table.
type TokenStore struct {
	pool *pgxpool.Pool
}

// InsertIfAbsent inserts tokens whose (network, address) is not stored yet.
func (s *TokenStore) InsertIfAbsent(ctx context.Context, records []model.TokenRecord) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, t := range records {
		batch.Queue(`
			INSERT INTO evm_tokens (network, address, decimals, symbol)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (network, address) DO NOTHING
		`,
			t.Network,
			t.Address.Hex(),
			int16(t.Decimals),
			t.Symbol,
		)
	}
	return sendBatch(ctx, s.pool, batch, len(records))
}

// SelectByAddress returns the stored tokens among addresses.
func (s *TokenStore) SelectByAddress(ctx context.Context, network string, addresses []common.Address) ([]model.TokenRecord, error) {
	if len(addresses) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT network, address, decimals, symbol
		FROM evm_tokens
		WHERE network = $1 AND address = ANY($2)
	`, network, hexAddresses(addresses))
	if err != nil {
		return nil, fmt.Errorf("select tokens: %w", err)
	}
	defer rows.Close()

	var out []model.TokenRecord
	for rows.Next() {
		var (
			t        model.TokenRecord
			address  string
			decimals int16
		)
		if err := rows.Scan(&t.Network, &address, &decimals, &t.Symbol); err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		t.Address = common.HexToAddress(address)
		t.Decimals = uint8(decimals)
		out = append(out, t)
	}
	return out, rows.Err()
}

func sendBatch(ctx context.Context, pool *pgxpool.Pool, batch *pgx.Batch, n int) error {
	br := pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < n; i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func hexAddresses(addresses []common.Address) []string {
	out := make([]string, 0, len(addresses))
	for _, address := range addresses {
		out = append(out, address.Hex())
	}
	return out
}
