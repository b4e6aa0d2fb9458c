package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"evmswaps/internal/metadata"
	"evmswaps/internal/model"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("swaps"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	store, err := NewStore(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(store.Close)

	require.NoError(t, store.Migrate(ctx))
	// idempotent
	require.NoError(t, store.Migrate(ctx))
	return store
}

func TestPoolStoreInsertIfAbsent(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	pools := store.Pools()

	fee := uint32(3000)
	spacing := int32(-60)
	first := model.PoolRecord{
		Network:        "base",
		DexName:        "uniswap",
		Protocol:       "uniswap_v3",
		Pool:           common.HexToAddress("0x1000000000000000000000000000000000000001"),
		TokenA:         common.HexToAddress("0x2000000000000000000000000000000000000002"),
		TokenB:         common.HexToAddress("0x3000000000000000000000000000000000000003"),
		FactoryAddress: common.HexToAddress("0x33128a8fC17869897dcE68Ed026d694621f6FDfD"),
		BlockNumber:    150,
		Params:         model.PoolParams{Fee: &fee, TickSpacing: &spacing},
	}
	require.NoError(t, pools.InsertIfAbsent(ctx, []model.PoolRecord{first}))

	changed := first
	changed.BlockNumber = 999
	changed.Protocol = "uniswap_v2"
	require.NoError(t, pools.InsertIfAbsent(ctx, []model.PoolRecord{changed}))

	got, err := pools.SelectByAddress(ctx, "base", []common.Address{first.Pool, common.HexToAddress("0xdead")})
	require.NoError(t, err)
	require.Equal(t, []model.PoolRecord{first}, got)

	got, err = pools.SelectByAddress(ctx, "ethereum", []common.Address{first.Pool})
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestTokenStoreThroughRegistry(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	usdc := model.TokenRecord{
		Network:  "base",
		Address:  common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"),
		Decimals: 6,
		Symbol:   "USDC",
	}
	writer := metadata.NewTokens(store.Tokens(), metadata.Options{})
	require.NoError(t, writer.Put(ctx, usdc))

	reader := metadata.NewTokens(store.Tokens(), metadata.Options{})
	got, ok, err := reader.Get(ctx, "base", usdc.Address)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, usdc, got)
}

func TestCursorStore(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	cursor := store.Cursor()

	_, ok, err := cursor.Get(ctx, "base-swaps")
	require.NoError(t, err)
	require.False(t, ok)

	start := model.Position{Number: 99}
	require.NoError(t, cursor.Save(ctx, "base-swaps", model.Position{Number: 100, Hash: "0xaa"}, start))
	require.NoError(t, cursor.Save(ctx, "base-swaps", model.Position{Number: 150, Hash: "0xbb"}, model.Position{Number: 140}))

	cp, ok, err := cursor.Get(ctx, "base-swaps")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, start, cp.Initial)
	require.Equal(t, model.Position{Number: 150, Hash: "0xbb"}, cp.Current)

	require.Error(t, cursor.Save(ctx, "", model.Position{}, model.Position{}))
}
