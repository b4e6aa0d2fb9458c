package protocol

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"evmswaps/internal/model"
)

const (
	DexUniswap   = "uniswap"
	DexAerodrome = "aerodrome"

	UniswapV2           = "uniswap_v2"
	UniswapV3           = "uniswap_v3"
	AerodromeBasic      = "aerodrome_basic"
	AerodromeSlipstream = "aerodrome_slipstream"
)

// AllProtocols lists every protocol variant the registry knows how to decode.
var AllProtocols = []string{UniswapV3, UniswapV2, AerodromeBasic, AerodromeSlipstream}

// ErrUnknownProtocol is returned for protocol names with no decoder.
var ErrUnknownProtocol = errors.New("unknown protocol")

// Protocol is one DEX implementation family: its events and how to decode them.
type Protocol struct {
	DexName  string
	Name     string
	Creation abi.Event
	Swap     abi.Event

	decodeCreation func(values eventValues) (model.PoolRecord, error)
	decodeSwap     func(values eventValues) (model.DecodedSwap, error)
}

// DecodePoolCreation decodes a factory log. Network, factory and block are
// filled in by the registry entry.
func (p *Protocol) DecodePoolCreation(log model.Log) (model.PoolRecord, error) {
	values, err := decodeEvent(p.Creation, log.Topics, log.Data)
	if err != nil {
		return model.PoolRecord{}, err
	}
	record, err := p.decodeCreation(values)
	if err != nil {
		return model.PoolRecord{}, fmt.Errorf("%s %s: %w", p.Name, p.Creation.Name, err)
	}
	record.DexName = p.DexName
	record.Protocol = p.Name
	return record, nil
}

// DecodeSwap decodes a pool swap log.
func (p *Protocol) DecodeSwap(log model.Log) (model.DecodedSwap, error) {
	values, err := decodeEvent(p.Swap, log.Topics, log.Data)
	if err != nil {
		return model.DecodedSwap{}, err
	}
	swap, err := p.decodeSwap(values)
	if err != nil {
		return model.DecodedSwap{}, fmt.Errorf("%s %s: %w", p.Name, p.Swap.Name, err)
	}
	swap.DexName = p.DexName
	swap.Protocol = p.Name
	return swap, nil
}

// NewProtocol builds the decoder set for a protocol name.
func NewProtocol(name string) (*Protocol, error) {
	switch name {
	case UniswapV2:
		return build(DexUniswap, name, uniswapV2FactoryABI, "PairCreated", uniswapV2PairABI, decodeUniswapV2Pair, decodeInOutSwap)
	case UniswapV3:
		return build(DexUniswap, name, uniswapV3FactoryABI, "PoolCreated", concentratedPoolABI, decodeUniswapV3Pool, decodeConcentratedSwap)
	case AerodromeBasic:
		return build(DexAerodrome, name, aerodromeFactoryABI, "PoolCreated", aerodromePoolABI, decodeAerodromePool, decodeInOutSwap)
	case AerodromeSlipstream:
		return build(DexAerodrome, name, slipstreamFactoryABI, "PoolCreated", concentratedPoolABI, decodeSlipstreamPool, decodeConcentratedSwap)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProtocol, name)
	}
}

func build(
	dexName, name string,
	factoryABI *lazyABI, creationName string,
	poolABI *lazyABI,
	decodeCreation func(eventValues) (model.PoolRecord, error),
	decodeSwap func(eventValues) (model.DecodedSwap, error),
) (*Protocol, error) {
	creation, err := factoryABI.event(creationName)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	swap, err := poolABI.event("Swap")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return &Protocol{
		DexName:        dexName,
		Name:           name,
		Creation:       creation,
		Swap:           swap,
		decodeCreation: decodeCreation,
		decodeSwap:     decodeSwap,
	}, nil
}

func decodePair(values eventValues, poolField string) (model.PoolRecord, error) {
	token0, err := values.address("token0")
	if err != nil {
		return model.PoolRecord{}, err
	}
	token1, err := values.address("token1")
	if err != nil {
		return model.PoolRecord{}, err
	}
	pool, err := values.address(poolField)
	if err != nil {
		return model.PoolRecord{}, err
	}
	return model.PoolRecord{Pool: pool, TokenA: token0, TokenB: token1}, nil
}

func decodeUniswapV2Pair(values eventValues) (model.PoolRecord, error) {
	return decodePair(values, "pair")
}

func decodeUniswapV3Pool(values eventValues) (model.PoolRecord, error) {
	record, err := decodePair(values, "pool")
	if err != nil {
		return record, err
	}
	fee, err := values.uint24("fee")
	if err != nil {
		return record, err
	}
	tickSpacing, err := values.int24("tickSpacing")
	if err != nil {
		return record, err
	}
	record.Params = model.PoolParams{Fee: &fee, TickSpacing: &tickSpacing}
	return record, nil
}

func decodeAerodromePool(values eventValues) (model.PoolRecord, error) {
	record, err := decodePair(values, "pool")
	if err != nil {
		return record, err
	}
	stable, err := values.boolean("stable")
	if err != nil {
		return record, err
	}
	record.Params = model.PoolParams{Stable: &stable}
	return record, nil
}

func decodeSlipstreamPool(values eventValues) (model.PoolRecord, error) {
	record, err := decodePair(values, "pool")
	if err != nil {
		return record, err
	}
	tickSpacing, err := values.int24("tickSpacing")
	if err != nil {
		return record, err
	}
	record.Params = model.PoolParams{TickSpacing: &tickSpacing}
	return record, nil
}

func decodeConcentratedSwap(values eventValues) (model.DecodedSwap, error) {
	sender, err := values.address("sender")
	if err != nil {
		return model.DecodedSwap{}, err
	}
	recipient, err := values.address("recipient")
	if err != nil {
		return model.DecodedSwap{}, err
	}
	amount0, err := values.bigInt("amount0")
	if err != nil {
		return model.DecodedSwap{}, err
	}
	amount1, err := values.bigInt("amount1")
	if err != nil {
		return model.DecodedSwap{}, err
	}
	sqrtPrice, err := values.bigInt("sqrtPriceX96")
	if err != nil {
		return model.DecodedSwap{}, err
	}
	liquidity, err := values.bigInt("liquidity")
	if err != nil {
		return model.DecodedSwap{}, err
	}
	tick, err := values.int24("tick")
	if err != nil {
		return model.DecodedSwap{}, err
	}

	return model.DecodedSwap{
		From:         model.SwapLeg{Amount: amount0, Account: sender},
		To:           model.SwapLeg{Amount: amount1, Account: recipient},
		Liquidity:    liquidity,
		SqrtPriceX96: sqrtPrice,
		Tick:         &tick,
	}, nil
}

// decodeInOutSwap nets the In/Out amounts of constant-product pools into
// signed pool deltas.
func decodeInOutSwap(values eventValues) (model.DecodedSwap, error) {
	sender, err := values.address("sender")
	if err != nil {
		return model.DecodedSwap{}, err
	}
	recipient, err := values.address("to")
	if err != nil {
		return model.DecodedSwap{}, err
	}

	amounts := make([]*big.Int, 4)
	for i, field := range []string{"amount0In", "amount1In", "amount0Out", "amount1Out"} {
		amounts[i], err = values.bigInt(field)
		if err != nil {
			return model.DecodedSwap{}, err
		}
	}

	return model.DecodedSwap{
		From: model.SwapLeg{Amount: new(big.Int).Sub(amounts[0], amounts[2]), Account: sender},
		To:   model.SwapLeg{Amount: new(big.Int).Sub(amounts[1], amounts[3]), Account: recipient},
	}, nil
}
