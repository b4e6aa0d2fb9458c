package protocol

import (
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// lazyABI parses an ABI definition on first use.
type lazyABI struct {
	json   string
	once   sync.Once
	parsed abi.ABI
	err    error
}

func newLazyABI(json string) *lazyABI {
	return &lazyABI{json: json}
}

func (l *lazyABI) get() (abi.ABI, error) {
	l.once.Do(func() {
		l.parsed, l.err = abi.JSON(strings.NewReader(l.json))
	})
	return l.parsed, l.err
}

func (l *lazyABI) event(name string) (abi.Event, error) {
	parsed, err := l.get()
	if err != nil {
		return abi.Event{}, fmt.Errorf("parse abi: %w", err)
	}
	event, ok := parsed.Events[name]
	if !ok {
		return abi.Event{}, fmt.Errorf("event %s not in abi", name)
	}
	return event, nil
}

// eventValues holds the decoded indexed and non-indexed fields of a log.
type eventValues map[string]interface{}

func decodeEvent(event abi.Event, topics []common.Hash, data []byte) (eventValues, error) {
	indexed := indexedArguments(event.Inputs)
	if len(topics) != len(indexed)+1 {
		return nil, fmt.Errorf("%s: expected %d topics, got %d", event.Name, len(indexed)+1, len(topics))
	}
	if topics[0] != event.ID {
		return nil, fmt.Errorf("%s: topic0 mismatch %s", event.Name, topics[0].Hex())
	}

	values := make(eventValues, len(event.Inputs))
	if err := abi.ParseTopicsIntoMap(values, indexed, topics[1:]); err != nil {
		return nil, fmt.Errorf("%s: parse topics: %w", event.Name, err)
	}
	if err := event.Inputs.NonIndexed().UnpackIntoMap(values, data); err != nil {
		return nil, fmt.Errorf("%s: unpack data: %w", event.Name, err)
	}
	return values, nil
}

func (v eventValues) address(name string) (common.Address, error) {
	switch val := v[name].(type) {
	case common.Address:
		return val, nil
	case *common.Address:
		return *val, nil
	default:
		return common.Address{}, fmt.Errorf("field %s: unsupported address type %T", name, v[name])
	}
}

func (v eventValues) bigInt(name string) (*big.Int, error) {
	switch val := v[name].(type) {
	case *big.Int:
		return new(big.Int).Set(val), nil
	case big.Int:
		return new(big.Int).Set(&val), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(val)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(val)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(val)), nil
	case uint64:
		return new(big.Int).SetUint64(val), nil
	case int8:
		return big.NewInt(int64(val)), nil
	case int16:
		return big.NewInt(int64(val)), nil
	case int32:
		return big.NewInt(int64(val)), nil
	case int64:
		return big.NewInt(val), nil
	default:
		return nil, fmt.Errorf("field %s: unsupported int type %T", name, v[name])
	}
}

func (v eventValues) int24(name string) (int32, error) {
	value, err := v.bigInt(name)
	if err != nil {
		return 0, err
	}
	return int24FromBig(value)
}

func (v eventValues) uint24(name string) (uint32, error) {
	value, err := v.bigInt(name)
	if err != nil {
		return 0, err
	}
	if value.Sign() < 0 || value.BitLen() > 24 {
		return 0, fmt.Errorf("field %s: uint24 overflow: %s", name, value.String())
	}
	return uint32(value.Uint64()), nil
}

func (v eventValues) boolean(name string) (bool, error) {
	val, ok := v[name].(bool)
	if !ok {
		return false, fmt.Errorf("field %s: unsupported bool type %T", name, v[name])
	}
	return val, nil
}

func int24FromBig(value *big.Int) (int32, error) {
	min := big.NewInt(-1 << 23)
	max := big.NewInt((1 << 23) - 1)
	if value.Cmp(min) < 0 || value.Cmp(max) > 0 {
		return 0, fmt.Errorf("int24 overflow: %s", value.String())
	}
	return int32(value.Int64()), nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}
