package enrich

import (
	"bytes"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const erc20ABIStringJSON = `[
  {"inputs": [], "name": "decimals", "outputs": [{"type": "uint8"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "symbol", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"}
]`

const erc20ABIBytes32JSON = `[
  {"inputs": [], "name": "decimals", "outputs": [{"type": "uint8"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "symbol", "outputs": [{"type": "bytes32"}], "stateMutability": "view", "type": "function"}
]`

const multicallABIJSON = `[
  {
    "inputs": [
      {"internalType": "bool", "name": "requireSuccess", "type": "bool"},
      {
        "components": [
          {"internalType": "address", "name": "target", "type": "address"},
          {"internalType": "bytes", "name": "callData", "type": "bytes"}
        ],
        "internalType": "struct Multicall2.Call[]",
        "name": "calls",
        "type": "tuple[]"
      }
    ],
    "name": "tryAggregate",
    "outputs": [
      {
        "components": [
          {"internalType": "bool", "name": "success", "type": "bool"},
          {"internalType": "bytes", "name": "returnData", "type": "bytes"}
        ],
        "internalType": "struct Multicall2.Result[]",
        "name": "returnData",
        "type": "tuple[]"
      }
    ],
    "stateMutability": "nonpayable",
    "type": "function"
  }
]`

type multicallCall struct {
	Target   common.Address
	CallData []byte
}

type multicallResult struct {
	Success    bool
	ReturnData []byte
}

type abis struct {
	erc20String  abi.ABI
	erc20Bytes32 abi.ABI
	multicall    abi.ABI
}

var (
	parsedABIs   abis
	parsedABIErr error
	parseOnce    sync.Once
)

func loadABIs() (abis, error) {
	parseOnce.Do(func() {
		var out abis
		if out.erc20String, parsedABIErr = abi.JSON(strings.NewReader(erc20ABIStringJSON)); parsedABIErr != nil {
			return
		}
		if out.erc20Bytes32, parsedABIErr = abi.JSON(strings.NewReader(erc20ABIBytes32JSON)); parsedABIErr != nil {
			return
		}
		if out.multicall, parsedABIErr = abi.JSON(strings.NewReader(multicallABIJSON)); parsedABIErr != nil {
			return
		}
		parsedABIs = out
	})
	return parsedABIs, parsedABIErr
}

func bytes32ToString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00")), true
	case []byte:
		return string(bytes.TrimRight(v, "\x00")), true
	default:
		return "", false
	}
}
