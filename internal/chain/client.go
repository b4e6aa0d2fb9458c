package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"evmswaps/internal/model"
)

// maxBatchCall bounds the number of requests in one JSON-RPC batch.
const maxBatchCall = 100

// Client wraps go-ethereum RPC and provides helper methods.
type Client struct {
	rpcClient *rpc.Client
	ethClient *ethclient.Client
}

// NewClient creates a new chain client from the RPC URL.
func NewClient(ctx context.Context, rpcURL string) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}

	return &Client{
		rpcClient: rpcClient,
		ethClient: ethclient.NewClient(rpcClient),
	}, nil
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// ChainID returns the chain ID.
func (c *Client) ChainID(ctx context.Context) (uint64, error) {
	id, err := c.ethClient.ChainID(ctx)
	if err != nil {
		return 0, err
	}
	if !id.IsUint64() {
		return 0, fmt.Errorf("chain id does not fit in uint64: %s", id)
	}
	return id.Uint64(), nil
}

// LatestBlockNumber returns the latest block number.
func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return c.ethClient.BlockNumber(ctx)
}

// FilterLogs returns logs in the given range for addresses and topic0 filters.
func (c *Client) FilterLogs(
	ctx context.Context,
	fromBlock uint64,
	toBlock uint64,
	addresses []common.Address,
	topic0 []common.Hash,
) ([]types.Log, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: addresses,
	}
	if len(topic0) > 0 {
		query.Topics = [][]common.Hash{topic0}
	}
	return c.ethClient.FilterLogs(ctx, query)
}

// CallContract performs an eth_call for a contract method.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return c.ethClient.CallContract(ctx, msg, blockNumber)
}

type rpcHeader struct {
	Number    hexutil.Uint64 `json:"number"`
	Hash      common.Hash    `json:"hash"`
	Timestamp hexutil.Uint64 `json:"timestamp"`
}

type rpcTransaction struct {
	Hash             common.Hash     `json:"hash"`
	TransactionIndex hexutil.Uint64  `json:"transactionIndex"`
	From             common.Address  `json:"from"`
	To               *common.Address `json:"to"`
}

type rpcFullBlock struct {
	rpcHeader
	Transactions []rpcTransaction `json:"transactions"`
}

// Blocks fetches block headers, and transaction summaries when
// withTransactions is set, in JSON-RPC batches. Blocks are decoded from the
// raw response so chains with non-standard transaction types still load.
func (c *Client) Blocks(ctx context.Context, numbers []uint64, withTransactions bool) ([]model.Block, error) {
	out := make([]model.Block, 0, len(numbers))
	for start := 0; start < len(numbers); start += maxBatchCall {
		end := start + maxBatchCall
		if end > len(numbers) {
			end = len(numbers)
		}
		chunk := numbers[start:end]

		results := make([]*rpcFullBlock, len(chunk))
		elems := make([]rpc.BatchElem, len(chunk))
		for i, number := range chunk {
			elems[i] = rpc.BatchElem{
				Method: "eth_getBlockByNumber",
				Args:   []interface{}{hexutil.EncodeUint64(number), withTransactions},
				Result: &results[i],
			}
			if !withTransactions {
				var header *rpcHeader
				elems[i].Result = &header
			}
		}

		if err := c.rpcClient.BatchCallContext(ctx, elems); err != nil {
			return nil, fmt.Errorf("batch get blocks: %w", err)
		}

		for i, elem := range elems {
			if elem.Error != nil {
				return nil, fmt.Errorf("get block %d: %w", chunk[i], elem.Error)
			}
			block, err := toBlock(elem.Result, withTransactions)
			if err != nil {
				return nil, fmt.Errorf("get block %d: %w", chunk[i], err)
			}
			out = append(out, block)
		}
	}
	return out, nil
}

func toBlock(result interface{}, withTransactions bool) (model.Block, error) {
	if !withTransactions {
		header := *(result.(**rpcHeader))
		if header == nil {
			return model.Block{}, ethereum.NotFound
		}
		return model.Block{Header: header.toModel()}, nil
	}

	full := *(result.(**rpcFullBlock))
	if full == nil {
		return model.Block{}, ethereum.NotFound
	}
	block := model.Block{
		Header:       full.rpcHeader.toModel(),
		Transactions: make([]model.Transaction, 0, len(full.Transactions)),
	}
	for _, tx := range full.Transactions {
		block.Transactions = append(block.Transactions, model.Transaction{
			Hash:  tx.Hash,
			Index: uint64(tx.TransactionIndex),
			From:  tx.From,
			To:    tx.To,
		})
	}
	return block, nil
}

func (h rpcHeader) toModel() model.BlockHeader {
	return model.BlockHeader{
		Number:    uint64(h.Number),
		Hash:      h.Hash,
		Timestamp: uint64(h.Timestamp),
	}
}
