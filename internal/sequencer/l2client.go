package sequencer

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// EVMHeadClient implements HeadClient for any EVM-compatible L2 (Arbitrum,
// Base, Optimism, zkSync all expose the standard eth_getBlockByNumber RPC),
// using go-ethereum's ethclient exactly as the Chain Client does for L1.
type EVMHeadClient struct {
	client *ethclient.Client
}

// NewEVMHeadClient dials an L2 HTTP RPC endpoint.
func NewEVMHeadClient(rpcURL string) (*EVMHeadClient, error) {
	c, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial l2 rpc %s: %w", rpcURL, err)
	}
	return &EVMHeadClient{client: c}, nil
}

// Head fetches the latest block's number and timestamp.
func (c *EVMHeadClient) Head(ctx context.Context) (uint64, int64, error) {
	header, err := c.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("eth_getBlockByNumber(latest): %w", err)
	}
	return header.Number.Uint64(), int64(header.Time), nil
}

// Close releases the underlying connection.
func (c *EVMHeadClient) Close() {
	c.client.Close()
}

// StarknetHeadClient implements HeadClient for Starknet's JSON-RPC, which
// doesn't speak the Ethereum eth_* method namespace. It uses
// go-ethereum's generic rpc.Client (the same transport ethclient builds
// on) to call Starknet's own latest-block method, exposing an abstract
// get_head() without needing a Starknet-specific SDK.
type StarknetHeadClient struct {
	client *rpc.Client
}

// NewStarknetHeadClient dials a Starknet JSON-RPC HTTP endpoint.
func NewStarknetHeadClient(ctx context.Context, rpcURL string) (*StarknetHeadClient, error) {
	c, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial starknet rpc %s: %w", rpcURL, err)
	}
	return &StarknetHeadClient{client: c}, nil
}

type starknetBlockHeader struct {
	BlockNumber uint64 `json:"block_number"`
	Timestamp   int64  `json:"timestamp"`
}

// Head calls starknet_getBlockWithTxHashes for the latest block, which
// carries both the block number and its timestamp, in one poll.
func (c *StarknetHeadClient) Head(ctx context.Context) (uint64, int64, error) {
	var header starknetBlockHeader
	if err := c.client.CallContext(ctx, &header, "starknet_getBlockWithTxHashes", "latest"); err != nil {
		return 0, 0, fmt.Errorf("starknet_getBlockWithTxHashes: %w", err)
	}
	return header.BlockNumber, header.Timestamp, nil
}

// Close releases the underlying connection.
func (c *StarknetHeadClient) Close() {
	c.client.Close()
}
