package soroban

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

// realRPCClient adapts a JSON-RPC 2.0 client to our RPCClient interface.
// Soroban RPC takes named parameters, so every call passes a single map.
type realRPCClient struct {
	client jsonrpc.RPCClient
}

// NewRPCClient creates a new RPCClient for the Soroban RPC endpoint at rpcURL.
// Each HTTP round trip is bounded by timeout; zero means no limit.
func NewRPCClient(rpcURL string, timeout time.Duration) RPCClient {
	return &realRPCClient{
		client: jsonrpc.NewClientWithOpts(rpcURL, &jsonrpc.RPCClientOpts{
			HTTPClient: &http.Client{Timeout: timeout},
		}),
	}
}

func (r *realRPCClient) call(ctx context.Context, method string, params map[string]any, out any) error {
	resp, err := r.client.Call(ctx, method, params)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	if resp.Error != nil {
		return fmt.Errorf("%s: rpc error %d: %s", method, resp.Error.Code, resp.Error.Message)
	}
	if len(resp.Result) == 0 {
		return fmt.Errorf("%s: empty result", method)
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("%s: failed to decode result: %w", method, err)
	}
	return nil
}

func (r *realRPCClient) GetLedgerEntries(ctx context.Context, keys []string) (*GetLedgerEntriesResponse, error) {
	var out GetLedgerEntriesResponse
	if err := r.call(ctx, "getLedgerEntries", map[string]any{"keys": keys}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *realRPCClient) SimulateTransaction(ctx context.Context, txXDR string) (*SimulateTransactionResponse, error) {
	var out SimulateTransactionResponse
	if err := r.call(ctx, "simulateTransaction", map[string]any{"transaction": txXDR}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *realRPCClient) SendTransaction(ctx context.Context, txXDR string) (*SendTransactionResponse, error) {
	var out SendTransactionResponse
	if err := r.call(ctx, "sendTransaction", map[string]any{"transaction": txXDR}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *realRPCClient) GetTransaction(ctx context.Context, hash string) (*GetTransactionResponse, error) {
	var out GetTransactionResponse
	if err := r.call(ctx, "getTransaction", map[string]any{"hash": hash}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
