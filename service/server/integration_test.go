package server_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/brojonat/ticketchain/client"
	"github.com/brojonat/ticketchain/service/db"
	natspkg "github.com/brojonat/ticketchain/service/nats"
	"github.com/brojonat/ticketchain/service/server"
	"github.com/brojonat/ticketchain/service/soroban"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/network"
	"github.com/stellar/go/strkey"
	"github.com/stellar/go/txnbuild"
	"github.com/stellar/go/xdr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedRPC answers simulations from a queue and records submissions.
type scriptedRPC struct {
	mu          sync.Mutex
	simulations []*soroban.SimulateTransactionResponse
	send        *soroban.SendTransactionResponse
	sent        []string
}

func (r *scriptedRPC) GetLedgerEntries(ctx context.Context, keys []string) (*soroban.GetLedgerEntriesResponse, error) {
	return &soroban.GetLedgerEntriesResponse{}, nil
}

func (r *scriptedRPC) SimulateTransaction(ctx context.Context, txXDR string) (*soroban.SimulateTransactionResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.simulations) == 0 {
		return &soroban.SimulateTransactionResponse{Error: "no scripted simulation"}, nil
	}
	next := r.simulations[0]
	r.simulations = r.simulations[1:]
	return next, nil
}

func (r *scriptedRPC) SendTransaction(ctx context.Context, txXDR string) (*soroban.SendTransactionResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, txXDR)
	return r.send, nil
}

func (r *scriptedRPC) GetTransaction(ctx context.Context, hash string) (*soroban.GetTransactionResponse, error) {
	return &soroban.GetTransactionResponse{Status: soroban.TxStatusNotFound}, nil
}

func returnValue(t *testing.T, v xdr.ScVal) *soroban.SimulateTransactionResponse {
	t.Helper()
	encoded, err := xdr.MarshalBase64(v)
	require.NoError(t, err)
	return &soroban.SimulateTransactionResponse{
		Results:      []soroban.SimulateHostFunctionResult{{ReturnValue: encoded}},
		LatestLedger: 100,
	}
}

func startServer(t *testing.T, rpc soroban.RPCClient, configure func(*server.Server)) *client.Client {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	contractID, err := strkey.Encode(strkey.VersionByteContract, make([]byte, 32))
	require.NoError(t, err)

	svc := soroban.NewService(rpc, contractID, network.TestNetworkPassphrase, nil, logger)
	srv := server.New(":0", svc, nil, logger)
	if configure != nil {
		configure(srv)
	}

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return client.NewClient(ts.URL, contractID, &http.Client{Timeout: 5 * time.Second}, logger)
}

func signedEnvelope(t *testing.T) (string, string) {
	t.Helper()
	kp := keypair.MustRandom()
	tx, err := txnbuild.NewTransaction(txnbuild.TransactionParams{
		SourceAccount:        &txnbuild.SimpleAccount{AccountID: kp.Address(), Sequence: 1},
		IncrementSequenceNum: true,
		Operations:           []txnbuild.Operation{&txnbuild.BumpSequence{BumpTo: 5}},
		BaseFee:              txnbuild.MinBaseFee,
		Preconditions:        txnbuild.Preconditions{TimeBounds: txnbuild.NewTimeout(180)},
	})
	require.NoError(t, err)
	tx, err = tx.Sign(network.TestNetworkPassphrase, kp)
	require.NoError(t, err)
	encoded, err := tx.Base64()
	require.NoError(t, err)
	return encoded, kp.Address()
}

func TestServerIntegration_Totals(t *testing.T) {
	owner := keypair.MustRandom().Address()
	ownerID := xdr.MustAddress(owner)
	total := xdr.Uint32(3)

	rpc := &scriptedRPC{simulations: []*soroban.SimulateTransactionResponse{
		returnValue(t, xdr.ScVal{Type: xdr.ScValTypeScvU32, U32: &total}),
		returnValue(t, xdr.ScVal{Type: xdr.ScValTypeScvAddress, Address: &xdr.ScAddress{
			Type:      xdr.ScAddressTypeScAddressTypeAccount,
			AccountId: &ownerID,
		}}),
	}}
	c := startServer(t, rpc, nil)

	totals := c.GetTotals(context.Background())
	require.NotNil(t, totals)
	assert.Equal(t, uint64(3), totals.Total)
	require.NotNil(t, totals.LastOwner)
	assert.Equal(t, owner, *totals.LastOwner)
}

func TestServerIntegration_TotalsDegrade(t *testing.T) {
	rpc := &scriptedRPC{simulations: []*soroban.SimulateTransactionResponse{
		{Error: "HostError: contract not initialized"},
	}}
	c := startServer(t, rpc, nil)

	totals := c.GetTotals(context.Background())
	require.NotNil(t, totals)
	assert.Equal(t, uint64(0), totals.Total)
	assert.Nil(t, totals.LastOwner)
}

func TestServerIntegration_SubmitPublishes(t *testing.T) {
	envelope, signer := signedEnvelope(t)
	rpc := &scriptedRPC{send: &soroban.SendTransactionResponse{Status: soroban.SendStatusPending, Hash: "abc123"}}
	publisher := natspkg.NewMockPublisher()

	c := startServer(t, rpc, func(srv *server.Server) { srv.WithPublisher(publisher) })

	result, err := c.SubmitTx(context.Background(), envelope)
	require.NoError(t, err)
	assert.Equal(t, soroban.SendStatusPending, result.Status)
	require.NotNil(t, result.Hash)
	assert.Equal(t, "abc123", *result.Hash)

	require.Len(t, rpc.sent, 1)
	assert.Equal(t, envelope, rpc.sent[0])

	events := publisher.GetPublishedEvents()
	require.Len(t, events, 1)
	assert.Equal(t, signer, events[0].Signer)
}

func TestServerIntegration_SubmitRejected(t *testing.T) {
	envelope, _ := signedEnvelope(t)
	rpc := &scriptedRPC{send: &soroban.SendTransactionResponse{Status: soroban.SendStatusError}}
	c := startServer(t, rpc, nil)

	result, err := c.SubmitTx(context.Background(), envelope)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, "Unknown transaction error", err.Error())
}

func TestServerIntegration_BuildMintMissingParams(t *testing.T) {
	c := startServer(t, &scriptedRPC{}, nil)

	envelope := c.BuildMintTxXDR(context.Background(), client.MintParams{Recipient: "GRECIPIENT", Amount: 1})
	assert.Equal(t, "", envelope)
}

func TestServerIntegration_SubmissionsWithStore(t *testing.T) {
	db.SkipIfNoTestDB(t)
	store := db.NewTestStore(t)
	defer store.Close()
	store.Cleanup(t)

	envelope, signer := signedEnvelope(t)
	rpc := &scriptedRPC{send: &soroban.SendTransactionResponse{Status: soroban.SendStatusPending, Hash: "integration-hash"}}
	c := startServer(t, rpc, func(srv *server.Server) { srv.WithStore(store.Store) })

	_, err := c.SubmitTx(context.Background(), envelope)
	require.NoError(t, err)

	subs, err := c.ListSubmissions(context.Background(), signer, 10, 0)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "integration-hash", subs[0].Hash)
	assert.Equal(t, soroban.SendStatusPending, subs[0].Status)
}
