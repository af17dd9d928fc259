package soroban

import (
	"math/big"
	"testing"

	"github.com/stellar/go/keypair"
	"github.com/stellar/go/xdr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulateOutcome_Failure(t *testing.T) {
	resp := &SimulateTransactionResponse{Error: "HostError"}

	outcome, err := resp.Outcome()
	require.NoError(t, err)
	failure, ok := outcome.(*SimulationFailure)
	require.True(t, ok)
	assert.Equal(t, "HostError", failure.Message)
}

func TestSimulateOutcome_ReturnValueFieldNames(t *testing.T) {
	encoded := encodeScVal(t, u32ScVal(9))

	for name, result := range map[string]SimulateHostFunctionResult{
		"xdr":         {XDR: encoded},
		"returnValue": {ReturnValue: encoded},
	} {
		t.Run(name, func(t *testing.T) {
			resp := &SimulateTransactionResponse{Results: []SimulateHostFunctionResult{result}}
			outcome, err := resp.Outcome()
			require.NoError(t, err)
			success, ok := outcome.(*SimulationSuccess)
			require.True(t, ok)
			require.NotNil(t, success.ReturnValue)
			native, err := scValToNative(*success.ReturnValue)
			require.NoError(t, err)
			assert.Equal(t, uint32(9), native)
		})
	}
}

func TestSimulateOutcome_NoResults(t *testing.T) {
	outcome, err := (&SimulateTransactionResponse{}).Outcome()
	require.NoError(t, err)
	success, ok := outcome.(*SimulationSuccess)
	require.True(t, ok)
	assert.Nil(t, success.ReturnValue)
}

func TestSimulateOutcome_Malformed(t *testing.T) {
	_, err := (&SimulateTransactionResponse{MinResourceFee: "lots"}).Outcome()
	require.Error(t, err)

	_, err = (&SimulateTransactionResponse{TransactionData: "%%%"}).Outcome()
	require.Error(t, err)
}

func TestSendOutcome(t *testing.T) {
	badSeq, err := xdr.MarshalBase64(xdr.TransactionResult{
		FeeCharged: 100,
		Result:     xdr.TransactionResultResult{Code: xdr.TransactionResultCodeTxBadSeq},
	})
	require.NoError(t, err)

	tests := []struct {
		name        string
		resp        SendTransactionResponse
		wantStatus  string
		wantHash    *string
		wantMessage string
	}{
		{
			name:       "pending with hash",
			resp:       SendTransactionResponse{Status: SendStatusPending, Hash: "h1"},
			wantStatus: SendStatusPending,
			wantHash:   strPtr("h1"),
		},
		{
			name:       "missing status",
			resp:       SendTransactionResponse{Hash: "h2"},
			wantStatus: "SUCCESS",
			wantHash:   strPtr("h2"),
		},
		{
			name:       "missing status and hash",
			resp:       SendTransactionResponse{},
			wantStatus: "SUCCESS",
		},
		{
			name:        "error result wins",
			resp:        SendTransactionResponse{Status: SendStatusError, ErrorResultXDR: badSeq, Error: "ignored"},
			wantMessage: "txBadSeq",
		},
		{
			name:        "error field",
			resp:        SendTransactionResponse{Error: "insufficient fee"},
			wantMessage: "insufficient fee",
		},
		{
			name:        "undecodable error result falls back",
			resp:        SendTransactionResponse{Status: SendStatusError, ErrorResultXDR: "garbage", Error: "bad"},
			wantMessage: "bad",
		},
		{
			name:        "error status only",
			resp:        SendTransactionResponse{Status: SendStatusError},
			wantMessage: "Unknown transaction error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tt.resp.Outcome()
			if tt.wantMessage != "" {
				var rejected *RejectedError
				require.ErrorAs(t, err, &rejected)
				assert.Equal(t, tt.wantMessage, rejected.Error())
				assert.Nil(t, result)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, result.Status)
			assert.Equal(t, tt.wantHash, result.Hash)
		})
	}
}

func TestScValToNative(t *testing.T) {
	account := keypair.MustRandom().Address()
	contract := testContractID(t)

	u64 := xdr.Uint64(1 << 40)
	i64 := xdr.Int64(-7)
	b := true
	sym := xdr.ScSymbol("total")
	str := xdr.ScString("hello")

	tests := []struct {
		name string
		val  xdr.ScVal
		want any
	}{
		{"void", xdr.ScVal{Type: xdr.ScValTypeScvVoid}, nil},
		{"u32", u32ScVal(5), uint32(5)},
		{"u64", xdr.ScVal{Type: xdr.ScValTypeScvU64, U64: &u64}, uint64(1 << 40)},
		{"i64", xdr.ScVal{Type: xdr.ScValTypeScvI64, I64: &i64}, int64(-7)},
		{"bool", xdr.ScVal{Type: xdr.ScValTypeScvBool, B: &b}, true},
		{"symbol", xdr.ScVal{Type: xdr.ScValTypeScvSymbol, Sym: &sym}, "total"},
		{"string", xdr.ScVal{Type: xdr.ScValTypeScvString, Str: &str}, "hello"},
		{"account", addressScValFor(t, account), account},
		{"contract", addressScValFor(t, contract), contract},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := scValToNative(tt.val)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScValToNative_U128(t *testing.T) {
	parts := xdr.UInt128Parts{Hi: 1, Lo: 2}
	got, err := scValToNative(xdr.ScVal{Type: xdr.ScValTypeScvU128, U128: &parts})
	require.NoError(t, err)

	want := new(big.Int).Lsh(big.NewInt(1), 64)
	want.Add(want, big.NewInt(2))
	assert.Equal(t, 0, want.Cmp(got.(*big.Int)))

	n, ok := toUint64(got)
	assert.False(t, ok)
	assert.Equal(t, uint64(2), n)
}

func TestToUint64(t *testing.T) {
	n, ok := toUint64(uint32(5))
	assert.True(t, ok)
	assert.Equal(t, uint64(5), n)

	_, ok = toUint64(int64(-1))
	assert.False(t, ok)

	_, ok = toUint64("five")
	assert.False(t, ok)

	n, ok = toUint64(nil)
	assert.True(t, ok)
	assert.Zero(t, n)
}

func strPtr(s string) *string { return &s }

func TestIsAccountID(t *testing.T) {
	assert.True(t, IsAccountID(keypair.MustRandom().Address()))
	assert.True(t, IsAccountID(PlaceholderAccount))
	assert.False(t, IsAccountID(""))
	assert.False(t, IsAccountID("GABC"))
	assert.False(t, IsAccountID(testContractID(t)))
}
