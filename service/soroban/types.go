package soroban

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/stellar/go/xdr"
)

// RPCClient is the subset of the Soroban JSON-RPC API the service needs.
// Transport and JSON-RPC level failures are returned as errors; everything
// the server answered is returned in the response structs.
type RPCClient interface {
	GetLedgerEntries(ctx context.Context, keys []string) (*GetLedgerEntriesResponse, error)
	SimulateTransaction(ctx context.Context, txXDR string) (*SimulateTransactionResponse, error)
	SendTransaction(ctx context.Context, txXDR string) (*SendTransactionResponse, error)
	GetTransaction(ctx context.Context, hash string) (*GetTransactionResponse, error)
}

// LedgerEntryResult is one entry of a getLedgerEntries response.
type LedgerEntryResult struct {
	Key                   string `json:"key"`
	XDR                   string `json:"xdr"`
	LastModifiedLedgerSeq uint32 `json:"lastModifiedLedgerSeq"`
}

// GetLedgerEntriesResponse is the result of getLedgerEntries.
type GetLedgerEntriesResponse struct {
	Entries      []LedgerEntryResult `json:"entries"`
	LatestLedger uint32              `json:"latestLedger"`
}

// SimulateHostFunctionResult is one host function result of a simulation.
// Older servers put the return value under "xdr", newer ones under "returnValue".
type SimulateHostFunctionResult struct {
	XDR         string   `json:"xdr,omitempty"`
	ReturnValue string   `json:"returnValue,omitempty"`
	Auth        []string `json:"auth,omitempty"`
}

// SimulateTransactionResponse is the raw result of simulateTransaction.
type SimulateTransactionResponse struct {
	Error           string                       `json:"error,omitempty"`
	TransactionData string                       `json:"transactionData,omitempty"`
	MinResourceFee  string                       `json:"minResourceFee,omitempty"`
	Results         []SimulateHostFunctionResult `json:"results,omitempty"`
	LatestLedger    uint32                       `json:"latestLedger"`
}

// SimulationOutcome is either *SimulationSuccess or *SimulationFailure.
type SimulationOutcome interface {
	isSimulationOutcome()
}

// SimulationSuccess is a simulation that executed without error.
type SimulationSuccess struct {
	// ReturnValue is nil when the simulation returned no result.
	ReturnValue     *xdr.ScVal
	TransactionData *xdr.SorobanTransactionData
	MinResourceFee  int64
	Auth            []xdr.SorobanAuthorizationEntry
	LatestLedger    uint32
}

// SimulationFailure is a simulation the RPC server reported as failed.
type SimulationFailure struct {
	Message string
}

func (*SimulationSuccess) isSimulationOutcome() {}
func (*SimulationFailure) isSimulationOutcome() {}

// Outcome converts the raw simulation response into its variant.
// An error is returned only when the response is malformed.
func (r *SimulateTransactionResponse) Outcome() (SimulationOutcome, error) {
	if r.Error != "" {
		return &SimulationFailure{Message: r.Error}, nil
	}

	out := &SimulationSuccess{LatestLedger: r.LatestLedger}

	if r.TransactionData != "" {
		var data xdr.SorobanTransactionData
		if err := xdr.SafeUnmarshalBase64(r.TransactionData, &data); err != nil {
			return nil, fmt.Errorf("failed to decode transactionData: %w", err)
		}
		out.TransactionData = &data
	}

	if r.MinResourceFee != "" {
		fee, err := strconv.ParseInt(r.MinResourceFee, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid minResourceFee %q: %w", r.MinResourceFee, err)
		}
		out.MinResourceFee = fee
	}

	if len(r.Results) > 0 {
		res := r.Results[0]
		encoded := res.XDR
		if encoded == "" {
			encoded = res.ReturnValue
		}
		if encoded != "" {
			var val xdr.ScVal
			if err := xdr.SafeUnmarshalBase64(encoded, &val); err != nil {
				return nil, fmt.Errorf("failed to decode return value: %w", err)
			}
			out.ReturnValue = &val
		}
		for i, a := range res.Auth {
			var entry xdr.SorobanAuthorizationEntry
			if err := xdr.SafeUnmarshalBase64(a, &entry); err != nil {
				return nil, fmt.Errorf("failed to decode auth entry %d: %w", i, err)
			}
			out.Auth = append(out.Auth, entry)
		}
	}

	return out, nil
}

// Send transaction statuses reported by the RPC server.
const (
	SendStatusPending       = "PENDING"
	SendStatusDuplicate     = "DUPLICATE"
	SendStatusTryAgainLater = "TRY_AGAIN_LATER"
	SendStatusError         = "ERROR"
)

// SendTransactionResponse is the raw result of sendTransaction.
type SendTransactionResponse struct {
	Status         string `json:"status,omitempty"`
	Hash           string `json:"hash,omitempty"`
	ErrorResultXDR string `json:"errorResultXdr,omitempty"`
	Error          string `json:"error,omitempty"`
	LatestLedger   uint32 `json:"latestLedger,omitempty"`
}

// SubmitResult is an accepted submission as returned to API callers.
type SubmitResult struct {
	Status string  `json:"status"`
	Hash   *string `json:"hash"`
}

// RejectedError is a submission the network refused.
type RejectedError struct {
	Message string
	Hash    string
}

func (e *RejectedError) Error() string {
	return e.Message
}

// Outcome normalizes a send response into an accepted result or a *RejectedError.
func (r *SendTransactionResponse) Outcome() (*SubmitResult, error) {
	if r.Error != "" || r.Status == SendStatusError {
		msg := decodeResultCode(r.ErrorResultXDR)
		if msg == "" {
			msg = r.Error
		}
		if msg == "" {
			msg = "Unknown transaction error"
		}
		return nil, &RejectedError{Message: msg, Hash: r.Hash}
	}

	result := &SubmitResult{Status: r.Status}
	if result.Status == "" {
		result.Status = "SUCCESS"
	}
	if r.Hash != "" {
		hash := r.Hash
		result.Hash = &hash
	}
	return result, nil
}

// decodeResultCode turns an encoded TransactionResult into its result code
// name, e.g. "txBadSeq". It returns "" when the input is absent or undecodable.
func decodeResultCode(encoded string) string {
	if encoded == "" {
		return ""
	}
	var res xdr.TransactionResult
	if err := xdr.SafeUnmarshalBase64(encoded, &res); err != nil {
		return ""
	}
	name := strings.TrimPrefix(res.Result.Code.String(), "TransactionResultCode")
	if name == "" {
		return ""
	}
	return strings.ToLower(name[:1]) + name[1:]
}

// Final transaction statuses reported by getTransaction.
const (
	TxStatusSuccess  = "SUCCESS"
	TxStatusNotFound = "NOT_FOUND"
	TxStatusFailed   = "FAILED"
)

// GetTransactionResponse is the raw result of getTransaction.
type GetTransactionResponse struct {
	Status       string `json:"status"`
	LatestLedger uint32 `json:"latestLedger"`
	Ledger       uint32 `json:"ledger,omitempty"`
	CreatedAt    string `json:"createdAt,omitempty"`
	ResultXDR    string `json:"resultXdr,omitempty"`
}

// TxStatus is the observed state of a submitted transaction.
type TxStatus struct {
	Hash   string `json:"hash"`
	Status string `json:"status"`
	Ledger uint32 `json:"ledger,omitempty"`
	// Error holds the result code for failed transactions.
	Error string `json:"error,omitempty"`
}

// Final reports whether the status will not change anymore.
func (s TxStatus) Final() bool {
	return s.Status == TxStatusSuccess || s.Status == TxStatusFailed
}

// Totals is the aggregate ticket state read from the contract.
type Totals struct {
	Total     uint64  `json:"total"`
	LastOwner *string `json:"lastOwner"`
}

// MintRequest holds the parameters of a mint transaction.
type MintRequest struct {
	PublicKey string
	Recipient string
	Amount    uint32
}

// Submission is an accepted submission plus what the envelope says about it.
type Submission struct {
	Result SubmitResult
	// EnvelopeHash is the hash computed locally from the signed envelope.
	EnvelopeHash string
	Signer       string
}

// Hash returns the hash reported by the RPC server, or the envelope hash.
func (s *Submission) Hash() string {
	if s.Result.Hash != nil {
		return *s.Result.Hash
	}
	return s.EnvelopeHash
}
