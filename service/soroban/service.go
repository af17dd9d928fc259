package soroban

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/ticketchain/service/metrics"
	"github.com/stellar/go/txnbuild"
	"github.com/stellar/go/xdr"
)

// PlaceholderAccount is the source account used for read-only simulations.
// Simulations are never submitted, so it needs neither funds nor a signature.
const PlaceholderAccount = "GAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAWHF"

// Contract entry points.
const (
	FnGetTotalTickets    = "get_total_tickets"
	FnGetLastTicketOwner = "get_last_ticket_owner"
	FnMintTicket         = "mint_ticket"
)

const (
	readTimeout  = 30  // seconds
	buildTimeout = 180 // seconds
)

// ErrContractNotConfigured is returned by every contract operation when no contract ID is set.
var ErrContractNotConfigured = errors.New("SOROBAN_CONTRACT_ID is not set")

// ErrAccountNotFound is returned when the source account does not exist on the ledger.
var ErrAccountNotFound = errors.New("account not found")

// Service builds, simulates and submits ticket contract transactions.
type Service struct {
	rpc               RPCClient
	contractID        string
	networkPassphrase string
	metrics           *metrics.Metrics
	logger            *slog.Logger
}

// NewService creates a new Service.
// If metrics is nil, no metrics will be recorded.
func NewService(rpcClient RPCClient, contractID, networkPassphrase string, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{
		rpc:               rpcClient,
		contractID:        contractID,
		networkPassphrase: networkPassphrase,
		metrics:           m,
		logger:            logger,
	}
}

// ContractID returns the configured contract ID.
func (s *Service) ContractID() string {
	return s.contractID
}

// NetworkPassphrase returns the passphrase envelopes are built and parsed under.
func (s *Service) NetworkPassphrase() string {
	return s.networkPassphrase
}

// GetTotals reads the ticket total and the last owner by simulation.
// A failed total simulation yields zero totals; a failed owner simulation
// yields a nil owner. Only transport failures are returned as errors.
func (s *Service) GetTotals(ctx context.Context) (*Totals, error) {
	if s.contractID == "" {
		return nil, ErrContractNotConfigured
	}

	totals := &Totals{}

	totalVal, ok, err := s.simulateRead(ctx, FnGetTotalTickets)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.recordDegraded("total")
		return totals, nil
	}
	// A successful simulation without a return value counts as zero.
	if totalVal != nil {
		native, err := scValToNative(*totalVal)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to decode total", "error", err)
			s.recordDegraded("total")
			return totals, nil
		}
		total, ok := toUint64(native)
		if !ok {
			s.logger.WarnContext(ctx, "unexpected total value", "value", native)
			s.recordDegraded("total")
			return totals, nil
		}
		totals.Total = total
	}

	ownerVal, ok, err := s.simulateRead(ctx, FnGetLastTicketOwner)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.recordDegraded("last_owner")
	} else if ownerVal != nil {
		native, err := scValToNative(*ownerVal)
		switch {
		case err != nil:
			s.logger.WarnContext(ctx, "failed to decode last owner", "error", err)
			s.recordDegraded("last_owner")
		case native != nil:
			if owner, ok := native.(string); ok {
				totals.LastOwner = &owner
			} else {
				s.logger.WarnContext(ctx, "unexpected last owner value", "value", native)
				s.recordDegraded("last_owner")
			}
		}
	}

	if s.metrics != nil {
		s.metrics.RecordTicketTotal(totals.Total)
	}
	s.logger.InfoContext(ctx, "totals read", "total", totals.Total, "last_owner", totals.LastOwner)
	return totals, nil
}

// simulateRead simulates a no-argument contract call from the placeholder account.
// ok is false when the simulation reported an error; a successful simulation
// may still carry a nil value.
func (s *Service) simulateRead(ctx context.Context, function string) (val *xdr.ScVal, ok bool, err error) {
	op, err := s.invokeOp(function)
	if err != nil {
		return nil, false, err
	}
	tx, err := txnbuild.NewTransaction(txnbuild.TransactionParams{
		SourceAccount:        &txnbuild.SimpleAccount{AccountID: PlaceholderAccount, Sequence: 0},
		IncrementSequenceNum: true,
		Operations:           []txnbuild.Operation{op},
		BaseFee:              txnbuild.MinBaseFee,
		Preconditions:        txnbuild.Preconditions{TimeBounds: txnbuild.NewTimeout(readTimeout)},
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to build %s transaction: %w", function, err)
	}
	envelope, err := tx.Base64()
	if err != nil {
		return nil, false, fmt.Errorf("failed to encode %s transaction: %w", function, err)
	}

	outcome, err := s.simulate(ctx, envelope)
	if err != nil {
		return nil, false, err
	}

	switch o := outcome.(type) {
	case *SimulationFailure:
		s.logger.WarnContext(ctx, "simulation error", "function", function, "error", o.Message)
		if s.metrics != nil {
			s.metrics.RecordSimulationError(function)
		}
		return nil, false, nil
	case *SimulationSuccess:
		s.logger.DebugContext(ctx, "simulation result", "function", function, "has_value", o.ReturnValue != nil)
		return o.ReturnValue, true, nil
	default:
		return nil, false, fmt.Errorf("unexpected simulation outcome %T", outcome)
	}
}

func (s *Service) simulate(ctx context.Context, envelope string) (SimulationOutcome, error) {
	start := time.Now()
	resp, err := s.rpc.SimulateTransaction(ctx, envelope)
	s.recordRPC("simulateTransaction", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to simulate transaction: %w", err)
	}
	return resp.Outcome()
}

// BuildMintTx builds and prepares a mint_ticket transaction for the caller to sign.
func (s *Service) BuildMintTx(ctx context.Context, req MintRequest) (string, error) {
	xdrEnvelope, err := s.buildMintTx(ctx, req)
	if s.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		s.metrics.RecordMintBuild(status)
	}
	return xdrEnvelope, err
}

func (s *Service) buildMintTx(ctx context.Context, req MintRequest) (string, error) {
	if s.contractID == "" {
		return "", ErrContractNotConfigured
	}

	recipient, err := addressToScVal(req.Recipient)
	if err != nil {
		return "", err
	}

	sequence, err := s.accountSequence(ctx, req.PublicKey)
	if err != nil {
		return "", err
	}
	s.logger.InfoContext(ctx, "account loaded", "public_key", req.PublicKey, "sequence", sequence)

	op, err := s.invokeOp(FnMintTicket, recipient, u32ScVal(req.Amount))
	if err != nil {
		return "", err
	}
	op.SourceAccount = req.PublicKey

	tx, err := s.buildTx(req.PublicKey, sequence, op, txnbuild.MinBaseFee)
	if err != nil {
		return "", err
	}
	envelope, err := tx.Base64()
	if err != nil {
		return "", fmt.Errorf("failed to encode mint transaction: %w", err)
	}

	// Prepare: simulate, then rebuild with the footprint, auth and resource fee.
	outcome, err := s.simulate(ctx, envelope)
	if err != nil {
		return "", err
	}
	var sim *SimulationSuccess
	switch o := outcome.(type) {
	case *SimulationFailure:
		if s.metrics != nil {
			s.metrics.RecordSimulationError(FnMintTicket)
		}
		return "", fmt.Errorf("transaction simulation failed: %s", o.Message)
	case *SimulationSuccess:
		sim = o
	}
	if sim.TransactionData == nil {
		return "", fmt.Errorf("transaction simulation returned no transaction data")
	}

	op.Auth = sim.Auth
	op.Ext = xdr.TransactionExt{V: 1, SorobanData: sim.TransactionData}

	prepared, err := s.buildTx(req.PublicKey, sequence, op, txnbuild.MinBaseFee+sim.MinResourceFee)
	if err != nil {
		return "", err
	}
	out, err := prepared.Base64()
	if err != nil {
		return "", fmt.Errorf("failed to encode prepared transaction: %w", err)
	}

	s.logger.InfoContext(ctx, "mint transaction built",
		"recipient", req.Recipient,
		"amount", req.Amount,
		"resource_fee", sim.MinResourceFee,
	)
	return out, nil
}

// buildTx builds a single operation transaction from a fresh account value so
// the sequence increment of one build never leaks into the next.
func (s *Service) buildTx(source string, sequence int64, op *txnbuild.InvokeHostFunction, fee int64) (*txnbuild.Transaction, error) {
	tx, err := txnbuild.NewTransaction(txnbuild.TransactionParams{
		SourceAccount:        &txnbuild.SimpleAccount{AccountID: source, Sequence: sequence},
		IncrementSequenceNum: true,
		Operations:           []txnbuild.Operation{op},
		BaseFee:              fee,
		Preconditions:        txnbuild.Preconditions{TimeBounds: txnbuild.NewTimeout(buildTimeout)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build transaction: %w", err)
	}
	return tx, nil
}

func (s *Service) invokeOp(function string, args ...xdr.ScVal) (*txnbuild.InvokeHostFunction, error) {
	contract, err := parseScAddress(s.contractID)
	if err != nil {
		return nil, err
	}
	if args == nil {
		args = []xdr.ScVal{}
	}
	return &txnbuild.InvokeHostFunction{
		HostFunction: xdr.HostFunction{
			Type: xdr.HostFunctionTypeHostFunctionTypeInvokeContract,
			InvokeContract: &xdr.InvokeContractArgs{
				ContractAddress: contract,
				FunctionName:    xdr.ScSymbol(function),
				Args:            args,
			},
		},
	}, nil
}

// accountSequence loads the current sequence number of an account.
func (s *Service) accountSequence(ctx context.Context, address string) (int64, error) {
	var accountID xdr.AccountId
	if err := accountID.SetAddress(address); err != nil {
		return 0, fmt.Errorf("invalid public key %q: %w", address, err)
	}
	key := xdr.LedgerKey{
		Type:    xdr.LedgerEntryTypeAccount,
		Account: &xdr.LedgerKeyAccount{AccountId: accountID},
	}
	encodedKey, err := xdr.MarshalBase64(key)
	if err != nil {
		return 0, fmt.Errorf("failed to encode ledger key: %w", err)
	}

	start := time.Now()
	resp, err := s.rpc.GetLedgerEntries(ctx, []string{encodedKey})
	s.recordRPC("getLedgerEntries", start, err)
	if err != nil {
		return 0, fmt.Errorf("failed to load account %s: %w", address, err)
	}
	if len(resp.Entries) == 0 {
		return 0, fmt.Errorf("%w: %s", ErrAccountNotFound, address)
	}

	var data xdr.LedgerEntryData
	if err := xdr.SafeUnmarshalBase64(resp.Entries[0].XDR, &data); err != nil {
		return 0, fmt.Errorf("failed to decode account entry: %w", err)
	}
	if data.Account == nil {
		return 0, fmt.Errorf("ledger entry for %s is not an account", address)
	}
	return int64(data.Account.SeqNum), nil
}

// SubmitTx sends a signed envelope to the network.
// A refusal by the network is returned as *RejectedError.
func (s *Service) SubmitTx(ctx context.Context, signedXDR string) (*Submission, error) {
	parsed, err := txnbuild.TransactionFromXDR(signedXDR)
	if err != nil {
		s.recordSubmission("error")
		return nil, fmt.Errorf("invalid signed transaction: %w", err)
	}

	sub := &Submission{}
	if tx, ok := parsed.Transaction(); ok {
		sub.Signer = tx.SourceAccount().AccountID
		sub.EnvelopeHash, err = tx.HashHex(s.networkPassphrase)
	} else if fb, ok := parsed.FeeBump(); ok {
		sub.Signer = fb.InnerTransaction().SourceAccount().AccountID
		sub.EnvelopeHash, err = fb.HashHex(s.networkPassphrase)
	}
	if err != nil {
		s.recordSubmission("error")
		return nil, fmt.Errorf("failed to hash transaction: %w", err)
	}

	start := time.Now()
	resp, err := s.rpc.SendTransaction(ctx, signedXDR)
	s.recordRPC("sendTransaction", start, err)
	if err != nil {
		s.recordSubmission("error")
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}
	s.logger.InfoContext(ctx, "transaction sent", "status", resp.Status, "hash", resp.Hash)

	result, err := resp.Outcome()
	if err != nil {
		s.recordSubmission("rejected")
		s.logger.ErrorContext(ctx, "transaction rejected", "error", err, "hash", resp.Hash)
		return nil, err
	}
	s.recordSubmission("accepted")
	sub.Result = *result
	return sub, nil
}

// TransactionStatus looks up a submitted transaction by hash.
func (s *Service) TransactionStatus(ctx context.Context, hash string) (*TxStatus, error) {
	start := time.Now()
	resp, err := s.rpc.GetTransaction(ctx, hash)
	s.recordRPC("getTransaction", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction %s: %w", hash, err)
	}

	status := &TxStatus{Hash: hash, Status: resp.Status, Ledger: resp.Ledger}
	if resp.Status == TxStatusFailed {
		status.Error = decodeResultCode(resp.ResultXDR)
		if status.Error == "" {
			status.Error = "transaction failed"
		}
	}
	return status, nil
}

func (s *Service) recordRPC(method string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	s.metrics.RecordRPCCall(method, status, time.Since(start).Seconds())
}

func (s *Service) recordDegraded(field string) {
	if s.metrics != nil {
		s.metrics.RecordTotalsDegraded(field)
	}
}

func (s *Service) recordSubmission(status string) {
	if s.metrics != nil {
		s.metrics.RecordSubmission(status)
	}
}
