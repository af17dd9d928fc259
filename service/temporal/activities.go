package temporal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/ticketchain/service/db"
	"github.com/brojonat/ticketchain/service/metrics"
	natspkg "github.com/brojonat/ticketchain/service/nats"
	"github.com/brojonat/ticketchain/service/soroban"
)

// StatusTimeout is recorded when a submission never reached a final status.
const StatusTimeout = "TIMEOUT"

// ConfirmSubmissionInput contains the input parameters for tracking a submission.
type ConfirmSubmissionInput struct {
	Hash         string        `json:"hash"`
	Signer       string        `json:"signer"`
	PollInterval time.Duration `json:"poll_interval"`
	MaxPolls     int           `json:"max_polls"`
}

// ConfirmSubmissionResult contains the final state of a tracked submission.
type ConfirmSubmissionResult struct {
	Hash   string  `json:"hash"`
	Status string  `json:"status"`
	Ledger uint32  `json:"ledger,omitempty"`
	Error  *string `json:"error,omitempty"`
	Polls  int     `json:"polls"`
}

// CheckTransactionInput contains parameters for the CheckTransaction activity.
type CheckTransactionInput struct {
	Hash string `json:"hash"`
}

// CheckTransactionResult contains the observed status of a transaction.
type CheckTransactionResult struct {
	Status string `json:"status"`
	Ledger uint32 `json:"ledger,omitempty"`
	Error  string `json:"error,omitempty"`
	Final  bool   `json:"final"`
}

// RecordConfirmationInput contains parameters for the RecordConfirmation activity.
type RecordConfirmationInput struct {
	Hash   string `json:"hash"`
	Signer string `json:"signer"`
	Status string `json:"status"`
	Ledger uint32 `json:"ledger,omitempty"`
	Error  string `json:"error,omitempty"`
}

// TransactionChecker looks up submitted transactions.
// This allows for easy mocking in tests.
type TransactionChecker interface {
	TransactionStatus(ctx context.Context, hash string) (*soroban.TxStatus, error)
}

// StoreInterface defines the database operations needed by activities.
type StoreInterface interface {
	UpdateSubmissionStatus(context.Context, db.UpdateSubmissionStatusParams) (*db.Submission, error)
}

// PublisherInterface defines the NATS publishing operations needed by activities.
type PublisherInterface interface {
	PublishTicketEvent(ctx context.Context, event *natspkg.TicketEvent) error
}

// Activities holds the dependencies needed by Temporal activities.
// Store and publisher are optional.
type Activities struct {
	checker   TransactionChecker
	store     StoreInterface
	publisher PublisherInterface
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewActivities creates a new Activities instance with explicit dependencies.
// If metrics is nil, no metrics will be recorded.
func NewActivities(checker TransactionChecker, store StoreInterface, publisher PublisherInterface, m *metrics.Metrics, logger *slog.Logger) *Activities {
	if logger == nil {
		logger = slog.Default()
	}
	return &Activities{
		checker:   checker,
		store:     store,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
	}
}

// CheckTransaction asks the RPC server for the status of a transaction.
func (a *Activities) CheckTransaction(ctx context.Context, input CheckTransactionInput) (*CheckTransactionResult, error) {
	status, err := a.checker.TransactionStatus(ctx, input.Hash)
	if err != nil {
		if a.metrics != nil {
			a.metrics.RecordConfirmationPoll("error")
		}
		return nil, fmt.Errorf("failed to check transaction %s: %w", input.Hash, err)
	}
	if a.metrics != nil {
		a.metrics.RecordConfirmationPoll(status.Status)
	}

	a.logger.DebugContext(ctx, "checked transaction",
		"hash", input.Hash,
		"status", status.Status,
		"ledger", status.Ledger,
	)

	return &CheckTransactionResult{
		Status: status.Status,
		Ledger: status.Ledger,
		Error:  status.Error,
		Final:  status.Final(),
	}, nil
}

// RecordConfirmation stores the final status and publishes a confirmed event.
// A submission missing from the store is logged and skipped.
func (a *Activities) RecordConfirmation(ctx context.Context, input RecordConfirmationInput) error {
	if a.metrics != nil {
		a.metrics.RecordSubmissionFinalStatus(input.Status)
	}

	if a.store != nil {
		params := db.UpdateSubmissionStatusParams{
			Hash:   input.Hash,
			Status: input.Status,
		}
		if input.Error != "" {
			msg := input.Error
			params.Error = &msg
		}
		if input.Ledger != 0 {
			ledger := int64(input.Ledger)
			params.Ledger = &ledger
		}

		_, err := a.store.UpdateSubmissionStatus(ctx, params)
		switch {
		case errors.Is(err, db.ErrNotFound):
			a.logger.WarnContext(ctx, "submission not recorded, skipping status update", "hash", input.Hash)
		case err != nil:
			return fmt.Errorf("failed to update submission %s: %w", input.Hash, err)
		}
	}

	if a.publisher != nil {
		event := natspkg.ConfirmedEvent(&soroban.TxStatus{
			Hash:   input.Hash,
			Status: input.Status,
			Ledger: input.Ledger,
			Error:  input.Error,
		}, input.Signer)
		if err := a.publisher.PublishTicketEvent(ctx, event); err != nil {
			return fmt.Errorf("failed to publish confirmation for %s: %w", input.Hash, err)
		}
	}

	a.logger.InfoContext(ctx, "submission confirmed",
		"hash", input.Hash,
		"status", input.Status,
		"ledger", input.Ledger,
	)
	return nil
}
