package temporal

import (
	"fmt"
	"time"

	temporalsdk "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

var a *Activities // for type-safe activity invocation

const (
	defaultPollInterval = 2 * time.Second
	defaultMaxPolls     = 30
)

// ConfirmSubmissionWorkflow tracks a submitted transaction until the ledger
// reports a final status, then records that status.
//
// The workflow performs these steps:
// 1. Poll the RPC server for the transaction status (CheckTransaction activity)
// 2. Sleep between polls until the status is final or MaxPolls is reached
// 3. Record the final status, or TIMEOUT (RecordConfirmation activity)
func ConfirmSubmissionWorkflow(ctx workflow.Context, input ConfirmSubmissionInput) (*ConfirmSubmissionResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("ConfirmSubmissionWorkflow started", "hash", input.Hash)

	if input.PollInterval <= 0 {
		input.PollInterval = defaultPollInterval
	}
	if input.MaxPolls <= 0 {
		input.MaxPolls = defaultMaxPolls
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporalsdk.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    3,
		},
	})

	result := &ConfirmSubmissionResult{Hash: input.Hash}

	var check *CheckTransactionResult
	for result.Polls < input.MaxPolls {
		if result.Polls > 0 {
			if err := workflow.Sleep(ctx, input.PollInterval); err != nil {
				return result, err
			}
		}
		result.Polls++

		err := workflow.ExecuteActivity(ctx, a.CheckTransaction, CheckTransactionInput{Hash: input.Hash}).Get(ctx, &check)
		if err != nil {
			logger.Error("failed to check transaction", "hash", input.Hash, "error", err)
			errMsg := fmt.Sprintf("failed to check transaction: %v", err)
			result.Error = &errMsg
			return result, fmt.Errorf("failed to check transaction: %w", err)
		}

		logger.Debug("polled transaction", "hash", input.Hash, "status", check.Status, "poll", result.Polls)
		if check.Final {
			break
		}
	}

	record := RecordConfirmationInput{Hash: input.Hash, Signer: input.Signer}
	if check != nil && check.Final {
		record.Status = check.Status
		record.Ledger = check.Ledger
		record.Error = check.Error
	} else {
		record.Status = StatusTimeout
		record.Error = fmt.Sprintf("not final after %d polls", result.Polls)
	}

	result.Status = record.Status
	result.Ledger = record.Ledger
	if record.Error != "" {
		errMsg := record.Error
		result.Error = &errMsg
	}

	if err := workflow.ExecuteActivity(ctx, a.RecordConfirmation, record).Get(ctx, nil); err != nil {
		logger.Error("failed to record confirmation", "hash", input.Hash, "error", err)
		return result, fmt.Errorf("failed to record confirmation: %w", err)
	}

	logger.Info("ConfirmSubmissionWorkflow completed",
		"hash", input.Hash,
		"status", result.Status,
		"polls", result.Polls,
	)
	return result, nil
}
