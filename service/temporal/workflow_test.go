package temporal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"
)

func newWorkflowEnv(t *testing.T) (*testsuite.TestWorkflowEnvironment, *Activities) {
	t.Helper()
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()

	activities := &Activities{}
	env.RegisterActivity(activities.CheckTransaction)
	env.RegisterActivity(activities.RecordConfirmation)
	return env, activities
}

func TestConfirmSubmissionWorkflow(t *testing.T) {
	tests := []struct {
		name          string
		checks        []*CheckTransactionResult
		maxPolls      int
		wantStatus    string
		wantPolls     int
		wantLedger    uint32
		wantErrorText string
	}{
		{
			name:       "success on first poll",
			checks:     []*CheckTransactionResult{{Status: "SUCCESS", Ledger: 42, Final: true}},
			maxPolls:   5,
			wantStatus: "SUCCESS",
			wantPolls:  1,
			wantLedger: 42,
		},
		{
			name: "success after not found",
			checks: []*CheckTransactionResult{
				{Status: "NOT_FOUND"},
				{Status: "NOT_FOUND"},
				{Status: "SUCCESS", Ledger: 99, Final: true},
			},
			maxPolls:   5,
			wantStatus: "SUCCESS",
			wantPolls:  3,
			wantLedger: 99,
		},
		{
			name: "failed transaction",
			checks: []*CheckTransactionResult{
				{Status: "NOT_FOUND"},
				{Status: "FAILED", Ledger: 7, Error: "txFailed", Final: true},
			},
			maxPolls:      5,
			wantStatus:    "FAILED",
			wantPolls:     2,
			wantLedger:    7,
			wantErrorText: "txFailed",
		},
		{
			name: "never final",
			checks: []*CheckTransactionResult{
				{Status: "NOT_FOUND"},
				{Status: "NOT_FOUND"},
				{Status: "NOT_FOUND"},
			},
			maxPolls:      3,
			wantStatus:    StatusTimeout,
			wantPolls:     3,
			wantErrorText: "not final after 3 polls",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, activities := newWorkflowEnv(t)

			call := 0
			env.OnActivity(activities.CheckTransaction, mock.Anything, CheckTransactionInput{Hash: "h"}).
				Return(func(_ context.Context, _ CheckTransactionInput) (*CheckTransactionResult, error) {
					result := tt.checks[call]
					call++
					return result, nil
				})

			var recorded RecordConfirmationInput
			env.OnActivity(activities.RecordConfirmation, mock.Anything, mock.Anything).
				Return(func(_ context.Context, input RecordConfirmationInput) error {
					recorded = input
					return nil
				})

			env.ExecuteWorkflow(ConfirmSubmissionWorkflow, ConfirmSubmissionInput{
				Hash:         "h",
				Signer:       "GSIGNER",
				PollInterval: time.Second,
				MaxPolls:     tt.maxPolls,
			})

			require.True(t, env.IsWorkflowCompleted())
			require.NoError(t, env.GetWorkflowError())

			var result ConfirmSubmissionResult
			require.NoError(t, env.GetWorkflowResult(&result))
			assert.Equal(t, tt.wantStatus, result.Status)
			assert.Equal(t, tt.wantPolls, result.Polls)
			assert.Equal(t, tt.wantLedger, result.Ledger)
			if tt.wantErrorText != "" {
				require.NotNil(t, result.Error)
				assert.Equal(t, tt.wantErrorText, *result.Error)
			} else {
				assert.Nil(t, result.Error)
			}

			assert.Equal(t, tt.wantPolls, call)
			assert.Equal(t, "h", recorded.Hash)
			assert.Equal(t, "GSIGNER", recorded.Signer)
			assert.Equal(t, tt.wantStatus, recorded.Status)
		})
	}
}

func TestConfirmSubmissionWorkflow_SleepsBetweenPolls(t *testing.T) {
	env, activities := newWorkflowEnv(t)
	startTime := env.Now()

	call := 0
	env.OnActivity(activities.CheckTransaction, mock.Anything, mock.Anything).
		Return(func(_ context.Context, _ CheckTransactionInput) (*CheckTransactionResult, error) {
			call++
			if call < 4 {
				return &CheckTransactionResult{Status: "NOT_FOUND"}, nil
			}
			return &CheckTransactionResult{Status: "SUCCESS", Final: true}, nil
		})
	env.OnActivity(activities.RecordConfirmation, mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(ConfirmSubmissionWorkflow, ConfirmSubmissionInput{
		Hash:         "h",
		PollInterval: 5 * time.Second,
		MaxPolls:     10,
	})
	require.NoError(t, env.GetWorkflowError())

	// Three sleeps between four polls
	assert.GreaterOrEqual(t, env.Now().Sub(startTime), 15*time.Second)
}

func TestConfirmSubmissionWorkflow_DefaultsApplied(t *testing.T) {
	env, activities := newWorkflowEnv(t)

	env.OnActivity(activities.CheckTransaction, mock.Anything, mock.Anything).
		Return(&CheckTransactionResult{Status: "NOT_FOUND"}, nil)
	env.OnActivity(activities.RecordConfirmation, mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(ConfirmSubmissionWorkflow, ConfirmSubmissionInput{Hash: "h"})
	require.NoError(t, env.GetWorkflowError())

	var result ConfirmSubmissionResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, defaultMaxPolls, result.Polls)
	assert.Equal(t, StatusTimeout, result.Status)
}

func TestConfirmSubmissionWorkflow_CheckFails(t *testing.T) {
	env, activities := newWorkflowEnv(t)

	env.OnActivity(activities.CheckTransaction, mock.Anything, mock.Anything).
		Return(nil, errors.New("rpc down"))

	env.ExecuteWorkflow(ConfirmSubmissionWorkflow, ConfirmSubmissionInput{Hash: "h", MaxPolls: 3})

	require.True(t, env.IsWorkflowCompleted())
	err := env.GetWorkflowError()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to check transaction")
	env.AssertNotCalled(t, "RecordConfirmation", mock.Anything, mock.Anything)
}

func TestConfirmSubmissionWorkflow_RecordFails(t *testing.T) {
	env, activities := newWorkflowEnv(t)

	env.OnActivity(activities.CheckTransaction, mock.Anything, mock.Anything).
		Return(&CheckTransactionResult{Status: "SUCCESS", Final: true}, nil)
	env.OnActivity(activities.RecordConfirmation, mock.Anything, mock.Anything).
		Return(errors.New("db down"))

	env.ExecuteWorkflow(ConfirmSubmissionWorkflow, ConfirmSubmissionInput{Hash: "h"})

	err := env.GetWorkflowError()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to record confirmation")
}
