package temporal

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/brojonat/ticketchain/service/db"
	natspkg "github.com/brojonat/ticketchain/service/nats"
	"github.com/brojonat/ticketchain/service/soroban"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// Mock transaction checker
type MockChecker struct {
	mock.Mock
}

func (m *MockChecker) TransactionStatus(ctx context.Context, hash string) (*soroban.TxStatus, error) {
	args := m.Called(ctx, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*soroban.TxStatus), args.Error(1)
}

// Mock Store
type MockStore struct {
	mock.Mock
}

func (m *MockStore) UpdateSubmissionStatus(ctx context.Context, params db.UpdateSubmissionStatusParams) (*db.Submission, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*db.Submission), args.Error(1)
}

func TestCheckTransaction(t *testing.T) {
	tests := []struct {
		name   string
		status *soroban.TxStatus
		want   *CheckTransactionResult
	}{
		{
			name:   "success is final",
			status: &soroban.TxStatus{Hash: "h", Status: soroban.TxStatusSuccess, Ledger: 12},
			want:   &CheckTransactionResult{Status: soroban.TxStatusSuccess, Ledger: 12, Final: true},
		},
		{
			name:   "failed is final",
			status: &soroban.TxStatus{Hash: "h", Status: soroban.TxStatusFailed, Ledger: 13, Error: "txFailed"},
			want:   &CheckTransactionResult{Status: soroban.TxStatusFailed, Ledger: 13, Error: "txFailed", Final: true},
		},
		{
			name:   "not found is pending",
			status: &soroban.TxStatus{Hash: "h", Status: soroban.TxStatusNotFound},
			want:   &CheckTransactionResult{Status: soroban.TxStatusNotFound},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := new(MockChecker)
			checker.On("TransactionStatus", mock.Anything, "h").Return(tt.status, nil)

			activities := NewActivities(checker, nil, nil, nil, slog.Default())
			got, err := activities.CheckTransaction(context.Background(), CheckTransactionInput{Hash: "h"})

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			checker.AssertExpectations(t)
		})
	}
}

func TestCheckTransaction_Error(t *testing.T) {
	checker := new(MockChecker)
	checker.On("TransactionStatus", mock.Anything, "h").Return(nil, errors.New("connection refused"))

	activities := NewActivities(checker, nil, nil, nil, nil)
	got, err := activities.CheckTransaction(context.Background(), CheckTransactionInput{Hash: "h"})

	require.Error(t, err)
	assert.Nil(t, got)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestRecordConfirmation_UpdatesStoreAndPublishes(t *testing.T) {
	store := new(MockStore)
	publisher := natspkg.NewMockPublisher()

	ledger := int64(77)
	store.On("UpdateSubmissionStatus", mock.Anything, db.UpdateSubmissionStatusParams{
		Hash:   "h",
		Status: soroban.TxStatusSuccess,
		Ledger: &ledger,
	}).Return(&db.Submission{Hash: "h", Status: soroban.TxStatusSuccess}, nil)

	activities := NewActivities(new(MockChecker), store, publisher, nil, nil)
	err := activities.RecordConfirmation(context.Background(), RecordConfirmationInput{
		Hash:   "h",
		Signer: "GSIGNER",
		Status: soroban.TxStatusSuccess,
		Ledger: 77,
	})

	require.NoError(t, err)
	store.AssertExpectations(t)

	events := publisher.GetPublishedEventsOfKind(natspkg.EventConfirmed)
	require.Len(t, events, 1)
	assert.Equal(t, "h", events[0].Hash)
	assert.Equal(t, "GSIGNER", events[0].Signer)
	assert.Equal(t, soroban.TxStatusSuccess, events[0].Status)
	assert.Equal(t, uint32(77), events[0].Ledger)
}

func TestRecordConfirmation_StoresError(t *testing.T) {
	store := new(MockStore)
	store.On("UpdateSubmissionStatus", mock.Anything, mock.MatchedBy(func(p db.UpdateSubmissionStatusParams) bool {
		return p.Hash == "h" && p.Status == StatusTimeout && p.Error != nil &&
			*p.Error == "not final after 3 polls" && p.Ledger == nil
	})).Return(&db.Submission{Hash: "h"}, nil)

	activities := NewActivities(new(MockChecker), store, nil, nil, nil)
	err := activities.RecordConfirmation(context.Background(), RecordConfirmationInput{
		Hash:   "h",
		Status: StatusTimeout,
		Error:  "not final after 3 polls",
	})

	require.NoError(t, err)
	store.AssertExpectations(t)
}

func TestRecordConfirmation_MissingSubmissionIsSkipped(t *testing.T) {
	store := new(MockStore)
	store.On("UpdateSubmissionStatus", mock.Anything, mock.Anything).Return(nil, db.ErrNotFound)
	publisher := natspkg.NewMockPublisher()

	activities := NewActivities(new(MockChecker), store, publisher, nil, nil)
	err := activities.RecordConfirmation(context.Background(), RecordConfirmationInput{
		Hash:   "h",
		Status: soroban.TxStatusSuccess,
	})

	require.NoError(t, err)
	assert.Len(t, publisher.GetPublishedEvents(), 1)
}

func TestRecordConfirmation_StoreError(t *testing.T) {
	store := new(MockStore)
	store.On("UpdateSubmissionStatus", mock.Anything, mock.Anything).Return(nil, errors.New("db down"))
	publisher := natspkg.NewMockPublisher()

	activities := NewActivities(new(MockChecker), store, publisher, nil, nil)
	err := activities.RecordConfirmation(context.Background(), RecordConfirmationInput{
		Hash:   "h",
		Status: soroban.TxStatusSuccess,
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	assert.Empty(t, publisher.GetPublishedEvents())
}

func TestRecordConfirmation_PublishError(t *testing.T) {
	publisher := natspkg.NewMockPublisher()
	publisher.SetPublishError(errors.New("nats down"))

	activities := NewActivities(new(MockChecker), nil, publisher, nil, nil)
	err := activities.RecordConfirmation(context.Background(), RecordConfirmationInput{
		Hash:   "h",
		Status: soroban.TxStatusFailed,
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "nats down")
}

func TestRecordConfirmation_NoBackends(t *testing.T) {
	activities := NewActivities(new(MockChecker), nil, nil, nil, nil)
	err := activities.RecordConfirmation(context.Background(), RecordConfirmationInput{
		Hash:   "h",
		Status: soroban.TxStatusSuccess,
	})
	assert.NoError(t, err)
}

func TestMockConfirmer(t *testing.T) {
	m := NewMockConfirmer()
	require.NoError(t, m.StartConfirmation(context.Background(), "h", "GSIGNER"))

	signer, ok := m.Started("h")
	assert.True(t, ok)
	assert.Equal(t, "GSIGNER", signer)

	m.SetError(errors.New("temporal down"))
	assert.Error(t, m.StartConfirmation(context.Background(), "h2", "GSIGNER"))
	_, ok = m.Started("h2")
	assert.False(t, ok)
}

func TestWorkflowID(t *testing.T) {
	assert.Equal(t, "confirm-submission-abc", workflowID("abc"))
}
