package app

import (
	"context"

	"github.com/brojonat/ticketchain/client"
	"github.com/stretchr/testify/mock"
)

type mockWallet struct {
	mock.Mock
}

func (m *mockWallet) IsConnected(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *mockWallet) RequestAccess(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *mockWallet) Address(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *mockWallet) NetworkDetails(ctx context.Context) (NetworkDetails, error) {
	args := m.Called(ctx)
	return args.Get(0).(NetworkDetails), args.Error(1)
}

func (m *mockWallet) SignTransaction(ctx context.Context, envelopeXDR string, opts SignOptions) (string, error) {
	args := m.Called(ctx, envelopeXDR, opts)
	return args.String(0), args.Error(1)
}

type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) ContractID() string {
	return m.Called().String(0)
}

func (m *mockAPI) GetTotals(ctx context.Context) *client.Totals {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*client.Totals)
}

func (m *mockAPI) BuildMintTxXDR(ctx context.Context, params client.MintParams) string {
	return m.Called(ctx, params).String(0)
}

func (m *mockAPI) SubmitTx(ctx context.Context, signedXDR string) (*client.SubmitResult, error) {
	args := m.Called(ctx, signedXDR)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*client.SubmitResult), args.Error(1)
}

type failingSession struct {
	err error
}

func (s failingSession) Load() (string, error) { return "", s.err }
func (s failingSession) Save(string) error     { return s.err }
func (s failingSession) Clear() error          { return s.err }
