package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testKey = "GBRPYHIL2CI3FNQ4BXLFMNDLFJUNPU2HY3ZMFSHONUCEOASW7QC7OX2H"

func TestConnectPage_Load(t *testing.T) {
	t.Run("empty session", func(t *testing.T) {
		page := NewConnectPage(&mockWallet{}, NewMemorySessionStore(), NewRouter(RouteHome), nil)
		require.NoError(t, page.Load())
		assert.Equal(t, Disconnected, page.View().State)
	})

	t.Run("persisted key", func(t *testing.T) {
		session := NewMemorySessionStore()
		require.NoError(t, session.Save(testKey))

		page := NewConnectPage(&mockWallet{}, session, NewRouter(RouteHome), nil)
		require.NoError(t, page.Load())

		view := page.View()
		assert.Equal(t, Reconnectable, view.State)
		assert.Equal(t, testKey, view.PublicKey)
	})

	t.Run("session error", func(t *testing.T) {
		page := NewConnectPage(&mockWallet{}, failingSession{errors.New("disk gone")}, NewRouter(RouteHome), nil)
		assert.EqualError(t, page.Load(), "disk gone")
	})
}

func TestConnectPage_Connect(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(w *mockWallet)
		wantErr   string
		wantState ConnectState
	}{
		{
			name: "success",
			setup: func(w *mockWallet) {
				w.On("IsConnected", mock.Anything).Return(true, nil)
				w.On("RequestAccess", mock.Anything).Return(testKey, nil)
			},
			wantState: Connected,
		},
		{
			name: "address fallback",
			setup: func(w *mockWallet) {
				w.On("IsConnected", mock.Anything).Return(true, nil)
				w.On("RequestAccess", mock.Anything).Return("", nil)
				w.On("Address", mock.Anything).Return(testKey, nil)
			},
			wantState: Connected,
		},
		{
			name: "wallet not detected",
			setup: func(w *mockWallet) {
				w.On("IsConnected", mock.Anything).Return(false, nil)
			},
			wantErr:   "Wallet not detected. Create or import a keystore first.",
			wantState: Disconnected,
		},
		{
			name: "access rejected",
			setup: func(w *mockWallet) {
				w.On("IsConnected", mock.Anything).Return(true, nil)
				w.On("RequestAccess", mock.Anything).Return("", ErrInvalidPassword)
			},
			wantErr:   "invalid password",
			wantState: Disconnected,
		},
		{
			name: "no public key",
			setup: func(w *mockWallet) {
				w.On("IsConnected", mock.Anything).Return(true, nil)
				w.On("RequestAccess", mock.Anything).Return("", nil)
				w.On("Address", mock.Anything).Return("", nil)
			},
			wantErr:   "Unable to get public key",
			wantState: Disconnected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wallet := &mockWallet{}
			tt.setup(wallet)
			session := NewMemorySessionStore()
			router := NewRouter(RouteHome)
			page := NewConnectPage(wallet, session, router, nil)

			err := page.Connect(context.Background())
			view := page.View()
			saved, _ := session.Load()

			assert.Equal(t, tt.wantState, view.State)
			assert.False(t, view.Loading)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantErr, err.Error())
				assert.Equal(t, tt.wantErr, view.Error)
				assert.Equal(t, "", saved)
				assert.Equal(t, RouteHome, router.Current())
				return
			}

			require.NoError(t, err)
			assert.Equal(t, "", view.Error)
			assert.Equal(t, testKey, view.PublicKey)
			assert.Equal(t, testKey, saved)
			assert.Equal(t, RouteMain, router.Current())
			wallet.AssertExpectations(t)
		})
	}
}

func TestConnectPage_ConnectClearsPreviousError(t *testing.T) {
	wallet := &mockWallet{}
	wallet.On("IsConnected", mock.Anything).Return(false, nil).Once()
	wallet.On("IsConnected", mock.Anything).Return(true, nil)
	wallet.On("RequestAccess", mock.Anything).Return(testKey, nil)

	page := NewConnectPage(wallet, NewMemorySessionStore(), NewRouter(RouteHome), nil)
	require.Error(t, page.Connect(context.Background()))
	assert.NotEmpty(t, page.View().Error)

	require.NoError(t, page.Connect(context.Background()))
	assert.Empty(t, page.View().Error)
}

func TestConnectPage_PersistFailure(t *testing.T) {
	wallet := &mockWallet{}
	wallet.On("IsConnected", mock.Anything).Return(true, nil)
	wallet.On("RequestAccess", mock.Anything).Return(testKey, nil)
	router := NewRouter(RouteHome)

	page := NewConnectPage(wallet, failingSession{errors.New("read-only filesystem")}, router, nil)
	err := page.Connect(context.Background())

	require.Error(t, err)
	assert.Equal(t, Disconnected, page.View().State)
	assert.Empty(t, router.History())
}

func TestConnectPage_OpenAndDisconnect(t *testing.T) {
	session := NewMemorySessionStore()
	router := NewRouter(RouteHome)
	page := NewConnectPage(&mockWallet{}, session, router, nil)

	assert.Error(t, page.Open())

	require.NoError(t, session.Save(testKey))
	require.NoError(t, page.Load())
	require.NoError(t, page.Open())
	assert.Equal(t, RouteMain, router.Current())

	require.NoError(t, page.Disconnect())
	view := page.View()
	assert.Equal(t, Disconnected, view.State)
	assert.Equal(t, "", view.PublicKey)

	saved, _ := session.Load()
	assert.Equal(t, "", saved)
}

func TestConnectState_String(t *testing.T) {
	assert.Equal(t, "disconnected", Disconnected.String())
	assert.Equal(t, "reconnectable", Reconnectable.String())
	assert.Equal(t, "connected", Connected.String())
	assert.Equal(t, "unknown", ConnectState(9).String())
}
