package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/brojonat/ticketchain/app"
	"github.com/brojonat/ticketchain/client"
	"github.com/charmbracelet/bubbles/cursor"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "GBRPYHIL2CI3FNQ4BXLFMNDLFJUNPU2HY3ZMFSHONUCEOASW7QC7OX2H"

type fakeWallet struct {
	connected bool
}

func (w *fakeWallet) IsConnected(context.Context) (bool, error)     { return w.connected, nil }
func (w *fakeWallet) RequestAccess(context.Context) (string, error) { return testKey, nil }
func (w *fakeWallet) Address(context.Context) (string, error)       { return testKey, nil }
func (w *fakeWallet) NetworkDetails(context.Context) (app.NetworkDetails, error) {
	return app.NetworkDetails{NetworkPassphrase: "Test SDF Network ; September 2015"}, nil
}
func (w *fakeWallet) SignTransaction(_ context.Context, envelope string, _ app.SignOptions) (string, error) {
	return "signed:" + envelope, nil
}

type fakeAPI struct {
	total  uint64
	minted []client.MintParams
}

func (a *fakeAPI) ContractID() string { return "CCONTRACT" }

func (a *fakeAPI) GetTotals(context.Context) *client.Totals {
	owner := testKey
	return &client.Totals{Total: a.total, LastOwner: &owner}
}

func (a *fakeAPI) BuildMintTxXDR(_ context.Context, params client.MintParams) string {
	a.minted = append(a.minted, params)
	return "envelope"
}

func (a *fakeAPI) SubmitTx(_ context.Context, signed string) (*client.SubmitResult, error) {
	hash := "0123456789abcdef"
	return &client.SubmitResult{Status: "PENDING", Hash: &hash}, nil
}

type harness struct {
	t       *testing.T
	model   Model
	router  *app.Router
	session *app.MemorySessionStore
	api     *fakeAPI
}

func newHarness(t *testing.T, route string, connected bool) *harness {
	t.Helper()
	router := app.NewRouter(route)
	session := app.NewMemorySessionStore()
	wallet := &fakeWallet{connected: connected}
	api := &fakeAPI{total: 3}

	connect := app.NewConnectPage(wallet, session, router, nil)
	main := app.NewMainPage(api, wallet, session, router, time.Hour, nil)
	t.Cleanup(main.Close)

	model := NewModel(context.Background(), connect, main, router)
	// A blinking cursor schedules ticks on every keystroke.
	model.amount.Cursor.SetMode(cursor.CursorStatic)
	model.recipient.Cursor.SetMode(cursor.CursorStatic)

	return &harness{
		t:       t,
		model:   model,
		router:  router,
		session: session,
		api:     api,
	}
}

// send delivers message and runs any resulting commands until none remain.
func (h *harness) send(message tea.Msg) {
	h.t.Helper()
	for message != nil {
		updated, cmd := h.model.Update(message)
		h.model = updated.(Model)
		if cmd == nil {
			return
		}
		message = cmd()
	}
}

func (h *harness) init() {
	h.t.Helper()
	if cmd := h.model.Init(); cmd != nil {
		h.send(cmd())
	}
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModel_ConnectAndMint(t *testing.T) {
	h := newHarness(t, app.RouteHome, true)
	h.init()
	assert.Contains(t, h.model.View(), "Connect Wallet")

	h.send(runes("c"))
	require.Equal(t, app.RouteMain, h.router.Current())

	saved, _ := h.session.Load()
	assert.Equal(t, testKey, saved)

	view := h.model.View()
	assert.Contains(t, view, "GBRP...OX2H")
	assert.Contains(t, view, "Total Tickets Minted")
	assert.Contains(t, view, "3")

	h.send(tea.KeyMsg{Type: tea.KeyEnter})
	require.Len(t, h.api.minted, 1)
	assert.Equal(t, client.MintParams{PublicKey: testKey, Recipient: testKey, Amount: 1}, h.api.minted[0])
	assert.Contains(t, h.model.View(), "Submitted: 0123...cdef (PENDING)")
}

func TestModel_EditAmountAndRecipient(t *testing.T) {
	h := newHarness(t, app.RouteMain, true)
	require.NoError(t, h.session.Save(testKey))
	h.init()

	h.send(tea.KeyMsg{Type: tea.KeyBackspace})
	h.send(runes("4"))

	h.send(tea.KeyMsg{Type: tea.KeyTab})
	for range len(testKey) {
		h.send(tea.KeyMsg{Type: tea.KeyBackspace})
	}
	h.send(runes("GOTHER"))

	h.send(tea.KeyMsg{Type: tea.KeyEnter})
	require.Len(t, h.api.minted, 1)
	assert.Equal(t, uint32(4), h.api.minted[0].Amount)
	assert.Equal(t, "GOTHER", h.api.minted[0].Recipient)
}

func TestModel_MintErrorShown(t *testing.T) {
	h := newHarness(t, app.RouteMain, true)
	require.NoError(t, h.session.Save(testKey))
	h.init()

	h.send(tea.KeyMsg{Type: tea.KeyBackspace})
	h.send(runes("x"))
	h.send(tea.KeyMsg{Type: tea.KeyEnter})

	assert.Empty(t, h.api.minted)
	assert.Contains(t, h.model.View(), `invalid amount "x"`)
}

func TestModel_WalletNotDetected(t *testing.T) {
	h := newHarness(t, app.RouteHome, false)
	h.init()

	h.send(runes("c"))
	assert.Equal(t, app.RouteHome, h.router.Current())
	assert.Contains(t, h.model.View(), "Wallet not detected. Create or import a keystore first.")
}

func TestModel_ReconnectAndSignOut(t *testing.T) {
	h := newHarness(t, app.RouteHome, true)
	require.NoError(t, h.session.Save(testKey))
	h.init()
	assert.Contains(t, h.model.View(), "Connected: "+testKey)

	h.send(runes("o"))
	require.Equal(t, app.RouteMain, h.router.Current())
	assert.Contains(t, h.model.View(), "Mint Ticket")

	h.send(tea.KeyMsg{Type: tea.KeyCtrlD})
	assert.Equal(t, app.RouteHome, h.router.Current())
	assert.Contains(t, h.model.View(), "Connect Wallet")

	saved, _ := h.session.Load()
	assert.Equal(t, "", saved)
}

func TestModel_MainWithoutSessionGoesHome(t *testing.T) {
	h := newHarness(t, app.RouteMain, true)
	h.init()

	assert.Equal(t, app.RouteHome, h.router.Current())
	assert.True(t, strings.Contains(h.model.View(), "Connect Wallet"))
}

func TestModel_Quit(t *testing.T) {
	h := newHarness(t, app.RouteHome, true)

	_, cmd := h.model.Update(runes("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())

	_, cmd = h.model.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}
