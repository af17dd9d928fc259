package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brojonat/ticketchain/client"
)

const (
	defaultRefreshDelay = 2 * time.Second
	defaultAmount       = "1"

	msgNotConnected     = "Not connected"
	msgNoContract       = "Set SOROBAN_CONTRACT_ID in the environment"
	msgBuildFailed      = "Failed to build transaction XDR. Check API logs."
	lastOwnerUnknown    = "-"
	lastOwnerNotPresent = "N/A"
)

// ErrMintInProgress is returned when Mint is called while a mint is running.
var ErrMintInProgress = errors.New("mint already in progress")

// TicketAPI is the server API the main page talks to.
type TicketAPI interface {
	ContractID() string
	GetTotals(ctx context.Context) *client.Totals
	BuildMintTxXDR(ctx context.Context, params client.MintParams) string
	SubmitTx(ctx context.Context, signedXDR string) (*client.SubmitResult, error)
}

// MainView is a snapshot of the main page for rendering.
type MainView struct {
	PublicKey  string
	Account    string
	Amount     string
	Recipient  string
	Total      uint64
	LastOwner  string
	Busy       bool
	Error      string
	LastResult *client.SubmitResult
}

// MainPage mints tickets for the connected account and shows totals.
type MainPage struct {
	api          TicketAPI
	wallet       Wallet
	session      SessionStore
	nav          Navigator
	refreshDelay time.Duration
	logger       *slog.Logger

	busy atomic.Bool

	mu         sync.Mutex
	publicKey  string
	amount     string
	recipient  string
	total      uint64
	lastOwner  string
	err        string
	lastResult *client.SubmitResult
	refresh    *time.Timer
	onChange   func()
}

// NewMainPage creates the main page. A zero refreshDelay uses 2s.
func NewMainPage(api TicketAPI, wallet Wallet, session SessionStore, nav Navigator, refreshDelay time.Duration, logger *slog.Logger) *MainPage {
	if refreshDelay == 0 {
		refreshDelay = defaultRefreshDelay
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &MainPage{
		api:          api,
		wallet:       wallet,
		session:      session,
		nav:          nav,
		refreshDelay: refreshDelay,
		logger:       logger,
		amount:       defaultAmount,
		lastOwner:    lastOwnerUnknown,
	}
}

// OnChange registers fn to be called whenever page state changes outside
// a direct call, e.g. when the delayed totals refresh lands.
func (p *MainPage) OnChange(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onChange = fn
}

// Mount loads the persisted identity and reads totals. Without an identity
// it sends the user back to the connect page.
func (p *MainPage) Mount(ctx context.Context) error {
	key, err := p.session.Load()
	if err != nil {
		return err
	}
	if key == "" {
		p.nav.Navigate(RouteHome)
		return nil
	}

	p.mu.Lock()
	p.publicKey = key
	p.recipient = key
	p.mu.Unlock()

	p.RefreshTotals(ctx)
	return nil
}

func (p *MainPage) SetAmount(amount string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.amount = amount
}

func (p *MainPage) SetRecipient(recipient string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.recipient = recipient
}

// RefreshTotals reads totals from the server. A failed read keeps the
// values already shown.
func (p *MainPage) RefreshTotals(ctx context.Context) {
	totals := p.api.GetTotals(ctx)
	if totals == nil {
		p.logger.WarnContext(ctx, "failed to load totals")
		return
	}

	p.mu.Lock()
	p.total = totals.Total
	if totals.LastOwner != nil && *totals.LastOwner != "" {
		p.lastOwner = *totals.LastOwner
	} else {
		p.lastOwner = lastOwnerNotPresent
	}
	p.mu.Unlock()

	p.logger.DebugContext(ctx, "totals loaded", "total", totals.Total)
	p.notify()
}

// Mint builds, signs and submits a mint for the current inputs, then
// schedules a totals refresh. Any failure stops the sequence and is shown
// as the page error.
func (p *MainPage) Mint(ctx context.Context) (*client.SubmitResult, error) {
	if !p.busy.CompareAndSwap(false, true) {
		return nil, ErrMintInProgress
	}
	defer p.busy.Store(false)

	p.mu.Lock()
	p.err = ""
	p.mu.Unlock()

	result, err := p.mint(ctx)

	p.mu.Lock()
	if err != nil {
		p.err = err.Error()
	} else {
		p.lastResult = result
	}
	p.mu.Unlock()

	if err != nil {
		p.logger.ErrorContext(ctx, "mint failed", "error", err)
		return nil, err
	}

	p.scheduleRefresh()
	return result, nil
}

func (p *MainPage) mint(ctx context.Context) (*client.SubmitResult, error) {
	p.mu.Lock()
	publicKey, amount, recipient := p.publicKey, p.amount, p.recipient
	p.mu.Unlock()

	if publicKey == "" {
		return nil, errors.New(msgNotConnected)
	}
	if p.api.ContractID() == "" {
		return nil, errors.New(msgNoContract)
	}

	details, err := p.wallet.NetworkDetails(ctx)
	if err != nil {
		return nil, err
	}

	address, err := p.wallet.Address(ctx)
	if err != nil || address == "" {
		address = publicKey
	}

	if recipient == "" {
		recipient = address
	}
	count, err := parseAmount(amount)
	if err != nil {
		return nil, err
	}

	p.logger.InfoContext(ctx, "building mint transaction",
		"public_key", address,
		"recipient", recipient,
		"amount", count,
	)
	envelope := p.api.BuildMintTxXDR(ctx, client.MintParams{
		PublicKey: address,
		Recipient: recipient,
		Amount:    count,
	})
	if envelope == "" {
		return nil, errors.New(msgBuildFailed)
	}

	signed, err := p.wallet.SignTransaction(ctx, envelope, SignOptions{
		NetworkPassphrase: details.NetworkPassphrase,
		Address:           address,
	})
	if err != nil {
		return nil, err
	}

	result, err := p.api.SubmitTx(ctx, signed)
	if err != nil {
		return nil, err
	}
	p.logger.InfoContext(ctx, "transaction submitted", "status", result.Status)
	return result, nil
}

func parseAmount(amount string) (uint32, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		amount = defaultAmount
	}
	n, err := strconv.ParseUint(amount, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: must be an integer between 0 and 4294967295", amount)
	}
	return uint32(n), nil
}

func (p *MainPage) scheduleRefresh() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.refresh != nil {
		p.refresh.Stop()
	}
	p.refresh = time.AfterFunc(p.refreshDelay, func() {
		p.RefreshTotals(context.Background())
	})
}

// Disconnect forgets the identity and returns to the connect page.
func (p *MainPage) Disconnect() error {
	if err := p.session.Clear(); err != nil {
		return err
	}

	p.mu.Lock()
	p.publicKey = ""
	p.recipient = ""
	p.err = ""
	p.mu.Unlock()

	p.nav.Navigate(RouteHome)
	return nil
}

// Close stops a pending totals refresh.
func (p *MainPage) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.refresh != nil {
		p.refresh.Stop()
		p.refresh = nil
	}
}

func (p *MainPage) View() MainView {
	p.mu.Lock()
	defer p.mu.Unlock()

	account := "Loading..."
	if p.publicKey != "" {
		account = TruncateKey(p.publicKey)
	}
	owner := p.lastOwner
	if owner != lastOwnerUnknown && owner != lastOwnerNotPresent {
		owner = TruncateKey(owner)
	}

	return MainView{
		PublicKey:  p.publicKey,
		Account:    account,
		Amount:     p.amount,
		Recipient:  p.recipient,
		Total:      p.total,
		LastOwner:  owner,
		Busy:       p.busy.Load(),
		Error:      p.err,
		LastResult: p.lastResult,
	}
}

func (p *MainPage) notify() {
	p.mu.Lock()
	fn := p.onChange
	p.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// TruncateKey shortens a key to its first and last four characters.
func TruncateKey(key string) string {
	if len(key) <= 8 {
		return key
	}
	return key[:4] + "..." + key[len(key)-4:]
}
