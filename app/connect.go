package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

const (
	RouteHome = "/"
	RouteMain = "/main"
)

const (
	msgWalletNotDetected = "Wallet not detected. Create or import a keystore first."
	msgNoPublicKey       = "Unable to get public key"
)

// Navigator moves the user between pages.
type Navigator interface {
	Navigate(route string)
}

// Router is a Navigator that remembers the current route.
type Router struct {
	mu      sync.Mutex
	current string
	history []string
}

// NewRouter returns a Router positioned at route.
func NewRouter(route string) *Router {
	return &Router{current: route}
}

func (r *Router) Navigate(route string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = route
	r.history = append(r.history, route)
}

// Current returns the last route navigated to.
func (r *Router) Current() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// History returns every navigation in order.
func (r *Router) History() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.history...)
}

// ConnectState is the state of the connect page.
type ConnectState int

const (
	Disconnected ConnectState = iota
	// Reconnectable means an identity was persisted by an earlier run; the
	// wallet has not been asked again.
	Reconnectable
	Connected
)

func (s ConnectState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Reconnectable:
		return "reconnectable"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// ConnectView is a snapshot of the connect page for rendering.
type ConnectView struct {
	State     ConnectState
	PublicKey string
	Loading   bool
	Error     string
}

// ConnectPage establishes which account the user acts as.
type ConnectPage struct {
	wallet  Wallet
	session SessionStore
	nav     Navigator
	logger  *slog.Logger

	mu        sync.Mutex
	state     ConnectState
	publicKey string
	loading   bool
	err       string
}

// NewConnectPage creates a connect page in the Disconnected state.
func NewConnectPage(wallet Wallet, session SessionStore, nav Navigator, logger *slog.Logger) *ConnectPage {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ConnectPage{
		wallet:  wallet,
		session: session,
		nav:     nav,
		logger:  logger,
	}
}

// Load restores a persisted identity, moving to Reconnectable.
func (p *ConnectPage) Load() error {
	key, err := p.session.Load()
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if key != "" {
		p.state = Reconnectable
		p.publicKey = key
	}
	return nil
}

// Connect asks the wallet for access, persists the address and opens the
// main page. On failure the page stays Disconnected with its error set.
func (p *ConnectPage) Connect(ctx context.Context) error {
	p.mu.Lock()
	p.err = ""
	p.loading = true
	p.mu.Unlock()

	key, err := p.connect(ctx)

	p.mu.Lock()
	p.loading = false
	if err != nil {
		p.err = err.Error()
		p.mu.Unlock()
		p.logger.ErrorContext(ctx, "wallet connection failed", "error", err)
		return err
	}
	p.state = Connected
	p.publicKey = key
	p.mu.Unlock()

	p.logger.InfoContext(ctx, "wallet connected", "public_key", key)
	p.nav.Navigate(RouteMain)
	return nil
}

func (p *ConnectPage) connect(ctx context.Context) (string, error) {
	connected, err := p.wallet.IsConnected(ctx)
	if err != nil {
		return "", err
	}
	if !connected {
		return "", errors.New(msgWalletNotDetected)
	}

	key, err := p.wallet.RequestAccess(ctx)
	if err != nil {
		return "", err
	}
	if key == "" {
		key, err = p.wallet.Address(ctx)
		if err != nil || key == "" {
			return "", errors.New(msgNoPublicKey)
		}
	}

	if err := p.session.Save(key); err != nil {
		return "", err
	}
	return key, nil
}

// Open goes to the main page with the persisted identity.
func (p *ConnectPage) Open() error {
	p.mu.Lock()
	state := p.state
	p.mu.Unlock()

	if state == Disconnected {
		return errors.New("Not connected")
	}
	p.nav.Navigate(RouteMain)
	return nil
}

// Disconnect forgets the identity.
func (p *ConnectPage) Disconnect() error {
	if err := p.session.Clear(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = Disconnected
	p.publicKey = ""
	p.err = ""
	return nil
}

func (p *ConnectPage) View() ConnectView {
	p.mu.Lock()
	defer p.mu.Unlock()
	return ConnectView{
		State:     p.state,
		PublicKey: p.publicKey,
		Loading:   p.loading,
		Error:     p.err,
	}
}
