package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/stellar/go/keypair"
	"github.com/stellar/go/txnbuild"
	"golang.org/x/term"
)

// ErrWalletNotDetected is returned when no keystore exists to unlock.
var ErrWalletNotDetected = errors.New("wallet not detected")

// NetworkDetails describes the network a wallet is configured for.
type NetworkDetails struct {
	Network           string `json:"network"`
	NetworkPassphrase string `json:"networkPassphrase"`
	SorobanRPCURL     string `json:"sorobanRpcUrl"`
}

// SignOptions carries the passphrase and expected signer for a signature.
type SignOptions struct {
	NetworkPassphrase string
	Address           string
}

// Wallet is a key holder able to approve and sign transactions.
type Wallet interface {
	IsConnected(ctx context.Context) (bool, error)
	// RequestAccess asks the user to approve access and returns their address.
	RequestAccess(ctx context.Context) (string, error)
	Address(ctx context.Context) (string, error)
	NetworkDetails(ctx context.Context) (NetworkDetails, error)
	// SignTransaction returns the signed envelope for an unsigned base64 envelope.
	SignTransaction(ctx context.Context, envelopeXDR string, opts SignOptions) (string, error)
}

// PasswordFunc supplies a keystore password. The caller zeroes the result.
type PasswordFunc func(prompt string) ([]byte, error)

// TerminalPassword reads a password from the terminal without echo.
func TerminalPassword(prompt string) ([]byte, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil, errors.New("stdin is not a terminal: run interactively to enter the keystore password")
	}
	fmt.Fprint(os.Stderr, prompt)
	defer fmt.Fprintln(os.Stderr)

	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}
	if len(raw) == 0 {
		return nil, errors.New("password cannot be empty")
	}
	return raw, nil
}

// StaticPassword returns a PasswordFunc that always answers with password.
func StaticPassword(password string) PasswordFunc {
	return func(string) ([]byte, error) {
		return []byte(password), nil
	}
}

// KeystoreWallet is a Wallet backed by an encrypted keystore file. The
// keypair is decrypted once, on the first access request or signature.
type KeystoreWallet struct {
	path     string
	network  NetworkDetails
	password PasswordFunc

	mu sync.Mutex
	kp *keypair.Full
}

// NewKeystoreWallet returns a wallet for the keystore at path.
func NewKeystoreWallet(path string, network NetworkDetails, password PasswordFunc) *KeystoreWallet {
	return &KeystoreWallet{path: path, network: network, password: password}
}

// IsConnected reports whether a keystore exists.
func (w *KeystoreWallet) IsConnected(ctx context.Context) (bool, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat keystore: %w", err)
	}
	return info.Size() > 0, nil
}

// RequestAccess unlocks the keystore and returns its address.
func (w *KeystoreWallet) RequestAccess(ctx context.Context) (string, error) {
	kp, err := w.unlock()
	if err != nil {
		return "", err
	}
	return kp.Address(), nil
}

// Address returns the keystore address without unlocking it.
func (w *KeystoreWallet) Address(ctx context.Context) (string, error) {
	ks, err := ReadKeystore(w.path)
	if err != nil {
		return "", err
	}
	return ks.Address, nil
}

func (w *KeystoreWallet) NetworkDetails(ctx context.Context) (NetworkDetails, error) {
	return w.network, nil
}

// SignTransaction signs a base64 envelope with the keystore key.
func (w *KeystoreWallet) SignTransaction(ctx context.Context, envelopeXDR string, opts SignOptions) (string, error) {
	kp, err := w.unlock()
	if err != nil {
		return "", err
	}
	if opts.Address != "" && opts.Address != kp.Address() {
		return "", fmt.Errorf("wallet holds %s, cannot sign for %s", kp.Address(), opts.Address)
	}

	passphrase := opts.NetworkPassphrase
	if passphrase == "" {
		passphrase = w.network.NetworkPassphrase
	}

	generic, err := txnbuild.TransactionFromXDR(envelopeXDR)
	if err != nil {
		return "", fmt.Errorf("failed to parse transaction: %w", err)
	}
	tx, ok := generic.Transaction()
	if !ok {
		return "", errors.New("fee bump transactions are not supported")
	}

	signed, err := tx.Sign(passphrase, kp)
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}
	encoded, err := signed.Base64()
	if err != nil {
		return "", fmt.Errorf("failed to encode signed transaction: %w", err)
	}
	return encoded, nil
}

// Lock forgets the decrypted keypair.
func (w *KeystoreWallet) Lock() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.kp = nil
}

func (w *KeystoreWallet) unlock() (*keypair.Full, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.kp != nil {
		return w.kp, nil
	}

	connected, err := w.IsConnected(context.Background())
	if err != nil {
		return nil, err
	}
	if !connected {
		return nil, ErrWalletNotDetected
	}
	if w.password == nil {
		return nil, errors.New("no password source configured")
	}

	password, err := w.password("Keystore password: ")
	if err != nil {
		return nil, err
	}
	defer clear(password)

	kp, err := OpenKeystore(w.path, password)
	if err != nil {
		return nil, err
	}
	w.kp = kp
	return kp, nil
}
