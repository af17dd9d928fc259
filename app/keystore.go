package app

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/skip2/go-qrcode"
	"github.com/stellar/go/keypair"
	"golang.org/x/crypto/scrypt"
)

const keystoreVersion = 1

// scrypt parameters. N=2^18 needs ~256MB and takes about a second.
var (
	scryptN = 1 << 18
	scryptR = 8
	scryptP = 1
)

const (
	scryptKeyLen = 32
	saltLen      = 32
	nonceLen     = 12
)

// ErrInvalidPassword is returned when a keystore does not decrypt.
var ErrInvalidPassword = errors.New("invalid password")

// ErrKeystoreExists is returned when creating over a non-empty keystore file.
var ErrKeystoreExists = errors.New("keystore file already exists")

// KeystoreFile is the on-disk keystore. Only the address is readable
// without the password.
type KeystoreFile struct {
	Version    int    `json:"version"`
	Address    string `json:"address"`
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// CreateKeystore generates a new keypair and stores it encrypted under password.
// password must be zeroed by the caller after use.
func CreateKeystore(path string, password []byte) (string, error) {
	kp, err := keypair.Random()
	if err != nil {
		return "", fmt.Errorf("failed to generate keypair: %w", err)
	}
	if err := writeKeystore(path, kp, password); err != nil {
		return "", err
	}
	return kp.Address(), nil
}

// ImportKeystore stores an existing secret seed (S...) encrypted under password.
func ImportKeystore(path, seed string, password []byte) (string, error) {
	kp, err := keypair.ParseFull(seed)
	if err != nil {
		return "", fmt.Errorf("invalid secret seed: %w", err)
	}
	if err := writeKeystore(path, kp, password); err != nil {
		return "", err
	}
	return kp.Address(), nil
}

func writeKeystore(path string, kp *keypair.Full, password []byte) error {
	if len(password) == 0 {
		return errors.New("password cannot be empty")
	}
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		return fmt.Errorf("%s: %w", path, ErrKeystoreExists)
	}

	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}
	nonce := make([]byte, nonceLen)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}

	aead, err := keystoreCipher(password, salt)
	if err != nil {
		return err
	}

	plaintext := []byte(kp.Seed())
	defer clear(plaintext)
	ciphertext := aead.Seal(nil, nonce, plaintext, []byte(kp.Address()))

	data, err := json.MarshalIndent(KeystoreFile{
		Version:    keystoreVersion,
		Address:    kp.Address(),
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal keystore: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create keystore directory: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0600); err != nil {
		return fmt.Errorf("failed to write keystore: %w", err)
	}
	return nil
}

// ReadKeystore reads the keystore file without decrypting it.
func ReadKeystore(path string) (*KeystoreFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("keystore %s does not exist: %w", path, err)
		}
		return nil, fmt.Errorf("failed to read keystore: %w", err)
	}

	var ks KeystoreFile
	if err := json.Unmarshal(data, &ks); err != nil {
		return nil, fmt.Errorf("failed to parse keystore: %w", err)
	}
	if ks.Version != keystoreVersion {
		return nil, fmt.Errorf("unsupported keystore version %d", ks.Version)
	}
	return &ks, nil
}

// OpenKeystore decrypts the keystore and returns its keypair.
func OpenKeystore(path string, password []byte) (*keypair.Full, error) {
	ks, err := ReadKeystore(path)
	if err != nil {
		return nil, err
	}

	salt, err := base64.StdEncoding.DecodeString(ks.Salt)
	if err != nil {
		return nil, fmt.Errorf("failed to decode salt: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(ks.Nonce)
	if err != nil {
		return nil, fmt.Errorf("failed to decode nonce: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(ks.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext: %w", err)
	}

	aead, err := keystoreCipher(password, salt)
	if err != nil {
		return nil, err
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, []byte(ks.Address))
	if err != nil {
		return nil, ErrInvalidPassword
	}
	defer clear(plaintext)

	kp, err := keypair.ParseFull(string(plaintext))
	if err != nil {
		return nil, fmt.Errorf("keystore holds an invalid seed: %w", err)
	}
	if kp.Address() != ks.Address {
		return nil, fmt.Errorf("keystore address %s does not match its seed", ks.Address)
	}
	return kp, nil
}

func keystoreCipher(password, salt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key(password, salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	defer clear(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return aead, nil
}

// AddressQR renders address as a QR code for a terminal.
func AddressQR(address string) (string, error) {
	qr, err := qrcode.New(address, qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("failed to create QR code: %w", err)
	}
	return qr.ToSmallString(false), nil
}
