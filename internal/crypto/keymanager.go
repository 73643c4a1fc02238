// Package crypto resolves the keeper's signing key and signs ledger
// transactions with it.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// pbkdf2Iterations is the OWASP-recommended minimum for HMAC-SHA256.
	pbkdf2Iterations = 480_000
	saltLen          = 16
	aesKeyLen        = 32
	currentVersion   = 1
)

// keyFile is the on-disk format for an encrypted private key. Binary fields
// use standard base64.
type keyFile struct {
	Version    int    `json:"version"`
	Address    string `json:"address"`
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// KeyConfig tells LoadKey where the keeper's private key comes from.
type KeyConfig struct {
	// RawPrivateKey is a hex-encoded key, with or without 0x prefix. It takes
	// precedence over the encrypted file.
	RawPrivateKey    string
	EncryptedKeyPath string
	KeyPassword      string
}

// EncryptKey seals a hex-encoded secp256k1 key with a password using
// PBKDF2-HMAC-SHA256 and AES-256-GCM. The result is the JSON key file.
func EncryptKey(privateKeyHex string, password string) ([]byte, error) {
	if password == "" {
		return nil, errors.New("crypto: password must not be empty")
	}

	key, err := parseKey(privateKeyHex)
	if err != nil {
		return nil, err
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("crypto: generating salt: %w", err)
	}
	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("crypto: generating nonce: %w", err)
	}

	out := keyFile{
		Version:    currentVersion,
		Address:    ethcrypto.PubkeyToAddress(key.PublicKey).Hex(),
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(gcm.Seal(nil, nonce, ethcrypto.FromECDSA(key), nil)),
	}
	return json.MarshalIndent(out, "", "  ")
}

// DecryptKey opens a key file produced by EncryptKey.
func DecryptKey(encrypted []byte, password string) (*ecdsa.PrivateKey, error) {
	if password == "" {
		return nil, errors.New("crypto: password must not be empty")
	}

	var stored keyFile
	if err := json.Unmarshal(encrypted, &stored); err != nil {
		return nil, fmt.Errorf("crypto: parsing key file: %w", err)
	}
	if stored.Version != currentVersion {
		return nil, fmt.Errorf("crypto: unsupported key file version %d", stored.Version)
	}

	salt, err := base64.StdEncoding.DecodeString(stored.Salt)
	if err != nil {
		return nil, fmt.Errorf("crypto: decoding salt: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(stored.Nonce)
	if err != nil {
		return nil, fmt.Errorf("crypto: decoding nonce: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(stored.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("crypto: decoding ciphertext: %w", err)
	}

	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("crypto: decryption failed (wrong password?): %w", err)
	}

	key, err := ethcrypto.ToECDSA(plaintext)
	if err != nil {
		return nil, fmt.Errorf("crypto: decrypted key is invalid: %w", err)
	}
	if stored.Address != "" && !strings.EqualFold(stored.Address, ethcrypto.PubkeyToAddress(key.PublicKey).Hex()) {
		return nil, errors.New("crypto: key file address does not match decrypted key")
	}
	return key, nil
}

// LoadKey resolves the private key: the raw key wins, then the encrypted
// file. It fails if neither is configured.
func LoadKey(cfg KeyConfig) (*ecdsa.PrivateKey, error) {
	if cfg.RawPrivateKey != "" {
		return parseKey(cfg.RawPrivateKey)
	}

	if cfg.EncryptedKeyPath != "" {
		data, err := os.ReadFile(cfg.EncryptedKeyPath)
		if err != nil {
			return nil, fmt.Errorf("crypto: reading key file: %w", err)
		}
		return DecryptKey(data, cfg.KeyPassword)
	}

	return nil, errors.New("crypto: no private key source configured (set private_key or encrypted_key_path)")
}

func parseKey(privateKeyHex string) (*ecdsa.PrivateKey, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x"))
	if err != nil {
		return nil, fmt.Errorf("crypto: invalid private key hex: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("crypto: expected 32-byte key, got %d bytes", len(raw))
	}
	key, err := ethcrypto.ToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("crypto: invalid private key: %w", err)
	}
	return key, nil
}

func newGCM(password string, salt []byte) (cipher.AEAD, error) {
	derived := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, aesKeyLen, sha256.New)
	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, fmt.Errorf("crypto: creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: creating GCM: %w", err)
	}
	return gcm, nil
}
