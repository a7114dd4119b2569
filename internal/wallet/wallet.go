// ==================================
// File: internal/wallet/wallet.go
// ==================================
package wallet

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"gopkg.in/yaml.v3"
)

// ErrNotSigner is returned when the wallet is not a required signer of the message.
var ErrNotSigner = errors.New("wallet is not a required signer of the transaction")

// Wallet представляет кошелёк Solana.
type Wallet struct {
	PrivateKey solana.PrivateKey
	PublicKey  solana.PublicKey
}

// NewWallet создаёт новый кошелёк из base58-encoded приватного ключа.
func NewWallet(privateKeyBase58 string) (*Wallet, error) {
	raw, err := base58.Decode(privateKeyBase58)
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key: %w", err)
	}
	if len(raw) != 64 {
		return nil, fmt.Errorf("invalid private key length: expected 64 bytes, got %d", len(raw))
	}
	privateKey := solana.PrivateKey(raw)
	return &Wallet{
		PrivateKey: privateKey,
		PublicKey:  privateKey.PublicKey(),
	}, nil
}

// FileConfig is the wallets YAML document.
type FileConfig struct {
	Wallets []struct {
		Name       string `yaml:"name"`
		PrivateKey string `yaml:"private_key"`
	} `yaml:"wallets"`
}

// LoadWallets загружает кошельки из YAML-файла.
func LoadWallets(path string) (map[string]*Wallet, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	wallets := make(map[string]*Wallet, len(cfg.Wallets))
	for i, entry := range cfg.Wallets {
		if entry.Name == "" || entry.PrivateKey == "" {
			return nil, fmt.Errorf("wallet #%d: name and private_key are required", i+1)
		}
		w, err := NewWallet(entry.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("wallet %q: %w", entry.Name, err)
		}
		wallets[entry.Name] = w
	}
	if len(wallets) == 0 {
		return nil, errors.New("no wallets found in configuration")
	}
	return wallets, nil
}

// Resolve picks the trading wallet: an inline key wins, otherwise the named entry of the
// wallets file. An empty name is accepted when the file holds exactly one wallet.
func Resolve(privateKey, walletsFile, name string) (*Wallet, error) {
	if privateKey != "" {
		return NewWallet(privateKey)
	}
	wallets, err := LoadWallets(walletsFile)
	if err != nil {
		return nil, err
	}
	if name == "" {
		if len(wallets) != 1 {
			return nil, fmt.Errorf("wallet_name is required: %d wallets in %s", len(wallets), walletsFile)
		}
		for _, w := range wallets {
			return w, nil
		}
	}
	w, ok := wallets[name]
	if !ok {
		return nil, fmt.Errorf("wallet %q not found in %s", name, walletsFile)
	}
	return w, nil
}

// SignTransaction подписывает транзакцию, записывая подпись в слот кошелька.
// Transactions built by a remote service arrive with placeholder signatures; the slot is
// located by the wallet's position among the required signers.
func (w *Wallet) SignTransaction(tx *solana.Transaction) error {
	required := int(tx.Message.Header.NumRequiredSignatures)
	if required > len(tx.Message.AccountKeys) {
		return fmt.Errorf("malformed message: %d signers, %d keys", required, len(tx.Message.AccountKeys))
	}

	slot := -1
	for i := 0; i < required; i++ {
		if tx.Message.AccountKeys[i].Equals(w.PublicKey) {
			slot = i
			break
		}
	}
	if slot < 0 {
		return ErrNotSigner
	}

	content, err := tx.Message.MarshalBinary()
	if err != nil {
		return fmt.Errorf("serialize message: %w", err)
	}
	sig, err := w.PrivateKey.Sign(content)
	if err != nil {
		return fmt.Errorf("sign message: %w", err)
	}

	if len(tx.Signatures) < required {
		grown := make([]solana.Signature, required)
		copy(grown, tx.Signatures)
		tx.Signatures = grown
	}
	tx.Signatures[slot] = sig
	return nil
}

// String возвращает публичный ключ кошелька.
func (w *Wallet) String() string {
	return w.PublicKey.String()
}
