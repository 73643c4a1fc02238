package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

const (
	defaultGasLimit     = uint64(1_500_000)
	defaultPollInterval = 3 * time.Second
)

// Backend is the slice of an ethclient needed to write transactions.
type Backend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// TxSigner signs transactions for one account.
type TxSigner interface {
	Address() common.Address
	SignTx(tx *types.Transaction) (*types.Transaction, error)
}

// WriterConfig tunes the Writer. Zero values fall back to defaults.
type WriterConfig struct {
	FallbackGasLimit uint64
	PollInterval     time.Duration
}

// Outgoing describes one signed broadcast. A zero GasLimit is estimated.
type Outgoing struct {
	To       string
	Data     []byte
	Nonce    uint64
	GasPrice *big.Int
	GasLimit uint64
}

// Sent is the result of a successful broadcast.
type Sent struct {
	Hash     string
	GasLimit uint64
}

// Receipt is the mined outcome of a transaction.
type Receipt struct {
	Hash        string
	Succeeded   bool
	BlockNumber uint64
	GasUsed     uint64
}

// Writer signs and broadcasts legacy transactions and watches for receipts.
type Writer struct {
	backend Backend
	signer  TxSigner
	cfg     WriterConfig
	logger  *slog.Logger
}

// NewWriter returns a Writer sending from signer's account through backend.
func NewWriter(backend Backend, signer TxSigner, cfg WriterConfig, logger *slog.Logger) *Writer {
	if cfg.FallbackGasLimit == 0 {
		cfg.FallbackGasLimit = defaultGasLimit
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	return &Writer{
		backend: backend,
		signer:  signer,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "ledger_writer")),
	}
}

// Dial connects to a JSON-RPC endpoint.
func Dial(ctx context.Context, rpcURL string) (*ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("ledger: dial rpc: %w", err)
	}
	return client, nil
}

// Address is the sending account.
func (w *Writer) Address() string { return w.signer.Address().Hex() }

// PendingNonce returns the next nonce for the sending account.
func (w *Writer) PendingNonce(ctx context.Context) (uint64, error) {
	n, err := w.backend.PendingNonceAt(ctx, w.signer.Address())
	if err != nil {
		return 0, fmt.Errorf("ledger: pending nonce: %w", err)
	}
	return n, nil
}

// SuggestGasPrice returns the network's suggested gas price in wei.
func (w *Writer) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	p, err := w.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger: suggest gas price: %w", err)
	}
	return p, nil
}

// Send signs and broadcasts out. When out.GasLimit is zero the limit is
// estimated with a 20% buffer, or the fallback limit if estimation fails.
func (w *Writer) Send(ctx context.Context, out Outgoing) (Sent, error) {
	if !common.IsHexAddress(out.To) {
		return Sent{}, fmt.Errorf("ledger: invalid destination %q", out.To)
	}
	if out.GasPrice == nil || out.GasPrice.Sign() <= 0 {
		return Sent{}, errors.New("ledger: gas price must be positive")
	}
	to := common.HexToAddress(out.To)

	gasLimit := out.GasLimit
	if gasLimit == 0 {
		est, err := w.backend.EstimateGas(ctx, ethereum.CallMsg{
			From:     w.signer.Address(),
			To:       &to,
			GasPrice: out.GasPrice,
			Data:     out.Data,
		})
		if err != nil {
			w.logger.Warn("gas estimate failed, using fallback limit",
				slog.String("to", out.To),
				slog.Uint64("limit", w.cfg.FallbackGasLimit),
				slog.String("error", err.Error()),
			)
			est = w.cfg.FallbackGasLimit
		}
		gasLimit = est * 12 / 10
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    out.Nonce,
		To:       &to,
		Value:    big.NewInt(0),
		Gas:      gasLimit,
		GasPrice: new(big.Int).Set(out.GasPrice),
		Data:     out.Data,
	})
	signed, err := w.signer.SignTx(tx)
	if err != nil {
		return Sent{}, fmt.Errorf("ledger: sign: %w", err)
	}
	if err := w.backend.SendTransaction(ctx, signed); err != nil {
		return Sent{}, fmt.Errorf("ledger: send: %w", err)
	}
	return Sent{Hash: signed.Hash().Hex(), GasLimit: gasLimit}, nil
}

// WaitMined polls for a receipt of any of hashes until one is mined or ctx
// ends. Replacements share a nonce, so at most one of them can be mined.
func (w *Writer) WaitMined(ctx context.Context, hashes ...string) (Receipt, error) {
	if len(hashes) == 0 {
		return Receipt{}, errors.New("ledger: no transaction hash to wait for")
	}
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		for _, hash := range hashes {
			receipt, err := w.backend.TransactionReceipt(ctx, common.HexToHash(hash))
			if err == nil && receipt != nil {
				out := Receipt{
					Hash:      hash,
					Succeeded: receipt.Status == types.ReceiptStatusSuccessful,
					GasUsed:   receipt.GasUsed,
				}
				if receipt.BlockNumber != nil {
					out.BlockNumber = receipt.BlockNumber.Uint64()
				}
				return out, nil
			}
			if err != nil && !errors.Is(err, ethereum.NotFound) && ctx.Err() == nil {
				w.logger.Debug("receipt lookup failed",
					slog.String("tx", hash),
					slog.String("error", err.Error()),
				)
			}
		}

		select {
		case <-ctx.Done():
			return Receipt{}, ctx.Err()
		case <-ticker.C:
		}
	}
}
