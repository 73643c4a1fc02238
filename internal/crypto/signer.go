package crypto

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/alanyoungcy/poolkeeper/internal/domain"
)

// Signer signs ledger transactions for a single account on a single chain.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int
	signer  types.Signer
}

// NewSigner binds key to chainID.
func NewSigner(key *ecdsa.PrivateKey, chainID int64) *Signer {
	id := big.NewInt(chainID)
	return &Signer{
		key:     key,
		address: ethcrypto.PubkeyToAddress(key.PublicKey),
		chainID: id,
		signer:  types.LatestSignerForChainID(id),
	}
}

// Address returns the account the signer signs for.
func (s *Signer) Address() common.Address { return s.address }

// ChainID returns the chain the signer is bound to.
func (s *Signer) ChainID() *big.Int { return new(big.Int).Set(s.chainID) }

// SignTx signs tx with replay protection for the bound chain.
func (s *Signer) SignTx(tx *types.Transaction) (*types.Transaction, error) {
	signed, err := types.SignTx(tx, s.signer, s.key)
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: %w: %w", domain.ErrSigningFailed, err)
	}
	return signed, nil
}
