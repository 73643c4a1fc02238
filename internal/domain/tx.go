package domain

import (
	"math/big"
	"time"
)

// TxRequest is a ledger write the submitter should broadcast.
type TxRequest struct {
	PoolID string
	Action Action
	To     string
	Data   []byte
}

// TxRecord tracks one in-flight logical action. It lives in process memory
// only and is dropped once the transaction is mined.
type TxRecord struct {
	Key    string
	PoolID string
	Action Action
	To     string
	Hash   string
	// Hashes lists every broadcast for this nonce, oldest first.
	Hashes      []string
	Nonce       uint64
	GasPrice    *big.Int
	GasLimit    uint64
	Escalations int
	Retries     int
	SubmittedAt time.Time
	LastSentAt  time.Time
}

// Clone returns a deep copy of r.
func (r TxRecord) Clone() TxRecord {
	out := r
	out.Hashes = append([]string(nil), r.Hashes...)
	if r.GasPrice != nil {
		out.GasPrice = new(big.Int).Set(r.GasPrice)
	}
	return out
}
