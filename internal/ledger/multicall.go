package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// ErrMissing is returned for a key that no call in the batch produced.
var ErrMissing = errors.New("ledger: no value for key")

// Caller is the read side of an ethclient.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

type call3 struct {
	Target       common.Address
	AllowFailure bool
	CallData     []byte
}

type result3 struct {
	Success    bool
	ReturnData []byte
}

// MulticallReader executes a batch of calls in a single aggregate3 round
// trip. Each call may fail on its own without failing the batch.
type MulticallReader struct {
	caller  Caller
	address common.Address
}

// NewMulticallReader returns a reader that batches through the Multicall3
// contract at address.
func NewMulticallReader(caller Caller, address string) *MulticallReader {
	if address == "" {
		address = DefaultMulticallAddress
	}
	return &MulticallReader{caller: caller, address: common.HexToAddress(address)}
}

// ReadBatch executes calls and returns their decoded values keyed by each
// Return's Key. Only transport-level failures are returned as an error;
// individual reverts or undecodable outputs are recorded per key.
func (r *MulticallReader) ReadBatch(ctx context.Context, calls []Call) (*Results, error) {
	res := newResults()
	if len(calls) == 0 {
		return res, nil
	}

	packed := make([]call3, 0, len(calls))
	sent := make([]Call, 0, len(calls))
	for _, c := range calls {
		data, err := c.Calldata()
		if err != nil {
			res.fail(c, err)
			continue
		}
		if !common.IsHexAddress(c.Target) {
			res.fail(c, fmt.Errorf("ledger: %s: invalid target %q", c.Signature, c.Target))
			continue
		}
		packed = append(packed, call3{Target: common.HexToAddress(c.Target), AllowFailure: true, CallData: data})
		sent = append(sent, c)
	}
	if len(packed) == 0 {
		return res, nil
	}

	input, err := multicallABI.Pack("aggregate3", packed)
	if err != nil {
		return nil, fmt.Errorf("ledger: pack aggregate3: %w", err)
	}
	out, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &r.address, Data: input}, nil)
	if err != nil {
		return nil, fmt.Errorf("ledger: aggregate3: %w", err)
	}
	unpacked, err := multicallABI.Unpack("aggregate3", out)
	if err != nil {
		return nil, fmt.Errorf("ledger: unpack aggregate3: %w", err)
	}
	if len(unpacked) != 1 {
		return nil, fmt.Errorf("ledger: aggregate3 returned %d values", len(unpacked))
	}
	results := *abi.ConvertType(unpacked[0], new([]result3)).(*[]result3)
	if len(results) != len(sent) {
		return nil, fmt.Errorf("ledger: aggregate3 returned %d results for %d calls", len(results), len(sent))
	}

	for i, c := range sent {
		if !results[i].Success {
			res.fail(c, fmt.Errorf("ledger: %s on %s reverted", c.Signature, c.Target))
			continue
		}
		values, err := c.decode(results[i].ReturnData)
		if err != nil {
			res.fail(c, err)
			continue
		}
		for k, v := range values {
			res.values[k] = v
		}
	}
	return res, nil
}

// Results holds the outcome of a batch, keyed by Return.Key.
type Results struct {
	values map[string]Value
	errs   map[string]error
}

func newResults() *Results {
	return &Results{values: make(map[string]Value), errs: make(map[string]error)}
}

// NewResults returns an empty result set for readers other than
// MulticallReader.
func NewResults() *Results { return newResults() }

// Set stores v under key.
func (r *Results) Set(key string, v Value) {
	delete(r.errs, key)
	r.values[key] = v
}

// Fail records err for key.
func (r *Results) Fail(key string, err error) {
	delete(r.values, key)
	r.errs[key] = err
}

func (r *Results) fail(c Call, err error) {
	for _, ret := range c.Returns {
		r.errs[ret.Key] = err
	}
}

// Get returns the value for key or the reason it is unavailable.
func (r *Results) Get(key string) (Value, error) {
	if v, ok := r.values[key]; ok {
		return v, nil
	}
	if err, ok := r.errs[key]; ok {
		return Value{}, err
	}
	return Value{}, fmt.Errorf("%w %q", ErrMissing, key)
}

// Failed returns the keys whose call failed.
func (r *Results) Failed() map[string]error {
	out := make(map[string]error, len(r.errs))
	for k, v := range r.errs {
		out[k] = v
	}
	return out
}

// Len is the number of decoded values.
func (r *Results) Len() int { return len(r.values) }
