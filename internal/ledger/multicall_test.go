package ledger

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	poolA = "0x00000000000000000000000000000000000000a1"
	poolB = "0x00000000000000000000000000000000000000b2"
)

// fakeChain answers aggregate3 by looking up (target, selector) in a table.
type fakeChain struct {
	responses map[string][]byte // nil value means revert
	calls     int
	err       error
}

func respKey(target common.Address, selector []byte) string {
	return strings.ToLower(target.Hex()) + common.Bytes2Hex(selector)
}

func (f *fakeChain) on(target, signature string, out []byte) {
	if f.responses == nil {
		f.responses = make(map[string][]byte)
	}
	f.responses[respKey(common.HexToAddress(target), crypto.Keccak256([]byte(signature))[:4])] = out
}

func (f *fakeChain) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	method := multicallABI.Methods["aggregate3"]
	if !bytes.Equal(msg.Data[:4], method.ID) {
		return nil, errors.New("unexpected selector")
	}
	in, err := method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, err
	}
	calls := *abi.ConvertType(in[0], new([]call3)).(*[]call3)

	results := make([]result3, len(calls))
	for i, c := range calls {
		out, ok := f.responses[respKey(c.Target, c.CallData[:4])]
		if ok && out != nil {
			results[i] = result3{Success: true, ReturnData: out}
		}
	}
	return method.Outputs.Pack(results)
}

func packWords(t *testing.T, types []string, vals ...any) []byte {
	t.Helper()
	args := make(abi.Arguments, len(types))
	for i, ty := range types {
		typ, err := abi.NewType(ty, "", nil)
		require.NoError(t, err)
		args[i] = abi.Argument{Type: typ}
	}
	out, err := args.Pack(vals...)
	require.NoError(t, err)
	return out
}

func TestReadBatchIsolatesFailures(t *testing.T) {
	chain := &fakeChain{}
	chain.on(poolA, "totalBalance()", packWords(t, []string{"uint256"}, big.NewInt(42)))
	chain.on(poolA, "order()", packWords(t, []string{"uint256", "uint256", "uint256", "uint256"},
		big.NewInt(1), big.NewInt(2), big.NewInt(3), big.NewInt(4)))
	chain.on(poolB, "totalBalance()", nil)
	chain.on(poolB, "submissionPeriod()", packWords(t, []string{"bool"}, true))

	reader := NewMulticallReader(chain, "")
	res, err := reader.ReadBatch(context.Background(), []Call{
		NewCall(poolA, "totalBalance()", Ret("a/reserve", AsFixed(18))),
		NewCall(poolA, "order()",
			Ret("a/o1", AsUint()), Ret("a/o2", AsUint()), Ret("a/o3", AsUint()), Ret("a/o4", AsUint())),
		NewCall(poolB, "totalBalance()", Ret("b/reserve", AsFixed(18))),
		NewCall(poolB, "submissionPeriod()", Ret("b/sub", AsBool())),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, chain.calls)

	v, err := res.Get("a/reserve")
	require.NoError(t, err)
	n, err := v.Int()
	require.NoError(t, err)
	assert.Equal(t, int64(42), n.Int64())
	assert.Equal(t, 18, v.Decimals())

	v, err = res.Get("a/o4")
	require.NoError(t, err)
	u, err := v.Uint64()
	require.NoError(t, err)
	assert.Equal(t, uint64(4), u)

	_, err = res.Get("b/reserve")
	assert.ErrorContains(t, err, "reverted")

	v, err = res.Get("b/sub")
	require.NoError(t, err)
	b, err := v.Bool()
	require.NoError(t, err)
	assert.True(t, b)

	_, err = res.Get("nope")
	assert.ErrorIs(t, err, ErrMissing)
	assert.Len(t, res.Failed(), 1)
}

func TestReadBatchUndecodableOutput(t *testing.T) {
	chain := &fakeChain{}
	chain.on(poolA, "name()", []byte{0x01})

	res, err := NewMulticallReader(chain, "").ReadBatch(context.Background(), []Call{
		NewCall(poolA, "name()", Ret("a/name", AsString())),
	})
	require.NoError(t, err)
	_, err = res.Get("a/name")
	assert.Error(t, err)
}

func TestReadBatchTransportError(t *testing.T) {
	chain := &fakeChain{err: errors.New("connection refused")}
	_, err := NewMulticallReader(chain, "").ReadBatch(context.Background(), []Call{
		NewCall(poolA, "totalBalance()", Ret("a/reserve", AsFixed(18))),
	})
	assert.ErrorContains(t, err, "connection refused")
}

func TestReadBatchBadCallNeverSent(t *testing.T) {
	chain := &fakeChain{}
	res, err := NewMulticallReader(chain, "").ReadBatch(context.Background(), []Call{
		NewCall("not-an-address", "totalBalance()", Ret("x", AsUint())),
		NewCall(poolA, "broken(", Ret("y", AsUint())),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, chain.calls)
	_, err = res.Get("x")
	assert.Error(t, err)
	_, err = res.Get("y")
	assert.Error(t, err)
}
