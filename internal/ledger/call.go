package ledger

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"
)

// Return names one output of a call and how to decode it. Key is the path
// under which the value appears in Results, e.g. "<pool>/reserve".
type Return struct {
	Key     string
	Decoder Decoder
}

// Ret is shorthand for a Return.
func Ret(key string, d Decoder) Return { return Return{Key: key, Decoder: d} }

// Call is one read in a batch. Signature is the canonical function
// signature, e.g. "find(address)".
type Call struct {
	Target    string
	Signature string
	Args      []any
	Returns   []Return
}

// NewCall builds a call without arguments.
func NewCall(target, signature string, returns ...Return) Call {
	return Call{Target: target, Signature: signature, Returns: returns}
}

// WithArgs returns a copy of c with the given arguments.
func (c Call) WithArgs(args ...any) Call {
	c.Args = args
	return c
}

// Calldata returns the ABI-encoded selector and arguments.
func (c Call) Calldata() ([]byte, error) {
	inputs, err := parseSignature(c.Signature)
	if err != nil {
		return nil, err
	}
	args := make(abi.Arguments, 0, len(inputs))
	for _, in := range inputs {
		t, err := abi.NewType(in, "", nil)
		if err != nil {
			return nil, fmt.Errorf("ledger: %s: input type %q: %w", c.Signature, in, err)
		}
		args = append(args, abi.Argument{Type: t})
	}
	packed, err := args.Pack(c.Args...)
	if err != nil {
		return nil, fmt.Errorf("ledger: %s: pack args: %w", c.Signature, err)
	}
	selector := crypto.Keccak256([]byte(c.Signature))[:4]
	return append(selector, packed...), nil
}

// decode splits raw return data into one Value per Return.
func (c Call) decode(data []byte) (map[string]Value, error) {
	outputs := make(abi.Arguments, 0, len(c.Returns))
	for _, r := range c.Returns {
		typ, err := r.Decoder.abiType()
		if err != nil {
			return nil, err
		}
		t, err := abi.NewType(typ, "", nil)
		if err != nil {
			return nil, fmt.Errorf("ledger: output type %q: %w", typ, err)
		}
		outputs = append(outputs, abi.Argument{Type: t})
	}
	raw, err := outputs.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("ledger: %s: unpack: %w", c.Signature, err)
	}
	if len(raw) != len(c.Returns) {
		return nil, fmt.Errorf("ledger: %s: expected %d outputs, got %d", c.Signature, len(c.Returns), len(raw))
	}
	out := make(map[string]Value, len(raw))
	for i, r := range c.Returns {
		v, err := r.Decoder.decode(raw[i])
		if err != nil {
			return nil, fmt.Errorf("ledger: %s: %s: %w", c.Signature, r.Key, err)
		}
		out[r.Key] = v
	}
	return out, nil
}

func parseSignature(sig string) ([]string, error) {
	open := strings.IndexByte(sig, '(')
	if open <= 0 || !strings.HasSuffix(sig, ")") {
		return nil, fmt.Errorf("ledger: malformed signature %q", sig)
	}
	inner := sig[open+1 : len(sig)-1]
	if inner == "" {
		return nil, nil
	}
	parts := strings.Split(inner, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
		if parts[i] == "" {
			return nil, fmt.Errorf("ledger: malformed signature %q", sig)
		}
	}
	return parts, nil
}
