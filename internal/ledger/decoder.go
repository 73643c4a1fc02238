package ledger

import (
	"errors"
	"fmt"
	"math/big"

	"cosmossdk.io/math"
)

// Kind is the shape of a decoded return value.
type Kind int

const (
	KindString Kind = iota + 1
	KindUint
	KindFixed
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindUint:
		return "uint"
	case KindFixed:
		return "fixed"
	case KindBool:
		return "bool"
	default:
		return "unknown"
	}
}

// Decoder turns one ABI return word into a Value. The set of decoders is
// closed; build one with AsString, AsUint, AsFixed or AsBool.
type Decoder struct {
	kind     Kind
	decimals int
}

func AsString() Decoder { return Decoder{kind: KindString} }

func AsUint() Decoder { return Decoder{kind: KindUint} }

// AsFixed decodes a uint256 that carries the given number of decimals.
func AsFixed(decimals int) Decoder { return Decoder{kind: KindFixed, decimals: decimals} }

func AsBool() Decoder { return Decoder{kind: KindBool} }

// Kind returns the decoder's value shape.
func (d Decoder) Kind() Kind { return d.kind }

func (d Decoder) abiType() (string, error) {
	switch d.kind {
	case KindString:
		return "string", nil
	case KindUint, KindFixed:
		return "uint256", nil
	case KindBool:
		return "bool", nil
	default:
		return "", fmt.Errorf("ledger: unknown decoder kind %d", d.kind)
	}
}

func (d Decoder) decode(raw any) (Value, error) {
	v := Value{kind: d.kind, decimals: d.decimals}
	switch d.kind {
	case KindString:
		s, ok := raw.(string)
		if !ok {
			return Value{}, fmt.Errorf("ledger: expected string, got %T", raw)
		}
		v.text = s
	case KindUint, KindFixed:
		n, ok := raw.(*big.Int)
		if !ok || n == nil {
			return Value{}, fmt.Errorf("ledger: expected uint256, got %T", raw)
		}
		if n.BitLen() > math.MaxBitLen {
			return Value{}, fmt.Errorf("ledger: value exceeds %d bits", math.MaxBitLen)
		}
		v.num = math.NewIntFromBigInt(n)
	case KindBool:
		b, ok := raw.(bool)
		if !ok {
			return Value{}, fmt.Errorf("ledger: expected bool, got %T", raw)
		}
		v.flag = b
	default:
		return Value{}, fmt.Errorf("ledger: unknown decoder kind %d", d.kind)
	}
	return v, nil
}

// ErrWrongKind is returned when a Value is read as a shape it does not hold.
var ErrWrongKind = errors.New("ledger: value has a different kind")

// Value is one decoded return value.
type Value struct {
	kind     Kind
	decimals int
	text     string
	num      math.Int
	flag     bool
}

func (v Value) Kind() Kind { return v.kind }

// Decimals is the fixed-point precision for KindFixed values, 0 otherwise.
func (v Value) Decimals() int { return v.decimals }

// Int returns the raw integer of a uint or fixed-point value.
func (v Value) Int() (math.Int, error) {
	if v.kind != KindUint && v.kind != KindFixed {
		return math.Int{}, fmt.Errorf("%w: want uint, have %s", ErrWrongKind, v.kind)
	}
	return v.num, nil
}

// Uint64 returns a uint value that fits in 64 bits.
func (v Value) Uint64() (uint64, error) {
	n, err := v.Int()
	if err != nil {
		return 0, err
	}
	if !n.IsUint64() {
		return 0, fmt.Errorf("ledger: %s does not fit in uint64", n)
	}
	return n.Uint64(), nil
}

func (v Value) Bool() (bool, error) {
	if v.kind != KindBool {
		return false, fmt.Errorf("%w: want bool, have %s", ErrWrongKind, v.kind)
	}
	return v.flag, nil
}

func (v Value) Text() (string, error) {
	if v.kind != KindString {
		return "", fmt.Errorf("%w: want string, have %s", ErrWrongKind, v.kind)
	}
	return v.text, nil
}

// UintValue wraps n as a KindUint value.
func UintValue(n math.Int) Value { return Value{kind: KindUint, num: n} }

// FixedValue wraps n as a KindFixed value with the given decimals.
func FixedValue(n math.Int, decimals int) Value {
	return Value{kind: KindFixed, num: n, decimals: decimals}
}

func BoolValue(b bool) Value { return Value{kind: KindBool, flag: b} }

func StringValue(s string) Value { return Value{kind: KindString, text: s} }
