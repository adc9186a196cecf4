package wire

import (
	"math"

	"github.com/juju/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// Value is one of UintValue, IntValue, FloatValue, DoubleValue, StringValue, BoolValue.
type Value interface{ isValue() }

type UintValue uint64
type IntValue int64
type FloatValue float32
type DoubleValue float64
type StringValue string
type BoolValue bool

func (UintValue) isValue()   {}
func (IntValue) isValue()    {}
func (FloatValue) isValue()  {}
func (DoubleValue) isValue() {}
func (StringValue) isValue() {}
func (BoolValue) isValue()   {}

// value oneof field offsets from first value field number
const (
	valueUint protowire.Number = iota
	valueInt
	valueFloat
	valueDouble
	valueString
	valueBool
	valueCount
)

func appendValue(b []byte, first protowire.Number, v Value) ([]byte, error) {
	switch v := v.(type) {
	case UintValue:
		b = protowire.AppendTag(b, first+valueUint, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(v))
	case IntValue:
		b = protowire.AppendTag(b, first+valueInt, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(v))
	case FloatValue:
		b = protowire.AppendTag(b, first+valueFloat, protowire.Fixed32Type)
		b = protowire.AppendFixed32(b, math.Float32bits(float32(v)))
	case DoubleValue:
		b = protowire.AppendTag(b, first+valueDouble, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(float64(v)))
	case StringValue:
		b = protowire.AppendTag(b, first+valueString, protowire.BytesType)
		b = protowire.AppendString(b, string(v))
	case BoolValue:
		b = protowire.AppendTag(b, first+valueBool, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(bool(v)))
	default:
		return nil, errors.NotValidf("value=%#v", v)
	}
	return b, nil
}

// isValueField reports whether num belongs to value oneof starting at first.
func isValueField(num, first protowire.Number) bool {
	return num >= first && num < first+valueCount
}

func consumeValue(num, first protowire.Number, typ protowire.Type, b []byte) (Value, int, error) {
	switch num - first {
	case valueUint:
		x, n, err := consumeVarint(typ, b)
		return UintValue(x), n, err
	case valueInt:
		x, n, err := consumeVarint(typ, b)
		return IntValue(int64(x)), n, err
	case valueFloat:
		if typ != protowire.Fixed32Type {
			return nil, 0, errWireType(num, typ)
		}
		x, n := protowire.ConsumeFixed32(b)
		if n < 0 {
			return nil, 0, protowire.ParseError(n)
		}
		return FloatValue(math.Float32frombits(x)), n, nil
	case valueDouble:
		if typ != protowire.Fixed64Type {
			return nil, 0, errWireType(num, typ)
		}
		x, n := protowire.ConsumeFixed64(b)
		if n < 0 {
			return nil, 0, protowire.ParseError(n)
		}
		return DoubleValue(math.Float64frombits(x)), n, nil
	case valueString:
		s, n, err := consumeBytes(typ, b)
		return StringValue(s), n, err
	case valueBool:
		x, n, err := consumeVarint(typ, b)
		return BoolValue(protowire.DecodeBool(x)), n, err
	}
	return nil, 0, errors.NotValidf("value field=%d", num)
}
