package wire

import (
	"github.com/juju/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// fieldFunc consumes value of field num from b and returns consumed length.
// Returning 0 without error means unknown field, walk skips it.
type fieldFunc func(num protowire.Number, typ protowire.Type, b []byte) (int, error)

func walk(b []byte, f fieldFunc) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return errors.Annotate(protowire.ParseError(n), "tag")
		}
		b = b[n:]
		n, err := f(num, typ, b)
		if err != nil {
			return errors.Annotatef(err, "field=%d", num)
		}
		if n == 0 {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return errors.Annotatef(protowire.ParseError(n), "skip field=%d", num)
			}
		}
		b = b[n:]
	}
	return nil
}

func errWireType(num protowire.Number, typ protowire.Type) error {
	return errors.NotValidf("field=%d wire type=%d", num, typ)
}

func consumeVarint(typ protowire.Type, b []byte) (uint64, int, error) {
	if typ != protowire.VarintType {
		return 0, 0, errWireType(0, typ)
	}
	x, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, 0, protowire.ParseError(n)
	}
	return x, n, nil
}

func consumeBytes(typ protowire.Type, b []byte) ([]byte, int, error) {
	if typ != protowire.BytesType {
		return nil, 0, errWireType(0, typ)
	}
	x, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, protowire.ParseError(n)
	}
	return x, n, nil
}

func appendMessage(b []byte, num protowire.Number, m []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, m)
}

func appendUint(b []byte, num protowire.Number, x uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, x)
}

func appendBool(b []byte, num protowire.Number, x bool) []byte {
	return appendUint(b, num, protowire.EncodeBool(x))
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

// consumeSingle decodes message m which has at most one interesting varint field=1.
func consumeSingle(m []byte) (uint64, error) {
	var x uint64
	err := walk(m, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != 1 {
			return 0, nil
		}
		v, n, err := consumeVarint(typ, b)
		x = v
		return n, err
	})
	return x, err
}
