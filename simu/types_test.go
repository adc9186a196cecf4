package simu

import (
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValue(t *testing.T) {
	t.Parallel()

	cases := []struct {
		typ    string
		input  string
		expect SensorValue
	}{
		{"uint", "100000", Uint(100000)},
		{"int", "-200", Int(-200)},
		{"FLOAT", "1.5", Float(1.5)},
		{"double", "52.25", Double(52.25)},
		{"string", "hello world", Text("hello world")},
		{"bool", "true", Bool(true)},
	}
	for _, c := range cases {
		c := c
		t.Run(c.typ, func(t *testing.T) {
			vt, err := ParseValueType(c.typ)
			require.NoError(t, err)
			v, err := ParseValue(vt, c.input)
			require.NoError(t, err)
			assert.Equal(t, c.expect, v)
			w, err := v.toWire()
			require.NoError(t, err)
			assert.Equal(t, v, valueFromWire(w))
		})
	}
}

func TestParseValueError(t *testing.T) {
	t.Parallel()

	_, err := ParseValueType("unknown")
	assert.True(t, errors.IsNotValid(err))
	_, err = ParseValue(ValueUint, "-1")
	assert.True(t, errors.IsNotValid(err))
	_, err = ParseValue(ValueBool, "maybe")
	assert.True(t, errors.IsNotValid(err))
	_, err = ParseValue(ValueUnknown, "1")
	assert.True(t, errors.IsNotValid(err))
}

func TestStrings(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "unknown", SensorUnknown.String())
	assert.Equal(t, "pressure|altitude", (SensorPressure | SensorAltitude).String())
	assert.Equal(t, "gnss|0x10", (SensorGNSS | 16).String())
	assert.True(t, (SensorPressure | SensorGNSS).Has(SensorGNSS))
	assert.False(t, SensorPressure.Has(SensorUnknown))
	assert.Equal(t, "double", ValueDouble.String())
	assert.Equal(t, "value_type(9)", ValueType(9).String())
	assert.False(t, ValueType(9).Valid())
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "ping", PendingPing.String())
	assert.Equal(t, `"x"`, Text("x").String())
	assert.Equal(t, "-200", Int(-200).String())
	assert.Equal(t, "sensor id=3 name=baro type=pressure value=uint",
		SensorDescriptor{ID: 3, Name: "baro", Type: SensorPressure, ValueType: ValueUint}.String())
}
