package simu

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/juju/errors"
	"github.com/openvario/ovsim/wire"
)

type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// PendingKind is the one request awaiting response.
type PendingKind int32

const (
	PendingNone PendingKind = iota
	PendingListSensors
	PendingUpdateSensor
	PendingPing
)

func (p PendingKind) String() string {
	switch p {
	case PendingNone:
		return "none"
	case PendingListSensors:
		return "list_sensors"
	case PendingUpdateSensor:
		return "update_sensor"
	case PendingPing:
		return "ping"
	}
	return fmt.Sprintf("pending(%d)", int32(p))
}

// SensorType is a bit set.
type SensorType uint32

const (
	SensorUnknown     SensorType = 0
	SensorPressure    SensorType = 1
	SensorTemperature SensorType = 2
	SensorAltitude    SensorType = 4
	SensorGNSS        SensorType = 8
)

func (t SensorType) Has(flag SensorType) bool { return flag != 0 && t&flag == flag }

func (t SensorType) String() string {
	if t == SensorUnknown {
		return "unknown"
	}
	names := make([]string, 0, 4)
	rest := t
	for _, f := range []struct {
		flag SensorType
		name string
	}{
		{SensorPressure, "pressure"},
		{SensorTemperature, "temperature"},
		{SensorAltitude, "altitude"},
		{SensorGNSS, "gnss"},
	} {
		if t.Has(f.flag) {
			names = append(names, f.name)
			rest &^= f.flag
		}
	}
	if rest != 0 {
		names = append(names, fmt.Sprintf("%#x", uint32(rest)))
	}
	return strings.Join(names, "|")
}

type ValueType int32

const (
	ValueUnknown ValueType = iota
	ValueUint
	ValueInt
	ValueFloat
	ValueDouble
	ValueString
	ValueBool
)

var valueTypeNames = [...]string{"unknown", "uint", "int", "float", "double", "string", "bool"}

func (v ValueType) Valid() bool { return v > ValueUnknown && v <= ValueBool }

func (v ValueType) String() string {
	if v >= 0 && int(v) < len(valueTypeNames) {
		return valueTypeNames[v]
	}
	return fmt.Sprintf("value_type(%d)", int32(v))
}

// ParseValueType accepts names as printed by ValueType.String, case insensitive.
func ParseValueType(s string) (ValueType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range valueTypeNames {
		if i != 0 && s == name {
			return ValueType(i), nil
		}
	}
	return ValueUnknown, errors.NotValidf("value type=%q", s)
}

type SensorDescriptor struct {
	ID        uint32
	Name      string
	Type      SensorType
	ValueType ValueType
}

func (d SensorDescriptor) String() string {
	return fmt.Sprintf("sensor id=%d name=%s type=%s value=%s", d.ID, d.Name, d.Type, d.ValueType)
}

// SensorValue is tagged union, only the field selected by Type is meaningful.
type SensorValue struct {
	Type   ValueType
	Uint   uint64
	Int    int64
	Float  float32
	Double float64
	Text   string
	Bool   bool
}

func Uint(x uint64) SensorValue    { return SensorValue{Type: ValueUint, Uint: x} }
func Int(x int64) SensorValue      { return SensorValue{Type: ValueInt, Int: x} }
func Float(x float32) SensorValue  { return SensorValue{Type: ValueFloat, Float: x} }
func Double(x float64) SensorValue { return SensorValue{Type: ValueDouble, Double: x} }
func Text(x string) SensorValue    { return SensorValue{Type: ValueString, Text: x} }
func Bool(x bool) SensorValue      { return SensorValue{Type: ValueBool, Bool: x} }

func (v SensorValue) String() string {
	switch v.Type {
	case ValueUint:
		return strconv.FormatUint(v.Uint, 10)
	case ValueInt:
		return strconv.FormatInt(v.Int, 10)
	case ValueFloat:
		return strconv.FormatFloat(float64(v.Float), 'g', -1, 32)
	case ValueDouble:
		return strconv.FormatFloat(v.Double, 'g', -1, 64)
	case ValueString:
		return strconv.Quote(v.Text)
	case ValueBool:
		return strconv.FormatBool(v.Bool)
	}
	return "<" + v.Type.String() + ">"
}

// Interface returns Go value of selected field, nil for unknown type.
func (v SensorValue) Interface() interface{} {
	switch v.Type {
	case ValueUint:
		return v.Uint
	case ValueInt:
		return v.Int
	case ValueFloat:
		return v.Float
	case ValueDouble:
		return v.Double
	case ValueString:
		return v.Text
	case ValueBool:
		return v.Bool
	}
	return nil
}

// ParseValue reads s as value of type t.
func ParseValue(t ValueType, s string) (SensorValue, error) {
	var err error
	v := SensorValue{Type: t}
	switch t {
	case ValueUint:
		v.Uint, err = strconv.ParseUint(s, 10, 64)
	case ValueInt:
		v.Int, err = strconv.ParseInt(s, 10, 64)
	case ValueFloat:
		var f float64
		f, err = strconv.ParseFloat(s, 32)
		v.Float = float32(f)
	case ValueDouble:
		v.Double, err = strconv.ParseFloat(s, 64)
	case ValueString:
		v.Text = s
	case ValueBool:
		v.Bool, err = strconv.ParseBool(s)
	default:
		return SensorValue{}, errors.NotValidf("value type=%s", t)
	}
	if err != nil {
		return SensorValue{}, errors.NewNotValid(err, fmt.Sprintf("parse %s value=%q", t, s))
	}
	return v, nil
}

func (v SensorValue) toWire() (wire.Value, error) {
	switch v.Type {
	case ValueUint:
		return wire.UintValue(v.Uint), nil
	case ValueInt:
		return wire.IntValue(v.Int), nil
	case ValueFloat:
		return wire.FloatValue(v.Float), nil
	case ValueDouble:
		return wire.DoubleValue(v.Double), nil
	case ValueString:
		return wire.StringValue(v.Text), nil
	case ValueBool:
		return wire.BoolValue(v.Bool), nil
	}
	return nil, errors.NotValidf("value type=%s", v.Type)
}

func valueFromWire(w wire.Value) SensorValue {
	switch w := w.(type) {
	case wire.UintValue:
		return Uint(uint64(w))
	case wire.IntValue:
		return Int(int64(w))
	case wire.FloatValue:
		return Float(float32(w))
	case wire.DoubleValue:
		return Double(float64(w))
	case wire.StringValue:
		return Text(string(w))
	case wire.BoolValue:
		return Bool(bool(w))
	}
	return SensorValue{}
}

func descriptorsFromWire(ws []wire.Sensor) []SensorDescriptor {
	ds := make([]SensorDescriptor, len(ws))
	for i, s := range ws {
		ds[i] = SensorDescriptor{
			ID:        s.ID,
			Name:      s.Name,
			Type:      SensorType(uint32(s.Type)),
			ValueType: ValueType(s.ValueType),
		}
	}
	return ds
}
