package demo

import (
	"math"
	"strconv"

	"github.com/juju/errors"
	"github.com/openvario/ovsim/internal/config"
	"github.com/openvario/ovsim/simu"
)

// sweep walks value by step and reverses direction at min or max.
type sweep struct {
	id    uint32
	name  string
	vt    simu.ValueType
	value float64
	min   float64
	max   float64
	step  float64
}

func newSweep(s config.DemoSensor) (*sweep, error) {
	vt, err := s.ValueType()
	if err != nil {
		return nil, errors.Annotatef(err, "sensor=%s", s.Name)
	}
	if s.ID < 0 || uint64(s.ID) > math.MaxUint32 {
		return nil, errors.NotValidf("sensor=%s id=%d", s.Name, s.ID)
	}
	return &sweep{
		id:    uint32(s.ID),
		name:  s.Name,
		vt:    vt,
		value: s.From,
		min:   s.Min,
		max:   s.Max,
		step:  s.Step,
	}, nil
}

func newSweeps(sensors []config.DemoSensor) ([]*sweep, error) {
	if len(sensors) == 0 {
		return nil, errors.NotValidf("demo sensors empty")
	}
	ss := make([]*sweep, 0, len(sensors))
	for _, s := range sensors {
		sw, err := newSweep(s)
		if err != nil {
			return nil, err
		}
		ss = append(ss, sw)
	}
	return ss, nil
}

// Next returns current value, then advances.
func (s *sweep) Next() simu.SensorValue {
	v := s.current()
	s.value += s.step
	if s.value <= s.min || s.value >= s.max {
		s.step = -s.step
	}
	return v
}

func (s *sweep) current() simu.SensorValue {
	switch s.vt {
	case simu.ValueUint:
		if s.value < 0 {
			return simu.Uint(0)
		}
		return simu.Uint(uint64(s.value))
	case simu.ValueInt:
		return simu.Int(int64(s.value))
	case simu.ValueFloat:
		return simu.Float(float32(s.value))
	case simu.ValueDouble:
		return simu.Double(s.value)
	case simu.ValueString:
		return simu.Text(strconv.FormatFloat(s.value, 'f', -1, 64))
	case simu.ValueBool:
		return simu.Bool(s.value != 0)
	}
	panic("code error sweep value type=" + s.vt.String())
}
