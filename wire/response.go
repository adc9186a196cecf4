package wire

import (
	"fmt"

	"github.com/juju/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// Response is one of *ConnectResponse, *DisconnectResponse, *ListSensorsResponse,
// *UpdateSensorResponse, *PingResponse.
type Response interface {
	isResponse()
	fmt.Stringer
}

type ConnectResponse struct {
	Accept bool
}

type DisconnectResponse struct{}

type ListSensorsResponse struct {
	Sensors []Sensor
}

type UpdateSensorResponse struct {
	Success bool
}

type PingResponse struct {
	Number uint32
}

// Sensor enums are kept raw, interpretation belongs to the caller.
type Sensor struct {
	ID        uint32
	Name      string
	Type      int32
	ValueType int32
}

func (*ConnectResponse) isResponse()      {}
func (*DisconnectResponse) isResponse()   {}
func (*ListSensorsResponse) isResponse()  {}
func (*UpdateSensorResponse) isResponse() {}
func (*PingResponse) isResponse()         {}

func (r *ConnectResponse) String() string { return fmt.Sprintf("connect(accept=%t)", r.Accept) }
func (*DisconnectResponse) String() string { return "disconnect" }
func (r *ListSensorsResponse) String() string {
	return fmt.Sprintf("list_sensors(count=%d)", len(r.Sensors))
}
func (r *UpdateSensorResponse) String() string {
	return fmt.Sprintf("update_sensor(success=%t)", r.Success)
}
func (r *PingResponse) String() string { return fmt.Sprintf("ping(%d)", r.Number) }

const (
	responseConnect      protowire.Number = 1
	responseDisconnect   protowire.Number = 2
	responseListSensors  protowire.Number = 3
	responseUpdateSensor protowire.Number = 4
	responsePing         protowire.Number = 5

	sensorID        protowire.Number = 1
	sensorName      protowire.Number = 2
	sensorType      protowire.Number = 3
	sensorValueType protowire.Number = 4
)

func MarshalResponse(r Response) ([]byte, error) {
	b := make([]byte, 0, 32)
	switch r := r.(type) {
	case *ConnectResponse:
		b = appendMessage(b, responseConnect, appendBool(nil, 1, r.Accept))
	case *DisconnectResponse:
		b = appendMessage(b, responseDisconnect, nil)
	case *ListSensorsResponse:
		var m []byte
		for _, s := range r.Sensors {
			sm := appendUint(nil, sensorID, uint64(s.ID))
			sm = appendString(sm, sensorName, s.Name)
			sm = appendUint(sm, sensorType, uint64(s.Type))
			sm = appendUint(sm, sensorValueType, uint64(s.ValueType))
			m = appendMessage(m, 1, sm)
		}
		b = appendMessage(b, responseListSensors, m)
	case *UpdateSensorResponse:
		b = appendMessage(b, responseUpdateSensor, appendBool(nil, 1, r.Success))
	case *PingResponse:
		b = appendMessage(b, responsePing, appendUint(nil, 1, uint64(r.Number)))
	default:
		return nil, errors.NotValidf("response=%#v", r)
	}
	return b, nil
}

// UnmarshalResponse decodes SimuResponse body (after frame tag).
// Returns nil Response without error when body carries no known variant.
func UnmarshalResponse(body []byte) (Response, error) {
	var r Response
	err := walk(body, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case responseConnect, responseDisconnect, responseListSensors, responseUpdateSensor, responsePing:
		default:
			return 0, nil
		}
		m, n, err := consumeBytes(typ, b)
		if err != nil {
			return 0, err
		}
		var x uint64
		switch num {
		case responseConnect:
			x, err = consumeSingle(m)
			r = &ConnectResponse{Accept: x != 0}
		case responseDisconnect:
			r = &DisconnectResponse{}
		case responseListSensors:
			var sensors []Sensor
			sensors, err = unmarshalSensors(m)
			r = &ListSensorsResponse{Sensors: sensors}
		case responseUpdateSensor:
			x, err = consumeSingle(m)
			r = &UpdateSensorResponse{Success: x != 0}
		case responsePing:
			x, err = consumeSingle(m)
			r = &PingResponse{Number: uint32(x)}
		}
		return n, err
	})
	if err != nil {
		return nil, errors.Annotate(err, "response")
	}
	return r, nil
}

func unmarshalSensors(m []byte) ([]Sensor, error) {
	sensors := make([]Sensor, 0, 8)
	err := walk(m, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != 1 {
			return 0, nil
		}
		sm, n, err := consumeBytes(typ, b)
		if err != nil {
			return 0, err
		}
		var s Sensor
		err = walk(sm, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
			switch num {
			case sensorName:
				name, n, err := consumeBytes(typ, b)
				s.Name = string(name)
				return n, err
			case sensorID, sensorType, sensorValueType:
				x, n, err := consumeVarint(typ, b)
				switch num {
				case sensorID:
					s.ID = uint32(x)
				case sensorType:
					s.Type = int32(x)
				case sensorValueType:
					s.ValueType = int32(x)
				}
				return n, err
			}
			return 0, nil
		})
		sensors = append(sensors, s)
		return n, errors.Annotatef(err, "sensor index=%d", len(sensors)-1)
	})
	return sensors, err
}
