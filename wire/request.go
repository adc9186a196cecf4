package wire

import (
	"fmt"

	"github.com/juju/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// Request is one of *ConnectRequest, *DisconnectRequest, *ListSensorsRequest,
// *UpdateSensorRequest, *PingRequest.
type Request interface {
	isRequest()
	fmt.Stringer
}

type ConnectRequest struct{}
type DisconnectRequest struct{}
type ListSensorsRequest struct{}

type UpdateSensorRequest struct {
	ID    uint32
	Value Value
}

type PingRequest struct {
	Number uint32
}

func (*ConnectRequest) isRequest()      {}
func (*DisconnectRequest) isRequest()   {}
func (*ListSensorsRequest) isRequest()  {}
func (*UpdateSensorRequest) isRequest() {}
func (*PingRequest) isRequest()         {}

func (*ConnectRequest) String() string     { return "connect" }
func (*DisconnectRequest) String() string  { return "disconnect" }
func (*ListSensorsRequest) String() string { return "list_sensors" }
func (r *UpdateSensorRequest) String() string {
	return fmt.Sprintf("update_sensor(id=%d value=%v)", r.ID, r.Value)
}
func (r *PingRequest) String() string { return fmt.Sprintf("ping(%d)", r.Number) }

const (
	requestConnect      protowire.Number = 1
	requestDisconnect   protowire.Number = 2
	requestListSensors  protowire.Number = 3
	requestUpdateSensor protowire.Number = 4
	requestPing         protowire.Number = 5

	updateSensorID         protowire.Number = 1
	updateSensorFirstValue protowire.Number = 2
)

// MarshalRequest encodes SimuRequest body. Requests are sent without frame tag.
func MarshalRequest(r Request) ([]byte, error) {
	b := make([]byte, 0, 32)
	switch r := r.(type) {
	case *ConnectRequest:
		b = appendMessage(b, requestConnect, nil)
	case *DisconnectRequest:
		b = appendMessage(b, requestDisconnect, nil)
	case *ListSensorsRequest:
		b = appendMessage(b, requestListSensors, nil)
	case *UpdateSensorRequest:
		m := appendUint(nil, updateSensorID, uint64(r.ID))
		m, err := appendValue(m, updateSensorFirstValue, r.Value)
		if err != nil {
			return nil, errors.Annotatef(err, "update_sensor id=%d", r.ID)
		}
		b = appendMessage(b, requestUpdateSensor, m)
	case *PingRequest:
		b = appendMessage(b, requestPing, appendUint(nil, 1, uint64(r.Number)))
	default:
		return nil, errors.NotValidf("request=%#v", r)
	}
	return b, nil
}

// UnmarshalRequest is the simulator side of MarshalRequest.
// Returns nil Request without error when body carries no known variant.
func UnmarshalRequest(body []byte) (Request, error) {
	var r Request
	err := walk(body, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case requestConnect, requestDisconnect, requestListSensors, requestUpdateSensor, requestPing:
		default:
			return 0, nil
		}
		m, n, err := consumeBytes(typ, b)
		if err != nil {
			return 0, err
		}
		switch num {
		case requestConnect:
			r = &ConnectRequest{}
		case requestDisconnect:
			r = &DisconnectRequest{}
		case requestListSensors:
			r = &ListSensorsRequest{}
		case requestUpdateSensor:
			u := &UpdateSensorRequest{}
			err = walk(m, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
				switch {
				case num == updateSensorID:
					x, n, err := consumeVarint(typ, b)
					u.ID = uint32(x)
					return n, err
				case isValueField(num, updateSensorFirstValue):
					v, n, err := consumeValue(num, updateSensorFirstValue, typ, b)
					u.Value = v
					return n, err
				}
				return 0, nil
			})
			r = u
		case requestPing:
			var x uint64
			x, err = consumeSingle(m)
			r = &PingRequest{Number: uint32(x)}
		}
		return n, err
	})
	if err != nil {
		return nil, errors.Annotate(err, "request")
	}
	return r, nil
}
