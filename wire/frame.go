package wire

import (
	"fmt"

	"github.com/juju/errors"
)

type FrameKind byte

const (
	FrameResponse     FrameKind = 'R'
	FrameNotification FrameKind = 'N'
)

func (k FrameKind) String() string {
	switch k {
	case FrameResponse:
		return "response"
	case FrameNotification:
		return "notification"
	}
	return fmt.Sprintf("unknown(%#02x)", byte(k))
}

var ErrFrameInvalid = errors.New("frame invalid")

// Frame is decoded simulator datagram, exactly one of Response, Notification is set.
type Frame struct {
	Kind         FrameKind
	Response     Response
	Notification *Notification
}

func (f *Frame) String() string {
	switch {
	case f.Response != nil:
		return "R:" + f.Response.String()
	case f.Notification != nil:
		return "N:" + f.Notification.String()
	}
	return f.Kind.String()
}

// Decode classifies datagram by tag byte and decodes the body.
// Empty datagram, unknown tag, undecodable body or response without known
// variant return error wrapping ErrFrameInvalid.
func Decode(b []byte) (*Frame, error) {
	if len(b) == 0 {
		return nil, errors.Annotate(ErrFrameInvalid, "empty")
	}
	f := &Frame{Kind: FrameKind(b[0])}
	body := b[1:]
	switch f.Kind {
	case FrameResponse:
		r, err := UnmarshalResponse(body)
		if err != nil {
			return nil, errors.Annotatef(ErrFrameInvalid, "%v", err)
		}
		if r == nil {
			return nil, errors.Annotate(ErrFrameInvalid, "response variant not set")
		}
		f.Response = r
	case FrameNotification:
		n, err := UnmarshalNotification(body)
		if err != nil {
			return nil, errors.Annotatef(ErrFrameInvalid, "%v", err)
		}
		f.Notification = n
	default:
		return nil, errors.Annotatef(ErrFrameInvalid, "tag=%s", f.Kind.String())
	}
	return f, nil
}

func EncodeResponse(r Response) ([]byte, error) {
	body, err := MarshalResponse(r)
	if err != nil {
		return nil, err
	}
	return append([]byte{byte(FrameResponse)}, body...), nil
}

func EncodeNotification(n *Notification) ([]byte, error) {
	body, err := MarshalNotification(n)
	if err != nil {
		return nil, err
	}
	return append([]byte{byte(FrameNotification)}, body...), nil
}
