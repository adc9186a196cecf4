package wire

import (
	"fmt"
	"sort"

	"github.com/juju/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

type Notification struct {
	Type   string
	Values map[string]Value
}

func (n *Notification) String() string {
	return fmt.Sprintf("notification(type=%s values=%d)", n.Type, len(n.Values))
}

const (
	notificationType   protowire.Number = 1
	notificationValues protowire.Number = 2

	mapKey   protowire.Number = 1
	mapValue protowire.Number = 2

	notificationFirstValue protowire.Number = 1
)

// MarshalNotification writes map entries in key order, output is deterministic.
func MarshalNotification(n *Notification) ([]byte, error) {
	b := appendString(make([]byte, 0, 64), notificationType, n.Type)
	keys := make([]string, 0, len(n.Values))
	for k := range n.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		vm, err := appendValue(nil, notificationFirstValue, n.Values[k])
		if err != nil {
			return nil, errors.Annotatef(err, "notification key=%s", k)
		}
		entry := appendString(nil, mapKey, k)
		entry = appendMessage(entry, mapValue, vm)
		b = appendMessage(b, notificationValues, entry)
	}
	return b, nil
}

func UnmarshalNotification(body []byte) (*Notification, error) {
	n := &Notification{Values: make(map[string]Value)}
	err := walk(body, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case notificationType:
			s, size, err := consumeBytes(typ, b)
			n.Type = string(s)
			return size, err
		case notificationValues:
			entry, size, err := consumeBytes(typ, b)
			if err != nil {
				return 0, err
			}
			var key string
			var value Value
			err = walk(entry, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
				switch num {
				case mapKey:
					s, size, err := consumeBytes(typ, b)
					key = string(s)
					return size, err
				case mapValue:
					vm, size, err := consumeBytes(typ, b)
					if err != nil {
						return 0, err
					}
					err = walk(vm, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
						if !isValueField(num, notificationFirstValue) {
							return 0, nil
						}
						v, size, err := consumeValue(num, notificationFirstValue, typ, b)
						value = v
						return size, err
					})
					return size, err
				}
				return 0, nil
			})
			if err != nil {
				return 0, err
			}
			if value != nil {
				n.Values[key] = value
			}
			return size, nil
		}
		return 0, nil
	})
	if err != nil {
		return nil, errors.Annotate(err, "notification")
	}
	return n, nil
}
