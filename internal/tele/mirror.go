package tele

import (
	"encoding/json"
	"time"

	"github.com/juju/errors"
	"github.com/openvario/ovsim/log2"
	"github.com/openvario/ovsim/simu"
	"github.com/temoto/alive/v2"
)

const DefaultPublishTimeout = 10 * time.Second

type MirrorOptions struct {
	Log            *log2.Log
	TopicPrefix    string
	QoS            byte
	PublishTimeout time.Duration
}

// Mirror publishes every simulator session event, then forwards it to Next.
// Topics under prefix: connect (retained), close, sensors, update, value/<kind>.
type Mirror struct {
	Next simu.Listener

	alive *alive.Alive
	log   *log2.Log
	opt   MirrorOptions
	pub   Publisher
}

var _ simu.Listener = &Mirror{}

func NewMirror(opt MirrorOptions, pub Publisher, next simu.Listener) *Mirror {
	if opt.PublishTimeout <= 0 {
		opt.PublishTimeout = DefaultPublishTimeout
	}
	if next == nil {
		next = simu.NopListener{}
	}
	return &Mirror{
		Next:  next,
		alive: alive.NewAlive(),
		log:   opt.Log,
		opt:   opt,
		pub:   pub,
	}
}

// Close waits for in-flight publish results. Events after Close are only forwarded.
func (m *Mirror) Close() {
	m.alive.Stop()
	m.alive.Wait()
}

type connectEvent struct {
	Success bool `json:"success"`
}

type sensorEvent struct {
	ID        uint32 `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	ValueType string `json:"value_type"`
}

type sensorsEvent struct {
	Sensors []sensorEvent `json:"sensors"`
	Error   string        `json:"error,omitempty"`
}

type updateEvent struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func (m *Mirror) OnConnect(success bool) {
	m.publish("connect", true, connectEvent{Success: success})
	m.Next.OnConnect(success)
}

func (m *Mirror) OnClose() {
	m.publish("close", false, struct{}{})
	m.Next.OnClose()
}

func (m *Mirror) OnSensorsList(sensors []simu.SensorDescriptor, err error) {
	e := sensorsEvent{Sensors: make([]sensorEvent, 0, len(sensors)), Error: errorString(err)}
	for _, s := range sensors {
		e.Sensors = append(e.Sensors, sensorEvent{
			ID:        s.ID,
			Name:      s.Name,
			Type:      s.Type.String(),
			ValueType: s.ValueType.String(),
		})
	}
	m.publish("sensors", false, e)
	m.Next.OnSensorsList(sensors, err)
}

func (m *Mirror) OnUpdateSensor(success bool, err error) {
	m.publish("update", false, updateEvent{Success: success, Error: errorString(err)})
	m.Next.OnUpdateSensor(success, err)
}

func (m *Mirror) OnValue(kind string, values map[string]simu.SensorValue) {
	e := make(map[string]interface{}, len(values))
	for k, v := range values {
		e[k] = v.Interface()
	}
	m.publish("value/"+kind, false, e)
	m.Next.OnValue(kind, values)
}

func (m *Mirror) publish(suffix string, retained bool, v interface{}) {
	topic := m.opt.TopicPrefix + "/" + suffix
	payload, err := json.Marshal(v)
	if err != nil {
		m.log.Errorf("tele marshal topic=%s err=%v", topic, errors.ErrorStack(err))
		return
	}
	if !m.alive.Add(1) {
		m.log.Debugf("tele closed, skip topic=%s", topic)
		return
	}
	m.log.Debugf("tele publish topic=%s payload=%s", topic, payload)
	token := m.pub.Publish(topic, m.opt.QoS, retained, payload)
	// callbacks run on receive loop, delivery is checked in background
	go func() {
		defer m.alive.Done()
		if !token.WaitTimeout(m.opt.PublishTimeout) {
			m.log.Errorf("tele publish topic=%s timeout=%v", topic, m.opt.PublishTimeout)
			return
		}
		if err := token.Error(); err != nil {
			m.log.Errorf("tele publish topic=%s err=%v", topic, err)
		}
	}()
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
