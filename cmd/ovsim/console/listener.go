package console

import (
	"github.com/openvario/ovsim/log2"
	"github.com/openvario/ovsim/simu"
)

// eventLog prints session events for interactive use.
type eventLog struct {
	log *log2.Log
}

var _ simu.Listener = &eventLog{}

func (e *eventLog) OnConnect(success bool) {
	if success {
		e.log.Infof("connected")
	} else {
		e.log.Infof("connect failed")
	}
}

func (e *eventLog) OnClose() { e.log.Infof("connection closed") }

func (e *eventLog) OnSensorsList(sensors []simu.SensorDescriptor, err error) {
	if err != nil {
		e.log.Errorf("list sensors err=%v", err)
		return
	}
	e.log.Infof("sensors count=%d", len(sensors))
	for _, s := range sensors {
		e.log.Infof("- %s", s.String())
	}
}

func (e *eventLog) OnUpdateSensor(success bool, err error) {
	switch {
	case err != nil:
		e.log.Errorf("update sensor err=%v", err)
	case success:
		e.log.Infof("update sensor ok")
	default:
		e.log.Infof("update sensor denied")
	}
}

func (e *eventLog) OnValue(kind string, values map[string]simu.SensorValue) {
	e.log.Infof("value [%s] %v", kind, values)
}
