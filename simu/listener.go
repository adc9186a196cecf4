package simu

// Listener receives session events. Callbacks run on the receive loop goroutine
// with engine unlocked, so calling back into Protocol is allowed.
// Keep callbacks short: next datagram is not processed until they return.
type Listener interface {
	// false means simulator did not accept connection in time
	OnConnect(success bool)
	OnClose()
	OnSensorsList(sensors []SensorDescriptor, err error)
	OnUpdateSensor(success bool, err error)
	OnValue(kind string, values map[string]SensorValue)
}

// NopListener is meant for embedding into partial listeners.
type NopListener struct{}

var _ Listener = NopListener{}

func (NopListener) OnConnect(bool)                          {}
func (NopListener) OnClose()                                {}
func (NopListener) OnSensorsList([]SensorDescriptor, error) {}
func (NopListener) OnUpdateSensor(bool, error)              {}
func (NopListener) OnValue(string, map[string]SensorValue)  {}
