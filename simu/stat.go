package simu

// Values are read and modified atomically, but not consistently.

import (
	"expvar"
	"fmt"
)

type Stat struct {
	Sent          expvar.Int
	Received      expvar.Int
	Dropped       expvar.Int // undecodable or unknown tag
	Ignored       expvar.Int // valid but not expected in current state
	Timeouts      expvar.Int
	Pings         expvar.Int
	Pongs         expvar.Int
	Notifications expvar.Int
}

func (s *Stat) Value() (r Stat) {
	r.Sent.Set(s.Sent.Value())
	r.Received.Set(s.Received.Value())
	r.Dropped.Set(s.Dropped.Value())
	r.Ignored.Set(s.Ignored.Value())
	r.Timeouts.Set(s.Timeouts.Value())
	r.Pings.Set(s.Pings.Value())
	r.Pongs.Set(s.Pongs.Value())
	r.Notifications.Set(s.Notifications.Value())
	return
}

func (s *Stat) String() string {
	return fmt.Sprintf(`{"sent":%d,"received":%d,"dropped":%d,"ignored":%d,"timeouts":%d,"pings":%d,"pongs":%d,"notifications":%d}`,
		s.Sent.Value(), s.Received.Value(), s.Dropped.Value(), s.Ignored.Value(),
		s.Timeouts.Value(), s.Pings.Value(), s.Pongs.Value(), s.Notifications.Value())
}

// Publish makes s visible at /debug/vars under name.
func (s *Stat) Publish(name string) {
	expvar.Publish(name, expvar.Func(func() interface{} {
		v := s.Value()
		return map[string]int64{
			"sent":          v.Sent.Value(),
			"received":      v.Received.Value(),
			"dropped":       v.Dropped.Value(),
			"ignored":       v.Ignored.Value(),
			"timeouts":      v.Timeouts.Value(),
			"pings":         v.Pings.Value(),
			"pongs":         v.Pongs.Value(),
			"notifications": v.Notifications.Value(),
		}
	}))
}
