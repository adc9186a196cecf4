package config

import (
	"io/ioutil"
	"os"
	"time"

	"github.com/hashicorp/hcl"
	"github.com/juju/errors"
	"github.com/openvario/ovsim/helpers"
	"github.com/openvario/ovsim/log2"
	"github.com/openvario/ovsim/simu"
	"github.com/openvario/ovsim/udp"
)

type Config struct {
	Target struct {
		Host string `hcl:"host"`
		Port int    `hcl:"port"`
	} `hcl:"target"`
	BindHost              string `hcl:"bind_host"`
	BindPort              int    `hcl:"bind_port"`
	ReceiveTimeoutMs      int    `hcl:"receive_timeout_ms"`
	MaxTimeouts           int    `hcl:"max_timeouts"`
	DispatchNotifications bool   `hcl:"dispatch_notifications"`

	Log struct {
		Debug bool `hcl:"debug"`
	} `hcl:"log"`

	Tele TeleConfig `hcl:"tele"`
	Demo DemoConfig `hcl:"demo"`
}

type TeleConfig struct {
	Enable           bool   `hcl:"enable"`
	Broker           string `hcl:"broker"`
	ClientID         string `hcl:"client_id"`
	Username         string `hcl:"username"`
	Password         string `hcl:"password"`
	TopicPrefix      string `hcl:"topic_prefix"`
	QoS              int    `hcl:"qos"`
	ConnectTimeoutMs int    `hcl:"connect_timeout_ms"`
	LogDebug         bool   `hcl:"log_debug"`
}

type DemoConfig struct {
	PeriodMs int          `hcl:"period_ms"`
	RetryMs  int          `hcl:"retry_ms"`
	Sensors  []DemoSensor `hcl:"sensor"`
}

// DemoSensor sweeps value from From by Step, reversing at Min/Max.
type DemoSensor struct {
	Name string  `hcl:"name,key"`
	ID   int     `hcl:"id"`
	Type string  `hcl:"type"`
	From float64 `hcl:"from"`
	Min  float64 `hcl:"min"`
	Max  float64 `hcl:"max"`
	Step float64 `hcl:"step"`
}

const (
	DefaultTeleBroker = "tcp://127.0.0.1:1883"
	DefaultClientID   = "ovsim"
	DefaultDemoPeriod = 250 * time.Millisecond
	DefaultDemoRetry  = time.Second
)

// Default is used when no config file given.
// Demo sensors match the stock simulator device.
func Default() *Config {
	c := &Config{}
	c.fillDefaults()
	c.Demo.Sensors = []DemoSensor{
		{Name: "baro", ID: 3, Type: "uint", From: 100000, Min: 90000, Max: 102000, Step: 50},
		{Name: "temp", ID: 2, Type: "int", From: -200, Min: -400, Max: 500, Step: 25},
	}
	return c
}

func (c *Config) fillDefaults() {
	if c.Target.Host == "" {
		c.Target.Host = simu.DefaultTargetHost
	}
	if c.Target.Port == 0 {
		c.Target.Port = simu.DefaultTargetPort
	}
	if c.BindPort == 0 {
		c.BindPort = simu.DefaultBindPort
	}
	if c.MaxTimeouts == 0 {
		c.MaxTimeouts = simu.DefaultMaxTimeouts
	}
	if c.Tele.Broker == "" {
		c.Tele.Broker = DefaultTeleBroker
	}
	if c.Tele.ClientID == "" {
		c.Tele.ClientID = DefaultClientID
	}
	if c.Tele.TopicPrefix == "" {
		c.Tele.TopicPrefix = c.Tele.ClientID
	}
}

func Parse(b []byte) (*Config, error) {
	c := &Config{}
	if err := hcl.Unmarshal(b, c); err != nil {
		return nil, errors.Annotate(err, "config unmarshal")
	}
	c.fillDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// ReadConfig with empty path returns Default().
func ReadConfig(log *log2.Log, path string) (*Config, error) {
	if path == "" {
		log.Debugf("config path empty, using defaults")
		return Default(), nil
	}
	log.Debugf("config reading path=%s", path)
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Annotatef(err, "config path=%s", path)
	}
	defer f.Close()
	b, err := ioutil.ReadAll(f)
	if err != nil {
		return nil, errors.Annotatef(err, "config read path=%s", path)
	}
	c, err := Parse(b)
	return c, errors.Annotatef(err, "config path=%s", path)
}

func (c *Config) Validate() error {
	errs := make([]error, 0, 8)
	checkPort := func(name string, port int, zeroOk bool) {
		if port < 0 || port > 65535 || (port == 0 && !zeroOk) {
			errs = append(errs, errors.NotValidf("%s=%d", name, port))
		}
	}
	checkPort("target.port", c.Target.Port, false)
	checkPort("bind_port", c.BindPort, true)
	if c.ReceiveTimeoutMs < 0 {
		errs = append(errs, errors.NotValidf("receive_timeout_ms=%d", c.ReceiveTimeoutMs))
	}
	if c.MaxTimeouts < 0 {
		errs = append(errs, errors.NotValidf("max_timeouts=%d", c.MaxTimeouts))
	}
	if c.Tele.QoS < 0 || c.Tele.QoS > 2 {
		errs = append(errs, errors.NotValidf("tele.qos=%d", c.Tele.QoS))
	}
	for _, s := range c.Demo.Sensors {
		if s.ID < 0 || uint64(s.ID) > uint64(^uint32(0)) {
			errs = append(errs, errors.NotValidf("demo.sensor=%s id=%d", s.Name, s.ID))
		}
		if _, err := s.ValueType(); err != nil {
			errs = append(errs, errors.Annotatef(err, "demo.sensor=%s", s.Name))
		}
		if s.Min > s.Max {
			errs = append(errs, errors.NotValidf("demo.sensor=%s min=%v > max=%v", s.Name, s.Min, s.Max))
		}
	}
	return helpers.FoldErrors(errs...)
}

func (s *DemoSensor) ValueType() (simu.ValueType, error) { return simu.ParseValueType(s.Type) }

func (c *Config) ReceiveTimeout() time.Duration {
	return helpers.MillisecondDefault(c.ReceiveTimeoutMs, udp.DefaultReadTimeout)
}

func (c *Config) Options(log *log2.Log) simu.Options {
	return simu.Options{
		Log:                   log,
		TargetHost:            c.Target.Host,
		TargetPort:            c.Target.Port,
		BindHost:              c.BindHost,
		BindPort:              c.BindPort,
		MaxTimeouts:           c.MaxTimeouts,
		DispatchNotifications: c.DispatchNotifications,
	}
}

func (c *Config) UDPOptions(log *log2.Log) udp.Options {
	return udp.Options{Log: log, ReadTimeout: c.ReceiveTimeout()}
}
