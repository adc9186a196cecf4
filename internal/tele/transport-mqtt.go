package tele

import (
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/juju/errors"
	"github.com/openvario/ovsim/helpers"
	"github.com/openvario/ovsim/internal/config"
	"github.com/openvario/ovsim/log2"
)

const DefaultConnectTimeout = 5 * time.Second

var (
	payloadOnline  = []byte{0x01}
	payloadOffline = []byte{0x00}
)

// Dial connects to broker, retained <prefix>/online is 1 while connected
// and 0 via will message after connection loss.
func Dial(log *log2.Log, cfg config.TeleConfig) (mqtt.Client, error) {
	mqtt.ERROR = log
	mqtt.CRITICAL = log
	mqtt.WARN = log
	if cfg.LogDebug {
		mqtt.DEBUG = log
	}

	topicOnline := cfg.TopicPrefix + "/online"
	connectTimeout := helpers.MillisecondDefault(cfg.ConnectTimeoutMs, DefaultConnectTimeout)
	mopt := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetCleanSession(true).
		SetBinaryWill(topicOnline, payloadOffline, 1, true).
		SetConnectTimeout(connectTimeout).
		SetAutoReconnect(true).
		SetOnConnectHandler(func(c mqtt.Client) {
			log.Infof("mqtt connect broker=%s", cfg.Broker)
			c.Publish(topicOnline, 1, true, payloadOnline)
		}).
		SetConnectionLostHandler(func(c mqtt.Client, err error) {
			log.Infof("mqtt disconnect err=%v", err)
		})
	m := mqtt.NewClient(mopt)
	token := m.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, errors.Timeoutf("mqtt connect broker=%s", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, errors.Annotatef(err, "mqtt connect broker=%s", cfg.Broker)
	}
	return m, nil
}
