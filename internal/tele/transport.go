package tele

import mqtt "github.com/eclipse/paho.mqtt.golang"

// Tele transport contract:
// - publish never blocks caller on network, delivery result arrives in Token
// - messages may be lost while broker is unreachable, events are informational
// Satisfied by mqtt.Client.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}
