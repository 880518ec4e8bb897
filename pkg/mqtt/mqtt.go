// Package mqtt publishes analysis reports to an MQTT broker so a
// laptop can follow a headless logger in the vehicle.
package mqtt

import (
	"encoding/json"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"cantemp/pkg/analyze"
)

const (
	DefaultBroker   = "tcp://localhost:1883"
	DefaultClientID = "cantemp-monitor"
	DefaultTopic    = "cantemp/candidates"
)

type Config struct {
	Broker   string
	ClientID string
	Topic    string
}

// Publisher sends candidate reports to a broker, one JSON message per
// report. Publishing is fire-and-forget at QoS 0: the analysis loop is
// never allowed to stall on a slow broker.
type Publisher struct {
	config Config
	client mqtt.Client
}

func NewPublisher(config Config) *Publisher {
	if config.Broker == "" {
		config.Broker = DefaultBroker
	}
	if config.ClientID == "" {
		config.ClientID = DefaultClientID
	}
	if config.Topic == "" {
		config.Topic = DefaultTopic
	}
	return &Publisher{config: config}
}

// Connect establishes the broker connection.
func (p *Publisher) Connect() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(p.config.Broker)
	opts.SetClientID(p.config.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(5 * time.Second)
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		log.Printf("connected to MQTT broker %s", p.config.Broker)
	})
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Printf("MQTT connection lost: %v", err)
	})

	p.client = mqtt.NewClient(opts)
	if token := p.client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	return nil
}

func (p *Publisher) Disconnect() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}

type message struct {
	ID      uint32                  `json:"id"`
	Time    time.Time               `json:"time"`
	Changed []int                   `json:"changed"`
	Values  map[int][]analyze.Value `json:"values,omitempty"`
}

// Publish sends one report. Marshal failures are logged, not returned:
// a malformed report must not bring the monitoring loop down.
func (p *Publisher) Publish(rep analyze.Report, ts time.Time) {
	if p.client == nil || !p.client.IsConnected() {
		return
	}
	payload, err := json.Marshal(message{
		ID:      rep.ID,
		Time:    ts,
		Changed: rep.Changed,
		Values:  rep.Values,
	})
	if err != nil {
		log.Printf("failed to marshal report: %v", err)
		return
	}
	p.client.Publish(p.config.Topic, 0, false, payload)
}
