package mon

import (
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/juju/errors"
	"github.com/temoto/gpiod/cmd/gpiod/subcmd"
	"github.com/temoto/gpiod/gpio"
	"github.com/temoto/gpiod/internal/config"
	"github.com/temoto/gpiod/log2"
)

const mqttTimeout = 5 * time.Second

type mqttPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// mqttSink publishes every event as text line to one topic.
type mqttSink struct {
	log    *log2.Log
	pub    mqttPublisher
	client mqtt.Client
	topic  string
	qos    byte
}

func newMqttSink(c config.Mqtt, log *log2.Log) (*mqttSink, error) {
	mqtt.ERROR = log
	mqtt.CRITICAL = log
	mqtt.WARN = log

	opt := mqtt.NewClientOptions().
		AddBroker(c.Broker).
		SetClientID(c.ClientID).
		SetAutoReconnect(true).
		SetOnConnectHandler(func(mqtt.Client) { log.Infof("mqtt connect %s", c.Broker) }).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) { log.Errorf("mqtt disconnect err=%v", err) })
	client := mqtt.NewClient(opt)
	token := client.Connect()
	if !token.WaitTimeout(mqttTimeout) {
		client.Disconnect(0)
		return nil, errors.Timeoutf("mqtt connect %s", c.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, errors.Annotatef(err, "mqtt connect %s", c.Broker)
	}
	s := &mqttSink{log: log, pub: client, client: client, topic: c.Topic, qos: byte(c.Qos)}
	return s, nil
}

func (s *mqttSink) Publish(e gpio.Event) error {
	s.log.Debugf("mqtt publish topic=%s %s", s.topic, e)
	token := s.pub.Publish(s.topic, s.qos, false, subcmd.FormatEvent(e))
	if s.qos == 0 {
		return nil
	}
	if !token.WaitTimeout(mqttTimeout) {
		return errors.Timeoutf("mqtt publish topic=%s", s.topic)
	}
	return errors.Annotatef(token.Error(), "mqtt publish topic=%s", s.topic)
}

// publishError sends logged errors to topic/error without waiting.
// It must not log errors itself.
func (s *mqttSink) publishError(err error) {
	s.pub.Publish(s.topic+"/error", s.qos, false, err.Error())
}

func (s *mqttSink) Close() {
	if s.client != nil {
		s.client.Disconnect(250)
	}
}
