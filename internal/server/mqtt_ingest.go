package server

import (
	"context"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const mqttQoS = 0

// MQTTOptions configures the optional broker-fed ingest path.
type MQTTOptions struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string
	Topic     string
}

// MQTTSource feeds vitals published by the chair over MQTT into the same
// ingest pipeline as POST /data.
type MQTTSource struct {
	client mqtt.Client
	topic  string
	api    *API
	logger *zap.Logger
}

func NewMQTTSource(options MQTTOptions, api *API, logger *zap.Logger) *MQTTSource {
	if logger == nil {
		logger = zap.NewNop()
	}

	clientOptions := mqtt.NewClientOptions().
		AddBroker(options.BrokerURL).
		SetClientID(options.ClientID).
		SetAutoReconnect(true)
	if options.Username != "" {
		clientOptions.SetUsername(options.Username).SetPassword(options.Password)
	}

	return &MQTTSource{
		client: mqtt.NewClient(clientOptions),
		topic:  options.Topic,
		api:    api,
		logger: logger,
	}
}

func (source *MQTTSource) Start() error {
	if token := source.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt connect: %w", token.Error())
	}

	token := source.client.Subscribe(source.topic, mqttQoS, source.onMessage)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", source.topic, token.Error())
	}

	source.logger.Info("mqtt source subscribed", zap.String("topic", source.topic), zap.Int("qos", mqttQoS))
	return nil
}

func (source *MQTTSource) onMessage(_ mqtt.Client, message mqtt.Message) {
	vitals, err := DecodeVitals(message.Payload())
	if err != nil {
		source.logger.Warn("invalid mqtt payload", zap.String("topic", message.Topic()), zap.Error(err))
		return
	}

	if _, _, err := source.api.Ingest(context.Background(), vitals); err != nil {
		source.logger.Warn("mqtt reading not persisted", zap.String("topic", message.Topic()), zap.Error(err))
	}
}

func (source *MQTTSource) Stop() {
	source.client.Disconnect(250)
}
