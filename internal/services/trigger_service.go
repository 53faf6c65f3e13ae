package services

import (
	"encoding/json"
	"errors"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/signware/hubsync/pkg/mqtt"
)

// PlaylistSwitcher switches playback to the playlist bound to a trigger
// type.
type PlaylistSwitcher interface {
	TriggerPlaylist(triggerType string)
}

// triggerEvent is the payload sensors publish on the trigger topic. The
// trigger type may also be carried by the topic suffix, in which case the
// body is optional.
type triggerEvent struct {
	TriggerType string `json:"trigger_type"`
}

// TriggerService listens for sensor events on the local bus and switches
// playback to the matching triggered playlist. Demographic classifiers,
// motion sensors and the like publish on triggers/<type>.
type TriggerService struct {
	topic      string
	qos        int
	mqttClient mqtt.MQTTClient
	switcher   PlaylistSwitcher
	logger     zerolog.Logger

	running bool
}

// NewTriggerService initializes a new TriggerService instance.
func NewTriggerService(topic string, qos int, mqttClient mqtt.MQTTClient,
	switcher PlaylistSwitcher, logger zerolog.Logger) *TriggerService {
	return &TriggerService{
		topic:      topic,
		qos:        qos,
		mqttClient: mqttClient,
		switcher:   switcher,
		logger:     logger,
	}
}

// Start subscribes to the trigger topic.
func (t *TriggerService) Start() error {
	if t.running {
		t.logger.Warn().Msg("Trigger service is already running")
		return errors.New("trigger service is already running")
	}
	if t.mqttClient == nil {
		return errors.New("trigger service requires a connected bus client")
	}

	token := t.mqttClient.Subscribe(t.topic, byte(t.qos), t.handleTriggerMessage)
	if token.Wait() && token.Error() != nil {
		return token.Error()
	}

	t.running = true
	t.logger.Info().Str("topic", t.topic).Msg("Trigger service started")
	return nil
}

// Stop unsubscribes from the trigger topic.
func (t *TriggerService) Stop() error {
	if !t.running {
		t.logger.Warn().Msg("Trigger service is not running")
		return errors.New("trigger service is not running")
	}

	if token := t.mqttClient.Unsubscribe(t.topic); token.Wait() && token.Error() != nil {
		t.logger.Warn().Err(token.Error()).Str("topic", t.topic).Msg("Failed to unsubscribe from trigger topic")
		return token.Error()
	}

	t.running = false
	t.logger.Info().Msg("Trigger service stopped")
	return nil
}

// handleTriggerMessage resolves the trigger type from the payload, falling
// back to the topic suffix, and hands it to the playback switcher.
func (t *TriggerService) handleTriggerMessage(_ MQTT.Client, msg MQTT.Message) {
	var event triggerEvent
	if len(msg.Payload()) > 0 {
		if err := json.Unmarshal(msg.Payload(), &event); err != nil {
			t.logger.Warn().Err(err).Str("topic", msg.Topic()).Msg("Malformed trigger payload, falling back to topic suffix")
		}
	}
	if event.TriggerType == "" {
		event.TriggerType = triggerTypeFromTopic(msg.Topic())
	}
	if event.TriggerType == "" {
		t.logger.Warn().Str("topic", msg.Topic()).Msg("Trigger event without a trigger type, ignoring")
		return
	}

	t.logger.Info().Str("trigger_type", event.TriggerType).Msg("Trigger event received")
	t.switcher.TriggerPlaylist(event.TriggerType)
}

// triggerTypeFromTopic extracts the type from "triggers/<type>".
func triggerTypeFromTopic(topic string) string {
	const prefix = "triggers/"
	if len(topic) > len(prefix) && topic[:len(prefix)] == prefix {
		return topic[len(prefix):]
	}
	return ""
}
