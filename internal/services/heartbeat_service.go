package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"

	"github.com/signware/hubsync/internal/models"
	"github.com/signware/hubsync/internal/sysinfo"
	"github.com/signware/hubsync/pkg/identity"
	"github.com/signware/hubsync/pkg/mqtt"
)

// HeartbeatPublisher flushes a device status batch to the service tier.
type HeartbeatPublisher interface {
	SendHeartbeats(hubID string, batch models.HeartbeatBatch) (*models.HeartbeatResult, error)
}

// HeartbeatService accumulates downstream device statuses from the local
// bus (latest report wins per device) and flushes them upstream as one
// batch per interval. Flushing shares no lock with the sync path and runs
// concurrently with it.
type HeartbeatService struct {
	statusTopic string
	interval    time.Duration
	qos         int

	hubInfo    identity.HubInfoInterface
	mqttClient mqtt.MQTTClient
	publisher  HeartbeatPublisher
	telemetry  sysinfo.Collector
	logger     zerolog.Logger

	pending cmap.ConcurrentMap[string, models.HeartbeatRecord]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewHeartbeatService initializes a new HeartbeatService. telemetry may be
// nil when relay self-reporting is disabled.
func NewHeartbeatService(statusTopic string, interval time.Duration, qos int,
	hubInfo identity.HubInfoInterface, mqttClient mqtt.MQTTClient,
	publisher HeartbeatPublisher, telemetry sysinfo.Collector,
	logger zerolog.Logger) *HeartbeatService {
	return &HeartbeatService{
		statusTopic: statusTopic,
		interval:    interval,
		qos:         qos,
		hubInfo:     hubInfo,
		mqttClient:  mqttClient,
		publisher:   publisher,
		telemetry:   telemetry,
		logger:      logger,
		pending:     cmap.New[models.HeartbeatRecord](),
	}
}

// Start subscribes to device status reports and launches the flush loop.
func (h *HeartbeatService) Start() error {
	if h.ctx != nil {
		h.logger.Warn().Msg("Heartbeat service is already running")
		return errors.New("heartbeat service is already running")
	}

	h.ctx, h.cancel = context.WithCancel(context.Background())

	if h.mqttClient != nil {
		token := h.mqttClient.Subscribe(h.statusTopic, byte(h.qos), h.handleStatusMessage)
		if token.Wait() && token.Error() != nil {
			h.ctx = nil
			h.cancel = nil
			return token.Error()
		}
		h.logger.Info().Str("topic", h.statusTopic).Msg("Subscribed to device status topic")
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.runFlushLoop()
	}()

	h.logger.Info().Dur("interval", h.interval).Msg("Heartbeat service started")
	return nil
}

// Stop unsubscribes, performs a final flush and halts the loop.
func (h *HeartbeatService) Stop() error {
	if h.ctx == nil {
		h.logger.Warn().Msg("Heartbeat service is not running")
		return errors.New("heartbeat service is not running")
	}

	h.cancel()
	h.wg.Wait()

	if h.mqttClient != nil {
		if token := h.mqttClient.Unsubscribe(h.statusTopic); token.Wait() && token.Error() != nil {
			h.logger.Warn().Err(token.Error()).Str("topic", h.statusTopic).Msg("Failed to unsubscribe from status topic")
		}
	}

	h.Flush()

	h.ctx = nil
	h.cancel = nil

	h.logger.Info().Msg("Heartbeat service stopped")
	return nil
}

// Record stores the latest status for one device, replacing any unflushed
// report from the same device.
func (h *HeartbeatService) Record(rec models.HeartbeatRecord) {
	if rec.DeviceID == "" {
		return
	}
	if rec.Timestamp == nil {
		now := time.Now().UTC()
		rec.Timestamp = &now
	}
	h.pending.Set(rec.DeviceID, rec)
}

// Flush sends everything accumulated since the last flush. An empty batch
// is still sent: the call itself tells the service this relay is alive.
// On failure the records are restored for the next attempt, newest report
// winning.
func (h *HeartbeatService) Flush() {
	hubID := h.hubInfo.GetHubID()
	if hubID == "" {
		h.logger.Debug().Msg("Relay is not registered yet, skipping heartbeat flush")
		return
	}

	records := make([]models.HeartbeatRecord, 0, h.pending.Count())
	for _, key := range h.pending.Keys() {
		if rec, ok := h.pending.Pop(key); ok {
			records = append(records, rec)
		}
	}

	batch := models.HeartbeatBatch{Heartbeats: records}
	if h.telemetry != nil {
		batch.SystemInfo = h.telemetry.Collect()
	}

	result, err := h.publisher.SendHeartbeats(hubID, batch)
	if err != nil {
		h.logger.Warn().Err(err).Int("records", len(records)).Msg("Heartbeat flush failed, retaining records")
		for _, rec := range records {
			h.pending.SetIfAbsent(rec.DeviceID, rec)
		}
		return
	}

	if len(result.Errors) > 0 {
		h.logger.Warn().Strs("errors", result.Errors).Msg("Heartbeat batch partially rejected")
	}
	h.logger.Debug().Int("processed", result.Processed).Msg("Heartbeat batch flushed")
}

// handleStatusMessage ingests one device status report from the local
// bus. The device id comes from the topic (devices/<id>/status); the
// payload may carry status and timestamp.
func (h *HeartbeatService) handleStatusMessage(_ MQTT.Client, msg MQTT.Message) {
	deviceID := deviceIDFromTopic(msg.Topic())
	if deviceID == "" {
		h.logger.Warn().Str("topic", msg.Topic()).Msg("Status message on unrecognized topic")
		return
	}

	rec := models.HeartbeatRecord{DeviceID: deviceID, Status: models.DeviceStatusActive}
	if len(msg.Payload()) > 0 {
		var body struct {
			Status    string     `json:"status"`
			Timestamp *time.Time `json:"timestamp"`
		}
		if err := json.Unmarshal(msg.Payload(), &body); err != nil {
			h.logger.Warn().Err(err).Str("device_id", deviceID).Msg("Malformed status payload, recording as active")
		} else {
			if body.Status != "" {
				rec.Status = body.Status
			}
			rec.Timestamp = body.Timestamp
		}
	}

	h.Record(rec)
}

func (h *HeartbeatService) runFlushLoop() {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.Flush()
		case <-h.ctx.Done():
			h.logger.Info().Msg("Heartbeat flush loop stopping")
			return
		}
	}
}

// deviceIDFromTopic extracts <id> from devices/<id>/status.
func deviceIDFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != "devices" || parts[2] != "status" {
		return ""
	}
	return parts[1]
}
