package hub

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/signware/hubsync/internal/models"
)

// IngestService records batched device heartbeats with per-item partial
// failure: one bad record never fails the rest of the batch.
type IngestService struct {
	repo   *Repo
	logger zerolog.Logger
	now    func() time.Time
}

// NewIngestService creates an IngestService on top of the store.
func NewIngestService(repo *Repo, logger zerolog.Logger) *IngestService {
	return &IngestService{repo: repo, logger: logger, now: time.Now}
}

// Ingest applies each record independently, collecting failures instead of
// aborting. The hub's own last_heartbeat is updated even when every item
// fails - the call itself proves connectivity. An empty batch is valid.
func (is *IngestService) Ingest(hubID string, batch models.HeartbeatBatch) (*models.HeartbeatResult, error) {
	h, err := is.repo.GetHubByID(hubID)
	if err != nil {
		return nil, err
	}

	receivedAt := is.now().UTC()
	result := &models.HeartbeatResult{Errors: []string{}, HubLastHeartbeat: receivedAt}

	for i, rec := range batch.Heartbeats {
		if err := is.applyRecord(rec, receivedAt); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("heartbeat[%d]: %v", i, err))
			continue
		}
		result.Processed++
	}

	if err := is.repo.TouchHubHeartbeat(h.ID, receivedAt); err != nil {
		return nil, err
	}

	if batch.SystemInfo != nil {
		is.logger.Debug().
			Str("hub_id", h.ID).
			Float64("cpu_percent", batch.SystemInfo.CPUPercent).
			Float64("memory_percent", batch.SystemInfo.MemoryPercent).
			Msg("Relay telemetry received")
	}

	is.logger.Info().
		Str("hub_id", h.ID).
		Int("processed", result.Processed).
		Int("failed", len(result.Errors)).
		Msg("Heartbeat batch ingested")
	return result, nil
}

// applyRecord validates and stores one heartbeat, defaulting status to
// "active" and timestamp to receipt time.
func (is *IngestService) applyRecord(rec models.HeartbeatRecord, receivedAt time.Time) error {
	if rec.DeviceID == "" {
		return fmt.Errorf("missing device_id")
	}

	status := rec.Status
	if status == "" {
		status = models.DeviceStatusActive
	}
	switch status {
	case models.DeviceStatusActive, models.DeviceStatusOffline, models.DeviceStatusError:
	default:
		return fmt.Errorf("invalid status %q for device %s", rec.Status, rec.DeviceID)
	}

	at := receivedAt
	if rec.Timestamp != nil {
		at = rec.Timestamp.UTC()
	}

	return is.repo.UpdateDeviceHeartbeat(rec.DeviceID, status, at)
}
