package models

import (
	"encoding/json"
	"time"
)

// Device heartbeat statuses accepted on the wire.
const (
	DeviceStatusActive  = "active"
	DeviceStatusOffline = "offline"
	DeviceStatusError   = "error"
)

// HeartbeatRecord is one device status report. Status and Timestamp are
// optional; the ingest side defaults them to "active" and receipt time.
type HeartbeatRecord struct {
	DeviceID  string     `json:"device_id"`
	Status    string     `json:"status,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// HeartbeatBatch is the wire payload of POST /hubs/{hub_id}/heartbeats.
// Heartbeats is kept raw so the handler can distinguish a missing or
// malformed field (hard validation error) from a present-but-empty array
// (valid, processed=0).
type HeartbeatBatch struct {
	Heartbeats []HeartbeatRecord `json:"heartbeats"`
	SystemInfo *SystemInfo       `json:"system_info,omitempty"`
}

// heartbeatBatchWire mirrors HeartbeatBatch with the array left undecoded.
type heartbeatBatchWire struct {
	Heartbeats json.RawMessage `json:"heartbeats"`
	SystemInfo *SystemInfo     `json:"system_info,omitempty"`
}

// DecodeHeartbeatBatch parses a heartbeat batch body, reporting ok=false
// when the heartbeats field is absent or not an array.
func DecodeHeartbeatBatch(data []byte) (HeartbeatBatch, bool) {
	var wire heartbeatBatchWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return HeartbeatBatch{}, false
	}
	if len(wire.Heartbeats) == 0 || string(wire.Heartbeats) == "null" {
		return HeartbeatBatch{}, false
	}

	var records []HeartbeatRecord
	if err := json.Unmarshal(wire.Heartbeats, &records); err != nil {
		return HeartbeatBatch{}, false
	}
	if records == nil {
		records = []HeartbeatRecord{}
	}
	return HeartbeatBatch{Heartbeats: records, SystemInfo: wire.SystemInfo}, true
}

// HeartbeatResult reports a batch outcome. Per-item failures are data, not
// errors; the batch as a whole always succeeds once it validates.
type HeartbeatResult struct {
	Processed        int       `json:"processed"`
	Errors           []string  `json:"errors"`
	HubLastHeartbeat time.Time `json:"hub_last_heartbeat"`
}

// SystemInfo is the relay's own telemetry snapshot, attached to heartbeat
// flushes.
type SystemInfo struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	DiskPercent   float64 `json:"disk_percent"`
	UptimeSeconds uint64  `json:"uptime_seconds"`
}
