package models

import (
	"encoding/json"
	"time"
)

// Manifest is a point-in-time, network-scoped snapshot of the active
// playlists served to one hub. An empty Playlists slice is a valid manifest.
type Manifest struct {
	HubID           string             `json:"hub_id"`
	HubCode         string             `json:"hub_code"`
	NetworkID       string             `json:"network_id"`
	ManifestVersion int64              `json:"manifest_version"`
	Playlists       []ManifestPlaylist `json:"playlists"`
	Count           int                `json:"count"`
}

// ManifestPlaylist is one fully expanded playlist inside a manifest.
type ManifestPlaylist struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	NetworkID     string          `json:"network_id"`
	TriggerType   string          `json:"trigger_type"`
	TriggerConfig json.RawMessage `json:"trigger_config"`
	IsActive      bool            `json:"is_active"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	ItemCount     int             `json:"item_count"`
	Items         []ManifestItem  `json:"items"`
}

// ManifestItem carries the content's descriptive metadata, never the binary.
type ManifestItem struct {
	ID               string      `json:"id"`
	PlaylistID       string      `json:"playlist_id"`
	ContentID        string      `json:"content_id"`
	Position         int         `json:"position"`
	DurationOverride *int        `json:"duration_override"`
	Content          ContentMeta `json:"content"`
}

// ContentMeta is the descriptive subset of Content shipped in manifests.
type ContentMeta struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	MimeType string `json:"mime_type"`
	FileSize int64  `json:"file_size"`
	Hash     string `json:"hash"`
}
