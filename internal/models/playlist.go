package models

import (
	"encoding/json"
	"time"
)

// Content is an immutable published media file. Hash may legitimately be
// empty when the upstream never computed one; consumers must not treat an
// empty hash as a mismatch.
type Content struct {
	ID        string    `gorm:"type:char(36);primaryKey" json:"id"`
	Filename  string    `gorm:"type:text;not null" json:"filename"`
	MimeType  string    `gorm:"type:text" json:"mime_type"`
	FileSize  int64     `json:"file_size"`
	Hash      string    `gorm:"type:char(64)" json:"hash"`
	ObjectKey string    `gorm:"type:text" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Playlist groups ordered content items within a network. Only playlists
// with IsActive set are ever shipped to relays.
type Playlist struct {
	ID            string          `gorm:"type:char(36);primaryKey" json:"id"`
	Name          string          `gorm:"type:text;not null" json:"name"`
	Description   string          `gorm:"type:text" json:"description"`
	NetworkID     string          `gorm:"type:char(36);index;not null" json:"network_id"`
	TriggerType   string          `gorm:"type:varchar(32)" json:"trigger_type"`
	TriggerConfig json.RawMessage `gorm:"type:text" json:"trigger_config"`
	IsActive      bool            `json:"is_active"`
	Items         []PlaylistItem  `gorm:"foreignKey:PlaylistID" json:"items,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// PlaylistItem places one content entry at a position within a playlist.
// Positions are unique within a playlist and define playback order.
type PlaylistItem struct {
	ID               string    `gorm:"type:char(36);primaryKey" json:"id"`
	PlaylistID       string    `gorm:"type:char(36);index:idx_playlist_position,unique;not null" json:"playlist_id"`
	ContentID        string    `gorm:"type:char(36);not null" json:"content_id"`
	Position         int       `gorm:"index:idx_playlist_position,unique;not null" json:"position"`
	DurationOverride *int      `json:"duration_override"`
	CreatedAt        time.Time `json:"-"`
}
