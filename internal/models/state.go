package models

import "time"

// PlaylistCache is the on-disk shape of playlist.json, the device's durable
// offline source of truth for what to play. It is read at boot for immediate
// offline playback and rewritten only by the sync agent on a successful cycle.
type PlaylistCache struct {
	Version   int64              `json:"version"`
	Default   []ManifestPlaylist `json:"default_playlists"`
	Triggered []ManifestPlaylist `json:"triggered_playlists"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// Settings is the on-disk shape of settings.json, the device's feature
// toggles. Missing file means all defaults.
type Settings struct {
	PlaybackEnabled  bool `json:"playback_enabled"`
	TriggersEnabled  bool `json:"triggers_enabled"`
	TelemetryEnabled bool `json:"telemetry_enabled"`
}

// DefaultSettings returns the toggles used when settings.json is absent.
func DefaultSettings() Settings {
	return Settings{
		PlaybackEnabled:  true,
		TriggersEnabled:  true,
		TelemetryEnabled: true,
	}
}
