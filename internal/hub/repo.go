package hub

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/signware/hubsync/internal/models"
)

// Repo is the gorm-backed store for the service tier.
type Repo struct {
	db *gorm.DB
}

// NewRepo wraps an open gorm connection.
func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// Migrate creates or updates the service-tier schema.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Network{},
		&models.Hub{},
		&models.Device{},
		&models.Content{},
		&models.Playlist{},
		&models.PlaylistItem{},
	)
}

// ---- networks ----

func (r *Repo) CreateNetwork(n *models.Network) error {
	return r.db.Create(n).Error
}

func (r *Repo) GetNetwork(id string) (*models.Network, error) {
	var n models.Network
	if err := r.db.First(&n, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Msg: fmt.Sprintf("network %s not found", id)}
		}
		return nil, err
	}
	return &n, nil
}

// bumpManifestVersion increments the network's manifest version inside the
// caller's transaction. Every committed mutation of the network's playlist
// set goes through this, so relays can use the version as a change signal.
func bumpManifestVersion(tx *gorm.DB, networkID string) error {
	return tx.Model(&models.Network{}).
		Where("id = ?", networkID).
		Update("manifest_version", gorm.Expr("manifest_version + 1")).Error
}

// ---- hubs ----

func (r *Repo) CreateHub(h *models.Hub) error {
	return r.db.Create(h).Error
}

func (r *Repo) SaveHub(h *models.Hub) error {
	return r.db.Save(h).Error
}

func (r *Repo) GetHubByID(id string) (*models.Hub, error) {
	var h models.Hub
	if err := r.db.First(&h, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Msg: fmt.Sprintf("hub %s not found", id)}
		}
		return nil, err
	}
	return &h, nil
}

// GetHubByIDOrCode resolves a hub by primary id first, then by its code.
func (r *Repo) GetHubByIDOrCode(idOrCode string) (*models.Hub, error) {
	var h models.Hub
	err := r.db.First(&h, "id = ?", idOrCode).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = r.db.First(&h, "code = ?", idOrCode).Error
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Msg: fmt.Sprintf("hub %s not found", idOrCode)}
		}
		return nil, err
	}
	return &h, nil
}

func (r *Repo) HubCodeExists(code string) (bool, error) {
	var count int64
	if err := r.db.Model(&models.Hub{}).Where("code = ?", code).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// TouchHubHeartbeat records that the hub called in, regardless of batch
// outcome.
func (r *Repo) TouchHubHeartbeat(hubID string, at time.Time) error {
	return r.db.Model(&models.Hub{}).
		Where("id = ?", hubID).
		Update("last_heartbeat", at).Error
}

// ---- devices ----

func (r *Repo) CreateDevice(d *models.Device) error {
	return r.db.Create(d).Error
}

func (r *Repo) GetDevice(id string) (*models.Device, error) {
	var d models.Device
	if err := r.db.First(&d, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Msg: fmt.Sprintf("device %s not found", id)}
		}
		return nil, err
	}
	return &d, nil
}

// UpdateDeviceHeartbeat stores the latest status for a known device.
// Returns a NotFoundError when the device does not exist.
func (r *Repo) UpdateDeviceHeartbeat(deviceID, status string, at time.Time) error {
	res := r.db.Model(&models.Device{}).
		Where("id = ?", deviceID).
		Updates(map[string]any{"status": status, "last_heartbeat": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &NotFoundError{Msg: fmt.Sprintf("unknown device %s", deviceID)}
	}
	return nil
}

// ---- content ----

func (r *Repo) CreateContent(c *models.Content) error {
	return r.db.Create(c).Error
}

func (r *Repo) GetContent(id string) (*models.Content, error) {
	var c models.Content
	if err := r.db.First(&c, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Msg: fmt.Sprintf("content %s not found", id)}
		}
		return nil, err
	}
	return &c, nil
}

func (r *Repo) GetContentByIDs(ids []string) (map[string]models.Content, error) {
	var rows []models.Content
	if err := r.db.Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]models.Content, len(rows))
	for _, c := range rows {
		byID[c.ID] = c
	}
	return byID, nil
}

// ---- playlists ----

// CreatePlaylist inserts a playlist and bumps the network manifest version
// in the same transaction.
func (r *Repo) CreatePlaylist(p *models.Playlist) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(p).Error; err != nil {
			return err
		}
		return bumpManifestVersion(tx, p.NetworkID)
	})
}

// SavePlaylist persists playlist field changes (rename, activate,
// deactivate, trigger edits) and bumps the network manifest version.
func (r *Repo) SavePlaylist(p *models.Playlist) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Items").Save(p).Error; err != nil {
			return err
		}
		return bumpManifestVersion(tx, p.NetworkID)
	})
}

func (r *Repo) GetPlaylist(id string) (*models.Playlist, error) {
	var p models.Playlist
	if err := r.db.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	}).First(&p, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Msg: fmt.Sprintf("playlist %s not found", id)}
		}
		return nil, err
	}
	return &p, nil
}

// AddPlaylistItem appends or inserts one item and bumps the network
// manifest version. Position collisions surface as a ConflictError since
// positions are unique within a playlist.
func (r *Repo) AddPlaylistItem(networkID string, item *models.PlaylistItem) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.PlaylistItem{}).
			Where("playlist_id = ? AND position = ?", item.PlaylistID, item.Position).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return &ConflictError{Msg: fmt.Sprintf("position %d already taken in playlist %s", item.Position, item.PlaylistID)}
		}
		if err := tx.Create(item).Error; err != nil {
			return err
		}
		return bumpManifestVersion(tx, networkID)
	})
	return err
}

// RemovePlaylistItem deletes one item and bumps the network manifest version.
func (r *Repo) RemovePlaylistItem(networkID, itemID string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&models.PlaylistItem{}, "id = ?", itemID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &NotFoundError{Msg: fmt.Sprintf("playlist item %s not found", itemID)}
		}
		return bumpManifestVersion(tx, networkID)
	})
}

// ListActivePlaylists returns the network's active playlists with their
// items preloaded in playback order.
func (r *Repo) ListActivePlaylists(networkID string) ([]models.Playlist, error) {
	var playlists []models.Playlist
	err := r.db.
		Where("network_id = ? AND is_active = ?", networkID, true).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Order("created_at ASC").
		Find(&playlists).Error
	if err != nil {
		return nil, err
	}
	return playlists, nil
}
