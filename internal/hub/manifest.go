package hub

import (
	"github.com/rs/zerolog"

	"github.com/signware/hubsync/internal/models"
)

// ManifestService builds the versioned, network-scoped playlist snapshot
// served to relays.
type ManifestService struct {
	repo   *Repo
	logger zerolog.Logger
}

// NewManifestService creates a ManifestService on top of the store.
func NewManifestService(repo *Repo, logger zerolog.Logger) *ManifestService {
	return &ManifestService{repo: repo, logger: logger}
}

// GetManifest resolves the hub by id or code and expands every active
// playlist of its network with ordered items and content metadata. A
// network with no active playlists yields an empty, valid manifest.
func (ms *ManifestService) GetManifest(hubIDOrCode string) (*models.Manifest, error) {
	h, err := ms.repo.GetHubByIDOrCode(hubIDOrCode)
	if err != nil {
		return nil, err
	}

	network, err := ms.repo.GetNetwork(h.NetworkID)
	if err != nil {
		return nil, err
	}

	playlists, err := ms.repo.ListActivePlaylists(h.NetworkID)
	if err != nil {
		return nil, err
	}

	contentByID, err := ms.contentIndex(playlists)
	if err != nil {
		return nil, err
	}

	out := make([]models.ManifestPlaylist, 0, len(playlists))
	for _, p := range playlists {
		items := make([]models.ManifestItem, 0, len(p.Items))
		for _, it := range p.Items {
			item := models.ManifestItem{
				ID:               it.ID,
				PlaylistID:       it.PlaylistID,
				ContentID:        it.ContentID,
				Position:         it.Position,
				DurationOverride: it.DurationOverride,
			}
			if c, ok := contentByID[it.ContentID]; ok {
				item.Content = models.ContentMeta{
					ID:       c.ID,
					Filename: c.Filename,
					MimeType: c.MimeType,
					FileSize: c.FileSize,
					Hash:     c.Hash,
				}
			}
			items = append(items, item)
		}
		out = append(out, models.ManifestPlaylist{
			ID:            p.ID,
			Name:          p.Name,
			Description:   p.Description,
			NetworkID:     p.NetworkID,
			TriggerType:   p.TriggerType,
			TriggerConfig: p.TriggerConfig,
			IsActive:      p.IsActive,
			CreatedAt:     p.CreatedAt,
			UpdatedAt:     p.UpdatedAt,
			ItemCount:     len(items),
			Items:         items,
		})
	}

	ms.logger.Debug().
		Str("hub_id", h.ID).
		Int64("manifest_version", network.ManifestVersion).
		Int("playlists", len(out)).
		Msg("Manifest built")

	return &models.Manifest{
		HubID:           h.ID,
		HubCode:         h.Code,
		NetworkID:       h.NetworkID,
		ManifestVersion: network.ManifestVersion,
		Playlists:       out,
		Count:           len(out),
	}, nil
}

// contentIndex loads the content rows referenced by any playlist item.
func (ms *ManifestService) contentIndex(playlists []models.Playlist) (map[string]models.Content, error) {
	seen := make(map[string]struct{})
	ids := make([]string, 0)
	for _, p := range playlists {
		for _, it := range p.Items {
			if _, ok := seen[it.ContentID]; ok {
				continue
			}
			seen[it.ContentID] = struct{}{}
			ids = append(ids, it.ContentID)
		}
	}
	if len(ids) == 0 {
		return map[string]models.Content{}, nil
	}
	return ms.repo.GetContentByIDs(ids)
}
