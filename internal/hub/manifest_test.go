package hub

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signware/hubsync/internal/models"
)

func seedHub(t *testing.T, repo *Repo, networkID string) *models.Hub {
	t.Helper()
	h := &models.Hub{
		ID:        "hub-1",
		Code:      "NYC",
		Name:      "Lobby Hub",
		NetworkID: networkID,
		Status:    models.HubStatusActive,
		APIToken:  "hub_testtoken",
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.CreateHub(h))
	return h
}

func seedContent(t *testing.T, repo *Repo, id, filename, hash string) *models.Content {
	t.Helper()
	c := &models.Content{
		ID:        id,
		Filename:  filename,
		MimeType:  "video/mp4",
		FileSize:  1024,
		Hash:      hash,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.CreateContent(c))
	return c
}

func seedPlaylist(t *testing.T, repo *Repo, id, networkID, triggerType string, active bool) *models.Playlist {
	t.Helper()
	p := &models.Playlist{
		ID:          id,
		Name:        "Playlist " + id,
		NetworkID:   networkID,
		TriggerType: triggerType,
		IsActive:    active,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	require.NoError(t, repo.CreatePlaylist(p))
	return p
}

func seedItem(t *testing.T, repo *Repo, networkID, id, playlistID, contentID string, position int) {
	t.Helper()
	require.NoError(t, repo.AddPlaylistItem(networkID, &models.PlaylistItem{
		ID:         id,
		PlaylistID: playlistID,
		ContentID:  contentID,
		Position:   position,
		CreatedAt:  time.Now().UTC(),
	}))
}

// TestManifestService_GetManifest tests the full manifest expansion:
// active playlists only, items in position order, content metadata joined.
func TestManifestService_GetManifest(t *testing.T) {
	// Setup
	repo := newTestRepo(t)
	n := seedNetwork(t, repo)
	h := seedHub(t, repo, n.ID)
	ms := NewManifestService(repo, zerolog.Nop())

	seedContent(t, repo, "content-1", "promo.mp4", "aa11")
	seedContent(t, repo, "content-2", "menu.png", "")

	p := seedPlaylist(t, repo, "pl-1", n.ID, "default", true)
	seedPlaylist(t, repo, "pl-2", n.ID, "default", false) // inactive, excluded

	// Another network's playlist must never leak into this manifest.
	other := &models.Network{
		ID:              "net-2",
		Name:            "Other Network",
		ManifestVersion: 1,
		CreatedAt:       time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
	}
	require.NoError(t, repo.CreateNetwork(other))
	seedPlaylist(t, repo, "pl-other", other.ID, "default", true)

	// Inserted out of order on purpose
	seedItem(t, repo, n.ID, "item-2", p.ID, "content-2", 2)
	seedItem(t, repo, n.ID, "item-1", p.ID, "content-1", 1)

	// Execute
	manifest, err := ms.GetManifest(h.ID)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, h.ID, manifest.HubID)
	assert.Equal(t, h.Code, manifest.HubCode)
	assert.Equal(t, n.ID, manifest.NetworkID)
	require.Len(t, manifest.Playlists, 1)
	assert.Equal(t, manifest.Count, len(manifest.Playlists))

	got := manifest.Playlists[0]
	assert.Equal(t, "pl-1", got.ID)
	assert.Equal(t, 2, got.ItemCount)
	require.Len(t, got.Items, 2)
	assert.Equal(t, 1, got.Items[0].Position)
	assert.Equal(t, 2, got.Items[1].Position)
	assert.Equal(t, "promo.mp4", got.Items[0].Content.Filename)
	assert.Equal(t, "aa11", got.Items[0].Content.Hash)
	assert.Equal(t, "", got.Items[1].Content.Hash)
}

// TestManifestService_GetManifest_ByCode tests hub resolution by code.
func TestManifestService_GetManifest_ByCode(t *testing.T) {
	repo := newTestRepo(t)
	n := seedNetwork(t, repo)
	h := seedHub(t, repo, n.ID)
	ms := NewManifestService(repo, zerolog.Nop())

	manifest, err := ms.GetManifest(h.Code)

	require.NoError(t, err)
	assert.Equal(t, h.ID, manifest.HubID)
}

// TestManifestService_GetManifest_Empty tests that a network without
// active playlists yields a valid empty manifest.
func TestManifestService_GetManifest_Empty(t *testing.T) {
	repo := newTestRepo(t)
	n := seedNetwork(t, repo)
	h := seedHub(t, repo, n.ID)
	ms := NewManifestService(repo, zerolog.Nop())

	manifest, err := ms.GetManifest(h.ID)

	require.NoError(t, err)
	assert.NotNil(t, manifest.Playlists)
	assert.Len(t, manifest.Playlists, 0)
	assert.Equal(t, 0, manifest.Count)
}

// TestManifestService_GetManifest_UnknownHub tests the not-found path.
func TestManifestService_GetManifest_UnknownHub(t *testing.T) {
	repo := newTestRepo(t)
	ms := NewManifestService(repo, zerolog.Nop())

	_, err := ms.GetManifest("no-such-hub")

	require.Error(t, err)
	var notFound *NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

// TestManifestVersion_BumpsOnMutation tests that every committed playlist
// mutation advances the network manifest version exactly once.
func TestManifestVersion_BumpsOnMutation(t *testing.T) {
	repo := newTestRepo(t)
	n := seedNetwork(t, repo)
	seedContent(t, repo, "content-1", "promo.mp4", "aa11")

	version := func() int64 {
		got, err := repo.GetNetwork(n.ID)
		require.NoError(t, err)
		return got.ManifestVersion
	}
	base := version()

	p := seedPlaylist(t, repo, "pl-1", n.ID, "default", true)
	assert.Equal(t, base+1, version(), "create playlist")

	seedItem(t, repo, n.ID, "item-1", p.ID, "content-1", 1)
	assert.Equal(t, base+2, version(), "add item")

	p.IsActive = false
	require.NoError(t, repo.SavePlaylist(p))
	assert.Equal(t, base+3, version(), "deactivate playlist")

	require.NoError(t, repo.RemovePlaylistItem(n.ID, "item-1"))
	assert.Equal(t, base+4, version(), "remove item")
}

// TestManifestVersion_NoBumpOnFailedMutation tests that a rejected
// mutation leaves the version untouched.
func TestManifestVersion_NoBumpOnFailedMutation(t *testing.T) {
	repo := newTestRepo(t)
	n := seedNetwork(t, repo)
	seedContent(t, repo, "content-1", "promo.mp4", "aa11")
	p := seedPlaylist(t, repo, "pl-1", n.ID, "default", true)
	seedItem(t, repo, n.ID, "item-1", p.ID, "content-1", 1)

	before, err := repo.GetNetwork(n.ID)
	require.NoError(t, err)

	// Same position is a conflict and must roll back
	err = repo.AddPlaylistItem(n.ID, &models.PlaylistItem{
		ID:         "item-dup",
		PlaylistID: p.ID,
		ContentID:  "content-1",
		Position:   1,
	})
	require.Error(t, err)
	var conflict *ConflictError
	assert.ErrorAs(t, err, &conflict)

	after, err := repo.GetNetwork(n.ID)
	require.NoError(t, err)
	assert.Equal(t, before.ManifestVersion, after.ManifestVersion)
}
