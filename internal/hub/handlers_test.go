package hub

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signware/hubsync/internal/models"
)

func newTestServer(t *testing.T, requireAuth bool) (*Repo, *mux.Router, string) {
	t.Helper()
	repo := newTestRepo(t)
	contentDir := t.TempDir()

	logger := zerolog.Nop()
	api := NewHTTP(
		NewRegistry(repo, logger),
		NewManifestService(repo, logger),
		NewIngestService(repo, logger),
		repo,
		contentDir,
		nil,
		requireAuth,
		logger,
	)
	router := mux.NewRouter()
	api.RegisterRoutes(router)
	return repo, router, contentDir
}

func doJSON(t *testing.T, router *mux.Router, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// TestHandlers_RegisterAndApprove tests the full provisioning flow over
// HTTP, including token exposure rules.
func TestHandlers_RegisterAndApprove(t *testing.T) {
	repo, router, _ := newTestServer(t, false)
	seedNetwork(t, repo)

	// Register returns 201 with the token, the only time it is shown
	rec := doJSON(t, router, http.MethodPost, "/register", "", validRegistration())
	require.Equal(t, http.StatusCreated, rec.Code)

	var registered models.Hub
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &registered))
	assert.Equal(t, models.HubStatusPending, registered.Status)
	assert.NotEmpty(t, registered.APIToken)

	// Approve returns the hub without the token
	rec = doJSON(t, router, http.MethodPut, "/hubs/"+registered.ID+"/approve", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), registered.APIToken)

	var approved models.Hub
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &approved))
	assert.Equal(t, models.HubStatusActive, approved.Status)
	assert.Empty(t, approved.APIToken)
}

// TestHandlers_ErrorTaxonomy tests the domain-error to status mapping.
func TestHandlers_ErrorTaxonomy(t *testing.T) {
	repo, router, _ := newTestServer(t, false)
	seedNetwork(t, repo)

	rec := doJSON(t, router, http.MethodPost, "/register", "", validRegistration())
	require.Equal(t, http.StatusCreated, rec.Code)
	var registered models.Hub
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &registered))

	// Duplicate code -> 409
	rec = doJSON(t, router, http.MethodPost, "/register", "", validRegistration())
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Malformed code -> 400
	bad := validRegistration()
	bad.Code = "nope1"
	rec = doJSON(t, router, http.MethodPost, "/register", "", bad)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown hub -> 404
	rec = doJSON(t, router, http.MethodPut, "/hubs/no-such-hub/approve", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Approve active hub -> 400
	rec = doJSON(t, router, http.MethodPut, "/hubs/"+registered.ID+"/approve", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, router, http.MethodPut, "/hubs/"+registered.ID+"/approve", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Every error body carries an error field
	var errBody map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errBody))
	assert.NotEmpty(t, errBody["error"])
}

// TestHandlers_Playlists_Auth tests bearer-token enforcement on the relay
// surface.
func TestHandlers_Playlists_Auth(t *testing.T) {
	repo, router, _ := newTestServer(t, true)
	n := seedNetwork(t, repo)
	h := seedHub(t, repo, n.ID)

	// No token
	rec := doJSON(t, router, http.MethodGet, "/hubs/"+h.ID+"/playlists", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Wrong token
	rec = doJSON(t, router, http.MethodGet, "/hubs/"+h.ID+"/playlists", "hub_wrong", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Correct token
	rec = doJSON(t, router, http.MethodGet, "/hubs/"+h.ID+"/playlists", h.APIToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var manifest models.Manifest
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &manifest))
	assert.Equal(t, h.ID, manifest.HubID)

	// Unknown hub with a token still yields 404, not 401
	rec = doJSON(t, router, http.MethodGet, "/hubs/no-such-hub/playlists", "hub_whatever", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// TestHandlers_Heartbeats tests batch validation and partial failure over
// the wire.
func TestHandlers_Heartbeats(t *testing.T) {
	repo, router, _ := newTestServer(t, false)
	n := seedNetwork(t, repo)
	h := seedHub(t, repo, n.ID)
	seedDevice(t, repo, "dev-1", h.ID, n.ID)

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/hubs/"+h.ID+"/heartbeats", bytes.NewBufferString(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	// Missing heartbeats field -> 400
	rec := post(`{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Empty array -> valid, processed=0, hub heartbeat recorded
	rec = post(`{"heartbeats": []}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var result models.HeartbeatResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 0, result.Processed)

	stored, err := repo.GetHubByID(h.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastHeartbeat)

	// Mixed known and unknown devices -> 200 with per-item errors
	rec = post(`{"heartbeats": [{"device_id": "dev-1"}, {"device_id": "ghost"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 1, result.Processed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "ghost")
}

// TestHandlers_ContentFile tests local disk serving and the missing-file
// path.
func TestHandlers_ContentFile(t *testing.T) {
	repo, router, contentDir := newTestServer(t, false)

	payload := []byte("fake video bytes")
	c := seedContent(t, repo, "content-1", "promo.mp4", "")
	require.NoError(t, os.MkdirAll(filepath.Join(contentDir, c.ID), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(contentDir, c.ID, c.Filename), payload, 0644))

	rec := doJSON(t, router, http.MethodGet, "/content/"+c.ID+"/file", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, payload, rec.Body.Bytes())
	assert.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))

	// Known row, file missing on disk -> 404
	seedContent(t, repo, "content-2", "gone.mp4", "")
	rec = doJSON(t, router, http.MethodGet, "/content/content-2/file", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Unknown content id -> 404
	rec = doJSON(t, router, http.MethodGet, "/content/no-such/file", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// TestHandlers_AdminSurface tests the console-facing creation endpoints
// end to end.
func TestHandlers_AdminSurface(t *testing.T) {
	repo, router, _ := newTestServer(t, false)

	// Network
	rec := doJSON(t, router, http.MethodPost, "/networks", "", map[string]string{"name": "Retail"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var network models.Network
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &network))
	assert.Equal(t, int64(1), network.ManifestVersion)

	// Content
	rec = doJSON(t, router, http.MethodPost, "/content", "", map[string]any{
		"filename": "promo.mp4", "mime_type": "video/mp4", "file_size": 2048, "hash": "aa11",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var content models.Content
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &content))

	// Playlist
	rec = doJSON(t, router, http.MethodPost, "/playlists", "", map[string]any{
		"name": "Morning Loop", "network_id": network.ID, "is_active": true,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var playlist models.Playlist
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &playlist))
	assert.Equal(t, "default", playlist.TriggerType)

	// Item
	rec = doJSON(t, router, http.MethodPost, "/playlists/"+playlist.ID+"/items", "", map[string]any{
		"content_id": content.ID, "position": 1,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	// Duplicate position -> 409
	rec = doJSON(t, router, http.MethodPost, "/playlists/"+playlist.ID+"/items", "", map[string]any{
		"content_id": content.ID, "position": 1,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Update playlist fields
	rec = doJSON(t, router, http.MethodPut, "/playlists/"+playlist.ID, "", map[string]any{
		"trigger_type": "demographic", "is_active": false,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &playlist))
	assert.Equal(t, "demographic", playlist.TriggerType)
	assert.False(t, playlist.IsActive)

	// Mutations moved the version past its starting point
	got, err := repo.GetNetwork(network.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), got.ManifestVersion)
}
