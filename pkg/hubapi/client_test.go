package hubapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signware/hubsync/internal/models"
)

func newClientAgainst(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL, 5*time.Second, zerolog.Nop())
}

// TestClient_Register tests the registration round trip.
func TestClient_Register(t *testing.T) {
	// Setup
	var gotBody models.HubRegistration
	client := newClientAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/register", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(models.Hub{
			ID: "hub-1", Code: gotBody.Code, Status: models.HubStatusPending, APIToken: "hub_secret",
		})
	})

	// Execute
	h, err := client.Register(models.HubRegistration{Code: "NYC", Name: "Lobby", NetworkID: "net-1"})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "hub-1", h.ID)
	assert.Equal(t, "hub_secret", h.APIToken)
	assert.Equal(t, "NYC", gotBody.Code)
}

// TestClient_GetManifest_Authorized tests bearer token attachment.
func TestClient_GetManifest_Authorized(t *testing.T) {
	client := newClientAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/hubs/hub-1/playlists", r.URL.Path)
		assert.Equal(t, "Bearer hub_secret", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(models.Manifest{HubID: "hub-1", ManifestVersion: 3})
	})
	client.SetToken("hub_secret")

	m, err := client.GetManifest("hub-1")

	require.NoError(t, err)
	assert.Equal(t, int64(3), m.ManifestVersion)
}

// TestClient_APIError tests that non-2xx responses surface status and
// server message.
func TestClient_APIError(t *testing.T) {
	client := newClientAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "hub code NYC is already registered"})
	})

	_, err := client.Register(models.HubRegistration{Code: "NYC"})

	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "already registered")
}

// TestClient_SendHeartbeats tests the batch flush round trip.
func TestClient_SendHeartbeats(t *testing.T) {
	client := newClientAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/hubs/hub-1/heartbeats", r.URL.Path)

		var raw map[string]json.RawMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		_, hasField := raw["heartbeats"]
		assert.True(t, hasField, "empty batches must still carry the heartbeats field")

		_ = json.NewEncoder(w).Encode(models.HeartbeatResult{Processed: 0, Errors: []string{}})
	})

	res, err := client.SendHeartbeats("hub-1", models.HeartbeatBatch{Heartbeats: []models.HeartbeatRecord{}})

	require.NoError(t, err)
	assert.Equal(t, 0, res.Processed)
}

// TestClient_Ping tests reachability probing.
func TestClient_Ping(t *testing.T) {
	healthy := true
	client := newClientAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/healthz", r.URL.Path)
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	assert.NoError(t, client.Ping())

	healthy = false
	assert.Error(t, client.Ping())
}

// TestClient_DownloadToFile tests streaming a content binary to disk,
// creating parent directories.
func TestClient_DownloadToFile(t *testing.T) {
	payload := []byte("binary content")
	client := newClientAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/content/content-1/file", r.URL.Path)
		_, _ = w.Write(payload)
	})

	out := filepath.Join(t.TempDir(), "nested", "promo.mp4.part")
	err := client.DownloadToFile(client.ContentURL("content-1"), out)

	require.NoError(t, err)
	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

// TestClient_DownloadToFile_NotFound tests that a 404 yields an APIError
// and no file.
func TestClient_DownloadToFile_NotFound(t *testing.T) {
	client := newClientAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "content file not available"})
	})

	out := filepath.Join(t.TempDir(), "promo.mp4.part")
	err := client.DownloadToFile(client.ContentURL("content-1"), out)

	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))
}
