package hub

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/signware/hubsync/internal/models"
)

// ObjectStore issues bounded-lifetime download URLs for content stored in
// an object-storage bucket rather than on local disk.
type ObjectStore interface {
	PresignedGetURL(objectKey string, expiry time.Duration) (string, error)
}

// HTTP exposes the hub sync protocol over gorilla/mux.
type HTTP struct {
	registry *Registry
	manifest *ManifestService
	ingest   *IngestService
	repo     *Repo

	contentDir  string
	objectStore ObjectStore
	requireAuth bool
	logger      zerolog.Logger
}

// NewHTTP wires the protocol services into one HTTP surface.
func NewHTTP(registry *Registry, manifest *ManifestService, ingest *IngestService,
	repo *Repo, contentDir string, objectStore ObjectStore, requireAuth bool,
	logger zerolog.Logger) *HTTP {
	return &HTTP{
		registry:    registry,
		manifest:    manifest,
		ingest:      ingest,
		repo:        repo,
		contentDir:  contentDir,
		objectStore: objectStore,
		requireAuth: requireAuth,
		logger:      logger,
	}
}

// RegisterRoutes attaches every endpoint of the wire contract plus the
// minimal data-management surface the console consumes.
func (h *HTTP) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/healthz", h.handleHealth).Methods(http.MethodGet, http.MethodHead)

	r.HandleFunc("/register", h.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/hubs/{hub_id}/approve", h.handleApprove).Methods(http.MethodPut)
	r.HandleFunc("/hubs/{hub_id}/playlists", h.handlePlaylists).Methods(http.MethodGet)
	r.HandleFunc("/hubs/{hub_id}/heartbeats", h.handleHeartbeats).Methods(http.MethodPost)
	r.HandleFunc("/hubs/{hub_id}/devices", h.handleCreateDevice).Methods(http.MethodPost)

	r.HandleFunc("/content/{content_id}/file", h.handleContentFile).Methods(http.MethodGet)

	// Data-management surface consumed by the (external) console.
	r.HandleFunc("/networks", h.handleCreateNetwork).Methods(http.MethodPost)
	r.HandleFunc("/content", h.handleCreateContent).Methods(http.MethodPost)
	r.HandleFunc("/playlists", h.handleCreatePlaylist).Methods(http.MethodPost)
	r.HandleFunc("/playlists/{playlist_id}", h.handleUpdatePlaylist).Methods(http.MethodPut)
	r.HandleFunc("/playlists/{playlist_id}/items", h.handleAddPlaylistItem).Methods(http.MethodPost)
}

func (h *HTTP) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// POST /register
func (h *HTTP) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req models.HubRegistration
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, &ValidationError{Msg: "invalid request body"})
		return
	}

	created, err := h.registry.Register(req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	// The only response that ever carries the api token.
	writeJSON(w, http.StatusCreated, created)
}

// PUT /hubs/{hub_id}/approve
func (h *HTTP) handleApprove(w http.ResponseWriter, r *http.Request) {
	approved, err := h.registry.Approve(mux.Vars(r)["hub_id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	approved.APIToken = ""
	writeJSON(w, http.StatusOK, approved)
}

// GET /hubs/{hub_id}/playlists
func (h *HTTP) handlePlaylists(w http.ResponseWriter, r *http.Request) {
	hubID := mux.Vars(r)["hub_id"]
	if !h.authorized(r, hubID) {
		h.writeAuthError(w)
		return
	}

	manifest, err := h.manifest.GetManifest(hubID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, manifest)
}

// POST /hubs/{hub_id}/heartbeats
func (h *HTTP) handleHeartbeats(w http.ResponseWriter, r *http.Request) {
	hubID := mux.Vars(r)["hub_id"]
	if !h.authorized(r, hubID) {
		h.writeAuthError(w)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeError(w, &ValidationError{Msg: "unreadable request body"})
		return
	}
	batch, ok := models.DecodeHeartbeatBatch(body)
	if !ok {
		h.writeError(w, &ValidationError{Msg: "request body must contain a heartbeats array"})
		return
	}

	result, err := h.ingest.Ingest(hubID, batch)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// POST /hubs/{hub_id}/devices
func (h *HTTP) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	hubRec, err := h.repo.GetHubByID(mux.Vars(r)["hub_id"])
	if err != nil {
		h.writeError(w, err)
		return
	}

	var req struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, &ValidationError{Msg: "invalid request body"})
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	d := &models.Device{
		ID:        req.ID,
		HubID:     hubRec.ID,
		NetworkID: hubRec.NetworkID,
		Name:      req.Name,
		Status:    models.DeviceStatusOffline,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := h.repo.CreateDevice(d); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

// GET /content/{content_id}/file
func (h *HTTP) handleContentFile(w http.ResponseWriter, r *http.Request) {
	c, err := h.repo.GetContent(mux.Vars(r)["content_id"])
	if err != nil {
		h.writeError(w, err)
		return
	}

	if h.objectStore != nil && c.ObjectKey != "" {
		url, err := h.objectStore.PresignedGetURL(c.ObjectKey, 15*time.Minute)
		if err != nil {
			h.logger.Error().Err(err).Str("content_id", c.ID).Msg("Failed to presign content URL")
			h.writeError(w, err)
			return
		}
		http.Redirect(w, r, url, http.StatusTemporaryRedirect)
		return
	}

	path := filepath.Join(h.contentDir, c.ID, c.Filename)
	if _, err := os.Stat(path); err != nil {
		h.writeError(w, &NotFoundError{Msg: "content file not available"})
		return
	}
	if c.MimeType != "" {
		w.Header().Set("Content-Type", c.MimeType)
	}
	http.ServeFile(w, r, path)
}

// POST /networks
func (h *HTTP) handleCreateNetwork(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		h.writeError(w, &ValidationError{Msg: "name is required"})
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	n := &models.Network{
		ID:              req.ID,
		Name:            req.Name,
		ManifestVersion: 1,
		CreatedAt:       time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
	}
	if err := h.repo.CreateNetwork(n); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

// POST /content
func (h *HTTP) handleCreateContent(w http.ResponseWriter, r *http.Request) {
	var req models.Content
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Filename == "" {
		h.writeError(w, &ValidationError{Msg: "filename is required"})
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	req.CreatedAt = time.Now().UTC()

	if err := h.repo.CreateContent(&req); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// POST /playlists
func (h *HTTP) handleCreatePlaylist(w http.ResponseWriter, r *http.Request) {
	var req models.Playlist
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" || req.NetworkID == "" {
		h.writeError(w, &ValidationError{Msg: "name and network_id are required"})
		return
	}
	if _, err := h.repo.GetNetwork(req.NetworkID); err != nil {
		h.writeError(w, err)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.TriggerType == "" {
		req.TriggerType = "default"
	}
	req.Items = nil
	req.CreatedAt = time.Now().UTC()
	req.UpdatedAt = req.CreatedAt

	if err := h.repo.CreatePlaylist(&req); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// PUT /playlists/{playlist_id}
func (h *HTTP) handleUpdatePlaylist(w http.ResponseWriter, r *http.Request) {
	p, err := h.repo.GetPlaylist(mux.Vars(r)["playlist_id"])
	if err != nil {
		h.writeError(w, err)
		return
	}

	var req struct {
		Name        *string          `json:"name"`
		Description *string          `json:"description"`
		TriggerType *string          `json:"trigger_type"`
		Trigger     *json.RawMessage `json:"trigger_config"`
		IsActive    *bool            `json:"is_active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, &ValidationError{Msg: "invalid request body"})
		return
	}
	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.TriggerType != nil {
		p.TriggerType = *req.TriggerType
	}
	if req.Trigger != nil {
		p.TriggerConfig = *req.Trigger
	}
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}
	p.UpdatedAt = time.Now().UTC()

	if err := h.repo.SavePlaylist(p); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// POST /playlists/{playlist_id}/items
func (h *HTTP) handleAddPlaylistItem(w http.ResponseWriter, r *http.Request) {
	p, err := h.repo.GetPlaylist(mux.Vars(r)["playlist_id"])
	if err != nil {
		h.writeError(w, err)
		return
	}

	var req struct {
		ContentID        string `json:"content_id"`
		Position         int    `json:"position"`
		DurationOverride *int   `json:"duration_override"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ContentID == "" {
		h.writeError(w, &ValidationError{Msg: "content_id is required"})
		return
	}
	if _, err := h.repo.GetContent(req.ContentID); err != nil {
		h.writeError(w, err)
		return
	}

	item := &models.PlaylistItem{
		ID:               uuid.NewString(),
		PlaylistID:       p.ID,
		ContentID:        req.ContentID,
		Position:         req.Position,
		DurationOverride: req.DurationOverride,
		CreatedAt:        time.Now().UTC(),
	}
	if err := h.repo.AddPlaylistItem(p.NetworkID, item); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// authorized enforces the hub api token on relay-facing endpoints when
// enabled. The {hub_id} path segment accepts id or code, so resolution goes
// through the same lookup the manifest uses.
func (h *HTTP) authorized(r *http.Request, hubIDOrCode string) bool {
	if !h.requireAuth {
		return true
	}
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token == "" {
		return false
	}
	hubRec, err := h.repo.GetHubByIDOrCode(hubIDOrCode)
	if err != nil {
		// Let the handler produce its own 404.
		return true
	}
	return token == hubRec.APIToken
}

func (h *HTTP) writeAuthError(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid or missing api token"})
}

func (h *HTTP) writeError(w http.ResponseWriter, err error) {
	status := StatusCode(err)
	if status == http.StatusInternalServerError {
		h.logger.Error().Err(err).Msg("Request failed")
		writeJSON(w, status, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
