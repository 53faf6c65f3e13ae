package hub

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/signware/hubsync/internal/constants"
	"github.com/signware/hubsync/internal/models"
)

var (
	codePattern = regexp.MustCompile(`^[A-Z]{2,4}$`)
	macPattern  = regexp.MustCompile(`^([0-9A-Fa-f]{2}:){5}[0-9A-Fa-f]{2}$`)
)

// Registry implements the hub registration and approval state machine:
// pending -> active via Approve, and an out-of-band -> inactive via
// Deactivate. Hubs are never silently auto-activated.
type Registry struct {
	repo   *Repo
	logger zerolog.Logger
}

// NewRegistry creates a Registry on top of the store.
func NewRegistry(repo *Repo, logger zerolog.Logger) *Registry {
	return &Registry{repo: repo, logger: logger}
}

// Register validates the request, creates the hub in pending state and
// mints its api token. The token is returned exactly once, here; callers
// must persist it.
func (rg *Registry) Register(req models.HubRegistration) (*models.Hub, error) {
	if req.Code == "" {
		return nil, &ValidationError{Msg: "code is required"}
	}
	if !codePattern.MatchString(req.Code) {
		return nil, &ValidationError{Msg: fmt.Sprintf("code %q must be 2-4 uppercase letters", req.Code)}
	}
	if req.MACAddress != "" && !macPattern.MatchString(req.MACAddress) {
		return nil, &ValidationError{Msg: fmt.Sprintf("mac_address %q is not a valid colon-separated MAC", req.MACAddress)}
	}

	if _, err := rg.repo.GetNetwork(req.NetworkID); err != nil {
		return nil, err
	}

	taken, err := rg.repo.HubCodeExists(req.Code)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, &ConflictError{Msg: fmt.Sprintf("hub code %s is already registered", req.Code)}
	}

	token, err := mintAPIToken()
	if err != nil {
		return nil, fmt.Errorf("failed to mint api token: %w", err)
	}

	h := &models.Hub{
		ID:         uuid.NewString(),
		Code:       req.Code,
		Name:       req.Name,
		NetworkID:  req.NetworkID,
		Status:     models.HubStatusPending,
		APIToken:   token,
		Location:   req.Location,
		IPAddress:  req.IPAddress,
		MACAddress: strings.ToUpper(req.MACAddress),
		Hostname:   req.Hostname,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	if err := rg.repo.CreateHub(h); err != nil {
		return nil, err
	}

	rg.logger.Info().
		Str("hub_id", h.ID).
		Str("code", h.Code).
		Str("network_id", h.NetworkID).
		Msg("Hub registered, awaiting approval")
	return h, nil
}

// Approve transitions a pending hub to active, preserving every other
// field verbatim.
func (rg *Registry) Approve(hubID string) (*models.Hub, error) {
	h, err := rg.repo.GetHubByID(hubID)
	if err != nil {
		return nil, err
	}
	if h.Status != models.HubStatusPending {
		return nil, &InvalidStateError{Msg: fmt.Sprintf("hub %s is %s, only pending hubs can be approved", hubID, h.Status)}
	}

	h.Status = models.HubStatusActive
	h.UpdatedAt = time.Now().UTC()
	if err := rg.repo.SaveHub(h); err != nil {
		return nil, err
	}

	rg.logger.Info().Str("hub_id", h.ID).Str("code", h.Code).Msg("Hub approved")
	return h, nil
}

// Deactivate takes a hub out of rotation. Not part of the approval flow.
func (rg *Registry) Deactivate(hubID string) (*models.Hub, error) {
	h, err := rg.repo.GetHubByID(hubID)
	if err != nil {
		return nil, err
	}
	if h.Status == models.HubStatusInactive {
		return nil, &InvalidStateError{Msg: fmt.Sprintf("hub %s is already inactive", hubID)}
	}

	h.Status = models.HubStatusInactive
	h.UpdatedAt = time.Now().UTC()
	if err := rg.repo.SaveHub(h); err != nil {
		return nil, err
	}

	rg.logger.Info().Str("hub_id", h.ID).Str("code", h.Code).Msg("Hub deactivated")
	return h, nil
}

// mintAPIToken returns a prefixed opaque credential.
func mintAPIToken() (string, error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return constants.APITokenPrefix + hex.EncodeToString(raw), nil
}
