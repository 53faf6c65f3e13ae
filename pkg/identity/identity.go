package identity

import (
	"encoding/base64"
	"os"

	"github.com/signware/hubsync/pkg/encryption"
	"github.com/signware/hubsync/pkg/file"
)

// Identity is the durable relay identity persisted in device.json: who this
// relay is and where its upstream service lives. It is read at boot and
// rewritten only when registration succeeds.
type Identity struct {
	HubID     string `json:"hub_id,omitempty"`
	HubCode   string `json:"hub_code,omitempty"`
	NetworkID string `json:"network_id,omitempty"`
	HubURL    string `json:"hub_url"`
	APIToken  string `json:"api_token,omitempty"`
}

// HubInfoInterface defines methods for managing the relay identity.
type HubInfoInterface interface {
	Load() error
	Save() error
	GetIdentity() *Identity
	GetHubID() string
	GetAPIToken() string
	SetCredentials(hubID, hubCode, networkID, apiToken string) error
}

// HubInfo manages the relay identity and its associated file operations.
// When an encryption manager is supplied, the api token is stored AES-GCM
// encrypted and base64 encoded.
type HubInfo struct {
	identityFile string
	identity     Identity
	apiToken     string
	fileOps      file.FileOperations
	enc          encryption.EncryptionManagerInterface
}

// NewHubInfo initializes a new HubInfo instance. enc may be nil, in which
// case the token is stored in the clear.
func NewHubInfo(filePath string, fileOps file.FileOperations, enc encryption.EncryptionManagerInterface) *HubInfo {
	return &HubInfo{
		identityFile: filePath,
		fileOps:      fileOps,
		enc:          enc,
	}
}

// Load reads device.json and populates the identity. A missing file is not
// an error; the relay simply has not registered yet.
func (h *HubInfo) Load() error {
	err := h.fileOps.ReadJsonFile(h.identityFile, &h.identity)
	if err != nil {
		if os.IsNotExist(err) {
			h.identity = Identity{}
			return nil
		}
		return err
	}

	h.apiToken = h.identity.APIToken
	if h.enc != nil && h.identity.APIToken != "" {
		raw, err := base64.StdEncoding.DecodeString(h.identity.APIToken)
		if err != nil {
			return err
		}
		plain, err := h.enc.Decrypt(raw)
		if err != nil {
			return err
		}
		h.apiToken = string(plain)
	}
	return nil
}

// Save writes the identity back to device.json atomically.
func (h *HubInfo) Save() error {
	out := h.identity
	if h.enc != nil && h.apiToken != "" {
		sealed, err := h.enc.Encrypt([]byte(h.apiToken))
		if err != nil {
			return err
		}
		out.APIToken = base64.StdEncoding.EncodeToString(sealed)
	}
	return h.fileOps.WriteJsonFile(h.identityFile, out)
}

// GetIdentity returns the current relay identity.
func (h *HubInfo) GetIdentity() *Identity {
	return &h.identity
}

// GetHubID returns the assigned hub id, empty when unregistered.
func (h *HubInfo) GetHubID() string {
	return h.identity.HubID
}

// GetAPIToken returns the decrypted api token.
func (h *HubInfo) GetAPIToken() string {
	return h.apiToken
}

// SetCredentials stores the identity minted by a successful registration
// and persists it immediately. The token is shown exactly once by the
// service, so losing it here would force a re-registration.
func (h *HubInfo) SetCredentials(hubID, hubCode, networkID, apiToken string) error {
	h.identity.HubID = hubID
	h.identity.HubCode = hubCode
	h.identity.NetworkID = networkID
	h.identity.APIToken = apiToken
	h.apiToken = apiToken
	return h.Save()
}
