package models

import "time"

// HubStatus is the lifecycle state of a relay hub.
type HubStatus string

const (
	HubStatusPending  HubStatus = "pending"
	HubStatusActive   HubStatus = "active"
	HubStatusInactive HubStatus = "inactive"
)

// Network is the scoping boundary that groups hubs, playlists and devices
// sharing one content catalog. ManifestVersion is bumped in the same
// transaction as any mutation of the network's active playlist set.
type Network struct {
	ID              string    `gorm:"type:char(36);primaryKey" json:"id"`
	Name            string    `gorm:"type:text;not null" json:"name"`
	ManifestVersion int64     `gorm:"not null;default:1" json:"manifest_version"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Hub is a per-site relay identity. The APIToken is returned exactly once,
// in the registration response; every other read path leaves it empty.
type Hub struct {
	ID            string     `gorm:"type:char(36);primaryKey" json:"id"`
	Code          string     `gorm:"type:varchar(8);uniqueIndex;not null" json:"code"`
	Name          string     `gorm:"type:text" json:"name"`
	NetworkID     string     `gorm:"type:char(36);index;not null" json:"network_id"`
	Status        HubStatus  `gorm:"type:varchar(16);not null" json:"status"`
	APIToken      string     `gorm:"type:text" json:"api_token,omitempty"`
	Location      string     `gorm:"type:text" json:"location,omitempty"`
	IPAddress     string     `gorm:"type:text" json:"ip_address"`
	MACAddress    string     `gorm:"type:text" json:"mac_address"`
	Hostname      string     `gorm:"type:text" json:"hostname"`
	LastHeartbeat *time.Time `json:"last_heartbeat"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// HubRegistration is the wire payload of POST /register.
type HubRegistration struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	NetworkID  string `json:"network_id"`
	Location   string `json:"location,omitempty"`
	IPAddress  string `json:"ip_address,omitempty"`
	MACAddress string `json:"mac_address,omitempty"`
	Hostname   string `json:"hostname,omitempty"`
}

// Device is an edge playback unit provisioned under a hub. Only the latest
// heartbeat per device is retained.
type Device struct {
	ID            string     `gorm:"type:char(36);primaryKey" json:"id"`
	HubID         string     `gorm:"type:char(36);index;not null" json:"hub_id"`
	NetworkID     string     `gorm:"type:char(36);index;not null" json:"network_id"`
	Name          string     `gorm:"type:text" json:"name"`
	Status        string     `gorm:"type:varchar(16)" json:"status"`
	LastHeartbeat *time.Time `json:"last_heartbeat"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
