package utils

import (
	"time"

	"github.com/signware/hubsync/pkg/file"
)

// Config represents the structure of the agent configuration file.
type Config struct {
	Hub struct {
		URL         string        `yaml:"url"`          // Base URL of the upstream sync service
		HTTPTimeout time.Duration `yaml:"http_timeout"` // Timeout for upstream HTTP calls
	} `yaml:"hub"`

	Identity struct {
		DeviceFile string `yaml:"device_file"` // Path to the hub identity file
	} `yaml:"identity"`

	Registration struct {
		NetworkID string `yaml:"network_id"` // Network this hub belongs to
		Name      string `yaml:"name"`       // Human-readable hub name
		Code      string `yaml:"code"`       // Short uppercase site code
		Location  string `yaml:"location"`   // Physical placement description
		MAC       string `yaml:"mac"`        // Hardware MAC address
	} `yaml:"registration"`

	Storage struct {
		ContentDir   string `yaml:"content_dir"`   // Directory holding downloaded media files
		CacheFile    string `yaml:"cache_file"`    // Path to the playlist cache file
		SettingsFile string `yaml:"settings_file"` // Path to the local settings file
	} `yaml:"storage"`

	MQTT struct {
		Enabled       bool   `yaml:"enabled"`        // Enable/disable the local device bus
		Broker        string `yaml:"broker"`         // Local broker address
		ClientID      string `yaml:"client_id"`      // Bus client ID
		CACertificate string `yaml:"ca_certificate"` // Path to the broker CA certificate, empty for plaintext
	} `yaml:"mqtt"`

	Services struct {
		Sync struct {
			Enabled  bool          `yaml:"enabled"`  // Enable/disable the sync service
			Interval time.Duration `yaml:"interval"` // Interval between sync cycles
			Workers  int           `yaml:"workers"`  // Concurrent content downloads per cycle
		} `yaml:"sync"`

		Heartbeat struct {
			Enabled  bool          `yaml:"enabled"`  // Enable/disable the heartbeat service
			Topic    string        `yaml:"topic"`    // Bus topic filter for device status reports
			Interval time.Duration `yaml:"interval"` // Interval between upstream flushes
			QOS      int           `yaml:"qos"`      // Bus QoS level for status messages
		} `yaml:"heartbeat"`

		Triggers struct {
			Enabled bool   `yaml:"enabled"` // Enable/disable the trigger service
			Topic   string `yaml:"topic"`   // Bus topic filter for sensor trigger events
			QOS     int    `yaml:"qos"`     // Bus QoS level for trigger messages
		} `yaml:"triggers"`

		NetWatch struct {
			Enabled  bool          `yaml:"enabled"`  // Enable/disable the connectivity watcher
			Interval time.Duration `yaml:"interval"` // Interval between upstream reachability probes
		} `yaml:"netwatch"`

		Playback struct {
			Enabled bool `yaml:"enabled"` // Enable/disable local playback
		} `yaml:"playback"`
	} `yaml:"services"`

	Security struct {
		AESKeyFile string `yaml:"aes_key_file"` // Path to the AES key used to encrypt the API token at rest
	} `yaml:"security"`
}

// LoadConfig loads the YAML configuration from the specified file.
// It returns a pointer to the Config struct and an error if loading fails.
func LoadConfig(filename string, fileClient file.FileOperations) (*Config, error) {
	var config Config
	err := fileClient.ReadYamlFile(filename, &config)
	if err != nil {
		return nil, err
	}

	return &config, nil
}
