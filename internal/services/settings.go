package services

import (
	"os"

	"github.com/rs/zerolog"

	"github.com/signware/hubsync/internal/models"
	"github.com/signware/hubsync/pkg/file"
)

// LoadSettings reads the local feature toggles. A missing or unreadable
// settings file falls back to the defaults rather than blocking startup.
func LoadSettings(fileOps file.FileOperations, path string, logger zerolog.Logger) models.Settings {
	if path == "" {
		return models.DefaultSettings()
	}

	var settings models.Settings
	if err := fileOps.ReadJsonFile(path, &settings); err != nil {
		if !os.IsNotExist(err) {
			logger.Warn().Err(err).Str("path", path).Msg("Failed to read settings file, using defaults")
		}
		return models.DefaultSettings()
	}
	return settings
}
