package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/signware/hubsync/internal/constants"
	"github.com/signware/hubsync/internal/contentstore"
	"github.com/signware/hubsync/internal/models"
	"github.com/signware/hubsync/internal/service_registry"
	"github.com/signware/hubsync/internal/services"
	"github.com/signware/hubsync/internal/utils"
	"github.com/signware/hubsync/pkg/encryption"
	"github.com/signware/hubsync/pkg/file"
	"github.com/signware/hubsync/pkg/hubapi"
	"github.com/signware/hubsync/pkg/identity"
	"github.com/signware/hubsync/pkg/mqtt"
	"github.com/signware/hubsync/pkg/player"
)

func main() {
	configPath := flag.String("config", "configs/agent.yaml", "path to the agent configuration file")
	flag.Parse()

	// Set up structured logging with JSON output
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	// Initialize file operations handler
	fileClient := file.NewFileService()

	// Load configuration from file
	config, err := utils.LoadConfig(*configPath, fileClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}
	applyConfigDefaults(config)

	// Optional at-rest encryption of the api token
	var encManager encryption.EncryptionManagerInterface
	if config.Security.AESKeyFile != "" {
		manager := encryption.NewEncryptionManager(fileClient)
		if err := manager.Initialize(config.Security.AESKeyFile); err != nil {
			logger.Fatal().Err(err).Msg("Failed to initialize encryption manager")
		}
		encManager = manager
	}

	// Load the relay identity
	hubInfo := identity.NewHubInfo(config.Identity.DeviceFile, fileClient, encManager)
	if err := hubInfo.Load(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to load hub identity")
	}

	// Initialize the upstream api client
	apiClient := hubapi.NewClient(config.Hub.URL, config.Hub.HTTPTimeout, logger)

	// Register with the service on first boot
	if hubInfo.GetHubID() == "" {
		if err := registerHub(config, hubInfo, apiClient, logger); err != nil {
			logger.Fatal().Err(err).Msg("Failed to register with the sync service")
		}
	}
	apiClient.SetToken(hubInfo.GetAPIToken())

	// Local settings toggles, defaults when the file is absent
	settings := services.LoadSettings(fileClient, config.Storage.SettingsFile, logger)

	// Initialize the local device bus when enabled
	var mqttClient mqtt.MQTTClient
	if config.MQTT.Enabled {
		clientID := config.MQTT.ClientID + "-" + uuid.New().String()
		logger.Info().Str("client_id", clientID).Msg("Using MQTT Client ID")

		mqttService := mqtt.NewMqttService(fileClient)
		if err := mqttService.Initialize(config.MQTT.Broker, clientID, config.MQTT.CACertificate); err != nil {
			logger.Fatal().Err(err).Msg("Failed to initialize MQTT connection")
		}
		if token := mqttService.Connect(); token.Wait() && token.Error() != nil {
			logger.Fatal().Err(token.Error()).Msg("Failed to connect to the local device bus")
		}
		mqttClient = mqttService
	}

	// Local content mirror
	contentStore, err := contentstore.NewStore(config.Storage.ContentDir, fileClient, apiClient,
		config.Services.Sync.Workers, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize content store")
	}

	// Render pipeline with its single-threaded run loop
	pipeline := player.NewPipeline(player.NewLogPlayer(logger), logger)
	if err := pipeline.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start render pipeline")
	}

	// Create a new service registry to manage services
	serviceRegistry := service_registry.NewServiceRegistry(mqttClient, fileClient, apiClient,
		contentStore, pipeline, logger)

	// Register all services based on the configuration
	if err := serviceRegistry.RegisterServices(config, hubInfo, settings); err != nil {
		logger.Fatal().Err(err).Msg("Failed to register services")
	}

	// Start all registered services in the registry
	if err := serviceRegistry.StartServices(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start services")
	}
	logger.Info().Msg("All services started successfully")

	// Handle graceful shutdown
	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	<-stopCh

	logger.Info().Msg("Shutting down gracefully...")
	if err := serviceRegistry.StopServices(); err != nil {
		logger.Error().Err(err).Msg("One or more services failed to stop cleanly")
	}
	if err := pipeline.Stop(); err != nil {
		logger.Error().Err(err).Msg("Failed to stop render pipeline")
	}
	contentStore.Close()
	if mqttClient != nil {
		mqttClient.Disconnect(250)
	}
}

// registerHub performs first-boot registration and persists the minted
// credentials. The token is returned by the service exactly once.
func registerHub(config *utils.Config, hubInfo identity.HubInfoInterface,
	apiClient *hubapi.Client, logger zerolog.Logger) error {
	hostname, _ := os.Hostname()

	hub, err := apiClient.Register(models.HubRegistration{
		Code:       config.Registration.Code,
		Name:       config.Registration.Name,
		NetworkID:  config.Registration.NetworkID,
		Location:   config.Registration.Location,
		MACAddress: config.Registration.MAC,
		Hostname:   hostname,
	})
	if err != nil {
		return err
	}

	hubInfo.GetIdentity().HubURL = config.Hub.URL
	if err := hubInfo.SetCredentials(hub.ID, hub.Code, hub.NetworkID, hub.APIToken); err != nil {
		return err
	}

	logger.Info().Str("hub_id", hub.ID).Str("code", hub.Code).Msg("Registered with the sync service, awaiting approval")
	return nil
}

// applyConfigDefaults fills unset intervals with the shipped defaults.
func applyConfigDefaults(config *utils.Config) {
	if config.Services.Sync.Interval <= 0 {
		config.Services.Sync.Interval = constants.DefaultSyncInterval
	}
	if config.Services.Heartbeat.Interval <= 0 {
		config.Services.Heartbeat.Interval = constants.DefaultHeartbeatInterval
	}
	if config.Services.NetWatch.Interval <= 0 {
		config.Services.NetWatch.Interval = constants.DefaultNetProbeInterval
	}
	if config.Hub.HTTPTimeout <= 0 {
		config.Hub.HTTPTimeout = constants.DefaultHTTPTimeout
	}
	if config.Services.Sync.Workers <= 0 {
		config.Services.Sync.Workers = 4
	}
}
