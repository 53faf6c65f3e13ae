package service_registry

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/signware/hubsync/internal/contentstore"
	"github.com/signware/hubsync/internal/models"
	"github.com/signware/hubsync/internal/services"
	"github.com/signware/hubsync/internal/sysinfo"
	"github.com/signware/hubsync/internal/utils"
	"github.com/signware/hubsync/pkg/file"
	"github.com/signware/hubsync/pkg/hubapi"
	"github.com/signware/hubsync/pkg/identity"
	"github.com/signware/hubsync/pkg/mqtt"
	"github.com/signware/hubsync/pkg/player"
)

// ServiceRegistry manages the lifecycle of various services in the system.
type ServiceRegistry struct {
	services    map[string]Service // Stores registered services
	serviceKeys []string           // Maintains order of service registration
	mqttClient  mqtt.MQTTClient
	fileClient  file.FileOperations
	apiClient   *hubapi.Client
	content     *contentstore.Store
	pipeline    *player.Pipeline
	Logger      zerolog.Logger
}

// NewServiceRegistry initializes a new service registry with dependencies.
// mqttClient may be nil when the local device bus is disabled.
func NewServiceRegistry(mqttClient mqtt.MQTTClient, fileClient file.FileOperations,
	apiClient *hubapi.Client, content *contentstore.Store, pipeline *player.Pipeline,
	logger zerolog.Logger) *ServiceRegistry {
	return &ServiceRegistry{
		services:   make(map[string]Service),
		mqttClient: mqttClient,
		fileClient: fileClient,
		apiClient:  apiClient,
		content:    content,
		pipeline:   pipeline,
		Logger:     logger,
	}
}

// RegisterService adds a new service to the registry.
func (sr *ServiceRegistry) RegisterService(name string, svc Service) {
	if _, exists := sr.services[name]; exists {
		sr.Logger.Warn().Msgf("Service %s is already registered", name)
		return
	}
	sr.services[name] = svc
	sr.serviceKeys = append(sr.serviceKeys, name)
	sr.Logger.Info().Msgf("Registered service: %s", name)
}

// StartServices initiates all registered services in order.
// If a service fails to start, it stops already started services.
func (sr *ServiceRegistry) StartServices() error {
	startedServices := []string{}

	for _, name := range sr.serviceKeys {
		svc := sr.services[name]
		sr.Logger.Info().Msgf("Starting service: %s", name)
		if err := svc.Start(); err != nil {
			sr.Logger.Error().Err(err).Msgf("Failed to start service: %s", name)

			// Stop already started services before returning
			sr.Logger.Warn().Msg("Stopping already started services due to startup failure...")
			for i := len(startedServices) - 1; i >= 0; i-- {
				_ = sr.services[startedServices[i]].Stop()
			}
			return err
		}
		startedServices = append(startedServices, name)
	}

	return nil
}

// StopServices stops all services in reverse order.
func (sr *ServiceRegistry) StopServices() error {
	var stopErrors []error
	for i := len(sr.serviceKeys) - 1; i >= 0; i-- {
		name := sr.serviceKeys[i]
		if err := sr.services[name].Stop(); err != nil {
			stopErrors = append(stopErrors, fmt.Errorf("failed to stop %s: %w", name, err))
		}
	}
	if len(stopErrors) > 0 {
		for _, e := range stopErrors {
			sr.Logger.Error().Err(e).Msg("Service stop failure")
		}
		return errors.Join(stopErrors...)
	}
	return nil
}

// RegisterServices initializes and registers enabled services based on
// configuration. Later services may depend on earlier ones, so the slice
// order is also the startup order.
func (sr *ServiceRegistry) RegisterServices(config *utils.Config, hubInfo identity.HubInfoInterface,
	settings models.Settings) error {
	var (
		syncService     *services.SyncService
		playbackService *services.PlaybackService
	)

	// Ordered service definitions with inline constructors
	servicesInOrder := []struct {
		name        string
		enabled     bool
		constructor func() (Service, error)
	}{
		{
			name:    "sync",
			enabled: config.Services.Sync.Enabled,
			constructor: func() (Service, error) {
				syncService = services.NewSyncService(
					config.Services.Sync.Interval,
					config.Storage.CacheFile,
					hubInfo,
					sr.apiClient,
					sr.content,
					sr.fileClient,
					sr.Logger,
				)
				return syncService, nil
			},
		},
		{
			name:    "heartbeat",
			enabled: config.Services.Heartbeat.Enabled,
			constructor: func() (Service, error) {
				var telemetry sysinfo.Collector
				if settings.TelemetryEnabled {
					telemetry = sysinfo.NewSystemCollector(config.Storage.ContentDir, sr.Logger)
				}
				return services.NewHeartbeatService(
					config.Services.Heartbeat.Topic,
					config.Services.Heartbeat.Interval,
					config.Services.Heartbeat.QOS,
					hubInfo,
					sr.mqttClient,
					sr.apiClient,
					telemetry,
					sr.Logger,
				), nil
			},
		},
		{
			name:    "netwatch",
			enabled: config.Services.NetWatch.Enabled,
			constructor: func() (Service, error) {
				if syncService == nil {
					return nil, errors.New("netwatch service requires the sync service")
				}
				onRestore := func() {
					if err := syncService.SyncNow(); err != nil {
						sr.Logger.Warn().Err(err).Msg("Sync after connectivity restore failed")
					}
				}
				return services.NewNetWatchService(
					config.Services.NetWatch.Interval,
					sr.apiClient,
					onRestore,
					sr.Logger,
				), nil
			},
		},
		{
			name:    "playback",
			enabled: config.Services.Playback.Enabled && settings.PlaybackEnabled,
			constructor: func() (Service, error) {
				if syncService == nil {
					return nil, errors.New("playback service requires the sync service")
				}
				playbackService = services.NewPlaybackService(
					sr.pipeline,
					sr.content.Subscribe(),
					syncService.SubscribeCycleComplete(),
					sr.fileClient,
					config.Storage.CacheFile,
					sr.content.Path,
					sr.Logger,
				)
				return playbackService, nil
			},
		},
		{
			name:    "triggers",
			enabled: config.Services.Triggers.Enabled && settings.TriggersEnabled && sr.mqttClient != nil,
			constructor: func() (Service, error) {
				if playbackService == nil {
					return nil, errors.New("trigger service requires the playback service")
				}
				return services.NewTriggerService(
					config.Services.Triggers.Topic,
					config.Services.Triggers.QOS,
					sr.mqttClient,
					playbackService,
					sr.Logger,
				), nil
			},
		},
	}

	// Register services in the predefined order
	registeredServices := []string{}
	for _, svc := range servicesInOrder {
		if svc.enabled {
			serviceInstance, err := svc.constructor()
			if err != nil {
				sr.Logger.Error().Err(err).Msgf("Failed to create %s service", svc.name)
				return err
			}
			sr.RegisterService(svc.name, serviceInstance)
			registeredServices = append(registeredServices, svc.name)
		}
	}

	sr.Logger.Info().Msgf("Registered services in order: %v", registeredServices)
	return nil
}
