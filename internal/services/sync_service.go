package services

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/signware/hubsync/internal/models"
	"github.com/signware/hubsync/pkg/file"
	"github.com/signware/hubsync/pkg/identity"
)

// ManifestFetcher pulls the versioned playlist manifest from upstream.
type ManifestFetcher interface {
	GetManifest(hubIDOrCode string) (*models.Manifest, error)
}

// ContentReconciler mirrors manifest content into the local cache.
type ContentReconciler interface {
	Reconcile(items []models.ContentMeta) (int, error)
	Cleanup(keep []models.ContentMeta) error
}

// SyncService orchestrates one sync cycle: manifest pull, content
// reconciliation, local cache commit. At most one cycle runs at a time;
// concurrent triggers from the timer and the network monitor contend on a
// non-blocking, non-reentrant try-lock and the loser simply walks away.
type SyncService struct {
	interval  time.Duration
	cacheFile string

	hubInfo identity.HubInfoInterface
	api     ManifestFetcher
	content ContentReconciler
	fileOps file.FileOperations
	logger  zerolog.Logger

	// syncLock serializes cycles; acquired only via TryLock.
	syncLock sync.Mutex

	versionMu   sync.Mutex
	lastVersion int64

	subsMu sync.Mutex
	subs   []chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewSyncService initializes and returns a new SyncService instance.
func NewSyncService(interval time.Duration, cacheFile string, hubInfo identity.HubInfoInterface,
	api ManifestFetcher, content ContentReconciler, fileOps file.FileOperations,
	logger zerolog.Logger) *SyncService {
	return &SyncService{
		interval:  interval,
		cacheFile: cacheFile,
		hubInfo:   hubInfo,
		api:       api,
		content:   content,
		fileOps:   fileOps,
		logger:    logger,
	}
}

// Start loads the last committed cache version and launches the periodic
// sync loop.
func (s *SyncService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx != nil {
		s.logger.Warn().Msg("Sync service is already running")
		return errors.New("sync service is already running")
	}

	if cache, err := LoadPlaylistCache(s.fileOps, s.cacheFile); err == nil {
		s.setLastVersion(cache.Version)
		s.logger.Info().Int64("version", cache.Version).Msg("Resuming from cached playlist state")
	} else if !os.IsNotExist(err) {
		s.logger.Warn().Err(err).Msg("Playlist cache unreadable, starting cold")
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runSyncLoop()
	}()

	s.logger.Info().Dur("interval", s.interval).Msg("Sync service started")
	return nil
}

// Stop halts the periodic loop and waits for any in-flight cycle to run
// to completion; a partial file write is never interrupted.
func (s *SyncService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx == nil {
		return errors.New("sync service is not running")
	}

	s.cancel()
	s.wg.Wait()

	// An externally triggered cycle may still hold the lock.
	s.syncLock.Lock()
	s.syncLock.Unlock()

	s.ctx = nil
	s.cancel = nil

	s.logger.Info().Msg("Sync service stopped")
	return nil
}

// SubscribeCycleComplete returns a channel receiving a coalesced signal
// after every successfully committed cycle.
func (s *SyncService) SubscribeCycleComplete() <-chan struct{} {
	ch := make(chan struct{}, 1)
	s.subsMu.Lock()
	s.subs = append(s.subs, ch)
	s.subsMu.Unlock()
	return ch
}

// LastVersion reports the last locally committed manifest version.
func (s *SyncService) LastVersion() int64 {
	s.versionMu.Lock()
	defer s.versionMu.Unlock()
	return s.lastVersion
}

func (s *SyncService) setLastVersion(v int64) {
	s.versionMu.Lock()
	s.lastVersion = v
	s.versionMu.Unlock()
}

// SyncNow attempts one sync cycle immediately. If a cycle is already in
// flight the call logs and returns without queueing, blocking or
// retrying; the next scheduled trigger will try again.
func (s *SyncService) SyncNow() error {
	if !s.syncLock.TryLock() {
		s.logger.Info().Msg("Sync already in progress, skipping trigger")
		return nil
	}
	defer s.syncLock.Unlock()

	return s.runCycle()
}

// runCycle performs one full cycle under the sync lock. Any failure aborts
// without touching the previously committed local state.
func (s *SyncService) runCycle() error {
	hubID := s.hubInfo.GetHubID()
	if hubID == "" {
		s.logger.Warn().Msg("Relay is not registered yet, skipping sync")
		return nil
	}

	started := time.Now()
	manifest, err := s.api.GetManifest(hubID)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Manifest fetch failed, keeping last-good cache")
		return err
	}

	if manifest.ManifestVersion == s.LastVersion() {
		s.logger.Debug().Int64("version", manifest.ManifestVersion).Msg("Manifest unchanged, nothing to sync")
		return nil
	}

	items := collectContent(manifest)
	if _, err := s.content.Reconcile(items); err != nil {
		s.logger.Warn().Err(err).Msg("Content reconciliation incomplete, cache version not advanced")
		return err
	}
	if err := s.content.Cleanup(items); err != nil {
		s.logger.Warn().Err(err).Msg("Stale content cleanup failed")
	}

	cache := buildPlaylistCache(manifest)
	if err := s.fileOps.WriteJsonFile(s.cacheFile, cache); err != nil {
		s.logger.Error().Err(err).Msg("Failed to commit playlist cache")
		return err
	}
	s.setLastVersion(manifest.ManifestVersion)

	s.logger.Info().
		Int64("version", manifest.ManifestVersion).
		Int("playlists", manifest.Count).
		Dur("took", time.Since(started)).
		Msg("Sync cycle committed")

	s.notifyCycleComplete()
	return nil
}

func (s *SyncService) runSyncLoop() {
	// First cycle right away: a device that boots with an empty cache
	// should not wait a full interval for content.
	if err := s.SyncNow(); err != nil {
		s.logger.Warn().Err(err).Msg("Initial sync failed, will retry on schedule")
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.SyncNow(); err != nil {
				s.logger.Warn().Err(err).Msg("Scheduled sync failed, will retry on schedule")
			}
		case <-s.ctx.Done():
			s.logger.Info().Msg("Sync loop stopping")
			return
		}
	}
}

func (s *SyncService) notifyCycleComplete() {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// collectContent flattens every content reference in the manifest.
func collectContent(m *models.Manifest) []models.ContentMeta {
	var items []models.ContentMeta
	for _, p := range m.Playlists {
		for _, it := range p.Items {
			if it.Content.ID == "" {
				continue
			}
			items = append(items, it.Content)
		}
	}
	return items
}

// buildPlaylistCache splits the manifest into default and triggered
// playlists, the shape playback consumes offline.
func buildPlaylistCache(m *models.Manifest) models.PlaylistCache {
	cache := models.PlaylistCache{
		Version:   m.ManifestVersion,
		Default:   []models.ManifestPlaylist{},
		Triggered: []models.ManifestPlaylist{},
		UpdatedAt: time.Now().UTC(),
	}
	for _, p := range m.Playlists {
		if p.TriggerType == "" || p.TriggerType == "default" {
			cache.Default = append(cache.Default, p)
		} else {
			cache.Triggered = append(cache.Triggered, p)
		}
	}
	return cache
}

// LoadPlaylistCache reads playlist.json, the device's offline source of
// truth for what to play.
func LoadPlaylistCache(fileOps file.FileOperations, path string) (*models.PlaylistCache, error) {
	var cache models.PlaylistCache
	if err := fileOps.ReadJsonFile(path, &cache); err != nil {
		return nil, err
	}
	return &cache, nil
}
