package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/signware/hubsync/internal/models"
	"github.com/signware/hubsync/pkg/file"
	"github.com/signware/hubsync/pkg/player"
)

// PlaybackService closes the gap between "content arrived" and "nothing
// was ever told to play it". It watches content-updated and sync-completion
// events and, if the render pipeline was never started (first boot with an
// empty cache, or after a cache wipe), posts the start onto the pipeline's
// own run loop. Once playback is running it is a no-op.
type PlaybackService struct {
	pipeline      *player.Pipeline
	contentEvents <-chan struct{}
	syncEvents    <-chan struct{}
	fileOps       file.FileOperations
	cacheFile     string
	contentPath   func(filename string) string
	logger        zerolog.Logger

	started atomic.Bool

	// Playback queue state. Touched only from tasks running on the
	// pipeline goroutine.
	queue    []string
	queueIdx int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPlaybackService initializes a new PlaybackService instance.
func NewPlaybackService(pipeline *player.Pipeline, contentEvents, syncEvents <-chan struct{},
	fileOps file.FileOperations, cacheFile string, contentPath func(string) string,
	logger zerolog.Logger) *PlaybackService {
	return &PlaybackService{
		pipeline:      pipeline,
		contentEvents: contentEvents,
		syncEvents:    syncEvents,
		fileOps:       fileOps,
		cacheFile:     cacheFile,
		contentPath:   contentPath,
		logger:        logger,
	}
}

// Start registers the end-of-item callback and launches the recovery
// watcher. A warm cache starts playback immediately, before any network
// round trip.
func (p *PlaybackService) Start() error {
	if p.ctx != nil {
		p.logger.Warn().Msg("Playback service is already running")
		return errors.New("playback service is already running")
	}

	p.ctx, p.cancel = context.WithCancel(context.Background())

	p.pipeline.Player().SetOnAboutToFinish(func() {
		p.pipeline.Dispatch(p.advance)
	})

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.watch()
	}()

	// Boot with whatever the last sync left behind.
	p.maybeStart()

	p.logger.Info().Msg("Playback recovery service started")
	return nil
}

// Stop halts the watcher. The pipeline itself is owned by main.
func (p *PlaybackService) Stop() error {
	if p.ctx == nil {
		return errors.New("playback service is not running")
	}

	p.pipeline.Player().SetOnAboutToFinish(nil)
	p.cancel()
	p.wg.Wait()

	p.ctx = nil
	p.cancel = nil

	p.logger.Info().Msg("Playback recovery service stopped")
	return nil
}

// Started reports whether playback was ever initialized.
func (p *PlaybackService) Started() bool {
	return p.started.Load()
}

// TriggerPlaylist switches playback to a triggered playlist matching the
// given trigger type, posted through the pipeline loop. Unknown trigger
// types are ignored.
func (p *PlaybackService) TriggerPlaylist(triggerType string) {
	cache, err := LoadPlaylistCache(p.fileOps, p.cacheFile)
	if err != nil {
		p.logger.Warn().Err(err).Msg("No playlist cache, ignoring trigger")
		return
	}

	for _, pl := range cache.Triggered {
		if pl.TriggerType != triggerType {
			continue
		}
		uris := p.playableURIs(pl)
		if len(uris) == 0 {
			p.logger.Warn().Str("trigger_type", triggerType).Str("playlist", pl.Name).Msg("Triggered playlist has no playable content")
			return
		}
		p.started.Store(true)
		p.pipeline.Dispatch(func() {
			p.playQueue(uris)
		})
		p.logger.Info().Str("trigger_type", triggerType).Str("playlist", pl.Name).Msg("Switching to triggered playlist")
		return
	}
	p.logger.Debug().Str("trigger_type", triggerType).Msg("No playlist for trigger type")
}

// watch reacts to content arrivals and completed sync cycles.
func (p *PlaybackService) watch() {
	for {
		select {
		case <-p.contentEvents:
			p.maybeStart()
		case <-p.syncEvents:
			p.maybeStart()
		case <-p.ctx.Done():
			return
		}
	}
}

// maybeStart initializes playback exactly once, and only when a default
// playlist with locally playable content exists.
func (p *PlaybackService) maybeStart() {
	if p.started.Load() {
		return
	}

	cache, err := LoadPlaylistCache(p.fileOps, p.cacheFile)
	if err != nil {
		p.logger.Debug().Err(err).Msg("No playlist cache yet, playback stays idle")
		return
	}

	var uris []string
	for _, pl := range cache.Default {
		uris = p.playableURIs(pl)
		if len(uris) > 0 {
			break
		}
	}
	if len(uris) == 0 {
		p.logger.Debug().Msg("No playable default content yet, playback stays idle")
		return
	}

	if !p.started.CompareAndSwap(false, true) {
		return
	}

	p.logger.Info().Int("items", len(uris)).Msg("Content available, starting playback")
	p.pipeline.Dispatch(func() {
		p.playQueue(uris)
	})
}

// playQueue replaces the queue and plays its first item. Runs on the
// pipeline goroutine.
func (p *PlaybackService) playQueue(uris []string) {
	p.queue = uris
	p.queueIdx = 0
	if err := p.pipeline.Player().Play(p.queue[0]); err != nil {
		p.logger.Error().Err(err).Str("uri", p.queue[0]).Msg("Failed to start playback")
	}
}

// advance loops to the next queued item. Runs on the pipeline goroutine.
func (p *PlaybackService) advance() {
	if len(p.queue) == 0 {
		return
	}
	p.queueIdx = (p.queueIdx + 1) % len(p.queue)
	next := p.queue[p.queueIdx]
	if err := p.pipeline.Player().Play(next); err != nil {
		p.logger.Error().Err(err).Str("uri", next).Msg("Failed to advance playback")
	}
}

// playableURIs resolves a playlist's items to local paths, in position
// order, skipping anything not yet on disk.
func (p *PlaybackService) playableURIs(pl models.ManifestPlaylist) []string {
	uris := make([]string, 0, len(pl.Items))
	for _, item := range pl.Items {
		if item.Content.Filename == "" {
			continue
		}
		path := p.contentPath(item.Content.Filename)
		exists, err := p.fileOps.IsFileExists(path)
		if err != nil || !exists {
			p.logger.Debug().Str("path", path).Int("position", item.Position).Msg("Skipping unavailable item")
			continue
		}
		uris = append(uris, path)
	}
	return uris
}
