package player

import (
	"sync"

	"github.com/rs/zerolog"
)

// LogPlayer is a stand-in render surface for headless deployments and
// tests: it records what would have played and fires the about-to-finish
// callback on demand.
type LogPlayer struct {
	logger zerolog.Logger

	mu         sync.Mutex
	currentURI string
	finishFn   func()
}

// NewLogPlayer creates a LogPlayer.
func NewLogPlayer(logger zerolog.Logger) *LogPlayer {
	return &LogPlayer{logger: logger}
}

// Play records the uri as currently playing.
func (p *LogPlayer) Play(uri string) error {
	p.mu.Lock()
	p.currentURI = uri
	p.mu.Unlock()
	p.logger.Info().Str("uri", uri).Msg("Playing")
	return nil
}

// Stop clears the current uri.
func (p *LogPlayer) Stop() error {
	p.mu.Lock()
	p.currentURI = ""
	p.mu.Unlock()
	p.logger.Info().Msg("Playback stopped")
	return nil
}

// SetOnAboutToFinish registers the end-of-item notification callback.
func (p *LogPlayer) SetOnAboutToFinish(fn func()) {
	p.mu.Lock()
	p.finishFn = fn
	p.mu.Unlock()
}

// CurrentURI reports what is playing, empty when stopped.
func (p *LogPlayer) CurrentURI() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentURI
}

// FinishCurrent simulates the decoder's about-to-finish notification.
func (p *LogPlayer) FinishCurrent() {
	p.mu.Lock()
	fn := p.finishFn
	p.mu.Unlock()
	if fn != nil {
		fn()
	}
}
