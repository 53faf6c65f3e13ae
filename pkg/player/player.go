package player

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// Player is the opaque hardware decode/render surface. Implementations
// live outside this module; the agent only ever starts, stops and reacts
// to the about-to-finish notification.
type Player interface {
	Play(uri string) error
	Stop() error
	SetOnAboutToFinish(fn func())
}

// Pipeline owns the render player's single-threaded execution context.
// Every mutation of player state must be posted through Dispatch and runs
// on the pipeline's own goroutine; callers never invoke the player
// directly from another goroutine.
type Pipeline struct {
	player Player
	tasks  chan func()
	logger zerolog.Logger

	mu      sync.Mutex
	running bool
	done    chan struct{}
}

// NewPipeline wraps a player in its run loop. The task queue is buffered;
// posts are fire-and-forget.
func NewPipeline(p Player, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		player: p,
		tasks:  make(chan func(), 32),
		logger: logger,
	}
}

// Start launches the run loop.
func (pl *Pipeline) Start() error {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	if pl.running {
		return errors.New("render pipeline is already running")
	}
	pl.running = true
	pl.done = make(chan struct{})

	go pl.run()
	pl.logger.Info().Msg("Render pipeline loop started")
	return nil
}

// Stop drains the loop and stops the player from inside it.
func (pl *Pipeline) Stop() error {
	pl.mu.Lock()
	if !pl.running {
		pl.mu.Unlock()
		return errors.New("render pipeline is not running")
	}
	pl.running = false
	close(pl.tasks)
	done := pl.done
	pl.mu.Unlock()

	<-done
	pl.logger.Info().Msg("Render pipeline loop stopped")
	return nil
}

// Dispatch posts a task onto the pipeline's own goroutine without
// blocking the caller. A full queue drops the task; the posting side must
// treat delivery as best-effort.
func (pl *Pipeline) Dispatch(task func()) {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	if !pl.running {
		pl.logger.Warn().Msg("Dropping task posted to stopped render pipeline")
		return
	}

	// Stop closes the queue under this same lock, so the send can never
	// land on a closed channel. The send is non-blocking either way.
	select {
	case pl.tasks <- task:
	default:
		pl.logger.Warn().Msg("Render pipeline task queue full, dropping task")
	}
}

// Player returns the wrapped player. Only tasks already running on the
// pipeline goroutine may touch it.
func (pl *Pipeline) Player() Player {
	return pl.player
}

func (pl *Pipeline) run() {
	defer close(pl.done)
	for task := range pl.tasks {
		task()
	}
	if err := pl.player.Stop(); err != nil {
		pl.logger.Warn().Err(err).Msg("Player stop on shutdown failed")
	}
}
