package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Pinger probes the upstream service for reachability.
type Pinger interface {
	Ping() error
}

// NetWatchService probes upstream connectivity on an interval and fires
// the restore callback on the offline-to-online edge only, so a recovered
// link immediately kicks a sync instead of waiting out the sync interval.
// The watcher starts assuming online; steady-state reachability never
// fires the callback.
type NetWatchService struct {
	interval  time.Duration
	pinger    Pinger
	onRestore func()
	logger    zerolog.Logger

	online bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewNetWatchService initializes a new NetWatchService instance.
func NewNetWatchService(interval time.Duration, pinger Pinger, onRestore func(),
	logger zerolog.Logger) *NetWatchService {
	return &NetWatchService{
		interval:  interval,
		pinger:    pinger,
		onRestore: onRestore,
		logger:    logger,
		online:    true,
	}
}

// Start launches the probe loop.
func (n *NetWatchService) Start() error {
	if n.ctx != nil {
		n.logger.Warn().Msg("Network watch service is already running")
		return errors.New("network watch service is already running")
	}

	n.ctx, n.cancel = context.WithCancel(context.Background())

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.runProbeLoop()
	}()

	n.logger.Info().Dur("interval", n.interval).Msg("Network watch service started")
	return nil
}

// Stop halts the probe loop.
func (n *NetWatchService) Stop() error {
	if n.ctx == nil {
		n.logger.Warn().Msg("Network watch service is not running")
		return errors.New("network watch service is not running")
	}

	n.cancel()
	n.wg.Wait()

	n.ctx = nil
	n.cancel = nil

	n.logger.Info().Msg("Network watch service stopped")
	return nil
}

func (n *NetWatchService) runProbeLoop() {
	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n.probe()
		case <-n.ctx.Done():
			return
		}
	}
}

// probe checks reachability and fires onRestore when the link comes back.
func (n *NetWatchService) probe() {
	err := n.pinger.Ping()
	wasOnline := n.online
	n.online = err == nil

	switch {
	case wasOnline && err != nil:
		n.logger.Warn().Err(err).Msg("Upstream unreachable, entering offline mode")
	case !wasOnline && err == nil:
		n.logger.Info().Msg("Upstream connectivity restored")
		if n.onRestore != nil {
			n.onRestore()
		}
	}
}
