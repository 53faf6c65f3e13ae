package constants

import "time"

// APITokenPrefix marks hub credentials so they are recognizable in logs,
// support tickets and config files without revealing anything.
const APITokenPrefix = "hub_"

// Default agent scheduling intervals.
const (
	DefaultSyncInterval      = 5 * time.Minute
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultNetProbeInterval  = 30 * time.Second
)

// DefaultHTTPTimeout bounds every upstream call from the agent so the sync
// lock is always eventually released.
const DefaultHTTPTimeout = 30 * time.Second
