package sysinfo

import (
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/disk"
	"github.com/shirou/gopsutil/host"
	"github.com/shirou/gopsutil/mem"

	"github.com/signware/hubsync/internal/models"
)

// Collector produces the relay's own telemetry snapshot.
type Collector interface {
	Collect() *models.SystemInfo
}

// SystemCollector reads host metrics through gopsutil. Individual probe
// failures degrade to zero values rather than failing the heartbeat flush.
type SystemCollector struct {
	dataPath string
	logger   zerolog.Logger
}

// NewSystemCollector creates a collector; dataPath is the mount whose disk
// usage matters (the content cache volume).
func NewSystemCollector(dataPath string, logger zerolog.Logger) *SystemCollector {
	if dataPath == "" {
		dataPath = "/"
	}
	return &SystemCollector{dataPath: dataPath, logger: logger}
}

// Collect gathers cpu, memory, disk and uptime.
func (c *SystemCollector) Collect() *models.SystemInfo {
	info := &models.SystemInfo{}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		info.CPUPercent = percents[0]
	} else if err != nil {
		c.logger.Debug().Err(err).Msg("CPU probe failed")
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		info.MemoryPercent = vm.UsedPercent
	} else {
		c.logger.Debug().Err(err).Msg("Memory probe failed")
	}

	if du, err := disk.Usage(c.dataPath); err == nil {
		info.DiskPercent = du.UsedPercent
	} else {
		c.logger.Debug().Err(err).Msg("Disk probe failed")
	}

	if uptime, err := host.Uptime(); err == nil {
		info.UptimeSeconds = uptime
	} else {
		c.logger.Debug().Err(err).Msg("Uptime probe failed")
	}

	return info
}
