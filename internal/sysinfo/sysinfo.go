// Package sysinfo sizes engine defaults (decoded frame cache capacity) from the host's
// available memory, the playback-engine analogue of internal/encode.CapWorkers in the
// teacher repo.
package sysinfo

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// BytesPerCacheSlotSD/HD/UHD are rough worst-case byte budgets for one decoded frame
// cache slot (mesh + deformation + alpha + one RGB/YUV texture), by texture resolution.
const (
	BytesPerCacheSlotSD  = 24 << 20 // 24 MB
	BytesPerCacheSlotHD  = 64 << 20 // 64 MB
	BytesPerCacheSlotUHD = 192 << 20
)

// DefaultMemoryFraction is the fraction of available memory the cache is allowed to use.
// Mirrors internal/encode.MemoryFraction's rationale: leave headroom for the rest of the
// host application (renderer, OS, other allocations).
const DefaultMemoryFraction = 0.25

// AvailableMemoryBytes returns the amount of memory available for allocation, or 0 if it
// cannot be determined. On Linux this reads MemAvailable from /proc/meminfo; elsewhere it
// falls back to the kernel's total-minus-used estimate from unix.Sysinfo.
func AvailableMemoryBytes() uint64 {
	if avail, ok := readProcMeminfoAvailable(); ok {
		return avail
	}

	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0
	}
	unit := uint64(info.Unit)
	if unit == 0 {
		unit = 1
	}
	return uint64(info.Freeram) * unit
}

func readProcMeminfoAvailable() (uint64, bool) {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0, false
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "MemAvailable:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0, false
		}
		kb, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return 0, false
		}
		return kb * 1024, true
	}
	return 0, false
}

// BytesPerCacheSlot returns the estimated per-slot byte budget for the given texture
// dimensions, mirroring internal/encode.memoryPerWorker's resolution tiers.
func BytesPerCacheSlot(textureWidth, textureHeight uint32) uint64 {
	switch {
	case textureWidth >= 3840 || textureHeight >= 2160:
		return BytesPerCacheSlotUHD
	case textureWidth >= 1920 || textureHeight >= 1080:
		return BytesPerCacheSlotHD
	default:
		return BytesPerCacheSlotSD
	}
}

// DefaultCacheCapacity picks a cache capacity (clamped to [min, max]) from available
// host memory and the video's texture resolution.
func DefaultCacheCapacity(textureWidth, textureHeight uint32, min, max int) int {
	available := AvailableMemoryBytes()
	if available == 0 {
		return min
	}

	perSlot := BytesPerCacheSlot(textureWidth, textureHeight)
	usable := uint64(float64(available) * DefaultMemoryFraction)
	capacity := int(usable / perSlot)

	if capacity < min {
		return min
	}
	if capacity > max {
		return max
	}
	return capacity
}
