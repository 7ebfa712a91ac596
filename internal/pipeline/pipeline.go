// Package pipeline implements the four decode stages that turn a parsed frame chunk
// into a GPU-resident cache slot: Reading, Video-Decode, Content-Decode, and
// Transfer. The four stages are kept in one package (rather than one per stage)
// because they share the cache's Slot payload type and the TextureFramePromise
// handoff between Video-Decode and Content-Decode; splitting them would either
// duplicate those types or force an import cycle.
package pipeline

import (
	"github.com/scannedreality/xrvideo/backend"
	"github.com/scannedreality/xrvideo/internal/cache"
	"github.com/scannedreality/xrvideo/internal/codec"
	"github.com/scannedreality/xrvideo/internal/container"
)

// Slot is the decoded-frame cache's payload type: what a WriteLock fills in while
// held, and what a ReadLock exposes to the renderer.
type Slot struct {
	Decoded *codec.DecodedFrame
	Upload  backend.UploadToken
}

// WriteLock and ReadLock are the cache handle types specialized to Slot, named here
// so stage signatures don't repeat the generic instantiation everywhere.
type WriteLock = cache.WriteLock[Slot]
type ReadLock = cache.ReadLock[Slot]

// Cache is the decoded-frame cache specialized to Slot.
type Cache = cache.Cache[Slot]

// readWorkItem is what the reading stage hands to the content-decode stage for one
// frame: the parsed header/sections, a write-lock if the frame was actually
// requested (nil for "decode only to advance decoder state, discard"), and the
// timing sample the transfer stage needs.
type readWorkItem struct {
	frameIndex int
	parsed     *container.ParsedFrame
	lock       *WriteLock // nil for a state-advance-only frame
	readStart  int64      // unix nanos, for the rolling latency sample
	readNs     int64      // time spent reading this frame's payload
}
