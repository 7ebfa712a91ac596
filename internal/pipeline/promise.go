package pipeline

import (
	"sync"

	"github.com/scannedreality/xrvideo/backend"
)

// promiseState is a TextureFramePromise's lifecycle: Open until the video-decode
// stage (or an abort) settles it, then permanently Fulfilled or Aborted.
type promiseState int

const (
	promiseOpen promiseState = iota
	promiseFulfilled
	promiseAborted
)

// textureKind distinguishes how a fulfilled promise's texture data is encoded,
// mirroring the frame header's zstdRGBTexture flag and the empty-texture case.
type textureKind int

const (
	textureKindPicture textureKind = iota // AV1-decoded I420, see backend.Picture
	textureKindRGB                        // ZStd-decompressed packed RGB
	textureKindEmpty                      // compressedTextureSize == 0
)

// TextureFramePromise is a single-use handoff from the video-decode stage to the
// content-decode stage for one frame's texture. The first Fulfill* or Abort call
// settles it for good and later calls are ignored; Wait blocks until it is settled.
type TextureFramePromise struct {
	mu    sync.Mutex
	cond  *sync.Cond
	state promiseState

	kind    textureKind
	picture backend.Picture
	rgb     []byte
}

// NewTextureFramePromise creates an Open promise.
func NewTextureFramePromise() *TextureFramePromise {
	p := &TextureFramePromise{}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// FulfillPicture settles the promise with an AV1-decoded picture.
func (p *TextureFramePromise) FulfillPicture(pic backend.Picture) {
	p.settle(promiseFulfilled, textureKindPicture, pic, nil)
}

// FulfillRGB settles the promise with decompressed packed RGB bytes.
func (p *TextureFramePromise) FulfillRGB(rgb []byte) {
	p.settle(promiseFulfilled, textureKindRGB, backend.Picture{}, rgb)
}

// FulfillEmpty settles the promise as carrying no texture data.
func (p *TextureFramePromise) FulfillEmpty() {
	p.settle(promiseFulfilled, textureKindEmpty, backend.Picture{}, nil)
}

// Abort settles the promise as aborted: content-decode must discard this frame.
func (p *TextureFramePromise) Abort() {
	p.settle(promiseAborted, textureKindEmpty, backend.Picture{}, nil)
}

func (p *TextureFramePromise) settle(state promiseState, kind textureKind, pic backend.Picture, rgb []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != promiseOpen {
		return
	}
	p.state, p.kind, p.picture, p.rgb = state, kind, pic, rgb
	p.cond.Broadcast()
}

// Wait blocks until the promise leaves Open, then reports the outcome.
func (p *TextureFramePromise) Wait() (aborted bool, kind textureKind, pic backend.Picture, rgb []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.state == promiseOpen {
		p.cond.Wait()
	}
	return p.state == promiseAborted, p.kind, p.picture, p.rgb
}
