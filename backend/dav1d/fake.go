package dav1d

import "github.com/scannedreality/xrvideo/backend"

// FakeDecoder is an in-process AV1Decoder double for pipeline tests: Decode
// immediately produces a solid-gray picture of the configured dimensions instead of
// invoking a real decoder, so tests can exercise the video-decode stage's FIFO
// matching and error handling without the dav1d binary being present.
type FakeDecoder struct {
	Width, Height int

	// FailFrames, if set, causes Decode to emit a DecodeError instead of a picture
	// for the listed frame indices.
	FailFrames map[int]bool

	pictures chan backend.Picture
	errors   chan backend.DecodeError
	closed   bool
}

// NewFake builds a FakeDecoder with buffered channels sized generously for
// single-goroutine test use.
func NewFake(width, height int) *FakeDecoder {
	return &FakeDecoder{
		Width:    width,
		Height:   height,
		pictures: make(chan backend.Picture, 256),
		errors:   make(chan backend.DecodeError, 256),
	}
}

func (f *FakeDecoder) Decode(frameIndex int, payload []byte) error {
	if f.FailFrames[frameIndex] {
		f.errors <- backend.DecodeError{FrameIndex: frameIndex, Err: errDecodeFailed}
		return nil
	}

	ySize := f.Width * f.Height
	cSize := ((f.Width + 1) / 2) * ((f.Height + 1) / 2)
	y := make([]byte, ySize)
	u := make([]byte, cSize)
	v := make([]byte, cSize)
	for i := range y {
		y[i] = 128
	}
	for i := range u {
		u[i] = 128
		v[i] = 128
	}

	f.pictures <- backend.Picture{
		FrameIndex: frameIndex,
		Width:      f.Width,
		Height:     f.Height,
		Y:          y,
		U:          u,
		V:          v,
		YStride:    f.Width,
		UStride:    (f.Width + 1) / 2,
		VStride:    (f.Width + 1) / 2,
	}
	return nil
}

func (f *FakeDecoder) Pictures() <-chan backend.Picture   { return f.pictures }
func (f *FakeDecoder) Errors() <-chan backend.DecodeError { return f.errors }
func (f *FakeDecoder) Flush() error                       { return nil }

func (f *FakeDecoder) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	close(f.pictures)
	close(f.errors)
	return nil
}

var errDecodeFailed = fakeDecodeError("fake decode failure")

type fakeDecodeError string

func (e fakeDecodeError) Error() string { return string(e) }
