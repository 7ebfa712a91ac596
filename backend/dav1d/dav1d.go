// Package dav1d wraps the dav1d command-line decoder as a backend.AV1Decoder,
// feeding it low-overhead AV1 bitstream chunks over stdin and parsing raw I420
// pictures back off stdout, the same subprocess-pipe shape the encoding side of
// this codebase uses to drive SvtAv1EncApp.
package dav1d

import (
	"bufio"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/scannedreality/xrvideo/backend"
)

const binary = "dav1d"

// Decoder drives a single persistent dav1d subprocess. Frames must be submitted in
// decode order; Decode does not block waiting for the corresponding picture, which
// arrives later on Pictures(), in submission order (see readPictures).
type Decoder struct {
	width, height int

	cmd   *exec.Cmd
	stdin io.WriteCloser

	pictures chan backend.Picture
	errors   chan backend.DecodeError

	mu     sync.Mutex
	closed bool

	readDone chan struct{}
}

// New starts a dav1d subprocess configured to decode frames of the given pixel
// dimensions, read as a raw low-overhead AV1 bitstream on stdin, writing raw I420
// frames to stdout.
func New(width, height int) (*Decoder, error) {
	cmd := exec.Command(binary,
		"-i", "-",
		"-o", "-",
		"--muxer", "raw",
		"--filmgrain", "0",
		"--threads", "1",
	)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("dav1d: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("dav1d: stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("dav1d: start: %w", err)
	}

	d := &Decoder{
		width:    width,
		height:   height,
		cmd:      cmd,
		stdin:    stdin,
		pictures: make(chan backend.Picture, 4),
		errors:   make(chan backend.DecodeError, 4),
		readDone: make(chan struct{}),
	}

	go d.readPictures(bufio.NewReaderSize(stdout, 1<<20))

	return d, nil
}

func (d *Decoder) ySize() int { return d.width * d.height }
func (d *Decoder) cSize() int { return ((d.width + 1) / 2) * ((d.height + 1) / 2) }

// readPictures runs until stdout is exhausted (the subprocess exited or was closed),
// parsing one fixed-size I420 frame at a time. Frame index association is FIFO: the
// Nth picture read corresponds to the Nth frame submitted via Decode, since dav1d's
// raw muxer emits frames in display order without any identifying metadata.
func (d *Decoder) readPictures(r *bufio.Reader) {
	defer close(d.readDone)

	ySize, cSize := d.ySize(), d.cSize()
	frameSize := ySize + 2*cSize

	submitted := 0
	for {
		buf := make([]byte, frameSize)
		if _, err := io.ReadFull(r, buf); err != nil {
			if err != io.EOF && err != io.ErrUnexpectedEOF {
				d.errors <- backend.DecodeError{FrameIndex: -1, Err: fmt.Errorf("dav1d: read output: %w", err)}
			}
			return
		}

		pic := backend.Picture{
			FrameIndex: submitted,
			Width:      d.width,
			Height:     d.height,
			Y:          buf[:ySize],
			U:          buf[ySize : ySize+cSize],
			V:          buf[ySize+cSize : ySize+2*cSize],
			YStride:    d.width,
			UStride:    (d.width + 1) / 2,
			VStride:    (d.width + 1) / 2,
		}
		submitted++
		d.pictures <- pic
	}
}

// Decode writes one frame's encoded payload to the decoder's stdin.
func (d *Decoder) Decode(frameIndex int, payload []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return fmt.Errorf("dav1d: decoder closed")
	}
	if _, err := d.stdin.Write(payload); err != nil {
		return fmt.Errorf("dav1d: write frame %d: %w", frameIndex, err)
	}
	return nil
}

func (d *Decoder) Pictures() <-chan backend.Picture { return d.pictures }
func (d *Decoder) Errors() <-chan backend.DecodeError { return d.errors }

// Flush has no effect for this decoder: dav1d's raw low-overhead bitstream mode
// holds no undecoded frames once their bytes have been written to stdin, since each
// chunk is a single standalone temporal unit.
func (d *Decoder) Flush() error { return nil }

// Close closes stdin (signalling end of stream to dav1d), waits for the subprocess
// to exit, and drains the reader goroutine.
func (d *Decoder) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	_ = d.stdin.Close()
	<-d.readDone
	close(d.pictures)
	close(d.errors)
	return d.cmd.Wait()
}
