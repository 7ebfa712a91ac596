// Package main provides the CLI entry point for xrplay, a reference playback driver
// for the xrvideo engine.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/scannedreality/xrvideo"
	"github.com/scannedreality/xrvideo/backend"
	"github.com/scannedreality/xrvideo/backend/dav1d"
	"github.com/scannedreality/xrvideo/backend/inputstream"
	"github.com/scannedreality/xrvideo/internal/container"
	"github.com/scannedreality/xrvideo/internal/logging"
	"github.com/scannedreality/xrvideo/internal/reporter"
	"github.com/scannedreality/xrvideo/internal/sysinfo"
	"github.com/scannedreality/xrvideo/internal/util"
)

const (
	appName    = "xrplay"
	appVersion = "0.1.0"
)

// tickInterval is the wall-clock cadence xrplay drives Engine.Tick/CreateRenderLock
// at; a real renderer would instead call these once per vsync.
const tickInterval = 16 * time.Millisecond

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "play":
		err = runPlay(os.Args[2:])
	case "inspect":
		err = runInspect(os.Args[2:])
	case "version", "--version", "-v":
		fmt.Printf("%s version %s\n", appName, appVersion)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf(`%s - XRVideo playback tool

Usage:
  %s <command> [options]

Commands:
  play       Play an .xrv file to completion, driving the decode pipeline
  inspect    Print an .xrv file's container metadata without decoding it
  version    Print version information
  help       Show this help message

Run '%s play --help' or '%s inspect --help' for command options.
`, appName, appName, appName, appName)
}

type playArgs struct {
	path          string
	logDir        string
	verbose       bool
	noLog         bool
	speed         float64
	mode          string
	cacheCapacity int
}

func runPlay(args []string) error {
	fs := flag.NewFlagSet("play", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Play an .xrv file to completion.

Usage:
  %s play [options] <file.xrv>

Options:
  -l, --log-dir <PATH>     Log directory (defaults to ~/.local/state/xrplay/logs)
  -v, --verbose            Enable verbose output
  --no-log                 Disable log file creation
  --speed <N>              Playback speed multiplier (default 1.0)
  --mode <single|loop|back> Playback boundary mode (default single)
  --cache-capacity <N>     Decoded-frame cache size (default: auto from memory)
`, appName)
	}

	var pa playArgs
	fs.StringVar(&pa.logDir, "l", "", "Log directory")
	fs.StringVar(&pa.logDir, "log-dir", "", "Log directory")
	fs.BoolVar(&pa.verbose, "v", false, "Enable verbose output")
	fs.BoolVar(&pa.verbose, "verbose", false, "Enable verbose output")
	fs.BoolVar(&pa.noLog, "no-log", false, "Disable log file creation")
	fs.Float64Var(&pa.speed, "speed", 1.0, "Playback speed multiplier")
	fs.StringVar(&pa.mode, "mode", "single", "Playback boundary mode")
	fs.IntVar(&pa.cacheCapacity, "cache-capacity", 0, "Decoded-frame cache size")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("input file is required")
	}
	pa.path = fs.Arg(0)

	mode, err := parseMode(pa.mode)
	if err != nil {
		return err
	}

	logDir := pa.logDir
	if logDir == "" {
		logDir = logging.DefaultLogDir()
	}
	logger, err := logging.Setup(logDir, pa.verbose, pa.noLog, os.Args)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	if logger != nil {
		defer func() { _ = logger.Close() }()
		logger.Info("Playing: %s", pa.path)
	}

	termRep := reporter.NewTerminalReporterVerbose(pa.verbose)
	var rep reporter.Reporter = termRep
	if logger != nil {
		rep = reporter.NewCompositeReporter(termRep, reporter.NewLogReporter(logger.Writer()))
	}

	done := &playbackDone{done: make(chan struct{})}
	rep = reporter.NewCompositeReporter(rep, done)

	width, height, err := peekTextureDimensions(pa.path)
	if err != nil {
		return fmt.Errorf("inspecting %s: %w", pa.path, err)
	}

	decoder, err := openDecoder(int(width), int(height))
	if err != nil {
		return err
	}

	stream, err := inputstream.Open(pa.path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", pa.path, err)
	}

	opts := []xrvideo.Option{xrvideo.WithPlaybackSpeed(pa.speed)}
	if pa.verbose {
		opts = append(opts, xrvideo.WithVerbose())
	}
	if pa.cacheCapacity > 0 {
		opts = append(opts, xrvideo.WithCacheCapacity(pa.cacheCapacity))
	}

	gpu := backend.NewNullBackend(2, true)
	engine, err := xrvideo.Open(stream, false, decoder, gpu, rep, opts...)
	if err != nil {
		return fmt.Errorf("opening %s: %w", pa.path, err)
	}
	defer func() { _ = engine.Close() }()

	engine.SetMode(mode)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-done.done:
			return nil
		case <-ticker.C:
			engine.Tick()
			if lock := engine.CreateRenderLock(); lock != nil {
				lock.Drop()
			}
		}
	}
}

func parseMode(s string) (xrvideo.Mode, error) {
	switch s {
	case "single", "":
		return xrvideo.SingleShot, nil
	case "loop":
		return xrvideo.Loop, nil
	case "back":
		return xrvideo.BackAndForth, nil
	default:
		return 0, fmt.Errorf("unknown playback mode %q (want single, loop, or back)", s)
	}
}

// openDecoder prefers a real dav1d subprocess, falling back to an in-process fake
// decoder (solid-gray pictures) when the dav1d binary isn't on PATH, so xrplay stays
// runnable in environments without it installed.
func openDecoder(width, height int) (backend.AV1Decoder, error) {
	if _, err := exec.LookPath("dav1d"); err == nil {
		return dav1d.New(width, height)
	}
	fmt.Fprintln(os.Stderr, "xrplay: dav1d binary not found on PATH, using a fake decoder (solid-gray frames)")
	return dav1d.NewFake(width, height), nil
}

func peekTextureDimensions(path string) (width, height uint32, err error) {
	stream, err := inputstream.Open(path)
	if err != nil {
		return 0, 0, err
	}
	file, err := container.Open(stream, false)
	if err != nil {
		return 0, 0, err
	}
	defer func() { _ = file.Close() }()

	first := file.Index.At(0)
	if err := file.Reader.Seek(first.Offset); err != nil {
		return 0, 0, err
	}
	data, _, err := file.Reader.ReadNextFrame()
	if err != nil {
		return 0, 0, err
	}
	parsed, err := container.ParseFrame(data)
	if err != nil {
		return 0, 0, err
	}
	return parsed.Frame.TextureWidth, parsed.Frame.TextureHeight, nil
}

// playbackDone is a Reporter that only reacts to PlaybackComplete, letting xrplay's
// main loop exit as soon as a SingleShot video finishes instead of ticking forever.
type playbackDone struct {
	reporter.NullReporter
	done chan struct{}
	once sync.Once
}

func (d *playbackDone) PlaybackComplete(reporter.PlaybackCompleteSummary) {
	d.once.Do(func() { close(d.done) })
}

func runInspect(args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Print an .xrv file's container metadata.

Usage:
  %s inspect <file.xrv>
`, appName)
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("input file is required")
	}
	path := fs.Arg(0)

	stream, err := inputstream.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	file, err := container.Open(stream, false)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	width, height, err := peekTextureDimensions(path)
	if err != nil {
		return err
	}

	duration := time.Duration(file.Index.VideoEndTimestamp() - file.Index.VideoStartTimestamp())
	keyframes := 0
	for i := 0; i < file.Index.FrameCount(); i++ {
		if file.Index.At(i).IsKeyframe {
			keyframes++
		}
	}

	perSlot := sysinfo.BytesPerCacheSlot(width, height)

	fmt.Printf("File:       %s\n", path)
	fmt.Printf("Frames:     %d (%d keyframes)\n", file.Index.FrameCount(), keyframes)
	fmt.Printf("Duration:   %s\n", util.FormatDurationFromSecs(int64(duration.Seconds())))
	fmt.Printf("Texture:    %dx%d\n", width, height)
	fmt.Printf("Cache cost: ~%s per decoded-frame slot at this resolution\n", util.FormatBytesReadable(perSlot))
	if file.HasMeta {
		fmt.Printf("Orbit cam:  lookAt=(%.2f, %.2f, %.2f) radius=%.2f yaw=%.2f pitch=%.2f\n",
			file.Metadata.LookAtX, file.Metadata.LookAtY, file.Metadata.LookAtZ,
			file.Metadata.Radius, file.Metadata.Yaw, file.Metadata.Pitch)
	}
	return nil
}
