// Package xrerror defines the typed error kinds used throughout the playback engine.
package xrerror

import (
	"errors"
	"fmt"
)

// Kind classifies a playback engine error so callers can branch on recovery policy
// without string matching.
type Kind int

const (
	// Io covers read/seek/write failures on an InputStream.
	Io Kind = iota
	// Truncated means a chunk or frame payload ended before its declared size.
	Truncated
	// FormatVersion means a chunk declared a version this build does not understand.
	FormatVersion
	// UnexpectedChunk means a header chunk was found after a frame chunk, or similar ordering violations.
	UnexpectedChunk
	// MissingKeyframe means the first frame in a file (or a frame's base keyframe) is not a keyframe.
	MissingKeyframe
	// DecodeFailure covers AV1, ZStd, or vertex-weight decode errors. See Codec for which.
	DecodeFailure
	// GpuUpload means a GpuFrameBackend upload or fence wait failed.
	GpuUpload
	// ContractViolation means an external collaborator (InputStream, AV1Decoder, GpuFrameBackend) broke its contract.
	ContractViolation
	// Aborted is an internal control signal, not a user-visible failure: seek, shutdown, or video switch in progress.
	Aborted
)

func (k Kind) String() string {
	switch k {
	case Io:
		return "io"
	case Truncated:
		return "truncated"
	case FormatVersion:
		return "format_version"
	case UnexpectedChunk:
		return "unexpected_chunk"
	case MissingKeyframe:
		return "missing_keyframe"
	case DecodeFailure:
		return "decode_failure"
	case GpuUpload:
		return "gpu_upload"
	case ContractViolation:
		return "contract_violation"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Error makes a bare Kind usable as an errors.Is target (see (*Error).Is).
func (k Kind) Error() string { return k.String() }

// Codec identifies which external codec a DecodeFailure came from.
type Codec int

const (
	// CodecNone is used for Kinds other than DecodeFailure.
	CodecNone Codec = iota
	CodecAV1
	CodecZstd
	CodecVertexWeights
)

func (c Codec) String() string {
	switch c {
	case CodecAV1:
		return "av1"
	case CodecZstd:
		return "zstd"
	case CodecVertexWeights:
		return "vertex_weights"
	default:
		return "none"
	}
}

// Error is the engine's wrapped error type. It carries a Kind so that callers can use
// errors.As to decide recovery policy (terminal vs. per-frame vs. silent-and-internal).
type Error struct {
	Kind  Kind
	Codec Codec
	Op    string // short operation name, e.g. "container.FindNextChunk"
	Err   error  // wrapped underlying error, may be nil
}

func (e *Error) Error() string {
	if e.Codec != CodecNone {
		if e.Err != nil {
			return fmt.Sprintf("%s: %s (%s): %v", e.Op, e.Kind, e.Codec, e.Err)
		}
		return fmt.Sprintf("%s: %s (%s)", e.Op, e.Kind, e.Codec)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is allows errors.Is(err, xrerror.Aborted) to work by comparing Kind against a bare Kind value.
func (e *Error) Is(target error) bool {
	if k, ok := target.(Kind); ok {
		return e.Kind == k
	}
	return false
}

// New builds an *Error for the given op/kind, optionally wrapping err.
func New(op string, kind Kind, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// NewDecode builds a DecodeFailure error tagged with which codec failed.
func NewDecode(op string, codec Codec, err error) *Error {
	return &Error{Kind: DecodeFailure, Codec: codec, Op: op, Err: err}
}

// IsAborted reports whether err represents the internal Aborted control signal.
func IsAborted(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == Aborted
	}
	return false
}
