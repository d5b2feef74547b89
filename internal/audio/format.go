package audio

import (
	"errors"
	"fmt"
)

// Format identifies how a provider's audio fragments are encoded
type Format int

const (
	FormatFrame     Format = iota + 1 // Compressed frames (MP3), optionally ID3-prefixed
	FormatContainer                   // PCM wrapped in a 44-byte RIFF/WAVE header
)

// ErrUnknownFormat is returned when no stitcher exists for a format
var ErrUnknownFormat = errors.New("unknown audio format")

// String returns the file extension style name of the format
func (f Format) String() string {
	switch f {
	case FormatFrame:
		return "mp3"
	case FormatContainer:
		return "wav"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// MediaType returns the MIME type used when serving audio of this format
func (f Format) MediaType() string {
	switch f {
	case FormatFrame:
		return "audio/mpeg"
	case FormatContainer:
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}

// Stitcher joins provider fragments into a single playable file
type Stitcher interface {
	// Format returns the audio format this stitcher understands
	Format() Format

	// Stitch assembles fragments in slice order.
	// The returned slice never aliases any input fragment.
	Stitch(fragments [][]byte) ([]byte, error)
}

// StitcherFor returns the stitcher for the given fragment format
func StitcherFor(format Format) (Stitcher, error) {
	switch format {
	case FormatFrame:
		return FrameStitcher{}, nil
	case FormatContainer:
		return ContainerStitcher{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
}
