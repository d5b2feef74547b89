package audio

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

const (
	id3HeaderSize = 10
	id3SizeOffset = 6
)

var id3Signature = []byte("ID3")

// ErrMalformedFragment is returned when a fragment cannot be decoded from
// its transport encoding
var ErrMalformedFragment = errors.New("malformed audio fragment")

// FragmentError identifies the fragment a stitcher rejected
type FragmentError struct {
	Index int
	Err   error
}

func (e *FragmentError) Error() string {
	return fmt.Sprintf("%v: fragment %d: %v", ErrMalformedFragment, e.Index, e.Err)
}

// Is makes errors.Is(err, ErrMalformedFragment) hold
func (e *FragmentError) Is(target error) bool {
	return target == ErrMalformedFragment
}

func (e *FragmentError) Unwrap() error {
	return e.Err
}

// FrameStitcher concatenates base64-encoded MP3 fragments.
// The first fragment keeps its ID3 tag; tags on later fragments are cut so
// that only MPEG frames follow the first file.
type FrameStitcher struct{}

// Format implements Stitcher
func (FrameStitcher) Format() Format {
	return FormatFrame
}

// Stitch decodes every fragment and appends them, dropping the leading
// ID3 tag of every fragment after the first.
func (FrameStitcher) Stitch(fragments [][]byte) ([]byte, error) {
	decoded := make([][]byte, len(fragments))
	total := 0
	for i, fragment := range fragments {
		data, err := decodeBase64(fragment)
		if err != nil {
			return nil, &FragmentError{Index: i, Err: err}
		}
		decoded[i] = data
		total += len(data)
	}

	out := make([]byte, 0, total)
	for i, data := range decoded {
		if i > 0 {
			skip := ID3TagLength(data)
			if skip > 0 {
				logStrippedTag(i, data, skip)
			}
			data = data[skip:]
		}
		out = append(out, data...)
	}

	return out, nil
}

// ID3TagLength returns how many leading bytes of data belong to an ID3v2
// tag, or 0 when data does not start with the tag signature.
//
// The tag size field is read as a plain big-endian uint32, not as the
// synchsafe integer ID3v2 prescribes; SynchsafeTagSize gives the standard
// reading. The result is clamped to len(data).
func ID3TagLength(data []byte) int {
	if !bytes.HasPrefix(data, id3Signature) {
		return 0
	}
	if len(data) < id3HeaderSize {
		return len(data)
	}

	size := uint64(binary.BigEndian.Uint32(data[id3SizeOffset:id3HeaderSize]))
	skip := id3HeaderSize + size
	if skip > uint64(len(data)) {
		return len(data)
	}
	return int(skip)
}

// SynchsafeTagSize decodes the ID3v2 tag size the way the standard
// defines it (7 significant bits per byte). ok is false when data carries
// no complete tag header.
func SynchsafeTagSize(data []byte) (size int, ok bool) {
	if len(data) < id3HeaderSize || !bytes.HasPrefix(data, id3Signature) {
		return 0, false
	}
	for _, b := range data[id3SizeOffset:id3HeaderSize] {
		size = size<<7 | int(b&0x7f)
	}
	return size, true
}

// logStrippedTag reports a cut tag with both readings of its size field,
// so fragments whose tag is synchsafe-encoded can be spotted in the logs
func logStrippedTag(index int, data []byte, skip int) {
	event := log.Debug().
		Int("fragment", index).
		Int("stripped_bytes", skip)
	if len(data) >= id3HeaderSize {
		event = event.Uint32("plain_size", binary.BigEndian.Uint32(data[id3SizeOffset:id3HeaderSize]))
	}
	if size, ok := SynchsafeTagSize(data); ok {
		event = event.Int("synchsafe_size", size)
	}
	event.Msg("Stripped ID3 tag from fragment")
}

func decodeBase64(fragment []byte) ([]byte, error) {
	out := make([]byte, base64.StdEncoding.DecodedLen(len(fragment)))
	n, err := base64.StdEncoding.Decode(out, bytes.TrimSpace(fragment))
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}
