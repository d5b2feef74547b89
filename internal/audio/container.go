package audio

import "encoding/binary"

const (
	// WAVHeaderSize is the length of a minimal PCM RIFF/WAVE header
	WAVHeaderSize = 44

	riffSizeOffset = 4
	dataSizeOffset = 40
	riffSizeExtra  = 36 // RIFF chunk size = data size + 36 for the minimal header
)

// ContainerStitcher concatenates WAV fragments that all carry the minimal
// 44-byte PCM header. The first fragment's header is kept and its RIFF
// and data sizes are rewritten for the combined payload. Fragments whose
// header deviates from the minimal layout produce output that is not
// guaranteed to be valid.
type ContainerStitcher struct{}

// Format implements Stitcher
func (ContainerStitcher) Format() Format {
	return FormatContainer
}

// Stitch never fails; the error is part of the Stitcher contract.
func (ContainerStitcher) Stitch(fragments [][]byte) ([]byte, error) {
	if len(fragments) == 0 {
		return []byte{}, nil
	}

	total := len(fragments[0])
	for _, f := range fragments[1:] {
		if len(f) > WAVHeaderSize {
			total += len(f) - WAVHeaderSize
		}
	}

	out := make([]byte, 0, total)
	out = append(out, fragments[0]...)
	for _, f := range fragments[1:] {
		if len(f) > WAVHeaderSize {
			out = append(out, f[WAVHeaderSize:]...)
		}
	}

	// Too short to hold the size fields
	if len(out) < WAVHeaderSize {
		return out, nil
	}

	dataSize := uint32(len(out) - WAVHeaderSize)
	binary.LittleEndian.PutUint32(out[riffSizeOffset:], dataSize+riffSizeExtra)
	binary.LittleEndian.PutUint32(out[dataSizeOffset:], dataSize)

	return out, nil
}
