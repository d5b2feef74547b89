package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidHeader is returned when data does not start with a minimal
// PCM RIFF/WAVE header
var ErrInvalidHeader = errors.New("invalid WAV header")

const wavFormatPCM = 1

// WAVHeader holds the fields of a minimal 44-byte PCM WAV header
type WAVHeader struct {
	RIFFSize      uint32 // Bytes [4:8]: file size minus 8
	AudioFormat   uint16 // 1 = PCM
	Channels      uint16
	SampleRate    uint32 // Samples per second
	ByteRate      uint32 // SampleRate * Channels * BitsPerSample / 8
	BlockAlign    uint16
	BitsPerSample uint16
	DataSize      uint32 // Bytes [40:44]: length of the data subchunk
}

// ParseWAVHeader reads the minimal PCM header at the start of data.
// Only the layout the ContainerStitcher relies on is accepted: RIFF/WAVE,
// a 16-byte "fmt " chunk and a "data" chunk at offset 36.
func ParseWAVHeader(data []byte) (*WAVHeader, error) {
	if len(data) < WAVHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes, need %d", ErrInvalidHeader, len(data), WAVHeaderSize)
	}
	if !bytes.Equal(data[0:4], []byte("RIFF")) || !bytes.Equal(data[8:12], []byte("WAVE")) {
		return nil, fmt.Errorf("%w: missing RIFF/WAVE signature", ErrInvalidHeader)
	}
	if !bytes.Equal(data[12:16], []byte("fmt ")) || binary.LittleEndian.Uint32(data[16:20]) != 16 {
		return nil, fmt.Errorf("%w: fmt chunk is not the 16-byte PCM layout", ErrInvalidHeader)
	}
	if !bytes.Equal(data[36:40], []byte("data")) {
		return nil, fmt.Errorf("%w: data chunk not at offset 36", ErrInvalidHeader)
	}

	le := binary.LittleEndian
	h := &WAVHeader{
		RIFFSize:      le.Uint32(data[riffSizeOffset:8]),
		AudioFormat:   le.Uint16(data[20:22]),
		Channels:      le.Uint16(data[22:24]),
		SampleRate:    le.Uint32(data[24:28]),
		ByteRate:      le.Uint32(data[28:32]),
		BlockAlign:    le.Uint16(data[32:34]),
		BitsPerSample: le.Uint16(data[34:36]),
		DataSize:      le.Uint32(data[dataSizeOffset:WAVHeaderSize]),
	}
	if h.AudioFormat != wavFormatPCM {
		return nil, fmt.Errorf("%w: audio format %d is not PCM", ErrInvalidHeader, h.AudioFormat)
	}

	return h, nil
}

// Duration returns the playback length described by the header
func (h *WAVHeader) Duration() time.Duration {
	if h.ByteRate == 0 {
		return 0
	}
	return time.Duration(float64(h.DataSize) / float64(h.ByteRate) * float64(time.Second))
}

// EncodeWAVHeader builds a minimal PCM header for dataSize bytes of audio.
// Used by tests and fakes to produce provider-like fragments.
func EncodeWAVHeader(dataSize, sampleRate, channels, bitsPerSample int) []byte {
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	h := make([]byte, WAVHeaderSize)
	le := binary.LittleEndian

	copy(h[0:4], "RIFF")
	le.PutUint32(h[4:8], uint32(dataSize+riffSizeExtra))
	copy(h[8:12], "WAVE")

	copy(h[12:16], "fmt ")
	le.PutUint32(h[16:20], 16)
	le.PutUint16(h[20:22], wavFormatPCM)
	le.PutUint16(h[22:24], uint16(channels))
	le.PutUint32(h[24:28], uint32(sampleRate))
	le.PutUint32(h[28:32], uint32(byteRate))
	le.PutUint16(h[32:34], uint16(blockAlign))
	le.PutUint16(h[34:36], uint16(bitsPerSample))

	copy(h[36:40], "data")
	le.PutUint32(h[40:44], uint32(dataSize))

	return h
}
