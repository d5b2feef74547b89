package tts

import (
	"context"

	"github.com/lexiqai/tts-gateway/internal/audio"
	"github.com/lexiqai/tts-gateway/internal/textchunk"
)

// Per-provider chunk ceilings, in runes
const (
	LegacyMaxChunk     = 280
	GenerativeMaxChunk = 999
	DeepgramMaxChunk   = 999
)

// Options carries the caller's provider selectors
type Options struct {
	Voice  string // Speaker / voice / model identifier
	Prompt string // Free-form delivery instructions (generative only)
	Vibe   string // Style preset (generative only)
}

// Fragment is the audio one provider call returned for one chunk.
// Data is in the provider's transport form: base64 text for frame-format
// providers, raw bytes for container-format providers.
type Fragment struct {
	Index  int
	Data   []byte
	Format audio.Format
}

// Provider synthesizes a single text chunk through an external service
type Provider interface {
	// Name returns the provider identifier (for logging/metrics)
	Name() string

	// Format returns the format of every fragment this provider returns
	Format() audio.Format

	// MaxChunkLength is the longest chunk, in runes, the provider accepts
	MaxChunkLength() int

	// Synthesize issues exactly one outbound request for chunk.
	// Every failure is a *ProviderError.
	Synthesize(ctx context.Context, chunk textchunk.Chunk, opts Options) (*Fragment, error)

	// Ready reports whether the provider is currently accepting calls
	Ready(ctx context.Context) (bool, error)
}
