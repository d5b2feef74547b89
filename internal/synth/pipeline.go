package synth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lexiqai/tts-gateway/internal/audio"
	"github.com/lexiqai/tts-gateway/internal/textchunk"
	"github.com/lexiqai/tts-gateway/internal/tts"
)

// Observer is told about every provider call the pipeline makes
type Observer interface {
	ProviderCall(provider string, chunk int, elapsed time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) ProviderCall(string, int, time.Duration, error) {}

// Result is the assembled audio for one request
type Result struct {
	Audio  []byte
	Format audio.Format
	Chunks int
}

// Pipeline turns text into one audio file through a single provider:
// split into chunks, synthesize each chunk in order, stitch.
type Pipeline struct {
	provider tts.Provider
	stitcher audio.Stitcher
	observer Observer
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithObserver reports provider calls to o
func WithObserver(o Observer) Option {
	return func(p *Pipeline) {
		if o != nil {
			p.observer = o
		}
	}
}

// New builds a pipeline for provider, picking the stitcher that matches
// the provider's fragment format
func New(provider tts.Provider, opts ...Option) (*Pipeline, error) {
	stitcher, err := audio.StitcherFor(provider.Format())
	if err != nil {
		return nil, fmt.Errorf("provider %s: %w", provider.Name(), err)
	}

	p := &Pipeline{
		provider: provider,
		stitcher: stitcher,
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Provider returns the provider the pipeline calls
func (p *Pipeline) Provider() tts.Provider {
	return p.provider
}

// Synthesize produces the complete audio for text.
//
// Chunks are sent one at a time in order; the first failure aborts the
// request and every fragment fetched so far is dropped. Empty text
// yields empty audio without calling the provider.
func (p *Pipeline) Synthesize(ctx context.Context, text string, opts tts.Options) (*Result, error) {
	chunks := textchunk.Split(text, p.provider.MaxChunkLength())
	name := p.provider.Name()

	fragments := make([][]byte, 0, len(chunks))
	for _, chunk := range chunks {
		start := time.Now()
		fragment, err := p.provider.Synthesize(ctx, chunk, opts)
		p.observer.ProviderCall(name, chunk.Index, time.Since(start), err)
		if err != nil {
			return nil, err
		}

		if fragment.Format != p.stitcher.Format() {
			return nil, &tts.ProviderError{
				Provider: name,
				Chunk:    chunk.Index,
				Message:  fmt.Sprintf("returned %s audio, expected %s", fragment.Format, p.stitcher.Format()),
				Cause:    tts.ErrMalformedResponse,
			}
		}
		fragments = append(fragments, fragment.Data)
	}

	out, err := p.stitcher.Stitch(fragments)
	if err != nil {
		var fe *audio.FragmentError
		if errors.As(err, &fe) {
			return nil, &tts.ProviderError{
				Provider: name,
				Chunk:    chunks[fe.Index].Index,
				Message:  "undecodable audio payload",
				Cause:    err,
			}
		}
		return nil, err
	}

	return &Result{
		Audio:  out,
		Format: p.stitcher.Format(),
		Chunks: len(chunks),
	}, nil
}
