package tts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/lexiqai/tts-gateway/internal/audio"
	"github.com/lexiqai/tts-gateway/internal/config"
	"github.com/lexiqai/tts-gateway/internal/textchunk"
)

// GenerativeClient implements Provider against the multipart generation
// endpoint that answers with a complete WAV file
type GenerativeClient struct {
	guard
	apiURL     string
	userAgent  string
	httpClient *http.Client
}

// NewGenerativeClient creates a new generative speech client
func NewGenerativeClient(cfg *config.Config) *GenerativeClient {
	return &GenerativeClient{
		guard:      newGuard("generative", cfg),
		apiURL:     cfg.GenerativeTTSURL,
		userAgent:  cfg.GenerativeTTSUserAgent,
		httpClient: newHTTPClient(cfg),
	}
}

// Format implements Provider
func (c *GenerativeClient) Format() audio.Format {
	return audio.FormatContainer
}

// MaxChunkLength implements Provider
func (c *GenerativeClient) MaxChunkLength() int {
	return GenerativeMaxChunk
}

// Synthesize implements Provider
func (c *GenerativeClient) Synthesize(ctx context.Context, chunk textchunk.Chunk, opts Options) (*Fragment, error) {
	var fragment *Fragment
	err := c.call(ctx, chunk.Index, func() error {
		var err error
		fragment, err = c.invoke(ctx, chunk, opts)
		return err
	})
	if err != nil {
		return nil, err
	}
	return fragment, nil
}

func (c *GenerativeClient) invoke(ctx context.Context, chunk textchunk.Chunk, opts Options) (*Fragment, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fields := []struct{ name, value string }{
		{"input", chunk.Text},
		{"prompt", opts.Prompt},
		{"voice", opts.Voice},
		{"vibe", opts.Vibe},
	}
	for _, f := range fields {
		if err := mw.WriteField(f.name, f.value); err != nil {
			return nil, c.fail(chunk.Index, 0, "failed to build form", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, c.fail(chunk.Index, 0, "failed to build form", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, &body)
	if err != nil {
		return nil, c.fail(chunk.Index, 0, "failed to create request", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.fail(chunk.Index, 0, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.fail(chunk.Index, resp.StatusCode, "Failed to generate audio",
			fmt.Errorf("%w: %s", ErrBadStatus, resp.Status))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.fail(chunk.Index, resp.StatusCode, "failed to read audio", err)
	}

	return &Fragment{
		Index:  chunk.Index,
		Data:   data,
		Format: audio.FormatContainer,
	}, nil
}
