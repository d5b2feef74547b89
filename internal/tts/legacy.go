package tts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/lexiqai/tts-gateway/internal/audio"
	"github.com/lexiqai/tts-gateway/internal/config"
	"github.com/lexiqai/tts-gateway/internal/textchunk"
)

const (
	legacySpeakerMapType = "0"
	legacyAppID          = "1233"
	legacyErrorBodyLimit = 512
)

// LegacyClient implements Provider against the form-encoded speech API
// that answers with base64 MP3 inside a JSON envelope
type LegacyClient struct {
	guard
	apiURL     string
	sessionID  string
	userAgent  string
	httpClient *http.Client
}

// legacyResponse is the JSON envelope returned by the speech API
type legacyResponse struct {
	StatusCode *int   `json:"status_code"`
	StatusMsg  string `json:"status_msg"`
	Data       *struct {
		VStr *string `json:"v_str"` // Base64 MP3
	} `json:"data"`
}

// NewLegacyClient creates a new legacy speech API client
func NewLegacyClient(cfg *config.Config) *LegacyClient {
	return &LegacyClient{
		guard:      newGuard("legacy", cfg),
		apiURL:     cfg.LegacyTTSURL,
		sessionID:  cfg.LegacyTTSSessionID,
		userAgent:  cfg.LegacyTTSUserAgent,
		httpClient: newHTTPClient(cfg),
	}
}

// Format implements Provider
func (c *LegacyClient) Format() audio.Format {
	return audio.FormatFrame
}

// MaxChunkLength implements Provider
func (c *LegacyClient) MaxChunkLength() int {
	return LegacyMaxChunk
}

// Synthesize implements Provider. opts.Voice selects the text_speaker.
func (c *LegacyClient) Synthesize(ctx context.Context, chunk textchunk.Chunk, opts Options) (*Fragment, error) {
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

func (c *LegacyClient) invoke(ctx context.Context, chunk textchunk.Chunk, opts Options) (*Fragment, error) {
	form := url.Values{}
	form.Set("req_text", chunk.Text)
	form.Set("speaker_map_type", legacySpeakerMapType)
	form.Set("aid", legacyAppID)
	form.Set("text_speaker", opts.Voice)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, c.fail(chunk.Index, 0, "failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=utf-8")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Cookie", "sessionid="+c.sessionID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.fail(chunk.Index, 0, "request failed", err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, legacyErrorBodyLimit))
		return nil, c.fail(chunk.Index, resp.StatusCode, "unexpected HTTP status",
			fmt.Errorf("%w: %s", ErrBadStatus, strings.TrimSpace(string(body))))
	}

	var payload legacyResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, c.fail(chunk.Index, resp.StatusCode, "invalid JSON response",
			fmt.Errorf("%w: %v", ErrMalformedResponse, err))
	}

	switch {
	case payload.StatusCode == nil:
		return nil, c.fail(chunk.Index, resp.StatusCode, "response has no status_code", ErrMalformedResponse)
	case *payload.StatusCode != 0:
		return nil, c.fail(chunk.Index, resp.StatusCode, "Failed to generate audio",
			fmt.Errorf("%w: status_code=%d %s", ErrBadStatus, *payload.StatusCode, payload.StatusMsg))
	case payload.Data == nil || payload.Data.VStr == nil:
		return nil, c.fail(chunk.Index, resp.StatusCode, "response has no data.v_str", ErrMalformedResponse)
	}

	return &Fragment{
		Index:  chunk.Index,
		Data:   []byte(*payload.Data.VStr),
		Format: audio.FormatFrame,
	}, nil
}
