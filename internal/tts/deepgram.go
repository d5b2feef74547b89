package tts

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/speak/v1/rest"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	speak "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/speak"

	"github.com/lexiqai/tts-gateway/internal/audio"
	"github.com/lexiqai/tts-gateway/internal/config"
	"github.com/lexiqai/tts-gateway/internal/textchunk"
)

const (
	deepgramEncoding  = "linear16"
	deepgramContainer = "wav"
)

// speakFunc writes the audio for text into buf and returns the HTTP
// status of the reply, 0 when no reply was received
type speakFunc func(ctx context.Context, text string, options *interfaces.SpeakOptions, buf *interfaces.RawResponse) (int, error)

// errDeepgramClient is returned when the SDK rejects the client options
var errDeepgramClient = errors.New("deepgram client could not be created")

// DeepgramClient implements Provider using Deepgram's speak REST API,
// requesting 16-bit PCM in a WAV container
type DeepgramClient struct {
	guard
	speakFn      speakFunc
	defaultModel string
	sampleRate   int
}

// NewDeepgramClient creates a new Deepgram speak client
func NewDeepgramClient(cfg *config.Config) *DeepgramClient {
	options := &interfaces.ClientOptions{
		APIKey: cfg.DeepgramAPIKey,
		Host:   cfg.DeepgramHost,
	}
	rest := speak.NewREST(cfg.DeepgramAPIKey, options)
	if rest == nil {
		return newDeepgramClient(cfg, func(context.Context, string, *interfaces.SpeakOptions, *interfaces.RawResponse) (int, error) {
			return 0, errDeepgramClient
		})
	}

	// The SDK drops the reply status on failure, so the transport records it
	base := rest.HTTPClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	rest.HTTPClient.Transport = statusTransport{base: base}
	dg := api.New(rest)

	return newDeepgramClient(cfg, func(ctx context.Context, text string, o *interfaces.SpeakOptions, buf *interfaces.RawResponse) (int, error) {
		status := new(int)
		_, err := dg.ToStream(context.WithValue(ctx, statusSlotKey{}, status), text, o, buf)
		return *status, err
	})
}

func newDeepgramClient(cfg *config.Config, fn speakFunc) *DeepgramClient {
	return &DeepgramClient{
		guard:        newGuard("deepgram", cfg),
		speakFn:      fn,
		defaultModel: cfg.DeepgramModel,
		sampleRate:   cfg.DeepgramSampleRate,
	}
}

type statusSlotKey struct{}

// statusTransport stores the reply status in the *int carried by the
// request context under statusSlotKey
type statusTransport struct {
	base http.RoundTripper
}

func (t statusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err == nil {
		if slot, ok := req.Context().Value(statusSlotKey{}).(*int); ok {
			*slot = resp.StatusCode
		}
	}
	return resp, err
}

// Format implements Provider
func (c *DeepgramClient) Format() audio.Format {
	return audio.FormatContainer
}

// MaxChunkLength implements Provider
func (c *DeepgramClient) MaxChunkLength() int {
	return DeepgramMaxChunk
}

// Synthesize implements Provider. opts.Voice selects the voice model;
// Prompt and Vibe are not supported by the API and are ignored.
func (c *DeepgramClient) Synthesize(ctx context.Context, chunk textchunk.Chunk, opts Options) (*Fragment, error) {
	model := opts.Voice
	if model == "" {
		model = c.defaultModel
	}

	options := &interfaces.SpeakOptions{
		Model:      model,
		Encoding:   deepgramEncoding,
		Container:  deepgramContainer,
		SampleRate: c.sampleRate,
	}

	var buf interfaces.RawResponse
	err := c.call(ctx, chunk.Index, func() error {
		status, err := c.speakFn(ctx, chunk.Text, options, &buf)
		if status == 0 {
			var se *interfaces.StatusError
			if errors.As(err, &se) && se.Resp != nil {
				status = se.Resp.StatusCode
			}
		}

		switch {
		case status != 0 && !isSuccess(status):
			return c.fail(chunk.Index, status, "unexpected HTTP status",
				fmt.Errorf("%w: %s", ErrBadStatus, http.StatusText(status)))
		case err != nil:
			return c.fail(chunk.Index, status, "speak request failed", err)
		case buf.Len() == 0:
			return c.fail(chunk.Index, status, "empty audio response", ErrMalformedResponse)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &Fragment{
		Index:  chunk.Index,
		Data:   append([]byte(nil), buf.Bytes()...),
		Format: audio.FormatContainer,
	}, nil
}
