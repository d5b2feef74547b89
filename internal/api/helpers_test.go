package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lexiqai/tts-gateway/internal/audio"
	"github.com/lexiqai/tts-gateway/internal/synth"
	"github.com/lexiqai/tts-gateway/internal/textchunk"
	"github.com/lexiqai/tts-gateway/internal/tts"
)

type fakeProvider struct {
	name    string
	format  audio.Format
	max     int
	respond func(textchunk.Chunk) ([]byte, error)

	mu      sync.Mutex
	chunks  []textchunk.Chunk
	options []tts.Options
}

func (f *fakeProvider) Name() string                        { return f.name }
func (f *fakeProvider) Format() audio.Format                { return f.format }
func (f *fakeProvider) MaxChunkLength() int                 { return f.max }
func (f *fakeProvider) Ready(context.Context) (bool, error) { return true, nil }

func (f *fakeProvider) Synthesize(_ context.Context, chunk textchunk.Chunk, opts tts.Options) (*tts.Fragment, error) {
	f.mu.Lock()
	f.chunks = append(f.chunks, chunk)
	f.options = append(f.options, opts)
	f.mu.Unlock()

	data, err := f.respond(chunk)
	if err != nil {
		return nil, err
	}
	return &tts.Fragment{Index: chunk.Index, Data: data, Format: f.format}, nil
}

func (f *fakeProvider) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.chunks)
}

// newFrameProvider answers chunk i with size(i) bytes of value i+1, base64 encoded
func newFrameProvider(size func(int) int) *fakeProvider {
	return &fakeProvider{
		name:   "legacy",
		format: audio.FormatFrame,
		max:    tts.LegacyMaxChunk,
		respond: func(c textchunk.Chunk) ([]byte, error) {
			raw := bytes.Repeat([]byte{byte(c.Index + 1)}, size(c.Index))
			return []byte(base64.StdEncoding.EncodeToString(raw)), nil
		},
	}
}

// newContainerProvider answers every chunk with a WAV file holding n data bytes
func newContainerProvider(name string, n int) *fakeProvider {
	return &fakeProvider{
		name:   name,
		format: audio.FormatContainer,
		max:    tts.GenerativeMaxChunk,
		respond: func(textchunk.Chunk) ([]byte, error) {
			return append(audio.EncodeWAVHeader(n, 24000, 1, 16), make([]byte, n)...), nil
		},
	}
}

func failingProvider(name string, format audio.Format, err error) *fakeProvider {
	return &fakeProvider{
		name:    name,
		format:  format,
		max:     tts.LegacyMaxChunk,
		respond: func(textchunk.Chunk) ([]byte, error) { return nil, err },
	}
}

func endpoint(t *testing.T, name string, p tts.Provider, detail string, status StatusPolicy) *Endpoint {
	t.Helper()
	pipeline, err := synth.New(p)
	require.NoError(t, err)
	return &Endpoint{Name: name, Pipeline: pipeline, FailureDetail: detail, Status: status}
}

type testProviders struct {
	legacy, generative, deepgram tts.Provider
}

func newTestServer(t *testing.T, p testProviders) *httptest.Server {
	t.Helper()

	var endpoints []*Endpoint
	if p.legacy != nil {
		endpoints = append(endpoints, endpoint(t, EndpointLegacy, p.legacy, "Failed to generate audio", InternalError))
	}
	if p.generative != nil {
		endpoints = append(endpoints, endpoint(t, EndpointGenerative, p.generative, "Failed to generate audio from OpenAI.FM", UpstreamStatus))
	}
	if p.deepgram != nil {
		endpoints = append(endpoints, endpoint(t, EndpointDeepgram, p.deepgram, "Failed to generate audio from Deepgram", UpstreamStatus))
	}

	origins := []string{"*"}
	s := NewServer(Options{Origins: origins, MaxBody: 1 << 16}, endpoints...)
	mux := http.NewServeMux()
	s.Register(mux)

	server := httptest.NewServer(CORS(origins, mux))
	t.Cleanup(server.Close)
	return server
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func newHTTPTestServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}
