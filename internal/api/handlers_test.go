package api

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexiqai/tts-gateway/internal/audio"
	"github.com/lexiqai/tts-gateway/internal/response"
	"github.com/lexiqai/tts-gateway/internal/textchunk"
	"github.com/lexiqai/tts-gateway/internal/tts"
)

func decodeAudio(t *testing.T, resp *http.Response) []byte {
	t.Helper()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var body response.AudioBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	data, err := base64.StdEncoding.DecodeString(body.AudioBase64)
	require.NoError(t, err)
	return data
}

func decodeDetail(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body response.ErrorBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.Detail
}

func TestLegacy_Base64EndToEnd(t *testing.T) {
	sizes := []int{1000, 800}
	provider := newFrameProvider(func(i int) int { return sizes[i] })
	server := newTestServer(t, testProviders{legacy: provider})

	body := fmt.Sprintf(`{"text":%q}`, strings.Repeat("a", 500))
	resp := postJSON(t, server.URL+"/tts", body)

	data := decodeAudio(t, resp)
	assert.Len(t, data, 1800)
	require.Equal(t, 2, provider.calls())
	assert.Len(t, provider.chunks[0].Text, 280)
	assert.Len(t, provider.chunks[1].Text, 220)
	assert.Equal(t, DefaultTextSpeaker, provider.options[0].Voice)
	assert.NotEmpty(t, resp.Header.Get(requestIDHeader))
}

func TestLegacy_Binary(t *testing.T) {
	provider := newFrameProvider(func(int) int { return 16 })
	server := newTestServer(t, testProviders{legacy: provider})

	resp := postJSON(t, server.URL+"/tts", `{"text":"hello","output_format":"BINARY","text_speaker":"en_us_002"}`)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "audio/mpeg", resp.Header.Get("Content-Type"))
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Len(t, data, 16)
	assert.Equal(t, "en_us_002", provider.options[0].Voice)
}

func TestLegacy_InvalidOutputFormat(t *testing.T) {
	provider := newFrameProvider(func(int) int { return 16 })
	server := newTestServer(t, testProviders{legacy: provider})

	resp := postJSON(t, server.URL+"/tts", `{"text":"hello","output_format":"xml"}`)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid output format. Choose 'base64' or 'binary'.", decodeDetail(t, resp))
	assert.Equal(t, 0, provider.calls())
}

func TestLegacy_EmptyText(t *testing.T) {
	provider := newFrameProvider(func(int) int { return 16 })
	server := newTestServer(t, testProviders{legacy: provider})

	resp := postJSON(t, server.URL+"/tts", `{"text":""}`)

	assert.Empty(t, decodeAudio(t, resp))
	assert.Equal(t, 0, provider.calls())
}

func TestLegacy_RequestValidation(t *testing.T) {
	server := newTestServer(t, testProviders{legacy: newFrameProvider(func(int) int { return 1 })})

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"missing text", `{"output_format":"base64"}`, http.StatusUnprocessableEntity},
		{"invalid json", `{"text":`, http.StatusBadRequest},
		{"wrong type", `{"text":42}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, server.URL+"/tts", tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.NotEmpty(t, decodeDetail(t, resp))
		})
	}
}

func TestLegacy_BodyTooLarge(t *testing.T) {
	provider := newFrameProvider(func(int) int { return 1 })
	s := NewServer(Options{Origins: []string{"*"}, MaxBody: 64}, endpoint(t, EndpointLegacy, provider, "Failed to generate audio", InternalError))
	mux := http.NewServeMux()
	s.Register(mux)

	body := fmt.Sprintf(`{"text":%q}`, strings.Repeat("x", 256))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/tts", strings.NewReader(body)))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, 0, provider.calls())
}

// stallingProvider never answers before its context ends
type stallingProvider struct {
	*fakeProvider
}

func (p stallingProvider) Synthesize(ctx context.Context, _ textchunk.Chunk, _ tts.Options) (*tts.Fragment, error) {
	<-ctx.Done()
	return nil, &tts.ProviderError{Provider: p.name, Message: "request failed", Cause: ctx.Err()}
}

func TestRequestTimeout(t *testing.T) {
	provider := stallingProvider{newContainerProvider("deepgram", 10)}
	s := NewServer(Options{Origins: []string{"*"}, RequestTimeout: 50 * time.Millisecond},
		endpoint(t, EndpointDeepgram, provider, "Failed to generate audio from Deepgram", UpstreamStatus))
	mux := http.NewServeMux()
	s.Register(mux)

	rec := httptest.NewRecorder()
	start := time.Now()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/tts-deepgram", strings.NewReader(`{"input":"hello"}`)))

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)

	var body response.ErrorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "Synthesis timed out", body.Detail)
}

func TestLegacy_ProviderFailure(t *testing.T) {
	err := &tts.ProviderError{Provider: "legacy", StatusCode: 200, Message: "Failed to generate audio", Cause: tts.ErrBadStatus}
	server := newTestServer(t, testProviders{legacy: failingProvider("legacy", audio.FormatFrame, err)})

	resp := postJSON(t, server.URL+"/tts", `{"text":"hello"}`)

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Failed to generate audio", decodeDetail(t, resp))
}

func TestGenerative_Success(t *testing.T) {
	provider := newContainerProvider("generative", 100)
	server := newTestServer(t, testProviders{generative: provider})

	body := fmt.Sprintf(`{"input":%q}`, strings.Repeat("b", 1500))
	resp := postJSON(t, server.URL+"/tts-openai", body)

	data := decodeAudio(t, resp)
	require.Len(t, data, 44+200)
	assert.Equal(t, uint32(236), binary.LittleEndian.Uint32(data[4:8]))
	assert.Equal(t, uint32(200), binary.LittleEndian.Uint32(data[40:44]))

	require.Equal(t, 2, provider.calls())
	assert.Equal(t, tts.Options{Voice: DefaultVoice, Prompt: "", Vibe: DefaultVibe}, provider.options[0])
}

func TestGenerative_IgnoresOutputFormat(t *testing.T) {
	server := newTestServer(t, testProviders{generative: newContainerProvider("generative", 10)})

	resp := postJSON(t, server.URL+"/tts-openai", `{"input":"hi","output_format":"binary","voice":"ash","prompt":"calm","vibe":"x"}`)

	assert.Len(t, decodeAudio(t, resp), 54)
}

func TestGenerative_ProviderFailureStatus(t *testing.T) {
	tests := []struct {
		name     string
		upstream int
		want     int
	}{
		{"upstream status propagated", http.StatusTooManyRequests, http.StatusTooManyRequests},
		{"upstream server error propagated", http.StatusServiceUnavailable, http.StatusServiceUnavailable},
		{"no response", 0, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &tts.ProviderError{Provider: "generative", StatusCode: tt.upstream, Message: "unexpected HTTP status"}
			server := newTestServer(t, testProviders{generative: failingProvider("generative", audio.FormatContainer, err)})

			resp := postJSON(t, server.URL+"/tts-openai", `{"input":"hello"}`)

			assert.Equal(t, tt.want, resp.StatusCode)
			assert.Equal(t, "Failed to generate audio from OpenAI.FM", decodeDetail(t, resp))
		})
	}
}

func TestDeepgram_Registration(t *testing.T) {
	without := newTestServer(t, testProviders{legacy: newFrameProvider(func(int) int { return 1 })})
	resp := postJSON(t, without.URL+"/tts-deepgram", `{"input":"hello"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	provider := newContainerProvider("deepgram", 20)
	with := newTestServer(t, testProviders{deepgram: provider})
	resp = postJSON(t, with.URL+"/tts-deepgram", `{"input":"hello","voice":"aura-luna-en","output_format":"binary"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "audio/wav", resp.Header.Get("Content-Type"))
	assert.Equal(t, "aura-luna-en", provider.options[0].Voice)
}

func TestMethodNotAllowed(t *testing.T) {
	server := newTestServer(t, testProviders{legacy: newFrameProvider(func(int) int { return 1 })})

	resp, err := http.Get(server.URL + "/tts")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestRequestIDPropagated(t *testing.T) {
	server := newTestServer(t, testProviders{legacy: newFrameProvider(func(int) int { return 1 })})

	req, err := http.NewRequest(http.MethodPost, server.URL+"/tts", strings.NewReader(`{"text":"a"}`))
	require.NoError(t, err)
	req.Header.Set(requestIDHeader, "req-123")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "req-123", resp.Header.Get(requestIDHeader))
}

func TestStatusPolicies(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, InternalError(&tts.ProviderError{StatusCode: 404}))
	assert.Equal(t, http.StatusNotFound, UpstreamStatus(&tts.ProviderError{StatusCode: 404}))
	assert.Equal(t, http.StatusBadGateway, UpstreamStatus(&tts.ProviderError{StatusCode: 200}))
	assert.Equal(t, http.StatusBadGateway, UpstreamStatus(&tts.ProviderError{}))
}
