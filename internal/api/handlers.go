package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/lexiqai/tts-gateway/internal/observability"
	"github.com/lexiqai/tts-gateway/internal/response"
	"github.com/lexiqai/tts-gateway/internal/tts"
)

const requestIDHeader = "X-Request-ID"

// Request defaults for each endpoint
const (
	DefaultOutputFormat = response.ModeBase64
	DefaultTextSpeaker  = "id_female_icha"
	DefaultVoice        = "sage"
	DefaultVibe         = "null"
)

// LegacyRequest is the body of POST /tts
type LegacyRequest struct {
	Text         *string `json:"text"`
	OutputFormat string  `json:"output_format"`
	TextSpeaker  string  `json:"text_speaker"`
}

// GenerativeRequest is the body of POST /tts-openai
type GenerativeRequest struct {
	Input  *string `json:"input"`
	Prompt string  `json:"prompt"`
	Voice  string  `json:"voice"`
	Vibe   string  `json:"vibe"`
}

// DeepgramRequest is the body of POST /tts-deepgram. An empty voice uses
// the configured model.
type DeepgramRequest struct {
	Input        *string `json:"input"`
	Voice        string  `json:"voice"`
	OutputFormat string  `json:"output_format"`
}

func newLegacyRequest() LegacyRequest {
	return LegacyRequest{OutputFormat: DefaultOutputFormat, TextSpeaker: DefaultTextSpeaker}
}

func newGenerativeRequest() GenerativeRequest {
	return GenerativeRequest{Voice: DefaultVoice, Vibe: DefaultVibe}
}

func newDeepgramRequest() DeepgramRequest {
	return DeepgramRequest{OutputFormat: DefaultOutputFormat}
}

func (r *LegacyRequest) synth(e *Endpoint) (synthRequest, error) {
	if r.Text == nil {
		return synthRequest{}, missingField("text")
	}
	return synthRequest{
		endpoint: e,
		text:     *r.Text,
		mode:     r.OutputFormat,
		options:  tts.Options{Voice: r.TextSpeaker},
	}, nil
}

// Generative audio is always returned as base64 JSON
func (r *GenerativeRequest) synth(e *Endpoint) (synthRequest, error) {
	if r.Input == nil {
		return synthRequest{}, missingField("input")
	}
	return synthRequest{
		endpoint: e,
		text:     *r.Input,
		mode:     response.ModeBase64,
		options:  tts.Options{Voice: r.Voice, Prompt: r.Prompt, Vibe: r.Vibe},
	}, nil
}

func (r *DeepgramRequest) synth(e *Endpoint) (synthRequest, error) {
	if r.Input == nil {
		return synthRequest{}, missingField("input")
	}
	return synthRequest{
		endpoint: e,
		text:     *r.Input,
		mode:     r.OutputFormat,
		options:  tts.Options{Voice: r.Voice},
	}, nil
}

// errMissingField is returned when a required body field is absent
var errMissingField = errors.New("field required")

func missingField(name string) error {
	return fmt.Errorf("%w: %s", errMissingField, name)
}

func (s *Server) handleLegacy(e *Endpoint) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := newLegacyRequest()
		s.serve(w, r, e, &req, req.synth)
	}
}

func (s *Server) handleGenerative(e *Endpoint) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := newGenerativeRequest()
		s.serve(w, r, e, &req, req.synth)
	}
}

func (s *Server) handleDeepgram(e *Endpoint) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := newDeepgramRequest()
		s.serve(w, r, e, &req, req.synth)
	}
}

// serve decodes the JSON body into body, converts it with build and writes
// the synthesized audio or a {"detail": ...} error. build must be bound to
// the same value body points to.
func (s *Server) serve(w http.ResponseWriter, r *http.Request, e *Endpoint, body interface{}, build func(*Endpoint) (synthRequest, error)) {
	requestID := r.Header.Get(requestIDHeader)
	if requestID == "" {
		requestID = observability.NewRequestID()
	}
	w.Header().Set(requestIDHeader, requestID)
	logger := requestLogger(requestID, e.Name)

	if status, detail, err := s.decode(w, r, body); err != nil {
		logger.Warn().Err(err).Int("status", status).Msg("Rejected request body")
		_ = response.WriteError(w, status, detail)
		return
	}

	req, err := build(e)
	if err != nil {
		logger.Warn().Err(err).Msg("Rejected request body")
		_ = response.WriteError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	payload, f := s.run(r.Context(), logger, req)
	if f != nil {
		_ = response.WriteError(w, f.status, f.detail)
		return
	}
	if err := payload.Write(w); err != nil {
		logger.Warn().Err(err).Msg("Failed to write response")
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, body interface{}) (int, string, error) {
	reader := r.Body
	if s.maxBody > 0 {
		reader = http.MaxBytesReader(w, r.Body, s.maxBody)
	}

	if err := json.NewDecoder(reader).Decode(body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return http.StatusRequestEntityTooLarge, "Request body too large", err
		}
		return http.StatusBadRequest, "Invalid JSON body", err
	}
	return http.StatusOK, "", nil
}

func requestLogger(requestID, endpoint string) zerolog.Logger {
	return observability.WithRequestID(requestID).With().Str("endpoint", endpoint).Logger()
}
