package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/tts-gateway/internal/audio"
	"github.com/lexiqai/tts-gateway/internal/observability"
	"github.com/lexiqai/tts-gateway/internal/response"
	"github.com/lexiqai/tts-gateway/internal/synth"
	"github.com/lexiqai/tts-gateway/internal/tts"
)

// Endpoint names, used for routing, metrics and WebSocket requests
const (
	EndpointLegacy     = "tts"
	EndpointGenerative = "tts-openai"
	EndpointDeepgram   = "tts-deepgram"
)

// StatusPolicy maps a provider failure to the HTTP status returned to the client
type StatusPolicy func(*tts.ProviderError) int

// InternalError answers every provider failure with 500
func InternalError(*tts.ProviderError) int {
	return http.StatusInternalServerError
}

// UpstreamStatus passes upstream HTTP error statuses through and answers
// transport failures with 502
func UpstreamStatus(pe *tts.ProviderError) int {
	if pe.StatusCode >= http.StatusBadRequest && pe.StatusCode <= 599 {
		return pe.StatusCode
	}
	return http.StatusBadGateway
}

// Endpoint binds a synthesis pipeline to a route
type Endpoint struct {
	Name     string
	Pipeline *synth.Pipeline

	// FailureDetail is the client-facing message for provider failures
	FailureDetail string

	// Status picks the response status for provider failures
	Status StatusPolicy
}

// Options configures a Server
type Options struct {
	// Origins allowed by CORS and the WebSocket upgrade; "*" allows any
	Origins []string

	// MaxBody caps request bodies and WebSocket messages; 0 disables the cap
	MaxBody int64

	// RequestTimeout bounds one whole synthesis request; 0 disables it
	RequestTimeout time.Duration
}

// Server serves the synthesis endpoints over HTTP and WebSocket
type Server struct {
	endpoints map[string]*Endpoint
	origins   []string
	maxBody   int64
	timeout   time.Duration
}

// NewServer creates a server for the given endpoints. Nil endpoints are
// skipped so optional providers can be passed unconditionally.
func NewServer(opts Options, endpoints ...*Endpoint) *Server {
	s := &Server{
		endpoints: make(map[string]*Endpoint, len(endpoints)),
		origins:   opts.Origins,
		maxBody:   opts.MaxBody,
		timeout:   opts.RequestTimeout,
	}
	for _, e := range endpoints {
		if e != nil {
			s.endpoints[e.Name] = e
		}
	}
	return s
}

// Register adds the synthesis routes to mux
func (s *Server) Register(mux *http.ServeMux) {
	if e, ok := s.endpoints[EndpointLegacy]; ok {
		mux.HandleFunc("POST /"+EndpointLegacy, s.handleLegacy(e))
	}
	if e, ok := s.endpoints[EndpointGenerative]; ok {
		mux.HandleFunc("POST /"+EndpointGenerative, s.handleGenerative(e))
	}
	if e, ok := s.endpoints[EndpointDeepgram]; ok {
		mux.HandleFunc("POST /"+EndpointDeepgram, s.handleDeepgram(e))
	}
	mux.HandleFunc("GET /ws/tts", s.handleWebSocket)
}

// Endpoints returns the names of the registered endpoints
func (s *Server) Endpoints() []string {
	names := make([]string, 0, len(s.endpoints))
	for _, name := range []string{EndpointLegacy, EndpointGenerative, EndpointDeepgram} {
		if _, ok := s.endpoints[name]; ok {
			names = append(names, name)
		}
	}
	return names
}

// synthRequest is a synthesis request after endpoint defaults are applied
type synthRequest struct {
	endpoint *Endpoint
	text     string
	mode     string
	options  tts.Options
}

// failure is a request that could not be answered with audio
type failure struct {
	status    int
	detail    string
	errorType string
	err       error
}

// run executes one synthesis request and encodes the result. It is shared
// by the HTTP handlers and the WebSocket loop.
func (s *Server) run(ctx context.Context, logger zerolog.Logger, req synthRequest) (*response.Payload, *failure) {
	e := req.endpoint
	metrics := observability.NewRequestMetrics(e.Name)
	status := http.StatusOK
	defer func() { metrics.RecordEnd(status) }()

	fail := func(f *failure) (*response.Payload, *failure) {
		status = f.status
		metrics.RecordError(f.errorType)
		logger.Error().
			Err(f.err).
			Int("status", f.status).
			Str("error_type", f.errorType).
			Msg("Synthesis request failed")
		return nil, f
	}

	// Reject an unusable output mode before spending provider calls
	if !response.ValidMode(req.mode) {
		return fail(&failure{
			status:    http.StatusBadRequest,
			detail:    response.InvalidFormatDetail,
			errorType: "invalid_format",
			err:       &response.InvalidFormatError{Mode: req.mode},
		})
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := e.Pipeline.Synthesize(ctx, req.text, req.options)
	if err != nil {
		return fail(s.classify(ctx, e, err))
	}
	metrics.RecordChunks(result.Chunks)

	var duration time.Duration
	if result.Format == audio.FormatContainer {
		if header, err := audio.ParseWAVHeader(result.Audio); err == nil {
			duration = header.Duration()
		}
	}
	observability.RecordAssembledAudio(result.Format.String(), len(result.Audio), duration)

	payload, err := response.Encode(result.Audio, req.mode, result.Format)
	if err != nil {
		return fail(&failure{
			status:    http.StatusInternalServerError,
			detail:    "Failed to encode audio",
			errorType: "encode",
			err:       err,
		})
	}

	logger.Info().
		Str("provider", e.Pipeline.Provider().Name()).
		Int("chunks", result.Chunks).
		Int("bytes", len(result.Audio)).
		Str("format", result.Format.String()).
		Dur("elapsed", time.Since(start)).
		Msg("Synthesis complete")

	return payload, nil
}

func (s *Server) classify(ctx context.Context, e *Endpoint, err error) *failure {
	var pe *tts.ProviderError
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return &failure{
			status:    http.StatusGatewayTimeout,
			detail:    "Synthesis timed out",
			errorType: "timeout",
			err:       err,
		}
	case errors.As(err, &pe):
		f := &failure{
			status:    e.Status(pe),
			detail:    e.FailureDetail,
			errorType: "provider",
			err:       err,
		}
		if ctx.Err() != nil {
			f.errorType = "cancelled"
		}
		return f
	default:
		return &failure{
			status:    http.StatusInternalServerError,
			detail:    "Internal server error",
			errorType: "internal",
			err:       err,
		}
	}
}
