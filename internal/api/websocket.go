package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/lexiqai/tts-gateway/internal/observability"
)

// wsEnvelope selects the endpoint a WebSocket request is meant for. The
// rest of the message is the endpoint's usual JSON body.
type wsEnvelope struct {
	Endpoint string `json:"endpoint"`
}

// wsError is sent as a text frame when a request cannot be answered
type wsError struct {
	Detail string `json:"detail"`
	Status int    `json:"status"`
}

func (s *Server) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || originAllowed(s.origins, origin)
		},
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
	}
}

// handleWebSocket answers each text message with exactly one message
// carrying the complete audio: a binary frame for binary output, a JSON
// text frame otherwise. Requests on one connection run in order.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	connID := r.Header.Get(requestIDHeader)
	if connID == "" {
		connID = observability.NewRequestID()
	}
	logger := observability.WithRequestID(connID)

	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to upgrade connection to WebSocket")
		return
	}
	defer conn.Close()
	if s.maxBody > 0 {
		conn.SetReadLimit(s.maxBody)
	}

	logger.Info().Msg("WebSocket connection established")
	for seq := 0; ; seq++ {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn().Err(err).Msg("WebSocket read error")
			}
			logger.Info().Int("requests", seq).Msg("WebSocket connection closed")
			return
		}
		if msgType != websocket.TextMessage {
			if err := writeWSError(conn, http.StatusBadRequest, "Requests must be JSON text messages"); err != nil {
				return
			}
			continue
		}

		requestID := fmt.Sprintf("%s-%d", connID, seq)
		if err := s.answer(conn, r, requestID, data); err != nil {
			logger.Warn().Err(err).Msg("WebSocket write error")
			return
		}
	}
}

func (s *Server) answer(conn *websocket.Conn, r *http.Request, requestID string, data []byte) error {
	req, status, detail := s.parseWSRequest(data)
	if req == nil {
		return writeWSError(conn, status, detail)
	}

	logger := requestLogger(requestID, req.endpoint.Name).With().Str("transport", "websocket").Logger()
	payload, f := s.run(r.Context(), logger, *req)
	if f != nil {
		return writeWSError(conn, f.status, f.detail)
	}

	msgType := websocket.TextMessage
	if payload.Binary {
		msgType = websocket.BinaryMessage
	}
	return conn.WriteMessage(msgType, payload.Body)
}

func (s *Server) parseWSRequest(data []byte) (*synthRequest, int, string) {
	var env wsEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, http.StatusBadRequest, "Invalid JSON body"
	}

	e, ok := s.endpoints[env.Endpoint]
	if !ok {
		return nil, http.StatusNotFound, fmt.Sprintf("Unknown endpoint %q", env.Endpoint)
	}

	var (
		req synthRequest
		err error
	)
	switch env.Endpoint {
	case EndpointLegacy:
		body := newLegacyRequest()
		if err = json.Unmarshal(data, &body); err == nil {
			req, err = body.synth(e)
		}
	case EndpointGenerative:
		body := newGenerativeRequest()
		if err = json.Unmarshal(data, &body); err == nil {
			req, err = body.synth(e)
		}
	case EndpointDeepgram:
		body := newDeepgramRequest()
		if err = json.Unmarshal(data, &body); err == nil {
			req, err = body.synth(e)
		}
	}
	if err != nil {
		return nil, http.StatusUnprocessableEntity, err.Error()
	}
	return &req, http.StatusOK, ""
}

func writeWSError(conn *websocket.Conn, status int, detail string) error {
	return conn.WriteJSON(wsError{Detail: detail, Status: status})
}
