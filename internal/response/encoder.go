package response

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/lexiqai/tts-gateway/internal/audio"
)

// Output modes accepted by Encode
const (
	ModeBase64 = "base64"
	ModeBinary = "binary"
)

// InvalidFormatDetail is the client-facing message for an unknown mode
const InvalidFormatDetail = "Invalid output format. Choose 'base64' or 'binary'."

// ErrInvalidFormat matches every *InvalidFormatError
var ErrInvalidFormat = errors.New("invalid output format")

// InvalidFormatError reports an output mode other than base64 or binary
type InvalidFormatError struct {
	Mode string
}

func (e *InvalidFormatError) Error() string {
	return fmt.Sprintf("%v: %q", ErrInvalidFormat, e.Mode)
}

// Is makes errors.Is(err, ErrInvalidFormat) hold
func (e *InvalidFormatError) Is(target error) bool {
	return target == ErrInvalidFormat
}

// AudioBody is the JSON document returned in base64 mode
type AudioBody struct {
	AudioBase64 string `json:"audio_base64"`
}

// ErrorBody is the JSON document returned for client and provider errors
type ErrorBody struct {
	Detail string `json:"detail"`
}

// Payload is an encoded response ready to be written
type Payload struct {
	ContentType string
	Body        []byte
	Binary      bool // Body is raw audio rather than a JSON document
}

// Encode packages stitched audio for delivery. Mode is matched
// case-insensitively; base64 wraps the audio in {"audio_base64": ...},
// binary returns the bytes as-is typed by format.
func Encode(data []byte, mode string, format audio.Format) (*Payload, error) {
	switch strings.ToLower(mode) {
	case ModeBase64:
		body, err := json.Marshal(AudioBody{AudioBase64: base64.StdEncoding.EncodeToString(data)})
		if err != nil {
			return nil, fmt.Errorf("failed to encode audio body: %w", err)
		}
		return &Payload{ContentType: "application/json", Body: body}, nil
	case ModeBinary:
		return &Payload{ContentType: format.MediaType(), Body: data, Binary: true}, nil
	default:
		return nil, &InvalidFormatError{Mode: mode}
	}
}

// ValidMode reports whether Encode accepts mode
func ValidMode(mode string) bool {
	switch strings.ToLower(mode) {
	case ModeBase64, ModeBinary:
		return true
	}
	return false
}

// Write sends the payload with a 200 status
func (p *Payload) Write(w http.ResponseWriter) error {
	w.Header().Set("Content-Type", p.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(p.Body)))
	w.WriteHeader(http.StatusOK)
	_, err := w.Write(p.Body)
	return err
}

// WriteError sends {"detail": detail} with the given status
func WriteError(w http.ResponseWriter, status int, detail string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(ErrorBody{Detail: detail})
}
