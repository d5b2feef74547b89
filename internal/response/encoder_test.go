package response

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexiqai/tts-gateway/internal/audio"
)

func TestEncode_Base64RoundTrip(t *testing.T) {
	data := []byte{0x00, 0xFF, 0x10, 'I', 'D', '3', 0x7F}

	payload, err := Encode(data, "base64", audio.FormatFrame)
	require.NoError(t, err)
	assert.Equal(t, "application/json", payload.ContentType)
	assert.False(t, payload.Binary)

	var body AudioBody
	require.NoError(t, json.Unmarshal(payload.Body, &body))
	decoded, err := base64.StdEncoding.DecodeString(body.AudioBase64)
	require.NoError(t, err)
	assert.Equal(t, data, decoded)
}

func TestEncode_Binary(t *testing.T) {
	data := []byte{1, 2, 3}

	tests := []struct {
		format      audio.Format
		contentType string
	}{
		{audio.FormatFrame, "audio/mpeg"},
		{audio.FormatContainer, "audio/wav"},
	}
	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			payload, err := Encode(data, "binary", tt.format)
			require.NoError(t, err)
			assert.Equal(t, tt.contentType, payload.ContentType)
			assert.Equal(t, data, payload.Body)
			assert.True(t, payload.Binary)
		})
	}
}

func TestEncode_CaseInsensitive(t *testing.T) {
	for _, mode := range []string{"BASE64", "Base64", "BINARY", "Binary"} {
		_, err := Encode([]byte{1}, mode, audio.FormatFrame)
		assert.NoError(t, err, mode)
		assert.True(t, ValidMode(mode), mode)
	}
}

func TestEncode_InvalidMode(t *testing.T) {
	for _, mode := range []string{"xml", "", "base32", "raw"} {
		payload, err := Encode([]byte{1}, mode, audio.FormatFrame)
		assert.Nil(t, payload)

		var ife *InvalidFormatError
		require.True(t, errors.As(err, &ife), mode)
		assert.Equal(t, mode, ife.Mode)
		assert.ErrorIs(t, err, ErrInvalidFormat)
		assert.False(t, ValidMode(mode))
	}
}

func TestEncode_EmptyAudio(t *testing.T) {
	payload, err := Encode(nil, "base64", audio.FormatFrame)
	require.NoError(t, err)
	assert.JSONEq(t, `{"audio_base64":""}`, string(payload.Body))
}

func TestPayload_Write(t *testing.T) {
	payload, err := Encode([]byte("abc"), "binary", audio.FormatFrame)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	require.NoError(t, payload.Write(rec))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "audio/mpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "3", rec.Header().Get("Content-Length"))
	assert.Equal(t, "abc", rec.Body.String())
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteError(rec, http.StatusBadRequest, InvalidFormatDetail))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"detail":"Invalid output format. Choose 'base64' or 'binary'."}`, rec.Body.String())
}
