// Package whisper provides the whisper.cpp-backed recognizer
// implementations: Native runs the model in-process through the CGO
// bindings, Server talks to a running whisper-server binary over HTTP.
package whisper

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/sonoscribe/pkg/recognizer"
)

const (
	// bitsPerSample is fixed at 16 for the signed little-endian PCM audio
	// whisper.cpp expects.
	bitsPerSample = 16

	defaultLanguage   = "en"
	defaultSampleRate = 16000
)

// Compile-time assertion that Server satisfies recognizer.Recognizer.
var _ recognizer.Recognizer = (*Server)(nil)

// ServerOption is a functional option for configuring a Server recognizer.
type ServerOption func(*Server)

// WithModel sets the model identifier forwarded to the whisper-server
// (e.g. "base.en", "small"). When empty the server uses whichever model it
// was started with — this is the default.
func WithModel(model string) ServerOption {
	return func(s *Server) { s.model = model }
}

// WithLanguage sets the BCP-47 language code sent to the whisper-server.
// Defaults to "en".
func WithLanguage(lang string) ServerOption {
	return func(s *Server) { s.language = lang }
}

// WithSampleRate sets the sample rate in Hz written into the WAV header.
// It must match the rate the signal was captured at. Defaults to 16000.
func WithSampleRate(rate int) ServerOption {
	return func(s *Server) { s.sampleRate = rate }
}

// Server is a recognizer backed by a running whisper-server binary, which
// exposes a REST API at POST /inference. Each Transcribe call encodes the
// signal as a WAV file and submits one batch inference request. Safe for
// concurrent use; requests from simultaneous sessions are independent.
type Server struct {
	serverURL  string
	model      string
	language   string
	sampleRate int
	httpClient *http.Client
}

// NewServer creates a Server recognizer that connects to the whisper-server
// at serverURL (e.g. "http://localhost:8080"). serverURL must be non-empty.
func NewServer(serverURL string, opts ...ServerOption) (*Server, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	s := &Server{
		serverURL:  serverURL,
		language:   defaultLanguage,
		sampleRate: defaultSampleRate,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Transcribe encodes samples as a WAV file and POSTs it to the
// whisper-server /inference endpoint as multipart/form-data. The server
// returns the whole transcription as one text field, so the result is a
// single segment (or none when the server heard nothing).
func (s *Server) Transcribe(ctx context.Context, samples []float32) ([]string, error) {
	wav := encodeWAV(float32ToPCM(samples), s.sampleRate, 1)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return nil, fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return nil, fmt.Errorf("whisper: write wav data: %w", err)
	}

	if s.language != "" {
		if err := mw.WriteField("language", s.language); err != nil {
			return nil, fmt.Errorf("whisper: write language field: %w", err)
		}
	}
	if s.model != "" {
		if err := mw.WriteField("model", s.model); err != nil {
			return nil, fmt.Errorf("whisper: write model field: %w", err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	endpoint := s.serverURL + "/inference"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("whisper: server returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("whisper: read response body: %w", err)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("whisper: parse JSON response: %w", err)
	}

	text := strings.TrimSpace(result.Text)
	if text == "" {
		return nil, nil
	}
	return []string{text}, nil
}

// float32ToPCM converts normalised float32 samples back to little-endian
// signed 16-bit PCM, clamping out-of-range values.
func float32ToPCM(samples []float32) []byte {
	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := math.Round(float64(s) * 32768.0)
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		binary.LittleEndian.PutUint16(pcm[2*i:], uint16(int16(v)))
	}
	return pcm
}

// encodeWAV wraps raw 16-bit signed little-endian PCM data in a standard
// RIFF/WAV container suitable for direct inclusion in a multipart form
// upload.
func encodeWAV(pcm []byte, sampleRate, channels int) []byte {
	bps := bitsPerSample
	byteRate := sampleRate * channels * bps / 8
	blockAlign := channels * bps / 8
	dataSize := len(pcm)

	buf := make([]byte, 44+dataSize)

	// RIFF chunk descriptor
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize)) // file size − 8
	copy(buf[8:12], "WAVE")

	// fmt sub-chunk
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)                 // sub-chunk size (PCM)
	binary.LittleEndian.PutUint16(buf[20:22], 1)                  // audio format: PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))   // num channels
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate)) // sample rate
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))   // byte rate
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign)) // block align
	binary.LittleEndian.PutUint16(buf[34:36], uint16(bps))        // bits per sample

	// data sub-chunk
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], pcm)

	return buf
}
